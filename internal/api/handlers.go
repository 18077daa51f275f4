package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hyperengineering/vision/internal/archive"
	"github.com/hyperengineering/vision/internal/checkout"
	"github.com/hyperengineering/vision/internal/dashboard"
	"github.com/hyperengineering/vision/internal/llm"
	"github.com/hyperengineering/vision/internal/onboarding"
	"github.com/hyperengineering/vision/internal/store"
	"github.com/hyperengineering/vision/internal/types"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// StreakToucher records daily activity.
type StreakToucher interface {
	Touch(ctx context.Context, userID string) (*types.Streak, error)
}

// ChatAdvisor answers strategy questions.
type ChatAdvisor interface {
	Reply(ctx context.Context, message string, history []llm.Message) (string, error)
}

// Checkout lists offers and creates checkout links.
type Checkout interface {
	ListProducts(ctx context.Context) ([]checkout.Product, error)
	ListOffers(ctx context.Context, q checkout.OfferQuery) ([]checkout.Offer, error)
	CreateCheckout(ctx context.Context, cust checkout.Customer, coupon string) (*checkout.Checkout, error)
}

// ModelInfo describes the text-generation backend for the health check.
type ModelInfo interface {
	ModelName() string
	Degraded() bool
}

// Deps are the services behind the API.
type Deps struct {
	Store      store.Store
	Streak     StreakToucher
	Onboarding *onboarding.Controller
	Dashboards *dashboard.Manager
	Advisor    ChatAdvisor
	Checkout   Checkout
	Archive    archive.Archiver
	Model      ModelInfo
	APIKey     string
	Version    string
	// Limiter guards the generation endpoints. Nil uses a default bucket.
	Limiter *RateLimiter
}

// Handler implements the API handlers
type Handler struct {
	store      store.Store
	streak     StreakToucher
	onboarding *onboarding.Controller
	dashboards *dashboard.Manager
	advisor    ChatAdvisor
	checkout   Checkout
	archive    archive.Archiver
	model      ModelInfo
	apiKey     string
	version    string
	limiter    *RateLimiter
}

// NewHandler creates a new Handler from its dependencies.
func NewHandler(d Deps) *Handler {
	if d.Archive == nil {
		d.Archive = archive.Noop{}
	}
	if d.Limiter == nil {
		d.Limiter = NewRateLimiter(10, 6*time.Second)
	}
	return &Handler{
		store:      d.Store,
		streak:     d.Streak,
		onboarding: d.Onboarding,
		dashboards: d.Dashboards,
		advisor:    d.Advisor,
		checkout:   d.Checkout,
		archive:    d.Archive,
		model:      d.Model,
		apiKey:     d.APIKey,
		version:    d.Version,
		limiter:    d.Limiter,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	resp := types.HealthResponse{
		Status:  "healthy",
		Version: h.version,
	}
	if h.model != nil {
		resp.LLMModel = h.model.ModelName()
		resp.Degraded = h.model.Degraded()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads a JSON body into v, writing a 400 problem on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return false
	}
	return true
}
