package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/vision/internal/planner"
	"github.com/hyperengineering/vision/internal/validation"
)

// GetPlan handles GET /api/v1/plan
// Loading the dashboard also records daily activity.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	view, err := h.dashboards.For(session.UserID).Load(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetRoadmap handles GET /api/v1/plan/roadmap
func (h *Handler) GetRoadmap(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	roadmap, err := h.dashboards.For(session.UserID).Roadmap(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roadmap)
}

type statusMessagesResponse struct {
	Messages   []string `json:"messages"`
	IntervalMS int64    `json:"interval_ms"`
	Current    string   `json:"current,omitempty"`
}

// StatusMessages handles GET /api/v1/plan/status-messages
// With ?elapsed_ms=N the message to show at that point is also returned.
func (h *Handler) StatusMessages(w http.ResponseWriter, r *http.Request) {
	resp := statusMessagesResponse{
		Messages:   planner.StatusMessages,
		IntervalMS: planner.StatusInterval.Milliseconds(),
	}
	if raw := r.URL.Query().Get("elapsed_ms"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			WriteProblem(w, r, http.StatusBadRequest, "elapsed_ms must be a non-negative integer")
			return
		}
		resp.Current = planner.StatusMessageAt(time.Duration(ms) * time.Millisecond)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ToggleWeek handles POST /api/v1/plan/weeks/{week}/toggle
// {week} is the 0-based week index.
func (h *Handler) ToggleWeek(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "week must be an integer")
		return
	}
	if errs := validation.ValidateWeekIndex("week", week); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	view, err := h.dashboards.For(session.UserID).Toggle(r.Context(), week)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type editTacticRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// EditTactic handles PATCH /api/v1/plan/tactics/{id}
func (h *Handler) EditTactic(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if verr := validation.ValidateULID("id", id); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
		return
	}

	var req editTacticRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateTacticEdit(req.Title, req.Description); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	view, err := h.dashboards.For(session.UserID).Edit(r.Context(), id, req.Title, req.Description)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type recalculateRequest struct {
	NewGoal      string `json:"new_goal"`
	ContextDelta string `json:"context_delta"`
}

// RecalculatePlan handles POST /api/v1/plan/recalculate
// Completed weeks are preserved; every other week is regenerated.
func (h *Handler) RecalculatePlan(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	var req recalculateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateRecalculation(req.NewGoal, req.ContextDelta); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	view, err := h.dashboards.For(session.UserID).Recalculate(r.Context(), req.NewGoal, req.ContextDelta)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type exportResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportPlan handles GET /api/v1/plans/{id}/export
// The plan is uploaded to archive storage and a pre-signed URL is returned.
func (h *Handler) ExportPlan(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if verr := validation.ValidateULID("id", id); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
		return
	}

	plan, err := h.store.GetPlan(r.Context(), session.UserID, id)
	if err != nil {
		MapError(w, r, err)
		return
	}
	key, err := h.archive.ArchivePlan(r.Context(), plan)
	if err != nil {
		MapError(w, r, err)
		return
	}
	url, expiresAt, err := h.archive.PresignedURL(r.Context(), key)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{Key: key, URL: url, ExpiresAt: expiresAt})
}
