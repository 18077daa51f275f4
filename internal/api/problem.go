package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/vision/internal/archive"
	"github.com/hyperengineering/vision/internal/checkout"
	"github.com/hyperengineering/vision/internal/dashboard"
	"github.com/hyperengineering/vision/internal/onboarding"
	"github.com/hyperengineering/vision/internal/planner"
	"github.com/hyperengineering/vision/internal/store"
	"github.com/hyperengineering/vision/internal/streak"
	"github.com/hyperengineering/vision/internal/types"
	"github.com/hyperengineering/vision/internal/validation"
)

const problemBase = "https://vision2026.app/errors/"

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]struct {
	typeURI string
	title   string
}{
	http.StatusUnauthorized: {
		typeURI: problemBase + "unauthorized",
		title:   "Unauthorized",
	},
	http.StatusBadRequest: {
		typeURI: problemBase + "bad-request",
		title:   "Bad Request",
	},
	http.StatusNotFound: {
		typeURI: problemBase + "not-found",
		title:   "Not Found",
	},
	http.StatusInternalServerError: {
		typeURI: problemBase + "internal-error",
		title:   "Internal Server Error",
	},
	http.StatusUnprocessableEntity: {
		typeURI: problemBase + "validation-error",
		title:   "Validation Error",
	},
	http.StatusServiceUnavailable: {
		typeURI: problemBase + "service-unavailable",
		title:   "Service Unavailable",
	},
	http.StatusConflict: {
		typeURI: problemBase + "conflict",
		title:   "Conflict",
	},
	http.StatusTooManyRequests: {
		typeURI: problemBase + "rate-limit",
		title:   "Too Many Requests",
	},
	http.StatusBadGateway: {
		typeURI: problemBase + "upstream-error",
		title:   "Bad Gateway",
	},
	http.StatusGatewayTimeout: {
		typeURI: problemBase + "upstream-timeout",
		title:   "Gateway Timeout",
	},
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt, ok := problemTypes[status]
	if !ok {
		pt = struct {
			typeURI string
			title   string
		}{
			typeURI: problemBase + "unknown",
			title:   http.StatusText(status),
		}
	}

	p := Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := problemTypes[http.StatusUnprocessableEntity]

	p := ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// WriteProblemConflict writes a 409 Conflict problem response.
func WriteProblemConflict(w http.ResponseWriter, r *http.Request, detail string) {
	WriteProblem(w, r, http.StatusConflict, detail)
}

// MapError converts domain errors to Problem Details responses.
// Upstream failures are logged with their cause; the client only sees a
// user-facing message.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stepErr  *onboarding.StepError
		genErr   *planner.GenerationError
		recErr   *planner.RecalculationError
		advErr   *planner.AdvisorError
		checkErr *checkout.APIError
	)

	switch {
	case errors.As(err, &stepErr):
		errs := make([]validation.ValidationError, 0, len(stepErr.Fields))
		for _, f := range stepErr.Fields {
			errs = append(errs, validation.ValidationError{Field: f, Message: "is required or invalid"})
		}
		WriteProblemWithErrors(w, r, "Preencha os campos obrigatórios desta etapa.", errs)
	case errors.Is(err, onboarding.ErrFirstStep), errors.Is(err, onboarding.ErrLastStep):
		WriteProblemConflict(w, r, err.Error())
	case errors.Is(err, planner.ErrEmptyGoal):
		WriteProblem(w, r, http.StatusUnprocessableEntity, "Informe sua meta para 2026.")
	case errors.Is(err, planner.ErrEmptyMessage):
		WriteProblem(w, r, http.StatusUnprocessableEntity, "Digite uma mensagem.")
	case errors.Is(err, context.DeadlineExceeded):
		logUpstream(r, err)
		WriteProblem(w, r, http.StatusGatewayTimeout, "O serviço demorou demais para responder. Tente novamente.")
	case errors.Is(err, context.Canceled):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Requisição cancelada.")
	case errors.As(err, &genErr):
		logUpstream(r, err)
		WriteProblem(w, r, http.StatusBadGateway, "Falha ao gerar estratégia. Tente novamente.")
	case errors.As(err, &recErr):
		logUpstream(r, err)
		WriteProblem(w, r, http.StatusBadGateway, "Falha ao recalcular o plano. Seu plano atual foi mantido.")
	case errors.As(err, &advErr):
		logUpstream(r, err)
		WriteProblem(w, r, http.StatusBadGateway, "Erro ao conectar com a IA.")
	case errors.Is(err, streak.ErrUnavailable):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Sequência indisponível no momento.")
	case errors.Is(err, dashboard.ErrPlanChanged):
		WriteProblemConflict(w, r, "Seu plano foi substituído. Recarregue o painel.")
	case errors.Is(err, store.ErrNoActivePlan):
		WriteProblem(w, r, http.StatusNotFound, "Nenhum plano ativo encontrado.")
	case errors.Is(err, dashboard.ErrTacticNotFound), errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, dashboard.ErrWeekOutOfRange), errors.Is(err, dashboard.ErrEmptyTitle):
		WriteProblem(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, checkout.ErrMissingEmail):
		WriteProblem(w, r, http.StatusUnprocessableEntity, "Informe um e-mail para o checkout.")
	case errors.Is(err, checkout.ErrOfferNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Oferta não encontrada.")
	case errors.Is(err, checkout.ErrNotConfigured):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Checkout não configurado.")
	case errors.As(err, &checkErr):
		logUpstream(r, err)
		WriteProblem(w, r, http.StatusBadGateway, "Erro ao processar pagamento.")
	case errors.Is(err, archive.ErrNotConfigured):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Exportação de planos não configurada.")
	default:
		if errors.Is(err, types.ErrUnsupportedContext) {
			slog.Error("stored onboarding context unreadable", "path", r.URL.Path, "error", err)
		} else {
			slog.Error("request failed", "path", r.URL.Path, "error", err)
		}
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}

func logUpstream(r *http.Request, err error) {
	slog.Warn("upstream call failed",
		"request_id", GetRequestID(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)
}
