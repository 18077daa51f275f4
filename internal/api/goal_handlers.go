package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/vision/internal/validation"
)

// ListGoals handles GET /api/v1/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	goals, err := h.store.ListGoals(r.Context(), session.UserID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

type createGoalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateGoal handles POST /api/v1/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	var req createGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateGoal(req.Title, req.Description); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	goal, err := h.store.CreateGoal(r.Context(), session.UserID, req.Title, req.Description)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

// ToggleGoal handles POST /api/v1/goals/{id}/toggle
func (h *Handler) ToggleGoal(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if verr := validation.ValidateULID("id", id); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
		return
	}

	goal, err := h.store.ToggleGoal(r.Context(), session.UserID, id)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// DeleteGoal handles DELETE /api/v1/goals/{id}
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if verr := validation.ValidateULID("id", id); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
		return
	}

	if err := h.store.DeleteGoal(r.Context(), session.UserID, id); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
