package api

import (
	"log/slog"
	"net/http"

	"github.com/hyperengineering/vision/internal/types"
	"github.com/hyperengineering/vision/internal/validation"
)

// GetOnboarding handles GET /api/v1/onboarding
// The optional ?seed= query carries the landing page goal.
func (h *Handler) GetOnboarding(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	seed := r.URL.Query().Get("seed")
	if errs := validation.ValidateGoal(seed, ""); seed != "" && len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	state, err := h.onboarding.Load(r.Context(), session.UserID, seed)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SaveOnboarding handles PUT /api/v1/onboarding
func (h *Handler) SaveOnboarding(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	var data types.OnboardingContext
	if !decodeJSON(w, r, &data) {
		return
	}
	if errs := validation.ValidateOnboardingText(data); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	state, err := h.onboarding.Save(r.Context(), session.UserID, data)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// NextOnboardingStep handles POST /api/v1/onboarding/next
func (h *Handler) NextOnboardingStep(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	state, err := h.onboarding.Next(r.Context(), session.UserID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// PreviousOnboardingStep handles POST /api/v1/onboarding/back
func (h *Handler) PreviousOnboardingStep(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	state, err := h.onboarding.Back(r.Context(), session.UserID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type submitOnboardingResponse struct {
	Plan           *types.PlanWithTactics `json:"plan"`
	PreviousPlanID string                 `json:"previous_plan_id,omitempty"`
}

// SubmitOnboarding handles POST /api/v1/onboarding/submit
// It generates the plan and replaces the user's active plan.
func (h *Handler) SubmitOnboarding(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	result, err := h.onboarding.Submit(r.Context(), session.UserID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	h.dashboards.Invalidate(session.UserID)

	slog.Info("plan created",
		"user_id", session.UserID,
		"plan_id", result.Plan.Plan.ID,
		"previous_plan_id", result.PreviousPlanID,
	)
	writeJSON(w, http.StatusCreated, submitOnboardingResponse{
		Plan:           result.Plan,
		PreviousPlanID: result.PreviousPlanID,
	})
}
