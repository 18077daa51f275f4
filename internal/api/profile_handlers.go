package api

import (
	"net/http"

	"github.com/hyperengineering/vision/internal/validation"
)

// GetProfile handles GET /api/v1/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	profile, err := h.store.GetProfile(r.Context(), session.UserID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	FullName string `json:"full_name"`
}

// UpdateProfile handles PUT /api/v1/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateProfileName(req.FullName); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	profile, err := h.store.UpdateProfileName(r.Context(), session.UserID, req.FullName)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// TouchStreak handles POST /api/v1/streak/touch
func (h *Handler) TouchStreak(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	s, err := h.streak.Touch(r.Context(), session.UserID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
