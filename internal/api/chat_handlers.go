package api

import (
	"net/http"

	"github.com/hyperengineering/vision/internal/llm"
	"github.com/hyperengineering/vision/internal/planner"
	"github.com/hyperengineering/vision/internal/validation"
)

type chatRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

type chatResponse struct {
	Reply string `json:"reply"`
	// Greeting is set when the conversation has no history yet.
	Greeting string `json:"greeting,omitempty"`
}

// Chat handles POST /api/v1/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	MustSessionFromContext(r.Context())

	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateChat(req.Message, req.History); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	reply, err := h.advisor.Reply(r.Context(), req.Message, req.History)
	if err != nil {
		MapError(w, r, err)
		return
	}

	resp := chatResponse{Reply: reply}
	if len(req.History) == 0 {
		resp.Greeting = planner.Greeting
	}
	writeJSON(w, http.StatusOK, resp)
}
