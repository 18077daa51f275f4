package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Protected routes (service key + user session)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))
			r.Use(SessionMiddleware(h.store))

			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
			r.Post("/streak/touch", h.TouchStreak)

			r.Get("/onboarding", h.GetOnboarding)
			r.Put("/onboarding", h.SaveOnboarding)
			r.Post("/onboarding/next", h.NextOnboardingStep)
			r.Post("/onboarding/back", h.PreviousOnboardingStep)

			r.Get("/plan", h.GetPlan)
			r.Get("/plan/roadmap", h.GetRoadmap)
			r.Get("/plan/status-messages", h.StatusMessages)
			r.Post("/plan/weeks/{week}/toggle", h.ToggleWeek)
			r.Patch("/plan/tactics/{id}", h.EditTactic)
			r.Get("/plans/{id}/export", h.ExportPlan)

			r.Get("/goals", h.ListGoals)
			r.Post("/goals", h.CreateGoal)
			r.Post("/goals/{id}/toggle", h.ToggleGoal)
			r.Delete("/goals/{id}", h.DeleteGoal)

			r.Get("/checkout/products", h.ListProducts)
			r.Get("/checkout/offers", h.ListOffers)
			r.Post("/checkout", h.CreateCheckout)

			// LLM-backed endpoints share one token bucket
			r.Group(func(r chi.Router) {
				r.Use(h.limiter.Middleware)
				r.Post("/onboarding/submit", h.SubmitOnboarding)
				r.Post("/plan/recalculate", h.RecalculatePlan)
				r.Post("/chat", h.Chat)
			})
		})
	})

	return r
}
