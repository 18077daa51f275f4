package api

import (
	"net/http"
	"strings"

	"github.com/hyperengineering/vision/internal/checkout"
	"github.com/hyperengineering/vision/internal/validation"
)

// ListProducts handles GET /api/v1/checkout/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.checkout.ListProducts(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// ListOffers handles GET /api/v1/checkout/offers
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	q := checkout.OfferQuery{
		ProductID: r.URL.Query().Get("product"),
		Search:    r.URL.Query().Get("search"),
	}

	offers, err := h.checkout.ListOffers(r.Context(), q)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

type checkoutRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
	Coupon   string `json:"coupon"`
}

// CreateCheckout handles POST /api/v1/checkout
// Missing name and email fall back to the session's.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	session := MustSessionFromContext(r.Context())

	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cust := checkout.Customer{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Document: strings.TrimSpace(req.Document),
		Phone:    strings.TrimSpace(req.Phone),
	}
	if cust.Name == "" {
		cust.Name = session.FullName
	}
	if cust.Email == "" {
		cust.Email = session.Email
	}
	if errs := validation.ValidateCustomer(cust.Name, cust.Email, cust.Document, cust.Phone); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	co, err := h.checkout.CreateCheckout(r.Context(), cust, strings.TrimSpace(req.Coupon))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, co)
}
