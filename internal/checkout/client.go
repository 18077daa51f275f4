// Package checkout talks to the Cakto payment API and builds hosted checkout links.
//
// Only the client-credentials token, product and offer listings are API calls.
// Checkout links are plain URLs with pre-fill query parameters; no order is
// created server side.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/hyperengineering/vision/internal/config"
)

var (
	// ErrNotConfigured is returned when the API credentials are missing.
	ErrNotConfigured = errors.New("checkout credentials not configured")
	// ErrOfferNotFound is returned when no offer id is configured or found.
	ErrOfferNotFound = errors.New("checkout offer not found")
	ErrMissingEmail  = errors.New("customer email is required")
)

const (
	tokenPath = "/public_api/token/"
	// tokenLeeway renews the token this long before it expires, capped at half
	// the token lifetime.
	tokenLeeway      = 30 * time.Second
	maxResponseBytes = 1 << 20
)

// APIError is a non-2xx answer from the payment API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cakto: status %d: %s", e.StatusCode, e.Body)
}

// HTTPDoer is the subset of *http.Client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Customer pre-fills the hosted checkout form.
type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"required,email"`
	Document string `json:"document,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Product is a product listed by the payment API.
type Product struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Status string  `json:"status,omitempty"`
}

// Offer is a purchasable offer of a product.
type Offer struct {
	ID      string  `json:"id"`
	Code    string  `json:"code,omitempty"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Product string  `json:"product,omitempty"`
	Status  string  `json:"status,omitempty"`
}

// Ref is the identifier used in checkout links: the code when present, else the id.
func (o Offer) Ref() string {
	if o.Code != "" {
		return o.Code
	}
	return o.ID
}

// OfferQuery filters ListOffers.
type OfferQuery struct {
	ProductID string
	Search    string
}

// Checkout is the result of CreateCheckout.
type Checkout struct {
	CheckoutURL string `json:"checkout_url"`
	OfferID     string `json:"offer_id"`
	Status      string `json:"status"`
}

// Client is a Cakto API client. It is safe for concurrent use.
type Client struct {
	http         HTTPDoer
	apiURL       string
	payURL       string
	clientID     string
	clientSecret string
	offerID      string
	offerSearch  string
	timeout      time.Duration
	now          func() time.Time
	logger       *slog.Logger

	group     singleflight.Group
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(cl *Client) { cl.http = c }
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a Client from configuration.
func New(cfg config.CheckoutConfig, opts ...Option) *Client {
	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		http:         &http.Client{Timeout: timeout},
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		payURL:       strings.TrimRight(cfg.PayURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		offerID:      cfg.OfferID,
		offerSearch:  cfg.OfferSearch,
		timeout:      timeout,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "checkout")
	return c
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// accessToken returns a cached token or fetches a new one.
// Concurrent fetches share one request. The shared request is not tied to any
// single caller: a caller that gives up does not fail the others.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	if tok, ok := c.cachedToken(); ok {
		return tok, nil
	}

	ch := c.group.DoChan("token", func() (any, error) {
		// A fetch that finished while this caller waited already filled the cache.
		if tok, ok := c.cachedToken(); ok {
			return tok, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetchToken(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}

	res := gjson.ParseBytes(body)
	token := res.Get("access_token").String()
	if token == "" {
		return "", errors.New("authenticate: response has no access_token")
	}
	ttl := time.Duration(res.Get("expires_in").Int()) * time.Second

	leeway := tokenLeeway
	if leeway > ttl/2 {
		leeway = ttl / 2
	}

	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(ttl - leeway)
	c.mu.Unlock()

	c.logger.Debug("access token refreshed", "expires_in_s", int(ttl.Seconds()))
	return token, nil
}

// do sends req and returns the body of a 2xx JSON response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "application/json" {
		return nil, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	return body, nil
}

// get performs an authenticated GET against the public API.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	u := c.apiURL + "/public_api" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	return body, err
}

// ListProducts returns the account's products.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	body, err := c.get(ctx, "/products/", nil)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products := []Product{}
	for _, r := range results(body) {
		products = append(products, Product{
			ID:     r.Get("id").String(),
			Name:   r.Get("name").String(),
			Price:  r.Get("price").Float(),
			Status: r.Get("status").String(),
		})
	}
	return products, nil
}

// ListOffers returns the offers matching q.
func (c *Client) ListOffers(ctx context.Context, q OfferQuery) ([]Offer, error) {
	query := url.Values{}
	if q.ProductID != "" {
		query.Set("product", q.ProductID)
	}
	if q.Search != "" {
		query.Set("search", q.Search)
	}

	body, err := c.get(ctx, "/offers/", query)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}

	offers := []Offer{}
	for _, r := range results(body) {
		product := r.Get("product")
		if product.IsObject() {
			product = product.Get("id")
		}
		offers = append(offers, Offer{
			ID:      r.Get("id").String(),
			Code:    r.Get("code").String(),
			Name:    r.Get("name").String(),
			Price:   r.Get("price").Float(),
			Product: product.String(),
			Status:  r.Get("status").String(),
		})
	}
	return offers, nil
}

// results returns the items of a paginated {"results": [...]} body or a bare array.
func results(body []byte) []gjson.Result {
	res := gjson.ParseBytes(body)
	if res.IsArray() {
		return res.Array()
	}
	return res.Get("results").Array()
}

// CheckoutURL builds the hosted checkout link for an offer with pre-filled customer fields.
func (c *Client) CheckoutURL(offerID string, cust Customer, coupon string) (string, error) {
	return BuildCheckoutURL(c.payURL, offerID, cust, coupon)
}

// BuildCheckoutURL builds {payURL}/{offerID} with name, email, confirmEmail, cpf,
// phone and coupon parameters. Empty fields are omitted.
func BuildCheckoutURL(payURL, offerID string, cust Customer, coupon string) (string, error) {
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return "", ErrOfferNotFound
	}
	u, err := url.Parse(strings.TrimRight(payURL, "/") + "/" + url.PathEscape(offerID))
	if err != nil {
		return "", fmt.Errorf("parse pay url: %w", err)
	}

	q := url.Values{}
	if cust.Name != "" {
		q.Set("name", cust.Name)
	}
	if cust.Email != "" {
		q.Set("email", cust.Email)
		q.Set("confirmEmail", cust.Email)
	}
	if cust.Document != "" {
		q.Set("cpf", cust.Document)
	}
	if cust.Phone != "" {
		q.Set("phone", cust.Phone)
	}
	if coupon != "" {
		q.Set("coupon", coupon)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResolveOfferID returns the configured offer id, or the first offer matching
// the configured search term.
func (c *Client) ResolveOfferID(ctx context.Context) (string, error) {
	if c.offerID != "" {
		return c.offerID, nil
	}

	offers, err := c.ListOffers(ctx, OfferQuery{Search: c.offerSearch})
	if err != nil {
		return "", err
	}
	if len(offers) == 0 || offers[0].Ref() == "" {
		return "", fmt.Errorf("%w: search %q", ErrOfferNotFound, c.offerSearch)
	}

	best := offers[0]
	c.logger.Warn("offer id not configured, using search result",
		"offer", best.Ref(),
		"name", best.Name,
		"search", c.offerSearch,
	)
	return best.Ref(), nil
}

// CreateCheckout returns a pending checkout link for the customer.
func (c *Client) CreateCheckout(ctx context.Context, cust Customer, coupon string) (*Checkout, error) {
	if strings.TrimSpace(cust.Email) == "" {
		return nil, ErrMissingEmail
	}
	offerID, err := c.ResolveOfferID(ctx)
	if err != nil {
		return nil, err
	}
	link, err := c.CheckoutURL(offerID, cust, coupon)
	if err != nil {
		return nil, err
	}
	return &Checkout{CheckoutURL: link, OfferID: offerID, Status: "pending"}, nil
}
