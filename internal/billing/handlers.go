package billing

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/repo"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handler exposes /api/v1/invoices.
type Handler struct {
	Service  Service
	Validate *validator.Validate
	// Idempotent wraps invoice creation; nil leaves it unwrapped.
	Idempotent func(http.Handler) http.Handler
}

// Routes mounts the invoice endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	create := http.Handler(http.HandlerFunc(h.Create))
	if h.Idempotent != nil {
		create = h.Idempotent(create)
	}
	r.Method(http.MethodPost, "/", create)
	r.Post("/quote", h.Quote)
	r.Get("/{id}", h.Get)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return Input{}, false
	}
	if err := common.ValidateStruct(h.Validate, in); err != nil {
		common.WriteError(w, err)
		return Input{}, false
	}
	return in, true
}

// Quote handles POST /api/v1/invoices/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	q, err := h.Service.Quote(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// Create handles POST /api/v1/invoices.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	inv, err := h.Service.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, inv)
}

// List handles GET /api/v1/invoices?from=&to=&customer_id=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repo.InvoiceFilter{
		CustomerID: strings.TrimSpace(q.Get("customer_id")),
		Limit:      common.QueryInt(q, "limit", defaultListLimit),
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	var err error
	if f.From, err = parseTime(q.Get("from")); err != nil {
		common.WriteError(w, common.ErrValidation("invalid from", map[string]string{"from": "datetime"}))
		return
	}
	if f.To, err = parseTime(q.Get("to")); err != nil {
		common.WriteError(w, common.ErrValidation("invalid to", map[string]string{"to": "datetime"}))
		return
	}
	out, err := h.Service.List(r.Context(), f)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(out)))
	common.Data(w, http.StatusOK, out)
}

// Get handles GET /api/v1/invoices/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, inv)
}

// parseTime accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (UTC).
func parseTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
