package analytics

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/common"
)

// Handler exposes the report and analytics read endpoints.
type Handler struct {
	Svc *Service
}

// ReportRoutes mounts /api/v1/reports.
func (h *Handler) ReportRoutes(r chi.Router) {
	r.Get("/daily", h.Daily)
	r.Get("/gst", h.GST)
	r.Get("/profit-margin", h.ProfitMargin)
	r.Get("/stock", h.Stock)
	r.Get("/top-selling", h.TopSelling)
	r.Get("/sold", h.Sold)
}

// AnalyticsRoutes mounts /api/v1/analytics.
func (h *Handler) AnalyticsRoutes(r chi.Router) {
	r.Get("/customers", h.Customers)
	r.Get("/inventory", h.Inventory)
	r.Get("/performance", h.Performance)
}

func parseQuery(r *http.Request) (Query, error) {
	v := r.URL.Query()
	q := Query{
		Start:      strings.TrimSpace(v.Get("start_date")),
		End:        strings.TrimSpace(v.Get("end_date")),
		Limit:      common.QueryInt(v, "limit", 0),
		Days:       common.QueryInt(v, "days", 0),
		CustomerID: strings.TrimSpace(v.Get("customer_id")),
		MetalType:  strings.TrimSpace(v.Get("metal_type")),
	}
	if raw := strings.TrimSpace(v.Get("gold_rate")); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil || rate.IsNegative() {
			return Query{}, common.ErrValidation("invalid gold_rate", map[string]string{"gold_rate": "gte=0"})
		}
		q.GoldRate = rate
	}
	if q.Limit > common.MaxPerPage {
		q.Limit = common.MaxPerPage
	}
	if q.Days > 3650 {
		q.Days = 3650
	}
	return q, nil
}

func respond[T any](w http.ResponseWriter, out T, err error) {
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

// Daily handles GET /api/v1/reports/daily?start_date=&end_date=.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Daily(r.Context(), q)
	respond(w, out, err)
}

// GST handles GET /api/v1/reports/gst?start_date=&end_date=.
func (h *Handler) GST(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.GST(r.Context(), q)
	respond(w, out, err)
}

// ProfitMargin handles GET /api/v1/reports/profit-margin?start_date=&end_date=.
func (h *Handler) ProfitMargin(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.ProfitMargin(r.Context(), q)
	respond(w, out, err)
}

// Stock handles GET /api/v1/reports/stock.
func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Stock(r.Context())
	respond(w, out, err)
}

// TopSelling handles GET /api/v1/reports/top-selling?start_date=&end_date=&limit=.
func (h *Handler) TopSelling(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.TopSelling(r.Context(), q)
	respond(w, out, err)
}

// Sold handles GET /api/v1/reports/sold?customer_id=&metal_type=.
func (h *Handler) Sold(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Sold(r.Context(), q)
	respond(w, out, err)
}

// Customers handles GET /api/v1/analytics/customers.
func (h *Handler) Customers(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Segments(r.Context())
	respond(w, out, err)
}

// Inventory handles GET /api/v1/analytics/inventory?gold_rate=&days=.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Inventory(r.Context(), q)
	respond(w, out, err)
}

// Performance handles GET /api/v1/analytics/performance?start_date=&end_date=.
func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Performance(r.Context(), q)
	respond(w, out, err)
}
