package goldrate

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/common"
)

// Handler exposes /api/v1/gold-rate.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

// Routes mounts the gold rate endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Current)
	r.Get("/history", h.History)
	r.Post("/history", h.Record)
}

type caratRate struct {
	Rate      decimal.Decimal `json:"rate"`
	Carat     string          `json:"carat"`
	Currency  string          `json:"currency"`
	Unit      string          `json:"unit"`
	Source    string          `json:"source"`
	Note      string          `json:"note,omitempty"`
	FetchedAt time.Time       `json:"timestamp"`
}

// Current handles GET /api/v1/gold-rate[?carat=22].
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(strings.TrimSuffix(strings.ToUpper(r.URL.Query().Get("carat")), "K"))
	rates := h.Service.Current(r.Context())
	if raw == "" {
		common.Data(w, http.StatusOK, rates)
		return
	}
	carat, err := strconv.Atoi(raw)
	if err != nil || !SupportedCarat(carat) {
		common.WriteError(w, common.ErrValidation("unsupported carat", map[string]string{"carat": "oneof=24 22 18 14 10"}))
		return
	}
	rate, _ := rates.ForCarat(carat)
	common.Data(w, http.StatusOK, caratRate{
		Rate:      rate,
		Carat:     CaratLabel(carat),
		Currency:  rates.Currency,
		Unit:      rates.Unit,
		Source:    rates.Source,
		Note:      rates.Note,
		FetchedAt: rates.FetchedAt,
	})
}

// History handles GET /api/v1/gold-rate/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	owner, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Service.History(r.Context(), owner)
	if err != nil {
		common.WriteError(w, common.ErrInternal(err))
		return
	}
	common.Data(w, http.StatusOK, out)
}

type recordRequest struct {
	Rate decimal.Decimal `json:"rate" validate:"gt=0"`
}

// Record handles POST /api/v1/gold-rate/history for manually entered rates.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	owner, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req recordRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(h.Validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Service.Record(r.Context(), owner, req.Rate); err != nil {
		common.WriteError(w, common.ErrInternal(err))
		return
	}
	out, err := h.Service.History(r.Context(), owner)
	if err != nil {
		common.WriteError(w, common.ErrInternal(err))
		return
	}
	common.Data(w, http.StatusCreated, out)
}
