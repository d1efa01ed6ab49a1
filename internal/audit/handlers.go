package audit

import (
	"net/http"

	"github.com/noah-isme/backend-jewellery/internal/common"
)

// Handler exposes the activity log.
type Handler struct {
	Service *Service
}

// List handles GET /api/v1/audit?limit=&offset=.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := common.QueryInt(q, "limit", 50)
	if limit == 0 || limit > common.MaxPerPage {
		limit = 50
	}
	offset := common.QueryInt(q, "offset", 0)
	rows, err := h.Service.List(r.Context(), limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rows)
}
