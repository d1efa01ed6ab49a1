package audit

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jewellery/internal/common"
)

// HTTPRecorder writes an entry after each mutating request has been handled.
type HTTPRecorder struct {
	Service         *Service
	// ResourceIDParam names the chi URL parameter holding the resource id.
	ResourceIDParam string
}

// Middleware records POST, PUT, PATCH and DELETE requests of authenticated
// owners. Reads are not logged.
func (h HTTPRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if h.Service == nil || !h.Service.Enabled || !mutating(req.Method) {
			next.ServeHTTP(w, req)
			return
		}

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, req)

		if _, ok := common.UserID(req.Context()); !ok {
			return
		}
		param := h.ResourceIDParam
		if param == "" {
			param = "id"
		}
		ctx := context.WithoutCancel(req.Context())
		if err := h.Service.Record(ctx, "", "", chi.URLParam(req, param), req, rec.Status(), nil); err != nil {
			zerolog.Ctx(req.Context()).Warn().Err(err).Msg("audit record failed")
		}
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
