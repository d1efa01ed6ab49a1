package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/repo"
)

type stubStore struct {
	inserted []repo.AuditEntry
	limit    int
	offset   int
}

func (s *stubStore) Insert(_ context.Context, e repo.AuditEntry) error {
	s.inserted = append(s.inserted, e)
	return nil
}

func (s *stubStore) List(_ context.Context, limit, offset int) ([]repo.AuditEntry, error) {
	s.limit, s.offset = limit, offset
	return []repo.AuditEntry{{Action: "POST /api/v1/invoices", Method: http.MethodPost}}, nil
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/invoices?draft=false", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"

	require.NoError(t, svc.Record(req.Context(), "", "", "", req, http.StatusCreated, nil))
	require.Len(t, store.inserted, 1)
	got := store.inserted[0]
	require.Equal(t, "POST /api/v1/invoices", got.Action)
	require.Equal(t, "invoices", got.ResourceType)
	require.Equal(t, http.StatusCreated, got.Status)
	require.Nil(t, got.ResourceID)
	require.NotNil(t, got.IP)
	require.Equal(t, "10.0.0.2", *got.IP)
	require.Equal(t, "req-123", *got.RequestID)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	require.Equal(t, "draft=false", meta["query"])
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), "", "", "", req, http.StatusOK, nil))
	require.Empty(t, store.inserted)
}

func TestMiddlewareRecordsMutationsOnly(t *testing.T) {
	store := &stubStore{}
	rec := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithUserID(req.Context(), uuid.NewString())))
		})
	})
	r.Use(rec.Middleware)
	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Get("/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		r.Delete("/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/inventory/abc", nil))
	require.Empty(t, store.inserted)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/inventory/abc", nil))
	require.Len(t, store.inserted, 1)
	got := store.inserted[0]
	require.Equal(t, "DELETE /api/v1/inventory/{id}", got.Action)
	require.Equal(t, "inventory.{id}", got.ResourceType)
	require.Equal(t, http.StatusNoContent, got.Status)
	require.NotNil(t, got.ResourceID)
	require.Equal(t, "abc", *got.ResourceID)
}

func TestMiddlewareSkipsAnonymous(t *testing.T) {
	store := &stubStore{}
	h := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}.Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/invoices", nil))
	require.Empty(t, store.inserted)
}
