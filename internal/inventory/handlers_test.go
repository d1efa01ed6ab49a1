package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/repo"
)

type stubStore struct {
	items   map[string]repo.Item
	filter  repo.ItemFilter
	created []repo.Item
}

func newStubStore() *stubStore {
	return &stubStore{items: map[string]repo.Item{}}
}

func (s *stubStore) List(_ context.Context, f repo.ItemFilter) ([]repo.Item, int, error) {
	s.filter = f
	out := make([]repo.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	return out, len(out), nil
}

func (s *stubStore) Get(_ context.Context, id string) (repo.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return repo.Item{}, repo.ErrNotFound
	}
	return it, nil
}

func (s *stubStore) Create(_ context.Context, it repo.Item) (repo.Item, error) {
	for _, existing := range s.items {
		if existing.SKU == it.SKU {
			return repo.Item{}, repo.ErrDuplicate
		}
	}
	it.ID = "item-" + it.SKU
	s.items[it.ID] = it
	s.created = append(s.created, it)
	return it, nil
}

func (s *stubStore) Update(_ context.Context, it repo.Item) (repo.Item, error) {
	if _, ok := s.items[it.ID]; !ok {
		return repo.Item{}, repo.ErrNotFound
	}
	s.items[it.ID] = it
	return it, nil
}

func (s *stubStore) Delete(_ context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

type countingInvalidator struct{ bumps int }

func (c *countingInvalidator) Bump(context.Context, string) error {
	c.bumps++
	return nil
}

func newTestRouter(store *stubStore, inv *countingInvalidator) http.Handler {
	h := &Handler{Service: Service{Store: store, Invalidator: inv}, Validate: common.NewValidator()}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), "owner-1")))
		})
	})
	r.Route("/api/v1/inventory", h.Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

const ringJSON = `{"name":"Bridal Ring","sku":"R-001","metal_type":"Gold","purity":"22K","gross_weight":10.5,"net_weight":10,"making_charge":500,"quantity":3}`

func TestCreateItem(t *testing.T) {
	store, inv := newStubStore(), &countingInvalidator{}
	h := newTestRouter(store, inv)

	rr := do(t, h, http.MethodPost, "/api/v1/inventory", ringJSON)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Len(t, store.created, 1)
	require.Equal(t, "10", store.created[0].NetWeight.String())
	require.Equal(t, 1, inv.bumps)

	rr = do(t, h, http.MethodPost, "/api/v1/inventory", ringJSON)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestCreateItemValidation(t *testing.T) {
	h := newTestRouter(newStubStore(), &countingInvalidator{})

	rr := do(t, h, http.MethodPost, "/api/v1/inventory", `{"name":"Ring","sku":"R","metal_type":"Platinum","net_weight":-1,"quantity":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, common.CodeValidation, body.Error.Code)
	require.Contains(t, body.Error.Details, "metal_type")
	require.Contains(t, body.Error.Details, "net_weight")
}

func TestListPassesFilters(t *testing.T) {
	store := newStubStore()
	h := newTestRouter(store, &countingInvalidator{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/inventory", ringJSON).Code)

	rr := do(t, h, http.MethodGet, "/api/v1/inventory?q=ring&metal_type=Gold&page=2&limit=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-Total-Count"))
	require.Equal(t, repo.ItemFilter{Search: "ring", MetalType: "Gold", Limit: 10, Offset: 10}, store.filter)
}

func TestDeleteMissingItem(t *testing.T) {
	h := newTestRouter(newStubStore(), &countingInvalidator{})
	rr := do(t, h, http.MethodDelete, "/api/v1/inventory/nope", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
