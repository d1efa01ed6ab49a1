package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/obs"
)

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	mw := Middleware{Tokens: newTestService(t)}
	called := false
	h := mw.RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil))
	if rr.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401 without calling next, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
}

func TestRequireAuthScopesOwner(t *testing.T) {
	svc := newTestService(t)
	token, _, err := svc.signAccessToken("owner-42")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var buf bytes.Buffer
	var seen string
	inner := Middleware{Tokens: svc}.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	h := obs.RequestLogger{Logger: zerolog.New(&buf)}.Middleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || seen != "owner-42" {
		t.Fatalf("expected owner-42 in context, got %q (%d)", seen, rr.Code)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry["owner_id"] != "owner-42" {
		t.Fatalf("expected owner_id on access log, got %v", entry["owner_id"])
	}
}

func TestSetupHandlerValidates(t *testing.T) {
	h := &Handler{Service: newTestService(t), Validate: common.NewValidator()}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/setup", strings.NewReader(`{"name":"","email":"x","password":"1"}`))
	h.Setup(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/setup", strings.NewReader(`{"name":"Asha","email":"asha@example.com","password":"correct-horse"}`))
	h.Setup(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Data LoginResult `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.AccessToken == "" {
		t.Fatal("expected access token")
	}
}
