// Package audit keeps the owner's activity log: one row per mutating request
// against the store's inventory, customers, invoices and settings.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/obs"
	"github.com/noah-isme/backend-jewellery/internal/repo"
)

// Store is the persistence the log needs.
type Store interface {
	Insert(ctx context.Context, e repo.AuditEntry) error
	List(ctx context.Context, limit, offset int) ([]repo.AuditEntry, error)
}

// Service records audit entries for the owner on ctx.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
}

// Record persists an entry for req. Empty action and resourceType are derived
// from the matched route.
func (s Service) Record(ctx context.Context, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePattern(req)
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	return s.Store.Insert(ctx, repo.AuditEntry{
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   pointerOf(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Status:       status,
		IP:           pointerOf(common.ClientIP(req)),
		UserAgent:    pointerOf(req.Header.Get("User-Agent")),
		RequestID:    pointerOf(req.Header.Get("X-Request-ID")),
		Metadata:     toJSONB(metadata, req.URL.RawQuery),
	})
}

// List returns the owner's most recent entries.
func (s Service) List(ctx context.Context, limit, offset int) ([]repo.AuditEntry, error) {
	if s.Store == nil {
		return nil, common.NewAppError("AUDIT_NOT_CONFIGURED", "audit store not configured", http.StatusInternalServerError, nil)
	}
	out, err := s.Store.List(ctx, limit, offset)
	if err != nil {
		return nil, repo.AppError("audit log", err)
	}
	if out == nil {
		out = []repo.AuditEntry{}
	}
	return out, nil
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource turns /api/v1/invoices/{id} into "invoices.{id}".
func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.Join(segments, ".")
}

func pointerOf(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toJSONB(metadata []byte, query string) json.RawMessage {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}
