package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-jewellery/internal/db"
)

// AuditEntry is an audit_logs row.
type AuditEntry struct {
	ID           int64           `json:"id"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   *string         `json:"resource_id,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Status       int             `json:"status"`
	IP           *string         `json:"ip,omitempty"`
	UserAgent    *string         `json:"user_agent,omitempty"`
	RequestID    *string         `json:"request_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AuditRepo appends to and reads the current owner's activity log.
type AuditRepo struct {
	DB db.DBTX
}

// Insert appends e to the log.
func (r AuditRepo) Insert(ctx context.Context, e AuditEntry) error {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `INSERT INTO audit_logs
  (owner_id, action, resource_type, resource_id, method, path, status, ip, user_agent, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		oid, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path, e.Status, e.IP, e.UserAgent, e.RequestID, e.Metadata)
	return mapErr(err)
}

// List returns entries newest first.
func (r AuditRepo) List(ctx context.Context, limit, offset int) ([]AuditEntry, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, `SELECT id, action, resource_type, resource_id, method, path, status,
  ip, user_agent, request_id, metadata, created_at
FROM audit_logs WHERE owner_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`, oid, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditEntry, error) {
		var e AuditEntry
		err := row.Scan(&e.ID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Method, &e.Path, &e.Status,
			&e.IP, &e.UserAgent, &e.RequestID, &e.Metadata, &e.CreatedAt)
		return e, err
	})
	return out, mapErr(err)
}
