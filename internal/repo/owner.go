// Package repo holds the owner-scoped PostgreSQL repositories. Every query
// filters by the store owner carried on the request context.
package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/db"
)

var (
	// ErrOwnerMissing indicates the store owner was not found in context.
	ErrOwnerMissing = errors.New("owner missing")
	// ErrOwnerInvalid indicates the owner identifier could not be parsed.
	ErrOwnerInvalid = errors.New("owner invalid")
	// ErrNotFound is returned when no owner-scoped row matches.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidID is returned when a row identifier is not a UUID.
	ErrInvalidID = errors.New("invalid id")
)

const uniqueViolation = "23505"

func ownerFromContext(ctx context.Context) (pgtype.UUID, error) {
	ownerID, ok := common.UserID(ctx)
	if !ok {
		return pgtype.UUID{}, ErrOwnerMissing
	}
	oid, err := db.UUID(ownerID)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %v", ErrOwnerInvalid, err)
	}
	return oid, nil
}

func uuidValue(id string) (pgtype.UUID, error) {
	v, err := db.UUID(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return v, nil
}

func optionalUUID(id *string) (pgtype.UUID, error) {
	if id == nil || *id == "" {
		return pgtype.UUID{}, nil
	}
	return uuidValue(*id)
}

func stringPtr(id pgtype.UUID) *string {
	if !id.Valid {
		return nil
	}
	s := db.UUIDString(id)
	return &s
}

// mapErr converts driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// AppError translates repository sentinels into API errors.
func AppError(what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrOwnerMissing), errors.Is(err, ErrOwnerInvalid):
		return common.ErrUnauthorized("missing or invalid token")
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidID):
		return common.ErrNotFound(what, err)
	case errors.Is(err, ErrDuplicate):
		return common.ErrConflict(what+" already exists", err)
	case errors.Is(err, ErrInsufficientStock):
		return common.NewAppError(common.CodeInsufficientStock, "insufficient stock", http.StatusConflict, err)
	case common.IsAppError(err):
		return err
	default:
		return common.ErrInternal(err)
	}
}
