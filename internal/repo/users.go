package repo

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-jewellery/internal/db"
)

// User is a store owner account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UsersRepo manages owner accounts. It is not owner-scoped.
type UsersRepo struct {
	DB db.DBTX
}

// Create inserts a user. Emails are unique case-insensitively.
func (r UsersRepo) Create(ctx context.Context, email, name, passwordHash string) (User, error) {
	u := User{Email: strings.ToLower(strings.TrimSpace(email)), Name: name, PasswordHash: passwordHash}
	var id pgtype.UUID
	err := r.DB.QueryRow(ctx, `INSERT INTO users (email, name, password_hash)
VALUES ($1, $2, $3)
RETURNING id, created_at`, u.Email, u.Name, u.PasswordHash).Scan(&id, &u.CreatedAt)
	if err != nil {
		return User{}, mapErr(err)
	}
	u.ID = db.UUIDString(id)
	return u, nil
}

// ByEmail looks a user up by email.
func (r UsersRepo) ByEmail(ctx context.Context, email string) (User, error) {
	var (
		u  User
		id pgtype.UUID
	)
	err := r.DB.QueryRow(ctx, `SELECT id, email, name, password_hash, created_at
FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)).Scan(&id, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return User{}, mapErr(err)
	}
	u.ID = db.UUIDString(id)
	return u, nil
}

// ByID returns a user by id.
func (r UsersRepo) ByID(ctx context.Context, id string) (User, error) {
	uid, err := uuidValue(id)
	if err != nil {
		return User{}, err
	}
	var u User
	err = r.DB.QueryRow(ctx, `SELECT email, name, password_hash, created_at FROM users WHERE id = $1`, uid).
		Scan(&u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return User{}, mapErr(err)
	}
	u.ID = id
	return u, nil
}
