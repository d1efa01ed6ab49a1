package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/repo"
)

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]repo.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]repo.User{}}
}

func (f *fakeUsers) Create(_ context.Context, email, name, hash string) (repo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[email]; ok {
		return repo.User{}, repo.ErrDuplicate
	}
	u := repo.User{ID: uuid.NewString(), Email: email, Name: name, PasswordHash: hash, CreatedAt: time.Now()}
	f.byEmail[email] = u
	return u, nil
}

func (f *fakeUsers) ByEmail(_ context.Context, email string) (repo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return repo.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) ByID(_ context.Context, id string) (repo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return repo.User{}, repo.ErrNotFound
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Users:          newFakeUsers(),
		Secret:         "super-secret-key",
		AccessTokenTTL: time.Minute,
		Issuer:         "backend-jewellery",
		Audience:       "jewellery-dashboard",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected app error, got %v", err)
	}
	if appErr.HTTPStatus != status {
		t.Fatalf("expected status %d, got %d (%s)", status, appErr.HTTPStatus, appErr.Code)
	}
}

func TestSetupThenLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Setup(ctx, "Asha", "Asha@Example.com", "correct-horse")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if created.User.Email != "asha@example.com" {
		t.Fatalf("expected normalised email, got %s", created.User.Email)
	}

	login, err := svc.Login(ctx, "asha@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	subject, err := svc.ParseAccessToken(login.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if subject != created.User.ID {
		t.Fatalf("unexpected subject %s", subject)
	}

	me, err := svc.Me(ctx, subject)
	if err != nil || me.Email != "asha@example.com" {
		t.Fatalf("me: %+v %v", me, err)
	}
}

func TestSetupRejectsDuplicateAndWeakInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Setup(ctx, "", "bad", "short")
	requireStatus(t, err, http.StatusBadRequest)

	if _, err := svc.Setup(ctx, "Asha", "asha@example.com", "correct-horse"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, err = svc.Setup(ctx, "Asha", "asha@example.com", "correct-horse")
	requireStatus(t, err, http.StatusConflict)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Setup(ctx, "Asha", "asha@example.com", "correct-horse"); err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err := svc.Login(ctx, "asha@example.com", "wrong-horse")
	requireStatus(t, err, http.StatusUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "correct-horse")
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc := newTestService(t)
	issued := time.Now()
	svc.WithNow(func() time.Time { return issued })
	token, _, err := svc.signAccessToken("owner-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	svc.WithNow(func() time.Time { return issued.Add(2 * time.Minute) })
	_, err = svc.ParseAccessToken(token)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestParseAccessTokenRejectsAlgorithmMismatch(t *testing.T) {
	svc := newTestService(t)
	now := time.Now()
	built, err := jwt.NewBuilder().
		Subject("owner-1").
		Issuer(svc.issuer).
		Audience([]string{svc.audience}).
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(built, jwt.WithKey(jwa.HS384, svc.secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.ParseAccessToken(string(signed)); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}

func TestTokenValidatorRequiresSubject(t *testing.T) {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer("issuer").
		Audience([]string{"aud"}).
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	v := TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256}
	if err := v.Validate(tok, jwa.HS256, now); err == nil {
		t.Fatal("expected missing subject error")
	}
}

func TestTokenValidatorIssuerMismatch(t *testing.T) {
	now := time.Now()
	tok, _ := jwt.NewBuilder().
		Issuer("other").
		Audience([]string{"aud"}).
		Subject("sub").
		Expiration(now.Add(time.Minute)).
		Build()
	v := TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256}
	if err := v.Validate(tok, jwa.HS256, now); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}
