package ratelimit

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jewellery/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter Limiter
	Config  Config
}

// Middleware fails open when Redis is unavailable.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		d, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		writeHeaders(w, h.Config.Max, d.Remaining, d.ResetAt)
		if !d.Allowed {
			tooMany(w, d.ResetAt)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoginKey keys login attempts by client IP and the submitted email so one
// address cannot lock out a whole office NAT. The body is restored for the
// handler.
func LoginKey(r *http.Request) string {
	ip := common.ClientIP(r)
	if r.Body == nil {
		return "login:" + ip
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return "login:" + ip
	}
	var body struct {
		Email string `json:"email"`
	}
	_ = json.Unmarshal(raw, &body)
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		return "login:" + ip
	}
	return "login:" + ip + ":" + common.ShortDigest(email)
}

func writeHeaders(w http.ResponseWriter, limit, remaining int, resetAt time.Time) {
	if limit < 0 {
		limit = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func tooMany(w http.ResponseWriter, resetAt time.Time) {
	retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
	if retryAfter < 0 {
		retryAfter = 0
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	common.JSONError(w, http.StatusTooManyRequests, common.CodeRateLimited, "rate limit exceeded", nil)
}
