package ratelimit

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-jewellery/internal/common"
)

// NewGlobal builds the per-IP API limiter from a formatted rate such as
// "600-M". An empty rate disables it.
func NewGlobal(client *redis.Client, formatted string) (*Global, error) {
	if client == nil || formatted == "" {
		return &Global{}, nil
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "ratelimit:api"})
	if err != nil {
		return nil, err
	}
	return &Global{Limiter: limiter.New(store, rate)}, nil
}

// Global throttles every API request per client IP.
type Global struct {
	Limiter *limiter.Limiter
}

// Middleware fails open when the store errors.
func (g *Global) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g == nil || g.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		lctx, err := g.Limiter.Get(r.Context(), common.ClientIP(r))
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("api rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		resetAt := time.Unix(lctx.Reset, 0)
		writeHeaders(w, int(lctx.Limit), int(lctx.Remaining), resetAt)
		if lctx.Reached {
			tooMany(w, resetAt)
			return
		}
		next.ServeHTTP(w, r)
	})
}
