// Package lock serialises critical sections across API replicas with a
// Redis SET NX lease. Invoice numbering holds one lease per owner.
package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultTTL     = 10 * time.Second
	defaultBackoff = 25 * time.Millisecond
	defaultMaxWait = 5 * time.Second
)

// ErrBusy is returned when the lease is still held by someone else after MaxWait.
var ErrBusy = errors.New("lock: lease busy")

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Locker provides a Redis-backed distributed lock.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	MaxWait      time.Duration
}

// InvoiceKey names the lease guarding the invoice sequence of owner.
func InvoiceKey(owner string) string {
	return "lock:invoice-number:" + owner
}

// WithLock runs fn while holding the lease on key. The lease expires after ttl
// if the holder dies and is released once fn returns, even on error.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = defaultBackoff
	}
	wait := l.MaxWait
	if wait <= 0 {
		wait = defaultMaxWait
	}
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for attempt := 0; ; attempt++ {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			if attempt > 0 {
				zerolog.Ctx(ctx).Debug().Str("key", key).Int("attempts", attempt+1).Msg("lock acquired after wait")
			}
			defer l.release(context.WithoutCancel(ctx), key, token)
			return fn(ctx)
		}
		if time.Now().After(deadline) {
			zerolog.Ctx(ctx).Warn().Str("key", key).Dur("waited", wait).Msg("lock busy")
			return ErrBusy
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Locker) release(ctx context.Context, key, token string) {
	err := releaseScript.Run(ctx, l.R, []string{key}, token).Err()
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	// servers without scripting only get a plain delete
	if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
		_ = l.R.Del(ctx, key).Err()
		return
	}
	zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("lock release failed")
}
