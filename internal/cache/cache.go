// Package cache stores owner-scoped JSON report payloads in Redis. Each owner
// carries a version counter; writes that change report inputs bump it, which
// orphans every cached payload built from the previous version.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-jewellery/internal/common"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a cache helper. A nil client disables caching.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Enabled reports whether payloads are stored at all.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.Enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func versionKey(owner string) string {
	return "reports:ver:" + owner
}

// Version returns the owner's current report version, zero when never bumped.
func (c *Cache) Version(ctx context.Context, owner string) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	v, err := c.client.Get(ctx, versionKey(owner)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Bump invalidates every cached report of owner.
func (c *Cache) Bump(ctx context.Context, owner string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(owner)).Err()
}

// ReportKey names the cache entry of one report for one owner version and
// parameter set.
func ReportKey(owner string, version int64, report string, params ...string) string {
	var b strings.Builder
	b.WriteString("reports:")
	b.WriteString(owner)
	b.WriteString(":v")
	b.WriteString(strconv.FormatInt(version, 10))
	b.WriteString(":")
	b.WriteString(report)
	if len(params) > 0 {
		b.WriteString(":")
		b.WriteString(common.ShortDigest(params...))
	}
	return b.String()
}
