package goldrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TaskRefresh is the asynq task type that re-reads the feed into Redis.
const TaskRefresh = "goldrate:refresh"

// HistorySize is the number of distinct rates remembered per owner.
const HistorySize = 5

const currentKey = "goldrate:current"

func historyKey(owner string) string {
	return "goldrate:history:" + owner
}

// Fetcher returns a rate snapshot. Feed is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context) Rates
}

// HistoryEntry is one remembered rate.
type HistoryEntry struct {
	Rate      decimal.Decimal `json:"rate"`
	Timestamp time.Time       `json:"timestamp"`
}

// Service serves cached feed snapshots and per-owner rate history.
type Service struct {
	Feed         Fetcher
	Redis        *redis.Client
	TTL          time.Duration
	DefaultCarat int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Current returns the cached snapshot, fetching the feed on a miss.
func (s *Service) Current(ctx context.Context) Rates {
	if s.Redis != nil {
		data, err := s.Redis.Get(ctx, currentKey).Bytes()
		switch {
		case err == nil:
			var out Rates
			if jerr := json.Unmarshal(data, &out); jerr == nil {
				return out
			}
		case !errors.Is(err, redis.Nil):
			zerolog.Ctx(ctx).Warn().Err(err).Msg("gold rate cache read failed")
		}
	}
	out, err := s.Refresh(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("gold rate cache write failed")
	}
	return out
}

// Refresh fetches the feed and overwrites the cached snapshot. Approximate
// snapshots are not cached so the next request retries the feed.
func (s *Service) Refresh(ctx context.Context) (Rates, error) {
	out := s.Feed.Fetch(ctx)
	if s.Redis == nil || s.TTL <= 0 || out.Source == SourceApproximate {
		return out, nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return out, err
	}
	return out, s.Redis.Set(ctx, currentKey, data, s.TTL).Err()
}

// DefaultRate is the rate of the configured default carat, 22K unless set.
func (s *Service) DefaultRate(ctx context.Context) decimal.Decimal {
	carat := s.DefaultCarat
	if !SupportedCarat(carat) {
		carat = 22
	}
	rate, _ := s.Current(ctx).ForCarat(carat)
	return rate
}

// recordAttempts bounds optimistic retries when concurrent writers touch the
// same owner's history.
const recordAttempts = 16

// Record remembers rate for owner, newest first, dropping an older equal rate
// and keeping at most HistorySize entries. The read and rewrite run under
// WATCH so concurrent writers never drop each other's entries.
func (s *Service) Record(ctx context.Context, owner string, rate decimal.Decimal) error {
	if s.Redis == nil || owner == "" || !rate.IsPositive() {
		return nil
	}
	entry := HistoryEntry{Rate: rate, Timestamp: s.now().UTC()}
	key := historyKey(owner)
	for i := 0; i < recordAttempts; i++ {
		err := s.Redis.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.LRange(ctx, key, 0, HistorySize-1).Result()
			if err != nil {
				return err
			}
			values, err := prepend(entry, decodeHistory(raw))
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Del(ctx, key)
				p.RPush(ctx, key, values...)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("record gold rate for %s: %w", owner, redis.TxFailedErr)
}

func prepend(entry HistoryEntry, existing []HistoryEntry) ([]any, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	values := []any{data}
	for _, h := range existing {
		if len(values) == HistorySize {
			break
		}
		if h.Rate.Equal(entry.Rate) {
			continue
		}
		data, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		values = append(values, data)
	}
	return values, nil
}

func decodeHistory(raw []string) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var h HistoryEntry
		if err := json.Unmarshal([]byte(item), &h); err != nil {
			continue
		}
		out = append(out, h)
	}
	return out
}

// History lists owner's remembered rates, newest first.
func (s *Service) History(ctx context.Context, owner string) ([]HistoryEntry, error) {
	if s.Redis == nil || owner == "" {
		return []HistoryEntry{}, nil
	}
	raw, err := s.Redis.LRange(ctx, historyKey(owner), 0, HistorySize-1).Result()
	if err != nil {
		return nil, err
	}
	return decodeHistory(raw), nil
}

// HandleRefresh is the asynq handler for TaskRefresh.
func (s *Service) HandleRefresh(ctx context.Context, _ *asynq.Task) error {
	out, err := s.Refresh(ctx)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("source", out.Source).Str("base_rate_24k", out.BaseRate24K.String()).Msg("gold rate refreshed")
	return nil
}

// NewRefreshTask builds the periodic refresh task.
func NewRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskRefresh, nil, asynq.MaxRetry(2), asynq.Timeout(30*time.Second))
}
