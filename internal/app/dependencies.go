// Package app is the composition root shared by the API and the worker: it
// opens Postgres and Redis, builds the repositories and services and mounts
// the HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-jewellery/internal/analytics"
	"github.com/noah-isme/backend-jewellery/internal/audit"
	"github.com/noah-isme/backend-jewellery/internal/auth"
	"github.com/noah-isme/backend-jewellery/internal/billing"
	"github.com/noah-isme/backend-jewellery/internal/cache"
	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/config"
	"github.com/noah-isme/backend-jewellery/internal/customer"
	"github.com/noah-isme/backend-jewellery/internal/db"
	"github.com/noah-isme/backend-jewellery/internal/goldrate"
	"github.com/noah-isme/backend-jewellery/internal/inventory"
	"github.com/noah-isme/backend-jewellery/internal/lock"
	"github.com/noah-isme/backend-jewellery/internal/ratelimit"
	"github.com/noah-isme/backend-jewellery/internal/repo"
	"github.com/noah-isme/backend-jewellery/internal/resilience"
	"github.com/noah-isme/backend-jewellery/internal/settings"
)

// Dependencies holds the shared clients and the services built on them.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Validator *validator.Validate
	Location  *time.Location

	Cache     *cache.Cache
	Auth      *auth.Service
	Inventory inventory.Service
	Customers customer.Service
	Settings  settings.Service
	Billing   billing.Service
	GoldRate  *goldrate.Service
	Analytics *analytics.Service
	Audit     *audit.Service
	APILimit  *ratelimit.Global
}

// NewRedis parses the Redis URL and instruments the client with OpenTelemetry.
func NewRedis(ctx context.Context, url string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewGoldRate builds the feed client behind a circuit breaker and the
// Redis-backed rate service on top of it.
func NewGoldRate(cfg config.GoldRateConfig, client *redis.Client) *goldrate.Service {
	feed := goldrate.Feed{
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker(4, 0.5, 30*time.Second).WithTarget("goldrate"),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 2,
			Jitter:      0.2,
			Timeout:     cfg.Timeout,
		},
		FXURL:               cfg.FXURL,
		XAUURL:              cfg.XAUURL,
		USDINRFallback:      cfg.USDINRFallback,
		USDPerOunceFallback: cfg.USDPerOunce,
		Fallback24K:         cfg.Fallback24K,
	}
	return &goldrate.Service{Feed: feed, Redis: client, TTL: cfg.CacheTTL, DefaultCarat: cfg.DefaultCarat}
}

// New connects to Postgres and Redis and wires every service.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("load default timezone: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.Obs.ServiceName)
	if err != nil {
		return nil, err
	}
	rdb, err := NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	d := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		DB:        pool,
		Redis:     rdb,
		Validator: common.NewValidator(),
		Location:  loc,
		Cache:     cache.New(rdb, cfg.ReportCacheTTL),
	}

	items := repo.ItemsRepo{DB: pool}
	customers := repo.CustomersRepo{DB: pool}
	invoices := repo.InvoicesRepo{DB: pool}

	d.Auth, err = auth.NewService(auth.Config{
		Users:          repo.UsersRepo{DB: pool},
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		d.Close()
		return nil, err
	}

	d.APILimit, err = ratelimit.NewGlobal(rdb, cfg.APIRateLimit)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("api rate limit: %w", err)
	}

	d.GoldRate = NewGoldRate(cfg.GoldRate, rdb)
	d.Settings = settings.Service{Store: repo.SettingsRepo{DB: pool}, Invalidator: d.Cache}
	d.Inventory = inventory.Service{Store: items, Invalidator: d.Cache}
	d.Customers = customer.Service{Store: customers, Invoices: invoices, Invalidator: d.Cache}
	d.Billing = billing.Service{
		Tx:          billing.PgxTx{Pool: pool, Items: items, Invoices: invoices, Customers: customers},
		Items:       items,
		Invoices:    invoices,
		Settings:    d.Settings,
		Locker:      lock.Locker{R: rdb, MaxWait: cfg.LockWait},
		Rates:       d.GoldRate,
		Invalidator: d.Cache,
	}
	d.Analytics = &analytics.Service{
		Invoices:  invoices,
		Customers: customers,
		Items:     items,
		Settings:  d.Settings,
		Rates:     d.GoldRate,
		Cache:     d.Cache,
		Location:  loc,
	}
	d.Audit = &audit.Service{Store: repo.AuditRepo{DB: pool}, Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSampling}
	return d, nil
}

// WarmGoldRate queues one feed refresh so the first request after a deploy
// reads a cached snapshot.
func (d *Dependencies) WarmGoldRate(ctx context.Context) error {
	opt, err := asynq.ParseRedisURI(d.Config.RedisURL)
	if err != nil {
		return err
	}
	client := asynq.NewClient(opt)
	defer client.Close()
	_, err = client.EnqueueContext(ctx, goldrate.NewRefreshTask(), asynq.Unique(time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Close releases the pool and the Redis client.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// readiness probes the pool and Redis for /health/ready.
type readiness struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readiness) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readiness) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}
