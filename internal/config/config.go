package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string
	AccessTokenTTL     time.Duration
	ReportCacheTTL     time.Duration
	IdempotencyTTL     time.Duration
	DefaultTimezone    string
	AutoMigrate        bool
	LoginRateLimit     int
	LoginRateWindow    time.Duration
	APIRateLimit       string
	BodyLimitBytes     int64
	LockWait           time.Duration
	AuditEnabled       bool
	AuditSampling      float64
	GoldRate           GoldRateConfig
	Obs                ObsConfig
}

// GoldRateConfig controls the live gold rate feed and its fallbacks.
type GoldRateConfig struct {
	FXURL          string
	XAUURL         string
	CacheTTL       time.Duration
	Timeout        time.Duration
	Fallback24K    decimal.Decimal
	USDINRFallback decimal.Decimal
	USDPerOunce    decimal.Decimal
	DefaultCarat   int
	RefreshCron    string
}

// ObsConfig controls logging, metrics and tracing.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingEndpoint  string
	TracingSampling  float64
	ServiceName      string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "12h"),
		ReportCacheTTL:     parseDuration(k.String("REPORT_CACHE_TTL"), "60s"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		DefaultTimezone:    valueOrDefault(k.String("DEFAULT_TIMEZONE"), "Asia/Kolkata"),
		AutoMigrate:        parseBool(k.String("DB_AUTO_MIGRATE")),
		LoginRateLimit:     parseInt(k.String("LOGIN_RATE_LIMIT"), 10),
		LoginRateWindow:    parseDuration(k.String("LOGIN_RATE_WINDOW"), "1m"),
		APIRateLimit:       valueOrDefault(k.String("API_RATE_LIMIT"), "600-M"),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		LockWait:           parseDuration(k.String("INVOICE_LOCK_WAIT"), "5s"),
		AuditEnabled:       parseBool(valueOrDefault(k.String("AUDIT_ENABLED"), "true")),
		AuditSampling:      parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),
		GoldRate: GoldRateConfig{
			FXURL:          valueOrDefault(k.String("GOLD_RATE_FX_URL"), "https://api.exchangerate-api.com/v4/latest/USD"),
			XAUURL:         valueOrDefault(k.String("GOLD_RATE_XAU_URL"), "https://api.exchangerate-api.com/v4/latest/XAU"),
			CacheTTL:       parseDuration(k.String("GOLD_RATE_CACHE_TTL"), "5m"),
			Timeout:        parseDuration(k.String("GOLD_RATE_TIMEOUT"), "3s"),
			Fallback24K:    parseDecimal(k.String("GOLD_RATE_FALLBACK_24K"), "6750"),
			USDINRFallback: parseDecimal(k.String("USD_INR_FALLBACK"), "83"),
			USDPerOunce:    parseDecimal(k.String("GOLD_USD_PER_OUNCE_FALLBACK"), "2400"),
			DefaultCarat:   parseInt(k.String("GOLD_RATE_DEFAULT_CARAT"), 22),
			RefreshCron:    valueOrDefault(k.String("GOLD_RATE_REFRESH_CRON"), "@every 15m"),
		},
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "jewellery"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_TRACING_ENABLED")),
			TracingEndpoint:  k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
			TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLE_RATIO"), 1),
			ServiceName:      valueOrDefault(k.String("OTEL_SERVICE_NAME"), "jewellery-api"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func parseDecimal(value, fallback string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || !d.IsPositive() {
		return decimal.RequireFromString(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
