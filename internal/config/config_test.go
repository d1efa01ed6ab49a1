package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost/jewellery",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 12*time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, "Asia/Kolkata", cfg.DefaultTimezone)
	require.Equal(t, 22, cfg.GoldRate.DefaultCarat)
	require.Equal(t, "6750", cfg.GoldRate.Fallback24K.String())
	require.Equal(t, "83", cfg.GoldRate.USDINRFallback.String())
	require.Equal(t, "2400", cfg.GoldRate.USDPerOunce.String())
	require.Equal(t, int64(1<<20), cfg.BodyLimitBytes)
	require.Equal(t, 10, cfg.LoginRateLimit)
	require.Equal(t, "600-M", cfg.APIRateLimit)
	require.Equal(t, 5*time.Second, cfg.LockWait)
	require.Equal(t, "@every 15m", cfg.GoldRate.RefreshCron)
	require.True(t, cfg.AuditEnabled)
	require.Equal(t, 1.0, cfg.AuditSampling)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ":9000"
	env["REPORT_CACHE_TTL"] = "5m"
	env["GOLD_RATE_FALLBACK_24K"] = "7012.5"
	env["GOLD_RATE_DEFAULT_CARAT"] = "18"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example ,"
	env["REPORT_CACHE_TTL"] = "not-a-duration"
	env["AUDIT_ENABLED"] = "false"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddr())
	require.Equal(t, time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, "7012.5", cfg.GoldRate.Fallback24K.String())
	require.Equal(t, 18, cfg.GoldRate.DefaultCarat)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.False(t, cfg.AuditEnabled)
}

func TestLoadRequiresSecrets(t *testing.T) {
	env := baseEnv()
	env["JWT_SECRET"] = ""
	_, err := LoadForTests(env)
	require.Error(t, err)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	env := baseEnv()
	env["DEFAULT_TIMEZONE"] = "Mars/Olympus"
	_, err := LoadForTests(env)
	require.Error(t, err)
}
