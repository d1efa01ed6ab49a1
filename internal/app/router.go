package app

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-jewellery/internal/analytics"
	"github.com/noah-isme/backend-jewellery/internal/audit"
	"github.com/noah-isme/backend-jewellery/internal/auth"
	"github.com/noah-isme/backend-jewellery/internal/billing"
	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/customer"
	"github.com/noah-isme/backend-jewellery/internal/goldrate"
	"github.com/noah-isme/backend-jewellery/internal/health"
	"github.com/noah-isme/backend-jewellery/internal/inventory"
	"github.com/noah-isme/backend-jewellery/internal/obs"
	"github.com/noah-isme/backend-jewellery/internal/ratelimit"
	"github.com/noah-isme/backend-jewellery/internal/security"
	"github.com/noah-isme/backend-jewellery/internal/settings"
)

// RouterOptions toggles the optional operational surfaces.
type RouterOptions struct {
	Metrics     *obs.HTTPMetrics
	Tracing     bool
	PprofUser   string
	PprofPass   string
	EnablePprof bool
}

// Router mounts the health probes, /metrics and the /api/v1 tree.
func (d *Dependencies) Router(opts RouterOptions) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: opts.Metrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if opts.EnablePprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), opts.PprofUser, opts.PprofPass))
	}

	healthHandler := health.Handler{Checker: readiness{db: d.DB, redis: d.Redis}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	authHandler := &auth.Handler{Service: d.Auth, Validate: d.Validator}
	authMiddleware := auth.Middleware{Tokens: d.Auth}
	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: d.Redis, Prefix: "ratelimit:"},
		Config:  ratelimit.Config{Key: ratelimit.LoginKey, Window: cfg.LoginRateWindow, Max: cfg.LoginRateLimit},
	}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}

	inventoryHandler := &inventory.Handler{Service: d.Inventory, Validate: d.Validator}
	customerHandler := &customer.Handler{Service: d.Customers, Validate: d.Validator}
	settingsHandler := &settings.Handler{Service: d.Settings, Validate: d.Validator}
	billingHandler := &billing.Handler{Service: d.Billing, Validate: d.Validator, Idempotent: idem.Middleware}
	goldHandler := &goldrate.Handler{Service: d.GoldRate, Validate: d.Validator}
	reportHandler := &analytics.Handler{Svc: d.Analytics}
	auditRecorder := audit.HTTPRecorder{Service: d.Audit}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(d.APILimit.Middleware)
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/setup", authHandler.Setup)
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Group(func(p chi.Router) {
			p.Use(authMiddleware.RequireAuth)
			p.Use(auditRecorder.Middleware)
			p.Route("/inventory", inventoryHandler.Routes)
			p.Route("/customers", customerHandler.Routes)
			p.Route("/invoices", billingHandler.Routes)
			p.Route("/gold-rate", goldHandler.Routes)
			p.Route("/reports", reportHandler.ReportRoutes)
			p.Route("/analytics", reportHandler.AnalyticsRoutes)
			p.Get("/settings", settingsHandler.Get)
			p.Put("/settings", settingsHandler.Put)
			p.Get("/audit", audit.Handler{Service: d.Audit}.List)
		})
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
