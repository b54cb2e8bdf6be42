package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/pointledger/internal/service"
	"github.com/utafrali/pointledger/pkg/health"
	"github.com/utafrali/pointledger/pkg/idempotency"
	"github.com/utafrali/pointledger/pkg/middleware"
)

// RouterConfig carries the router's collaborators.
type RouterConfig struct {
	Ledger         *service.Ledger
	Health         *health.Handler
	Authenticator  *middleware.Authenticator
	RateLimiter    *middleware.RateLimiter
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	Metrics        *middleware.HTTPMetrics
	Gatherer       prometheus.Gatherer
	CORSOrigins    []string
	PprofCIDRs     []string
	Logger         *slog.Logger
}

// NewRouter creates a chi router with all ledger routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	h := NewLedgerHandler(cfg.Ledger, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestLogger(logger))
			r.Use(cfg.RateLimiter.Middleware(logger))

			r.Get("/users/{address}", h.GetUserInfo)
			r.Get("/users/{address}/purchases", h.ListPurchases)
			r.Get("/companies/{address}", h.GetCompanyInfo)
			r.Get("/products", h.ListProducts)
			r.Get("/products/{id}", h.GetProduct)
			r.Get("/products/{id}/rating", h.GetProductRating)
			r.Get("/products/{id}/reviews", h.ListReviews)
			r.Get("/treasury", h.GetTreasury)
		})

		// Caller-authenticated writes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Authenticator, logger))
			r.Use(middleware.RequestLogger(logger))
			r.Use(cfg.RateLimiter.Middleware(logger))
			r.Use(middleware.NoStore)
			r.Use(middleware.Idempotency(cfg.Idempotency, cfg.IdempotencyTTL, logger))

			r.Post("/users", h.RegisterUser)
			r.Post("/companies", h.RegisterCompany)
			r.Post("/points", h.BuyPoints)
			r.Post("/products", h.AddProduct)
			r.Post("/products/{id}/purchases", h.BuyProduct)
			r.Post("/products/{id}/reviews", h.SubmitReview)
			r.Post("/treasury/withdrawals", h.Withdraw)
		})
	})

	return r
}
