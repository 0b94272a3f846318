package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mahmudulhsn/shopping-cart/pkg/health"
	"github.com/mahmudulhsn/shopping-cart/pkg/middleware"
)

// RouterConfig carries the transport settings of NewRouter.
type RouterConfig struct {
	ServiceName string
	PprofCIDRs  []string
	CORS        middleware.CORSConfig
	Timeout     time.Duration
}

// NewRouter creates a chi router with all cart routes registered.
func NewRouter(
	cartService CartService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.Timeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	cartHandler := NewCartHandler(cartService, logger)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionIDFromHeader)
		r.Use(middleware.NoStore())

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Get("/totals", cartHandler.Totals)
		r.Post("/discount", cartHandler.ApplyDiscount)

		r.Get("/items", cartHandler.ListItems)
		r.Post("/items", cartHandler.AddItem)
		r.Get("/items/{rowId}", cartHandler.GetItem)
		r.Patch("/items/{rowId}", cartHandler.UpdateItem)
		r.Delete("/items/{rowId}", cartHandler.RemoveItem)
	})

	return r
}
