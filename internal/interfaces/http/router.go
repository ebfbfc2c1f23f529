// Package httpapi assembles the chi router for the commerce API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"commerce-backend/internal/config"
	"commerce-backend/internal/interfaces/http/handlers"
	"commerce-backend/internal/middleware"
)

// Deps are the collaborators the router wires together.
type Deps struct {
	Catalog *handlers.Catalog
	Admin   *handlers.Admin
	Health  *handlers.Health

	Metrics     http.Handler
	MetricsSink middleware.MetricsSink
	Logger      *zap.Logger
	CORS        config.CORS

	// RequestTimeout bounds each request's context; zero disables it.
	RequestTimeout time.Duration
}

// NewRouter builds the full middleware chain and route table.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logging(d.Logger, d.MetricsSink))
	r.Use(chimiddleware.RealIP)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORS.AllowedOrigins,
		AllowedMethods: d.CORS.AllowedMethods,
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         d.CORS.MaxAge,
	}))

	r.Get("/health", d.Health.Liveness)
	r.Get("/health/ready", d.Health.Readiness)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", d.Catalog.ListProducts)
		r.Get("/products/{slug}", d.Catalog.GetProduct)
		r.Get("/products/{slug}/quote", d.Catalog.Quote)
		r.Get("/categories", d.Catalog.Categories)
		r.Get("/room-types", d.Catalog.RoomTypes)
		r.Get("/homepage", d.Catalog.Homepage)
		r.Get("/hero-banners", d.Catalog.HeroBanners)
		r.Get("/vendors/{vendorID}/discounts", d.Catalog.VendorDiscounts)
		r.Put("/vendors/{vendorID}/discounts", d.Admin.ReplaceVendorDiscounts)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/products/reindex", d.Admin.ReindexProducts)
			r.Put("/products", d.Admin.BulkUpdateProducts)
			r.Put("/products/{slug}", d.Admin.UpdateProduct)
			r.Put("/categories", d.Admin.UpdateCategories)
			r.Put("/hero-banners", d.Admin.UpdateHeroBanners)
			r.Post("/cache/flush", d.Admin.FlushCaches)
			r.Get("/cache/stats", d.Admin.CacheStats)
		})
	})

	return r
}
