package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"commerce-backend/internal/config"
	"commerce-backend/internal/domain/catalog"
	"commerce-backend/internal/infrastructure/cache"
	"commerce-backend/internal/infrastructure/persistence"
	"commerce-backend/internal/interfaces/http/handlers"
	"commerce-backend/internal/service"
)

type stubDB struct {
	mu          sync.Mutex
	rows        map[string][]persistence.Row
	executed    []string
	sawDeadline bool
}

func (f *stubDB) Query(ctx context.Context, sql string, args ...any) ([]persistence.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := ctx.Deadline(); ok {
		f.sawDeadline = true
	}
	f.executed = append(f.executed, sql)
	for needle, rows := range f.rows {
		if strings.Contains(sql, needle) {
			return rows, nil
		}
	}
	return []persistence.Row{}, nil
}

func (f *stubDB) Begin(ctx context.Context) (persistence.Tx, error) {
	return stubTx{db: f}, nil
}

type stubTx struct{ db *stubDB }

func (t stubTx) Query(ctx context.Context, sql string, args ...any) ([]persistence.Row, error) {
	return t.db.Query(ctx, sql, args...)
}
func (t stubTx) Commit(ctx context.Context) error   { return nil }
func (t stubTx) Rollback(ctx context.Context) error { return nil }

func newTestRouter(db *stubDB) (http.Handler, *cache.Caches) {
	logger := zap.NewNop()
	caches := cache.NewCaches(cache.DefaultSizes(), logger)
	inv := cache.NewInvalidator(caches, logger)

	catalogSvc := service.NewCatalog(db, caches, logger, nil)
	adminSvc := service.NewAdmin(db, inv, logger, nil)

	router := NewRouter(Deps{
		Catalog: handlers.NewCatalog(catalogSvc),
		Admin:   handlers.NewAdmin(adminSvc, caches, inv),
		Health:  handlers.NewHealth(nil),
		Logger:  logger,
		CORS:    config.Default(config.Development).CORS,

		RequestTimeout: 5 * time.Second,
	})
	return router, caches
}

func seededDB() *stubDB {
	return &stubDB{rows: map[string][]persistence.Row{
		"SELECT id, slug": {{
			"id": int64(1), "slug": "roman-shade", "name": "Roman Shade",
			"vendor_id": int64(5), "category_id": int64(3),
			"base_price": decimal.RequireFromString("129.99"), "rating": 4.5,
			"description": "Classic roman shade", "updated_at": time.Now(),
		}},
		"SELECT COUNT(*) AS count": {{"count": int64(1)}},
		"FROM products WHERE slug": {{
			"id": int64(1), "slug": "roman-shade", "name": "Roman Shade",
			"vendor_id": int64(5), "category_id": int64(3),
			"base_price": decimal.RequireFromString("129.99"), "rating": 4.5,
			"description": "Classic roman shade", "updated_at": time.Now(),
		}},
		"FROM categories": {{
			"id": int64(3), "slug": "shades", "name": "Shades", "parent_id": int64(0),
		}},
		"UPDATE products": {{"id": int64(1)}},
	}}
}

func TestReadEndpoints(t *testing.T) {
	t.Run("product listing", func(t *testing.T) {
		router, caches := newTestRouter(seededDB())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products?limit=10", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var page catalog.ProductPage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		require.Len(t, page.Products, 1)
		assert.Equal(t, "roman-shade", page.Products[0].Slug)
		assert.Equal(t, 1, page.Total)

		assert.True(t, caches.Products.Has("products:list:10:0:::::rating:desc"))
	})

	t.Run("product detail and 404", func(t *testing.T) {
		router, _ := newTestRouter(seededDB())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/roman-shade", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		// The seeded stub answers the slug query for any slug, so run
		// the miss against an empty database.
		empty, _ := newTestRouter(&stubDB{})
		rec = httptest.NewRecorder()
		empty.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/ghost", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("categories", func(t *testing.T) {
		router, caches := newTestRouter(seededDB())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, caches.Categories.Has("categories:tree"))
	})

	t.Run("request context carries a deadline", func(t *testing.T) {
		db := seededDB()
		router, _ := newTestRouter(db)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		db.mu.Lock()
		defer db.mu.Unlock()
		assert.True(t, db.sawDeadline, "queries must run under the request timeout")
	})

	t.Run("health", func(t *testing.T) {
		router, _ := newTestRouter(&stubDB{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestMutationEndpointsInvalidate(t *testing.T) {
	t.Run("product update clears its cached detail", func(t *testing.T) {
		db := seededDB()
		router, caches := newTestRouter(db)

		// Warm the detail cache.
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/roman-shade", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, caches.ProductDetails.Has("products:detail:roman-shade"))

		body := strings.NewReader(`{"base_price": "99.99"}`)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/admin/products/roman-shade", body))
		require.Equal(t, http.StatusOK, rec.Code)

		assert.False(t, caches.ProductDetails.Has("products:detail:roman-shade"))
	})

	t.Run("cache flush clears every instance", func(t *testing.T) {
		router, caches := newTestRouter(seededDB())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products?limit=10", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 1, caches.Products.Stats().TotalEntries)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/cache/flush", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Zero(t, caches.Products.Stats().TotalEntries)
	})

	t.Run("cache stats lists all instances", func(t *testing.T) {
		router, _ := newTestRouter(seededDB())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/cache/stats", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var payload struct {
			Instances []cache.Stats `json:"instances"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Len(t, payload.Instances, 8)
	})

	t.Run("bad bulk update body is rejected", func(t *testing.T) {
		router, _ := newTestRouter(seededDB())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/admin/products", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
