package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"commerce-backend/internal/domain/catalog"
	"commerce-backend/internal/infrastructure/cache"
	"commerce-backend/internal/infrastructure/persistence"
	appErrors "commerce-backend/pkg/errors"
)

// scriptedDB answers queries by substring match and counts executions.
type scriptedDB struct {
	mu       sync.Mutex
	rows     map[string][]persistence.Row
	errs     map[string]error
	executed []string
	txs      []*scriptedTx
}

func (f *scriptedDB) Query(ctx context.Context, sql string, args ...any) ([]persistence.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, sql)
	for needle, err := range f.errs {
		if strings.Contains(sql, needle) {
			return nil, err
		}
	}
	for needle, rows := range f.rows {
		if strings.Contains(sql, needle) {
			return rows, nil
		}
	}
	return []persistence.Row{}, nil
}

func (f *scriptedDB) Begin(ctx context.Context) (persistence.Tx, error) {
	tx := &scriptedTx{db: f}
	f.mu.Lock()
	f.txs = append(f.txs, tx)
	f.mu.Unlock()
	return tx, nil
}

func (f *scriptedDB) countExecuted(needle string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sql := range f.executed {
		if strings.Contains(sql, needle) {
			n++
		}
	}
	return n
}

type scriptedTx struct {
	db         *scriptedDB
	executed   []string
	committed  bool
	rolledBack bool
}

func (t *scriptedTx) Query(ctx context.Context, sql string, args ...any) ([]persistence.Row, error) {
	t.executed = append(t.executed, sql)
	return t.db.Query(ctx, sql, args...)
}

func (t *scriptedTx) Commit(ctx context.Context) error   { t.committed = true; return nil }
func (t *scriptedTx) Rollback(ctx context.Context) error { t.rolledBack = true; return nil }

func newFixture(db *scriptedDB) (*Catalog, *Admin, *cache.Caches) {
	caches := cache.NewCaches(cache.DefaultSizes(), zap.NewNop())
	inv := cache.NewInvalidator(caches, zap.NewNop())
	return NewCatalog(db, caches, zap.NewNop(), nil), NewAdmin(db, inv, zap.NewNop(), nil), caches
}

func productRow(id int, slug string, price string) persistence.Row {
	p, _ := decimal.NewFromString(price)
	return persistence.Row{
		"id": int64(id), "slug": slug, "name": "Blind " + slug,
		"vendor_id": int64(5), "category_id": int64(3),
		"base_price": p, "rating": 4.5,
		"description": "desc", "updated_at": time.Now(),
	}
}

func TestCatalogListProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("caches the page under the canonical key", func(t *testing.T) {
		db := &scriptedDB{rows: map[string][]persistence.Row{
			"SELECT id, slug":          {productRow(1, "roman-shade", "129.99")},
			"SELECT COUNT(*) AS count": {{"count": int64(37)}},
		}}
		svc, _, caches := newFixture(db)

		params := cache.ProductListParams{Limit: 10, Offset: 0, SortBy: "rating", SortOrder: "desc"}
		page, err := svc.ListProducts(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, 37, page.Total)
		require.Len(t, page.Products, 1)
		assert.Equal(t, "roman-shade", page.Products[0].Slug)

		assert.True(t, caches.Products.Has("products:list:10:0:::::rating:desc"))

		// Second call answers from cache without touching the database.
		before := len(db.executed)
		_, err = svc.ListProducts(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, before, len(db.executed))
	})

	t.Run("count failure degrades to page length", func(t *testing.T) {
		db := &scriptedDB{
			rows: map[string][]persistence.Row{"SELECT id, slug": {productRow(1, "a", "10")}},
			errs: map[string]error{"COUNT(*)": assert.AnError},
		}
		svc, _, _ := newFixture(db)

		page, err := svc.ListProducts(ctx, cache.ProductListParams{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})

	t.Run("listing failure is not cached", func(t *testing.T) {
		db := &scriptedDB{errs: map[string]error{"SELECT id, slug": assert.AnError}}
		svc, _, caches := newFixture(db)

		_, err := svc.ListProducts(ctx, cache.ProductListParams{Limit: 10})
		require.Error(t, err)
		assert.False(t, caches.Products.Has(cache.ProductListKey(cache.ProductListParams{Limit: 10})))
	})
}

func TestCatalogGetProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("loads detail with options", func(t *testing.T) {
		db := &scriptedDB{rows: map[string][]persistence.Row{
			"FROM products WHERE slug": {productRow(1, "roman-shade", "129.99")},
			"FROM product_options":     {{"name": "cordless"}, {"name": "blackout"}},
		}}
		svc, _, _ := newFixture(db)

		p, err := svc.GetProduct(ctx, "roman-shade")
		require.NoError(t, err)
		assert.Equal(t, "roman-shade", p.Slug)
		assert.Equal(t, []string{"cordless", "blackout"}, p.Options)
	})

	t.Run("missing product is NOT_FOUND", func(t *testing.T) {
		db := &scriptedDB{}
		svc, _, _ := newFixture(db)

		_, err := svc.GetProduct(ctx, "ghost")
		require.Error(t, err)
		assert.True(t, appErrors.IsNotFound(err))
	})
}

func TestCatalogQuote(t *testing.T) {
	ctx := context.Background()

	db := &scriptedDB{rows: map[string][]persistence.Row{
		"FROM products WHERE slug": {productRow(1, "roman-shade", "100.00")},
		"FROM vendor_discounts": {{
			"id": int64(1), "vendor_id": int64(5), "code": "SAVE10",
			"percent": decimal.NewFromInt(10), "active": true,
			"expires_at": time.Now().Add(time.Hour),
		}},
	}}
	svc, _, caches := newFixture(db)

	t.Run("applies the best active discount", func(t *testing.T) {
		q, err := svc.Quote(ctx, "roman-shade", 5, 2)
		require.NoError(t, err)
		assert.True(t, q.UnitPrice.Equal(decimal.RequireFromString("100.00")), q.UnitPrice.String())
		assert.True(t, q.Discount.Equal(decimal.RequireFromString("20.00")), q.Discount.String())
		assert.True(t, q.Total.Equal(decimal.RequireFromString("180.00")), q.Total.String())

		assert.True(t, caches.Pricing.Has("pricing:roman-shade:5:2"))
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := svc.Quote(ctx, "roman-shade", 5, 0)
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})
}

func TestAdminUpdateProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("writes then invalidates the slug", func(t *testing.T) {
		db := &scriptedDB{rows: map[string][]persistence.Row{
			"UPDATE products":          {{"id": int64(1)}},
			"FROM products WHERE slug": {productRow(1, "roman-shade", "129.99")},
		}}
		svc, admin, caches := newFixture(db)

		// Seed the detail cache, then mutate.
		_, err := svc.GetProduct(ctx, "roman-shade")
		require.NoError(t, err)
		require.True(t, caches.ProductDetails.Has("products:detail:roman-shade"))

		err = admin.UpdateProduct(ctx, "roman-shade", map[string]any{"base_price": "99.99"})
		require.NoError(t, err)
		assert.False(t, caches.ProductDetails.Has("products:detail:roman-shade"))
	})

	t.Run("rejects unknown columns", func(t *testing.T) {
		_, admin, _ := newFixture(&scriptedDB{})
		err := admin.UpdateProduct(ctx, "roman-shade", map[string]any{"slug": "hijack"})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("missing row is NOT_FOUND", func(t *testing.T) {
		_, admin, _ := newFixture(&scriptedDB{})
		err := admin.UpdateProduct(ctx, "ghost", map[string]any{"name": "x"})
		require.Error(t, err)
		assert.True(t, appErrors.IsNotFound(err))
	})
}

func TestAdminBulkAndDiscountMutations(t *testing.T) {
	ctx := context.Background()

	t.Run("bulk update runs in one committed transaction", func(t *testing.T) {
		db := &scriptedDB{}
		_, admin, _ := newFixture(db)

		err := admin.BulkUpdateProducts(ctx, []persistence.UpdateSpec{
			{ID: 1, Changes: map[string]any{"base_price": 10}},
			{ID: 2, Changes: map[string]any{"base_price": 20}},
		})
		require.NoError(t, err)
		require.Len(t, db.txs, 1)
		assert.True(t, db.txs[0].committed)
	})

	t.Run("replacing discounts clears vendor keys and pricing", func(t *testing.T) {
		db := &scriptedDB{rows: map[string][]persistence.Row{
			"FROM products WHERE slug": {productRow(1, "roman-shade", "100.00")},
		}}
		svc, admin, caches := newFixture(db)

		_, err := svc.Quote(ctx, "roman-shade", 5, 1)
		require.NoError(t, err)
		require.True(t, caches.Pricing.Has("pricing:roman-shade:5:1"))
		require.True(t, caches.Discounts.Has("discounts:vendor:5:active"))

		err = admin.ReplaceVendorDiscounts(ctx, 5, []catalog.Discount{
			{Code: "NEW20", Percent: decimal.NewFromInt(20), Active: true, ExpiresAt: time.Now().Add(time.Hour)},
		})
		require.NoError(t, err)

		assert.False(t, caches.Discounts.Has("discounts:vendor:5:active"))
		assert.False(t, caches.Pricing.Has("pricing:roman-shade:5:1"))
	})
}
