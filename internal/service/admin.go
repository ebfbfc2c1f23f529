package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"commerce-backend/internal/domain/catalog"
	"commerce-backend/internal/infrastructure/cache"
	"commerce-backend/internal/infrastructure/persistence"
	appErrors "commerce-backend/pkg/errors"
)

// Admin serves the mutation paths. Every successful write ends with the
// matching invalidation event; nothing here relies on expiry to converge.
type Admin struct {
	db          persistence.DB
	invalidator *cache.Invalidator
	logger      *zap.Logger
	metrics     persistence.Metrics
}

// NewAdmin creates the mutation service.
func NewAdmin(db persistence.DB, invalidator *cache.Invalidator, logger *zap.Logger, metrics persistence.Metrics) *Admin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Admin{db: db, invalidator: invalidator, logger: logger, metrics: metrics}
}

func (s *Admin) batcher() *persistence.Batcher {
	opts := []persistence.BatcherOption{}
	if s.metrics != nil {
		opts = append(opts, persistence.WithBatchMetrics(s.metrics))
	}
	return persistence.NewBatcher(s.db, s.logger, opts...)
}

// UpdateProduct applies field changes to one product and invalidates
// every cache entry referencing its slug.
func (s *Admin) UpdateProduct(ctx context.Context, slug string, changes map[string]any) error {
	if len(changes) == 0 {
		return appErrors.NewValidation("no fields to update")
	}

	cols := make([]string, 0, len(changes))
	for col := range changes {
		if !updatableProductColumns[col] {
			return appErrors.NewValidation(fmt.Sprintf("field %q is not updatable", col))
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var params []any
	sets := make([]string, len(cols))
	for i, col := range cols {
		params = append(params, changes[col])
		sets[i] = fmt.Sprintf("%s = $%d", col, len(params))
	}
	params = append(params, slug)

	query := fmt.Sprintf("UPDATE products SET %s WHERE slug = $%d RETURNING id",
		strings.Join(sets, ", "), len(params))
	rows, err := s.db.Query(ctx, query, params...)
	if err != nil {
		return appErrors.Wrap(err, "update product")
	}
	if len(rows) == 0 {
		return appErrors.NewNotFound(fmt.Sprintf("product %q not found", slug))
	}

	s.invalidator.ProductChanged(slug)
	return nil
}

// BulkUpdateProducts applies many per-row change sets in one transaction,
// then invalidates the product and pricing caches wholesale.
func (s *Admin) BulkUpdateProducts(ctx context.Context, updates []persistence.UpdateSpec) error {
	queries := persistence.BatchUpdate("products", updates)
	if len(queries) == 0 {
		return appErrors.NewValidation("no updates supplied")
	}

	b := s.batcher()
	for i, q := range queries {
		b.Add(fmt.Sprintf("group-%d", i), q.Query, q.Params...)
	}
	if res := b.ExecuteInTransaction(ctx); res.Err != nil {
		return appErrors.Wrap(res.Err, "bulk update products")
	}

	s.invalidator.ProductsChanged()
	return nil
}

// ReindexProducts rebuilds the product search projection and clears the
// listing and pricing caches.
func (s *Admin) ReindexProducts(ctx context.Context) error {
	if _, err := s.db.Query(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY product_search"); err != nil {
		return appErrors.Wrap(err, "reindex products")
	}

	s.invalidator.ProductsChanged()
	return nil
}

// ReplaceVendorDiscounts replaces one vendor's discount set atomically.
func (s *Admin) ReplaceVendorDiscounts(ctx context.Context, vendorID int, discounts []catalog.Discount) error {
	b := s.batcher()
	b.Add("clear", "DELETE FROM vendor_discounts WHERE vendor_id = $1", vendorID)
	for i, d := range discounts {
		b.Add(fmt.Sprintf("insert-%d", i),
			"INSERT INTO vendor_discounts (vendor_id, code, percent, active, expires_at) VALUES ($1, $2, $3, $4, $5)",
			vendorID, d.Code, d.Percent, d.Active, d.ExpiresAt)
	}
	if res := b.ExecuteInTransaction(ctx); res.Err != nil {
		return appErrors.Wrap(res.Err, "replace vendor discounts")
	}

	s.invalidator.VendorDiscountsChanged(vendorID)
	return nil
}

// UpdateCategories applies taxonomy changes in one transaction and
// ripples the invalidation into every category-referencing cache.
func (s *Admin) UpdateCategories(ctx context.Context, updates []persistence.UpdateSpec) error {
	queries := persistence.BatchUpdate("categories", updates)
	if len(queries) == 0 {
		return appErrors.NewValidation("no updates supplied")
	}

	b := s.batcher()
	for i, q := range queries {
		b.Add(fmt.Sprintf("group-%d", i), q.Query, q.Params...)
	}
	if res := b.ExecuteInTransaction(ctx); res.Err != nil {
		return appErrors.Wrap(res.Err, "update categories")
	}

	s.invalidator.CategoriesChanged()
	return nil
}

// UpdateHeroBanners applies banner changes in one transaction and clears
// the banner and homepage caches.
func (s *Admin) UpdateHeroBanners(ctx context.Context, updates []persistence.UpdateSpec) error {
	queries := persistence.BatchUpdate("banners", updates)
	if len(queries) == 0 {
		return appErrors.NewValidation("no updates supplied")
	}

	b := s.batcher()
	for i, q := range queries {
		b.Add(fmt.Sprintf("group-%d", i), q.Query, q.Params...)
	}
	if res := b.ExecuteInTransaction(ctx); res.Err != nil {
		return appErrors.Wrap(res.Err, "update banners")
	}

	s.invalidator.HeroBannersChanged()
	return nil
}

var updatableProductColumns = map[string]bool{
	"name":        true,
	"description": true,
	"base_price":  true,
	"category_id": true,
	"rating":      true,
	"active":      true,
}
