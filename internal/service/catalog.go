// Package service implements the read and mutation paths of the commerce
// API on top of the cache layer and the query batcher.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"commerce-backend/internal/domain/catalog"
	"commerce-backend/internal/infrastructure/cache"
	"commerce-backend/internal/infrastructure/persistence"
	appErrors "commerce-backend/pkg/errors"
)

// Catalog serves catalog reads. Every read goes through its named cache
// instance; misses fan out to the database through a per-request batcher.
type Catalog struct {
	db      persistence.DB
	caches  *cache.Caches
	logger  *zap.Logger
	metrics persistence.Metrics
}

// NewCatalog creates the catalog read service.
func NewCatalog(db persistence.DB, caches *cache.Caches, logger *zap.Logger, metrics persistence.Metrics) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{db: db, caches: caches, logger: logger, metrics: metrics}
}

// Batchers are single-use; one per request keeps Add race-free.
func (s *Catalog) batcher() *persistence.Batcher {
	opts := []persistence.BatcherOption{}
	if s.metrics != nil {
		opts = append(opts, persistence.WithBatchMetrics(s.metrics))
	}
	return persistence.NewBatcher(s.db, s.logger, opts...)
}

// ListProducts returns one page of the product listing.
func (s *Catalog) ListProducts(ctx context.Context, p cache.ProductListParams) (catalog.ProductPage, error) {
	return s.caches.Products.GetOrSet(ctx, cache.ProductListKey(p), func(ctx context.Context) (catalog.ProductPage, error) {
		listSQL, listParams := productListQuery(p)
		countSQL, countParams := productCountQuery(p)

		results := s.batcher().
			Add("rows", listSQL, listParams...).
			Add("total", countSQL, countParams...).
			Execute(ctx)

		if err := results["rows"].Err; err != nil {
			return catalog.ProductPage{}, appErrors.Wrap(err, "list products")
		}

		page := catalog.ProductPage{Products: make([]catalog.ProductSummary, 0, len(results["rows"].Rows))}
		for _, row := range results["rows"].Rows {
			page.Products = append(page.Products, productSummary(row))
		}

		// A failed count degrades to the page length instead of failing
		// the whole listing.
		if err := results["total"].Err; err == nil && len(results["total"].Rows) > 0 {
			page.Total = rowInt(results["total"].Rows[0], "count")
		} else {
			page.Total = len(page.Products)
		}
		return page, nil
	})
}

// GetProduct returns the detail view of one product by slug.
func (s *Catalog) GetProduct(ctx context.Context, slug string) (catalog.Product, error) {
	return s.caches.ProductDetails.GetOrSet(ctx, cache.ProductDetailKey(slug), func(ctx context.Context) (catalog.Product, error) {
		results := s.batcher().
			Add("product",
				"SELECT id, slug, name, vendor_id, category_id, base_price, rating, description, updated_at "+
					"FROM products WHERE slug = $1", slug).
			Add("options",
				"SELECT o.name FROM product_options o JOIN products p ON p.id = o.product_id "+
					"WHERE p.slug = $1 ORDER BY o.position", slug).
			Execute(ctx)

		if err := results["product"].Err; err != nil {
			return catalog.Product{}, appErrors.Wrap(err, "get product")
		}
		if len(results["product"].Rows) == 0 {
			return catalog.Product{}, appErrors.NewNotFound(fmt.Sprintf("product %q not found", slug))
		}

		row := results["product"].Rows[0]
		product := catalog.Product{
			ProductSummary: productSummary(row),
			Description:    rowString(row, "description"),
			UpdatedAt:      rowTime(row, "updated_at"),
		}
		for _, opt := range results["options"].Rows {
			product.Options = append(product.Options, rowString(opt, "name"))
		}
		return product, nil
	})
}

// CategoryTree returns the full category taxonomy.
func (s *Catalog) CategoryTree(ctx context.Context) ([]catalog.Category, error) {
	return s.caches.Categories.GetOrSet(ctx, cache.CategoryTreeKey(), func(ctx context.Context) ([]catalog.Category, error) {
		rows, err := s.db.Query(ctx,
			"SELECT id, slug, name, COALESCE(parent_id, 0) AS parent_id FROM categories ORDER BY parent_id, position")
		if err != nil {
			return nil, appErrors.Wrap(err, "load categories")
		}

		out := make([]catalog.Category, 0, len(rows))
		for _, row := range rows {
			out = append(out, catalog.Category{
				ID:       rowInt(row, "id"),
				Slug:     rowString(row, "slug"),
				Name:     rowString(row, "name"),
				ParentID: rowInt(row, "parent_id"),
			})
		}
		return out, nil
	})
}

// RoomTypes returns the room-type taxonomy.
func (s *Catalog) RoomTypes(ctx context.Context) ([]catalog.RoomType, error) {
	return s.caches.RoomTypes.GetOrSet(ctx, cache.RoomTypesKey(), func(ctx context.Context) ([]catalog.RoomType, error) {
		rows, err := s.db.Query(ctx, "SELECT id, name FROM room_types ORDER BY name")
		if err != nil {
			return nil, appErrors.Wrap(err, "load room types")
		}

		out := make([]catalog.RoomType, 0, len(rows))
		for _, row := range rows {
			out = append(out, catalog.RoomType{ID: rowInt(row, "id"), Name: rowString(row, "name")})
		}
		return out, nil
	})
}

// Homepage returns one homepage section aggregate. The featured products,
// category highlights, and banners load in one concurrent batch; a failed
// sub-query leaves its slice empty rather than failing the section.
func (s *Catalog) Homepage(ctx context.Context, section string) (catalog.HomepageSection, error) {
	return s.caches.Homepage.GetOrSet(ctx, cache.HomepageKey(section), func(ctx context.Context) (catalog.HomepageSection, error) {
		results := s.batcher().
			Add("products",
				"SELECT id, slug, name, vendor_id, category_id, base_price, rating FROM products "+
					"WHERE featured_section = $1 ORDER BY rating DESC LIMIT 12", section).
			Add("categories",
				"SELECT id, slug, name, COALESCE(parent_id, 0) AS parent_id FROM categories "+
					"WHERE featured = TRUE ORDER BY position LIMIT 8").
			Add("banners",
				"SELECT id, placement, image_url, target_url, active FROM banners "+
					"WHERE placement = $1 AND active = TRUE ORDER BY position", section).
			Execute(ctx)

		out := catalog.HomepageSection{Section: section}
		for _, row := range results["products"].Rows {
			out.Products = append(out.Products, productSummary(row))
		}
		for _, row := range results["categories"].Rows {
			out.Categories = append(out.Categories, catalog.Category{
				ID:       rowInt(row, "id"),
				Slug:     rowString(row, "slug"),
				Name:     rowString(row, "name"),
				ParentID: rowInt(row, "parent_id"),
			})
		}
		for _, row := range results["banners"].Rows {
			out.Banners = append(out.Banners, banner(row))
		}
		return out, nil
	})
}

// HeroBanners returns the active banners for one placement.
func (s *Catalog) HeroBanners(ctx context.Context, placement string) ([]catalog.Banner, error) {
	return s.caches.HeroBanners.GetOrSet(ctx, cache.HeroBannersKey(placement), func(ctx context.Context) ([]catalog.Banner, error) {
		rows, err := s.db.Query(ctx,
			"SELECT id, placement, image_url, target_url, active FROM banners "+
				"WHERE placement = $1 AND active = TRUE ORDER BY position", placement)
		if err != nil {
			return nil, appErrors.Wrap(err, "load banners")
		}

		out := make([]catalog.Banner, 0, len(rows))
		for _, row := range rows {
			out = append(out, banner(row))
		}
		return out, nil
	})
}

// VendorDiscounts returns one vendor's discount rules.
func (s *Catalog) VendorDiscounts(ctx context.Context, vendorID int, activeOnly bool) ([]catalog.Discount, error) {
	key := cache.VendorDiscountsKey(vendorID, activeOnly)
	return s.caches.Discounts.GetOrSet(ctx, key, func(ctx context.Context) ([]catalog.Discount, error) {
		query := "SELECT id, vendor_id, code, percent, active, expires_at FROM vendor_discounts WHERE vendor_id = $1"
		if activeOnly {
			query += " AND active = TRUE AND expires_at > NOW()"
		}

		rows, err := s.db.Query(ctx, query, vendorID)
		if err != nil {
			return nil, appErrors.Wrap(err, "load vendor discounts")
		}

		out := make([]catalog.Discount, 0, len(rows))
		for _, row := range rows {
			out = append(out, catalog.Discount{
				ID:        rowInt(row, "id"),
				VendorID:  rowInt(row, "vendor_id"),
				Code:      rowString(row, "code"),
				Percent:   rowDecimal(row, "percent"),
				Active:    rowBool(row, "active"),
				ExpiresAt: rowTime(row, "expires_at"),
			})
		}
		return out, nil
	})
}

// Quote computes the price of quantity units of a product from one
// vendor, applying the vendor's best active discount.
func (s *Catalog) Quote(ctx context.Context, slug string, vendorID, quantity int) (catalog.Quote, error) {
	if quantity < 1 {
		return catalog.Quote{}, appErrors.NewValidation("quantity must be at least 1")
	}

	key := cache.PricingKey(slug, vendorID, quantity)
	return s.caches.Pricing.GetOrSet(ctx, key, func(ctx context.Context) (catalog.Quote, error) {
		product, err := s.GetProduct(ctx, slug)
		if err != nil {
			return catalog.Quote{}, err
		}
		discounts, err := s.VendorDiscounts(ctx, vendorID, true)
		if err != nil {
			return catalog.Quote{}, err
		}

		best := decimal.Zero
		for _, d := range discounts {
			if d.Percent.GreaterThan(best) {
				best = d.Percent
			}
		}

		qty := decimal.NewFromInt(int64(quantity))
		gross := product.BasePrice.Mul(qty)
		discount := gross.Mul(best).Div(decimal.NewFromInt(100)).Round(2)

		return catalog.Quote{
			ProductSlug: slug,
			VendorID:    vendorID,
			Quantity:    quantity,
			UnitPrice:   product.BasePrice,
			Discount:    discount,
			Total:       gross.Sub(discount),
		}, nil
	})
}

func productSummary(row persistence.Row) catalog.ProductSummary {
	return catalog.ProductSummary{
		ID:         rowInt(row, "id"),
		Slug:       rowString(row, "slug"),
		Name:       rowString(row, "name"),
		VendorID:   rowInt(row, "vendor_id"),
		CategoryID: rowInt(row, "category_id"),
		BasePrice:  rowDecimal(row, "base_price"),
		Rating:     rowFloat(row, "rating"),
	}
}

func banner(row persistence.Row) catalog.Banner {
	return catalog.Banner{
		ID:        rowInt(row, "id"),
		Placement: rowString(row, "placement"),
		ImageURL:  rowString(row, "image_url"),
		TargetURL: rowString(row, "target_url"),
		Active:    rowBool(row, "active"),
	}
}

func productListQuery(p cache.ProductListParams) (string, []any) {
	var where []string
	var params []any
	next := func(v any) string {
		params = append(params, v)
		return fmt.Sprintf("$%d", len(params))
	}

	if p.CategoryID > 0 {
		where = append(where, "category_id = "+next(p.CategoryID))
	}
	if p.Search != "" {
		where = append(where, "name ILIKE "+next("%"+p.Search+"%"))
	}
	if p.MinPrice != nil {
		where = append(where, "base_price >= "+next(*p.MinPrice))
	}
	if p.MaxPrice != nil {
		where = append(where, "base_price <= "+next(*p.MaxPrice))
	}

	query := "SELECT id, slug, name, vendor_id, category_id, base_price, rating FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + sortClause(p.SortBy, p.SortOrder)
	query += " LIMIT " + next(p.Limit) + " OFFSET " + next(p.Offset)
	return query, params
}

func productCountQuery(p cache.ProductListParams) (string, []any) {
	var where []string
	var params []any
	next := func(v any) string {
		params = append(params, v)
		return fmt.Sprintf("$%d", len(params))
	}

	if p.CategoryID > 0 {
		where = append(where, "category_id = "+next(p.CategoryID))
	}
	if p.Search != "" {
		where = append(where, "name ILIKE "+next("%"+p.Search+"%"))
	}
	if p.MinPrice != nil {
		where = append(where, "base_price >= "+next(*p.MinPrice))
	}
	if p.MaxPrice != nil {
		where = append(where, "base_price <= "+next(*p.MaxPrice))
	}

	query := "SELECT COUNT(*) AS count FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query, params
}

// sortClause whitelists sortable columns; anything else sorts by rating.
func sortClause(sortBy, sortOrder string) string {
	col := "rating"
	switch sortBy {
	case "name", "base_price", "rating", "created_at":
		col = sortBy
	}
	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}
