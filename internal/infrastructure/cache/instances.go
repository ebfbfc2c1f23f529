package cache

import (
	"go.uber.org/zap"

	"commerce-backend/internal/domain/catalog"
)

// Sizes fixes the capacity of each named instance. Each domain is sized
// to its expected key cardinality: taxonomies hold tens of entries,
// filtered listings hundreds, computed prices the most.
type Sizes struct {
	Homepage       int
	Products       int
	ProductDetails int
	Discounts      int
	RoomTypes      int
	Categories     int
	Pricing        int
	HeroBanners    int
}

// DefaultSizes returns the production instance capacities.
func DefaultSizes() Sizes {
	return Sizes{
		Homepage:       20,
		Products:       500,
		ProductDetails: 300,
		Discounts:      200,
		RoomTypes:      50,
		Categories:     50,
		Pricing:        1000,
		HeroBanners:    20,
	}
}

// Caches owns one bounded store per business data domain. Invalidating
// one domain never disturbs another. The composition root constructs a
// single Caches value at process start and passes it to readers and to
// the Invalidator; there is no package-level instance.
type Caches struct {
	Homepage       *Store[catalog.HomepageSection]
	Products       *Store[catalog.ProductPage]
	ProductDetails *Store[catalog.Product]
	Discounts      *Store[[]catalog.Discount]
	RoomTypes      *Store[[]catalog.RoomType]
	Categories     *Store[[]catalog.Category]
	Pricing        *Store[catalog.Quote]
	HeroBanners    *Store[[]catalog.Banner]
}

// NewCaches constructs every named instance. The options (clock, metrics
// sink) are shared across instances.
func NewCaches(sizes Sizes, logger *zap.Logger, opts ...Option) *Caches {
	return &Caches{
		Homepage:       NewStore[catalog.HomepageSection]("homepage", sizes.Homepage, logger, opts...),
		Products:       NewStore[catalog.ProductPage]("products", sizes.Products, logger, opts...),
		ProductDetails: NewStore[catalog.Product]("product_details", sizes.ProductDetails, logger, opts...),
		Discounts:      NewStore[[]catalog.Discount]("discounts", sizes.Discounts, logger, opts...),
		RoomTypes:      NewStore[[]catalog.RoomType]("room_types", sizes.RoomTypes, logger, opts...),
		Categories:     NewStore[[]catalog.Category]("categories", sizes.Categories, logger, opts...),
		Pricing:        NewStore[catalog.Quote]("pricing", sizes.Pricing, logger, opts...),
		HeroBanners:    NewStore[[]catalog.Banner]("hero_banners", sizes.HeroBanners, logger, opts...),
	}
}

// Stats returns introspection data for every instance.
func (c *Caches) Stats() []Stats {
	return []Stats{
		c.Homepage.Stats(),
		c.Products.Stats(),
		c.ProductDetails.Stats(),
		c.Discounts.Stats(),
		c.RoomTypes.Stats(),
		c.Categories.Stats(),
		c.Pricing.Stats(),
		c.HeroBanners.Stats(),
	}
}
