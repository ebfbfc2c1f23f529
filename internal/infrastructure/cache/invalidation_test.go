package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commerce-backend/internal/domain/catalog"
)

func newTestCaches() (*Caches, *Invalidator) {
	caches := NewCaches(DefaultSizes(), nil)
	return caches, NewInvalidator(caches, nil)
}

func TestProductsChanged(t *testing.T) {
	caches, inv := newTestCaches()
	ctx := context.Background()

	listKey := ProductListKey(ProductListParams{Limit: 10, Offset: 0, SortBy: "rating", SortOrder: "desc"})
	require.Equal(t, "products:list:10:0:::::rating:desc", listKey)

	caches.Products.Set(listKey, catalog.ProductPage{Total: 2})
	caches.Pricing.Set(PricingKey("roman-shade", 5, 1), catalog.Quote{Quantity: 1})
	caches.Categories.Set(CategoryTreeKey(), []catalog.Category{{ID: 1}})

	inv.ProductsChanged()

	_, ok := caches.Products.Get(listKey)
	assert.False(t, ok, "listing key must be gone")
	assert.Equal(t, 0, caches.Pricing.Stats().TotalEntries)
	assert.True(t, caches.Categories.Has(CategoryTreeKey()), "unrelated instance untouched")

	// A subsequent GetOrSet must hit the factory again.
	calls := 0
	_, err := caches.Products.GetOrSet(ctx, listKey, func(context.Context) (catalog.ProductPage, error) {
		calls++
		return catalog.ProductPage{Total: 9}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestProductChangedIsSlugScoped(t *testing.T) {
	caches, inv := newTestCaches()

	caches.ProductDetails.Set(ProductDetailKey("roman-shade"), catalog.Product{})
	caches.ProductDetails.Set(ProductDetailKey("venetian-blind"), catalog.Product{})
	caches.Pricing.Set(PricingKey("roman-shade", 5, 1), catalog.Quote{})
	caches.Pricing.Set(PricingKey("venetian-blind", 5, 1), catalog.Quote{})

	inv.ProductChanged("roman-shade")

	assert.False(t, caches.ProductDetails.Has(ProductDetailKey("roman-shade")))
	assert.True(t, caches.ProductDetails.Has(ProductDetailKey("venetian-blind")))
	assert.False(t, caches.Pricing.Has(PricingKey("roman-shade", 5, 1)))
	assert.True(t, caches.Pricing.Has(PricingKey("venetian-blind", 5, 1)))
}

func TestVendorDiscountsChanged(t *testing.T) {
	caches, inv := newTestCaches()

	caches.Discounts.Set(VendorDiscountsKey(5, true), []catalog.Discount{{VendorID: 5}})
	caches.Discounts.Set(VendorDiscountsKey(5, false), []catalog.Discount{{VendorID: 5}})
	caches.Discounts.Set(VendorDiscountsKey(6, true), []catalog.Discount{{VendorID: 6}})
	caches.Pricing.Set(PricingKey("roman-shade", 6, 1), catalog.Quote{})

	inv.VendorDiscountsChanged(5)

	assert.False(t, caches.Discounts.Has(VendorDiscountsKey(5, true)), "vendor 5 keys gone")
	assert.False(t, caches.Discounts.Has(VendorDiscountsKey(5, false)), "vendor 5 keys gone")
	assert.True(t, caches.Discounts.Has(VendorDiscountsKey(6, true)), "vendor 6 untouched")
	assert.Equal(t, 0, caches.Pricing.Stats().TotalEntries, "pricing fully cleared regardless of vendor")
}

func TestCategoriesChangedRipplesToHomepageAndListings(t *testing.T) {
	caches, inv := newTestCaches()

	caches.Categories.Set(CategoryTreeKey(), []catalog.Category{{ID: 1}})
	caches.Homepage.Set(HomepageKey("categories"), catalog.HomepageSection{})
	caches.Homepage.Set(HomepageKey("featured"), catalog.HomepageSection{})
	filtered := ProductListKey(ProductListParams{Limit: 10, CategoryID: 5, SortBy: "rating", SortOrder: "desc"})
	unfiltered := ProductListKey(ProductListParams{Limit: 10, SortBy: "rating", SortOrder: "desc"})
	caches.Products.Set(filtered, catalog.ProductPage{})
	caches.Products.Set(unfiltered, catalog.ProductPage{})

	inv.CategoriesChanged()

	assert.Equal(t, 0, caches.Categories.Stats().TotalEntries)
	assert.False(t, caches.Homepage.Has(HomepageKey("categories")))
	assert.True(t, caches.Homepage.Has(HomepageKey("featured")))
	assert.False(t, caches.Products.Has(filtered))
	assert.True(t, caches.Products.Has(unfiltered))
}

func TestRoomTypesChanged(t *testing.T) {
	caches, inv := newTestCaches()

	caches.RoomTypes.Set(RoomTypesKey(), []catalog.RoomType{{ID: 1}})
	caches.Homepage.Set(HomepageKey("featured"), catalog.HomepageSection{})

	inv.RoomTypesChanged()

	assert.Equal(t, 0, caches.RoomTypes.Stats().TotalEntries)
	assert.True(t, caches.Homepage.Has(HomepageKey("featured")), "no downstream readers")
}

func TestHeroBannersChanged(t *testing.T) {
	caches, inv := newTestCaches()

	caches.HeroBanners.Set(HeroBannersKey("top"), []catalog.Banner{{ID: 1}})
	caches.Homepage.Set(HomepageKey("featured"), catalog.HomepageSection{})
	caches.Products.Set("products:list:10:0:::::rating:desc", catalog.ProductPage{})

	inv.HeroBannersChanged()

	assert.Equal(t, 0, caches.HeroBanners.Stats().TotalEntries)
	assert.Equal(t, 0, caches.Homepage.Stats().TotalEntries, "banners render on the homepage")
	assert.Equal(t, 1, caches.Products.Stats().TotalEntries)
}

func TestReset(t *testing.T) {
	caches, inv := newTestCaches()

	caches.Products.Set("products:list:10:0:::::rating:desc", catalog.ProductPage{})
	caches.Categories.Set(CategoryTreeKey(), []catalog.Category{})
	caches.Pricing.Set(PricingKey("roman-shade", 5, 1), catalog.Quote{})

	inv.Reset()

	for _, stats := range caches.Stats() {
		assert.Equal(t, 0, stats.TotalEntries, "instance %s should be empty", stats.Instance)
	}
}
