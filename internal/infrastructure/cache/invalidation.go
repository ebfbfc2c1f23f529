package cache

import (
	"go.uber.org/zap"
)

// Invalidator clears exactly the instances and key families that a write
// can leave stale. Each method is named after the business event, not the
// key shapes it touches, so mutation call sites stay declarative. There
// is no TTL anywhere in this layer: every mutation path is required to
// call the matching method after a successful write.
type Invalidator struct {
	caches *Caches
	logger *zap.Logger
}

// NewInvalidator creates the invalidation router over the named instances.
func NewInvalidator(caches *Caches, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{caches: caches, logger: logger}
}

// ProductsChanged handles a catalog-wide product change. Pricing depends
// on product attributes in too many ways to pattern-match safely, so both
// instances are cleared in full.
func (inv *Invalidator) ProductsChanged() {
	inv.caches.Products.Clear()
	inv.caches.Pricing.Clear()

	inv.logger.Info("Invalidated caches for product catalog change",
		zap.Strings("instances", []string{"products", "pricing"}),
	)
}

// ProductChanged handles a single product change, identified by slug.
// Only keys referencing that slug are removed.
func (inv *Invalidator) ProductChanged(slug string) {
	pattern := ProductSlugPattern(slug)

	removed := inv.caches.ProductDetails.DeletePattern(pattern)
	removed += inv.caches.Pricing.DeletePattern(pattern)
	removed += inv.caches.Products.DeletePattern(pattern)

	inv.logger.Info("Invalidated caches for product change",
		zap.String("slug", slug),
		zap.Int("removed", removed),
	)
}

// VendorDiscountsChanged handles a change to one vendor's discounts or
// coupons. Discount keys for that vendor are removed; pricing is cleared
// in full because a discount change can alter any displayed price.
func (inv *Invalidator) VendorDiscountsChanged(vendorID int) {
	removed := inv.caches.Discounts.DeletePattern(VendorDiscountsPattern(vendorID))
	inv.caches.Pricing.Clear()

	inv.logger.Info("Invalidated caches for vendor discount change",
		zap.Int("vendorId", vendorID),
		zap.Int("removed", removed),
	)
}

// CategoriesChanged handles a category taxonomy change. The homepage
// surfaces category data, so category-referencing keys ripple out of the
// category instance into the homepage and product-listing instances.
func (inv *Invalidator) CategoriesChanged() {
	inv.caches.Categories.Clear()
	removed := inv.caches.Homepage.DeletePattern(HomepageCategoriesPattern())
	removed += inv.caches.Products.DeletePattern(CategoryPattern())

	inv.logger.Info("Invalidated caches for category change",
		zap.Int("rippleRemoved", removed),
	)
}

// RoomTypesChanged handles a room-type taxonomy change. Nothing else
// reads room-type data.
func (inv *Invalidator) RoomTypesChanged() {
	inv.caches.RoomTypes.Clear()

	inv.logger.Info("Invalidated room type cache")
}

// HeroBannersChanged handles a hero or promotional banner change.
// Banners render on the homepage, so the whole homepage instance goes too.
func (inv *Invalidator) HeroBannersChanged() {
	inv.caches.HeroBanners.Clear()
	inv.caches.Homepage.Clear()

	inv.logger.Info("Invalidated caches for banner change",
		zap.Strings("instances", []string{"hero_banners", "homepage"}),
	)
}

// Reset clears every named instance. Used by the operator-triggered
// cache flush.
func (inv *Invalidator) Reset() {
	inv.caches.Homepage.Clear()
	inv.caches.Products.Clear()
	inv.caches.ProductDetails.Clear()
	inv.caches.Discounts.Clear()
	inv.caches.RoomTypes.Clear()
	inv.caches.Categories.Clear()
	inv.caches.Pricing.Clear()
	inv.caches.HeroBanners.Clear()

	inv.logger.Warn("All cache instances cleared")
}
