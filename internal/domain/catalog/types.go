// Package catalog defines the read-side row types the cache layer
// shuttles between the backing store and the HTTP surface. These are
// projections, not a catalog model; writes happen elsewhere.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSummary is one row of a product listing.
type ProductSummary struct {
	ID         int             `json:"id"`
	Slug       string          `json:"slug"`
	Name       string          `json:"name"`
	VendorID   int             `json:"vendorId"`
	CategoryID int             `json:"categoryId"`
	BasePrice  decimal.Decimal `json:"basePrice"`
	Rating     float64         `json:"rating"`
}

// ProductPage is a listing page plus its total row count.
type ProductPage struct {
	Products []ProductSummary `json:"products"`
	Total    int              `json:"total"`
}

// Product is the detail view of a single product.
type Product struct {
	ProductSummary
	Description string    `json:"description"`
	Options     []string  `json:"options"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Category is one node of the category taxonomy.
type Category struct {
	ID       int    `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	ParentID int    `json:"parentId"`
}

// RoomType is one entry of the room-type taxonomy.
type RoomType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Discount is one vendor discount or coupon rule.
type Discount struct {
	ID        int             `json:"id"`
	VendorID  int             `json:"vendorId"`
	Code      string          `json:"code"`
	Percent   decimal.Decimal `json:"percent"`
	Active    bool            `json:"active"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Quote is a computed price for a product, vendor, and quantity.
type Quote struct {
	ProductSlug string          `json:"productSlug"`
	VendorID    int             `json:"vendorId"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// Banner is one hero or promotional banner.
type Banner struct {
	ID        int    `json:"id"`
	Placement string `json:"placement"`
	ImageURL  string `json:"imageUrl"`
	TargetURL string `json:"targetUrl"`
	Active    bool   `json:"active"`
}

// HomepageSection is one cached homepage aggregate.
type HomepageSection struct {
	Section    string           `json:"section"`
	Products   []ProductSummary `json:"products,omitempty"`
	Categories []Category       `json:"categories,omitempty"`
	Banners    []Banner         `json:"banners,omitempty"`
}
