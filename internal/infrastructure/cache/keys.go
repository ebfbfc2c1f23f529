package cache

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Key builders map semantic query parameters to cache key strings. Every
// parameter that can change a result participates in the key, in a fixed
// order with a fixed separator, so equal queries always produce
// byte-identical keys and distinct queries never collide. Unset optional
// parameters are encoded as empty segments rather than omitted.

const keySeparator = ":"

// maxSearchKeyLen bounds the search segment so free-text input cannot
// grow the key space without bound.
const maxSearchKeyLen = 64

// ProductListParams are the discriminating parameters of a product
// listing query.
type ProductListParams struct {
	Limit      int
	Offset     int
	CategoryID int // 0 means all categories
	Search     string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	SortBy     string
	SortOrder  string
}

// ProductListKey builds the key for a product listing query.
func ProductListKey(p ProductListParams) string {
	category := ""
	if p.CategoryID > 0 {
		category = fmt.Sprintf("cat%d", p.CategoryID)
	}

	return strings.Join([]string{
		"products", "list",
		fmt.Sprintf("%d", p.Limit),
		fmt.Sprintf("%d", p.Offset),
		category,
		sanitizeSearch(p.Search),
		decimalSegment(p.MinPrice),
		decimalSegment(p.MaxPrice),
		p.SortBy,
		p.SortOrder,
	}, keySeparator)
}

// ProductDetailKey builds the key for a single product detail query.
func ProductDetailKey(slug string) string {
	return "products:detail:" + sanitizeSegment(slug)
}

// VendorDiscountsKey builds the key for a vendor's discount set.
func VendorDiscountsKey(vendorID int, activeOnly bool) string {
	scope := "all"
	if activeOnly {
		scope = "active"
	}
	return fmt.Sprintf("discounts:vendor:%d:%s", vendorID, scope)
}

// PricingKey builds the key for a computed price. Pricing is keyed by
// product slug so slug-scoped invalidation covers it.
func PricingKey(slug string, vendorID, quantity int) string {
	return fmt.Sprintf("pricing:%s:%d:%d", sanitizeSegment(slug), vendorID, quantity)
}

// CategoryTreeKey builds the key for the full category taxonomy.
func CategoryTreeKey() string {
	return "categories:tree"
}

// RoomTypesKey builds the key for the room-type taxonomy.
func RoomTypesKey() string {
	return "room-types:all"
}

// HomepageKey builds the key for one homepage section aggregate.
func HomepageKey(section string) string {
	return "homepage:" + sanitizeSegment(section)
}

// HeroBannersKey builds the key for the hero banners of one placement.
func HeroBannersKey(placement string) string {
	return "banners:hero:" + sanitizeSegment(placement)
}

// AdminDashboardKey builds the key for the admin dashboard aggregate.
func AdminDashboardKey(dateRange string, includeExport bool) string {
	return fmt.Sprintf("admin:dashboard:%s:%t", sanitizeSegment(dateRange), includeExport)
}

// VendorOrdersKey builds the key for a vendor's order listing.
func VendorOrdersKey(vendorID, limit, offset int, status string) string {
	if status == "" {
		status = "all"
	}
	return fmt.Sprintf("vendor:%d:orders:%d:%d:%s", vendorID, limit, offset, sanitizeSegment(status))
}

// Pattern helpers for the invalidation router. Building patterns here
// keeps them aligned with the encodings above.

// ProductSlugPattern matches any key referencing the given product slug.
func ProductSlugPattern(slug string) *regexp.Regexp {
	return regexp.MustCompile(keySeparator + regexp.QuoteMeta(sanitizeSegment(slug)) + "(" + keySeparator + "|$)")
}

// VendorDiscountsPattern matches discount keys scoped to one vendor.
func VendorDiscountsPattern(vendorID int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^discounts:vendor:%d:`, vendorID))
}

// CategoryPattern matches any key carrying a category filter segment.
func CategoryPattern() *regexp.Regexp {
	return regexp.MustCompile(`:cat[0-9]+:`)
}

// HomepageCategoriesPattern matches homepage keys that surface category data.
func HomepageCategoriesPattern() *regexp.Regexp {
	return regexp.MustCompile(`^homepage:categories`)
}

func decimalSegment(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// sanitizeSegment strips the separator from a caller-supplied value so it
// cannot shift later segments.
func sanitizeSegment(v string) string {
	return strings.ReplaceAll(strings.TrimSpace(v), keySeparator, "_")
}

// sanitizeSearch normalizes free-text search input: lowercased, separator
// stripped, truncated.
func sanitizeSearch(search string) string {
	s := sanitizeSegment(strings.ToLower(search))
	if len(s) > maxSearchKeyLen {
		s = s[:maxSearchKeyLen]
	}
	return s
}
