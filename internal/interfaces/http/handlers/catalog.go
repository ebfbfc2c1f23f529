// Package handlers holds the HTTP handlers of the commerce API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"commerce-backend/internal/infrastructure/cache"
	"commerce-backend/internal/service"
	"commerce-backend/pkg/api"
)

// Catalog serves the public read endpoints.
type Catalog struct {
	svc *service.Catalog
}

// NewCatalog creates the catalog handler.
func NewCatalog(svc *service.Catalog) *Catalog {
	return &Catalog{svc: svc}
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// ListProducts handles GET /api/products.
func (h *Catalog) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := cache.ProductListParams{
		Limit:      clampInt(q.Get("limit"), defaultPageLimit, 1, maxPageLimit),
		Offset:     clampInt(q.Get("offset"), 0, 0, 1<<30),
		CategoryID: clampInt(q.Get("category"), 0, 0, 1<<30),
		Search:     q.Get("search"),
		SortBy:     defaultString(q.Get("sortBy"), "rating"),
		SortOrder:  defaultString(q.Get("sortOrder"), "desc"),
	}
	if v := q.Get("minPrice"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			params.MinPrice = &d
		}
	}
	if v := q.Get("maxPrice"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			params.MaxPrice = &d
		}
	}

	page, err := h.svc.ListProducts(r.Context(), params)
	if err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, page)
}

// GetProduct handles GET /api/products/{slug}.
func (h *Catalog) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		api.Error(w, http.StatusBadRequest, "missing product slug")
		return
	}

	product, err := h.svc.GetProduct(r.Context(), slug)
	if err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, product)
}

// Categories handles GET /api/categories.
func (h *Catalog) Categories(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.CategoryTree(r.Context())
	if err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, tree)
}

// RoomTypes handles GET /api/room-types.
func (h *Catalog) RoomTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.RoomTypes(r.Context())
	if err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, types)
}

// Homepage handles GET /api/homepage.
func (h *Catalog) Homepage(w http.ResponseWriter, r *http.Request) {
	section := defaultString(r.URL.Query().Get("section"), "featured")

	data, err := h.svc.Homepage(r.Context(), section)
	if err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, data)
}

// HeroBanners handles GET /api/hero-banners.
func (h *Catalog) HeroBanners(w http.ResponseWriter, r *http.Request) {
	placement := defaultString(r.URL.Query().Get("placement"), "homepage")

	banners, err := h.svc.HeroBanners(r.Context(), placement)
	if err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, banners)
}

// VendorDiscounts handles GET /api/vendors/{vendorID}/discounts.
func (h *Catalog) VendorDiscounts(w http.ResponseWriter, r *http.Request) {
	vendorID, err := strconv.Atoi(chi.URLParam(r, "vendorID"))
	if err != nil || vendorID < 1 {
		api.Error(w, http.StatusBadRequest, "invalid vendor id")
		return
	}
	activeOnly := r.URL.Query().Get("active") != "false"

	discounts, err := h.svc.VendorDiscounts(r.Context(), vendorID, activeOnly)
	if err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, discounts)
}

// Quote handles GET /api/products/{slug}/quote.
func (h *Catalog) Quote(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	q := r.URL.Query()

	vendorID := clampInt(q.Get("vendor"), 0, 0, 1<<30)
	if vendorID == 0 {
		api.Error(w, http.StatusBadRequest, "missing vendor id")
		return
	}
	quantity := clampInt(q.Get("quantity"), 1, 1, 10000)

	quote, err := h.svc.Quote(r.Context(), slug, vendorID, quantity)
	if err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, quote)
}

func clampInt(raw string, fallback, min, max int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
