package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"commerce-backend/internal/domain/catalog"
	"commerce-backend/internal/infrastructure/cache"
	"commerce-backend/internal/infrastructure/persistence"
	"commerce-backend/internal/service"
	"commerce-backend/pkg/api"
)

// Admin serves the mutation and operator endpoints.
type Admin struct {
	svc         *service.Admin
	caches      *cache.Caches
	invalidator *cache.Invalidator
}

// NewAdmin creates the admin handler.
func NewAdmin(svc *service.Admin, caches *cache.Caches, invalidator *cache.Invalidator) *Admin {
	return &Admin{svc: svc, caches: caches, invalidator: invalidator}
}

// rowUpdate is the wire shape of one batched row change.
type rowUpdate struct {
	ID      int            `json:"id"`
	Changes map[string]any `json:"changes"`
}

func toSpecs(updates []rowUpdate) []persistence.UpdateSpec {
	specs := make([]persistence.UpdateSpec, 0, len(updates))
	for _, u := range updates {
		specs = append(specs, persistence.UpdateSpec{ID: u.ID, Changes: u.Changes})
	}
	return specs
}

// ReindexProducts handles POST /api/admin/products/reindex.
func (h *Admin) ReindexProducts(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReindexProducts(r.Context()); err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusAccepted, map[string]string{"status": "reindexed"})
}

// UpdateProduct handles PUT /api/admin/products/{slug}.
func (h *Admin) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpdateProduct(r.Context(), slug, changes); err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "updated"})
}

// BulkUpdateProducts handles PUT /api/admin/products.
func (h *Admin) BulkUpdateProducts(w http.ResponseWriter, r *http.Request) {
	var updates []rowUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.BulkUpdateProducts(r.Context(), toSpecs(updates)); err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ReplaceVendorDiscounts handles PUT /api/vendors/{vendorID}/discounts.
func (h *Admin) ReplaceVendorDiscounts(w http.ResponseWriter, r *http.Request) {
	vendorID, err := strconv.Atoi(chi.URLParam(r, "vendorID"))
	if err != nil || vendorID < 1 {
		api.Error(w, http.StatusBadRequest, "invalid vendor id")
		return
	}

	var discounts []catalog.Discount
	if err := json.NewDecoder(r.Body).Decode(&discounts); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.ReplaceVendorDiscounts(r.Context(), vendorID, discounts); err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "replaced"})
}

// UpdateCategories handles PUT /api/admin/categories.
func (h *Admin) UpdateCategories(w http.ResponseWriter, r *http.Request) {
	var updates []rowUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpdateCategories(r.Context(), toSpecs(updates)); err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "updated"})
}

// UpdateHeroBanners handles PUT /api/admin/hero-banners.
func (h *Admin) UpdateHeroBanners(w http.ResponseWriter, r *http.Request) {
	var updates []rowUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpdateHeroBanners(r.Context(), toSpecs(updates)); err != nil {
		api.RespondError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "updated"})
}

// FlushCaches handles POST /api/admin/cache/flush.
func (h *Admin) FlushCaches(w http.ResponseWriter, r *http.Request) {
	h.invalidator.Reset()
	api.Success(w, http.StatusOK, map[string]string{"status": "flushed"})
}

// CacheStats handles GET /api/admin/cache/stats.
func (h *Admin) CacheStats(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]any{"instances": h.caches.Stats()})
}
