package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/replyflow/internal/catalog"
	"github.com/wolfman30/replyflow/pkg/logging"
)

type catalogStore interface {
	ListCatalog(ctx context.Context, tenantID int64) ([]catalog.Item, error)
	ReplaceCatalog(ctx context.Context, tenantID int64, items []catalog.Item) error
}

// AdminCatalogHandler lets operators read and replace a tenant's catalog.
type AdminCatalogHandler struct {
	store  catalogStore
	logger *logging.Logger
}

func NewAdminCatalogHandler(store catalogStore, logger *logging.Logger) *AdminCatalogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminCatalogHandler{store: store, logger: logger}
}

// CatalogResponse is returned by both catalog endpoints.
type CatalogResponse struct {
	TenantID int64          `json:"tenant_id"`
	Items    []catalog.Item `json:"items"`
	Text     string         `json:"text"`
}

type replaceCatalogRequest struct {
	Items []catalog.Item `json:"items"`
}

// GetCatalog returns the tenant's items and their prompt rendering.
// GET /admin/tenants/{tenantID}/catalog
func (h *AdminCatalogHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(r)
	if !ok {
		jsonError(w, "invalid tenantID", http.StatusBadRequest)
		return
	}
	items, err := h.store.ListCatalog(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to list catalog", "tenant_id", tenantID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse(tenantID, items))
}

// ReplaceCatalog swaps the whole catalog. Invalid or duplicate items reject
// the request without touching stored data.
// PUT /admin/tenants/{tenantID}/catalog
func (h *AdminCatalogHandler) ReplaceCatalog(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(r)
	if !ok {
		jsonError(w, "invalid tenantID", http.StatusBadRequest)
		return
	}
	var req replaceCatalogRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	items, err := catalog.Normalize(req.Items)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.ReplaceCatalog(r.Context(), tenantID, items); err != nil {
		if errors.Is(err, catalog.ErrInvalidItem) || errors.Is(err, catalog.ErrDuplicateItem) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to replace catalog", "tenant_id", tenantID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logger.Info("catalog replaced", "tenant_id", tenantID, "items", len(items))
	writeJSON(w, http.StatusOK, catalogResponse(tenantID, items))
}

func catalogResponse(tenantID int64, items []catalog.Item) CatalogResponse {
	if items == nil {
		items = []catalog.Item{}
	}
	return CatalogResponse{TenantID: tenantID, Items: items, Text: catalog.Render(items)}
}
