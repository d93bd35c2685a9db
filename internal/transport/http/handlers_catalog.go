package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"apim/internal/catalog/models"
	derrors "apim/pkg/domain-errors"
)

// Catalog is the slice of the catalog service the handler needs.
type Catalog interface {
	Create(ctx context.Context, resource models.Resource) (models.Resource, error)
	List(ctx context.Context) ([]models.Resource, error)
	Delete(ctx context.Context, resourceID string) error
}

type CatalogHandler struct {
	catalog Catalog
}

func NewCatalogHandler(catalog Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var resource models.Resource
	if err := json.NewDecoder(r.Body).Decode(&resource); err != nil {
		writeError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.catalog.Create(r.Context(), resource)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleList(w http.ResponseWriter, r *http.Request) {
	resources, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if resources == nil {
		resources = []models.Resource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"apis": resources})
}

func (h *CatalogHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "resource_id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
