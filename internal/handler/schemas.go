package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/queryfed/queryfed/internal/models"
	"github.com/queryfed/queryfed/internal/schema"
)

// SchemasHandler exposes the federated schema catalog for inspection.
type SchemasHandler struct {
	catalog schema.Catalog
}

func NewSchemasHandler(catalog schema.Catalog) *SchemasHandler {
	return &SchemasHandler{catalog: catalog}
}

// List handles GET /api/v1/schemas
func (h *SchemasHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.catalog.GetAllSchemas(r.Context())
	if err != nil {
		models.WriteError(w, http.StatusBadGateway, "schema catalog unavailable: "+err.Error())
		return
	}
	resp := models.SchemaListResponse{Status: "success"}
	for _, snap := range snaps {
		resp.Databases = append(resp.Databases, *snap)
	}
	models.WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/schemas/{database_id}
func (h *SchemasHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "database_id")
	snap, err := h.catalog.GetSchema(r.Context(), id)
	if err != nil {
		models.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, snap)
}
