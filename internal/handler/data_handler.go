package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/service"
	"github.com/GTDGit/catalog_api/internal/utils"
)

// maxSnapshotBytes bounds uploaded snapshot documents.
const maxSnapshotBytes = 20 << 20

// DataHandler handles catalog reload, backup/restore and legacy migration.
type DataHandler struct {
	catalog   *service.CatalogService
	snapshots *service.SnapshotService
}

// NewDataHandler creates a new DataHandler.
func NewDataHandler(catalog *service.CatalogService, snapshots *service.SnapshotService) *DataHandler {
	return &DataHandler{catalog: catalog, snapshots: snapshots}
}

// Reload handles POST /v1/admin/catalog/reload
func (h *DataHandler) Reload(c *gin.Context) {
	if err := h.catalog.LoadAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Catalog reloaded", h.catalog.State())
}

// State handles GET /v1/admin/catalog/state
func (h *DataHandler) State(c *gin.Context) {
	utils.Success(c, http.StatusOK, "Catalog state", h.catalog.State())
}

// Export handles GET /v1/admin/catalog/export. The snapshot is sent as a
// JSON attachment; a failed export yields an empty document and the
// X-Snapshot-Empty header.
func (h *DataHandler) Export(c *gin.Context) {
	snap := h.snapshots.Export(c.Request.Context())

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		respondError(c, err)
		return
	}
	if snap.IsEmpty() {
		c.Header("X-Snapshot-Empty", "true")
	}
	name := "catalog.json"
	if exportedAt, err := parseExportDate(snap.ExportDate); err == nil {
		name = service.SnapshotFileName(exportedAt)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/json", data)
}

// Import handles POST /v1/admin/catalog/import?confirm=true with a snapshot
// document as the body. The current catalog is replaced.
func (h *DataHandler) Import(c *gin.Context) {
	if !requireConfirmation(c) {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSnapshotBytes)
	var doc models.Snapshot
	if err := json.NewDecoder(c.Request.Body).Decode(&doc); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Snapshot is not valid JSON: "+err.Error())
		return
	}

	result, err := h.snapshots.Import(c.Request.Context(), &doc)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Info().Str("session_id", c.GetString("session_id")).Int("products", result.Products).Msg("Snapshot imported via API")
	utils.Success(c, http.StatusOK, "Catalog imported", result)
}

// LegacyStatus handles GET /v1/admin/catalog/legacy
func (h *DataHandler) LegacyStatus(c *gin.Context) {
	utils.Success(c, http.StatusOK, "Legacy data status", gin.H{
		"found": h.snapshots.HasLegacyData(),
	})
}

// MigrateLegacy handles POST /v1/admin/catalog/migrate-legacy?confirm=true
func (h *DataHandler) MigrateLegacy(c *gin.Context) {
	if !requireConfirmation(c) {
		return
	}
	result, err := h.snapshots.MigrateLegacy(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "No legacy data found"
	if result.Found {
		msg = "Legacy data migrated"
	}
	utils.Success(c, http.StatusOK, msg, result)
}

// ClearAll handles DELETE /v1/admin/catalog?confirm=true
func (h *DataHandler) ClearAll(c *gin.Context) {
	if !requireConfirmation(c) {
		return
	}
	if err := h.snapshots.ClearAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	log.Warn().Str("session_id", c.GetString("session_id")).Msg("Catalog cleared via API")
	utils.Success(c, http.StatusOK, "Catalog cleared", nil)
}

func parseExportDate(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
