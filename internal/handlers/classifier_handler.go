package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/services"
)

type ClassifierHandler struct {
	importService     *services.ImportService
	classifierService *services.ClassifierService
}

func NewClassifierHandler(importService *services.ImportService, classifierService *services.ClassifierService) *ClassifierHandler {
	return &ClassifierHandler{importService: importService, classifierService: classifierService}
}

// @Summary Ingest Insurer Report
// @Description Loads validated insurer rows into the draft fortnight
// @Tags Imports
// @Accept json
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Param request body services.ImportBatch true "Rows"
// @Success 201 {object} models.CommissionImport
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/imports [post]
func (h *ClassifierHandler) Ingest(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	var batch services.ImportBatch
	if !bind(c, "import", &batch) {
		return
	}
	batch.FortnightID = id
	imp, err := h.importService.Ingest(c.Request.Context(), actorFrom(c), batch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"import": imp})
}

// @Summary List Imports
// @Tags Imports
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/imports [get]
func (h *ClassifierHandler) Imports(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	imports, err := h.importService.ListImports(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imports": imports})
}

// @Summary Delete Import
// @Tags Imports
// @Produce json
// @Param import_id path int true "Import ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /imports/{import_id} [delete]
func (h *ClassifierHandler) DeleteImport(c *gin.Context) {
	id, ok := paramID(c, "import_id")
	if !ok {
		return
	}
	if err := h.importService.DeleteImport(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Importación eliminada"})
}

// @Summary List Items
// @Tags Classifier
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Param status query string false "Comma-separated statuses"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/items [get]
func (h *ClassifierHandler) Items(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	var statuses []string
	if raw := c.Query("status"); raw != "" {
		statuses = strings.Split(raw, ",")
	}
	items, err := h.importService.ListItems(c.Request.Context(), id, statuses)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Unidentified Groups
// @Description Client and policy groups of the fortnight's unidentified items
// @Tags Classifier
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Success 200 {object} services.Grouping
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/groups [get]
func (h *ClassifierHandler) Groups(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	g, err := h.classifierService.Groups(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// @Summary Pool Groups
// @Description Groups of the unclaimed pool across paid fortnights
// @Tags Classifier
// @Produce json
// @Success 200 {object} services.Grouping
// @Security BearerAuth
// @Router /items/pending/groups [get]
func (h *ClassifierHandler) PendingGroups(c *gin.Context) {
	g, err := h.classifierService.PendingGroups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

type IdentifyRequest struct {
	ItemIDs         []uint           `json:"item_ids"`
	BrokerID        uint             `json:"broker_id"`
	PercentOverride *models.Fraction `json:"percent_override"`
}

// @Summary Identify Item
// @Description Provisionally attributes one draft item to a broker
// @Tags Classifier
// @Accept json
// @Produce json
// @Param item_id path int true "Item ID"
// @Param request body IdentifyRequest true "Broker"
// @Success 200 {object} models.CommissionItem
// @Security BearerAuth
// @Router /items/{item_id}/identify [post]
func (h *ClassifierHandler) Identify(c *gin.Context) {
	id, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	var req IdentifyRequest
	if !bind(c, "identify", &req) {
		return
	}
	item, err := h.classifierService.TempIdentify(c.Request.Context(), actorFrom(c), id, req.BrokerID, req.PercentOverride)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// @Summary Identify Items
// @Description Attributes several items, each in its own transaction
// @Tags Classifier
// @Accept json
// @Produce json
// @Param request body IdentifyRequest true "Items and broker"
// @Success 200 {object} services.BatchResult
// @Security BearerAuth
// @Router /items/identify [post]
func (h *ClassifierHandler) IdentifyBatch(c *gin.Context) {
	var req IdentifyRequest
	if !bind(c, "identify", &req) {
		return
	}
	result, err := h.classifierService.TempIdentifyBatch(c.Request.Context(), actorFrom(c), req.ItemIDs, req.BrokerID, req.PercentOverride)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Identify Group
// @Description Attributes every item of a grouping entry
// @Tags Classifier
// @Accept json
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Param entry_id path int true "Entry ID"
// @Param request body IdentifyRequest true "Broker"
// @Success 200 {object} services.BatchResult
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/groups/{entry_id}/identify [post]
func (h *ClassifierHandler) IdentifyGroup(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	entryID, ok := paramID(c, "entry_id")
	if !ok {
		return
	}
	var req IdentifyRequest
	if !bind(c, "identify", &req) {
		return
	}
	result, err := h.classifierService.TempIdentifyGroup(c.Request.Context(), actorFrom(c), id, int(entryID), req.BrokerID, req.PercentOverride)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Unidentify Item
// @Tags Classifier
// @Produce json
// @Param item_id path int true "Item ID"
// @Success 200 {object} models.CommissionItem
// @Security BearerAuth
// @Router /items/{item_id}/unidentify [post]
func (h *ClassifierHandler) Unidentify(c *gin.Context) {
	id, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	item, err := h.classifierService.TempUnidentify(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// @Summary Aged Items
// @Description Unattributed items older than the aging threshold
// @Tags Classifier
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /items/aged [get]
func (h *ClassifierHandler) Aged(c *gin.Context) {
	items, err := h.classifierService.AgedItems(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "aging_days": models.AgingDays})
}

// @Summary Route Aged Items to House
// @Tags Classifier
// @Produce json
// @Success 200 {object} services.RouteResult
// @Security BearerAuth
// @Router /items/aged/route [post]
func (h *ClassifierHandler) RouteAged(c *gin.Context) {
	result, err := h.classifierService.RouteAgedToHouse(c.Request.Context(), actorFrom(c), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
