package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/internal/services"
	"github.com/lissa/commissions-api/internal/storage"
)

// SettlementHandler serves what happens after a fortnight is paid: retentions and exports
type SettlementHandler struct {
	retentionService *services.RetentionService
	exportService    *services.ExportService
	storage          *storage.LocalStorage
}

func NewSettlementHandler(retentionService *services.RetentionService, exportService *services.ExportService, storage *storage.LocalStorage) *SettlementHandler {
	return &SettlementHandler{retentionService: retentionService, exportService: exportService, storage: storage}
}

type RetainRequest struct {
	Reason string `json:"reason"`
}

// @Summary Retain Broker Payment
// @Tags Retentions
// @Accept json
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Param broker_id path int true "Broker ID"
// @Param request body RetainRequest true "Reason"
// @Success 200 {object} models.BrokerFortnightTotal
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/brokers/{broker_id}/retain [post]
func (h *SettlementHandler) Retain(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	brokerID, ok := paramID(c, "broker_id")
	if !ok {
		return
	}
	var req RetainRequest
	if !bind(c, "retention", &req) {
		return
	}
	row, err := h.retentionService.Retain(c.Request.Context(), actorFrom(c), id, brokerID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": row})
}

type ReleaseRequest struct {
	Mode string `json:"mode"`
}

// @Summary Release Retained Payment
// @Description Pays now (returns a transfer instruction) or carries the amount into the open draft
// @Tags Retentions
// @Accept json
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Param broker_id path int true "Broker ID"
// @Param request body ReleaseRequest true "now or next_fortnight"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/brokers/{broker_id}/release [post]
func (h *SettlementHandler) Release(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	brokerID, ok := paramID(c, "broker_id")
	if !ok {
		return
	}
	var req ReleaseRequest
	if !bind(c, "release", &req) {
		return
	}
	instruction, err := h.retentionService.Release(c.Request.Context(), actorFrom(c), id, brokerID, req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pago liberado", "instruction": instruction})
}

// @Summary List Retained Payments
// @Tags Retentions
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /retentions [get]
func (h *SettlementHandler) Retained(c *gin.Context) {
	entries, err := h.retentionService.ListRetained(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"retained": entries})
}

// @Summary Payment Instructions
// @Tags Exports
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/payment_instructions [get]
func (h *SettlementHandler) PaymentInstructions(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	instructions, err := h.exportService.PaymentInstructions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instructions": instructions})
}

// @Summary Adjustment Detail
// @Tags Exports
// @Produce json
// @Param broker_id query int false "Broker ID"
// @Param status query string false "Report status"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /exports/adjustments [get]
func (h *SettlementHandler) AdjustmentDetail(c *gin.Context) {
	brokerID, ok := queryID(c, "broker_id")
	if !ok {
		return
	}
	rows, err := h.exportService.AdjustmentDetail(c.Request.Context(), repository.AdjustmentFilter{
		BrokerID: brokerID,
		Status:   c.Query("status"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// @Summary Download Totals Workbook
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param fortnight_id path int true "Fortnight ID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/export/totals.xlsx [get]
func (h *SettlementHandler) TotalsXLSX(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	file, err := h.exportService.ExportTotalsXLSX(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.serve(c, file)
}

// @Summary Download Bank File
// @Tags Exports
// @Produce text/csv
// @Param fortnight_id path int true "Fortnight ID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/export/bank.csv [get]
func (h *SettlementHandler) BankCSV(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	file, err := h.exportService.ExportBankCSV(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.serve(c, file)
}

func (h *SettlementHandler) serve(c *gin.Context, file *services.ExportFile) {
	f, err := h.storage.Open(file.Path)
	if err != nil {
		respondError(c, fmt.Errorf("open export %s: %w", file.Path, err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		respondError(c, fmt.Errorf("stat export %s: %w", file.Path, err))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), file.ContentType, f, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, file.Filename),
	})
}
