package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lissa/commissions-api/internal/services"
)

type AdjustmentHandler struct {
	adjustmentService *services.AdjustmentService
}

func NewAdjustmentHandler(adjustmentService *services.AdjustmentService) *AdjustmentHandler {
	return &AdjustmentHandler{adjustmentService: adjustmentService}
}

// @Summary Submit Adjustment Report
// @Description A broker claims pool items; masters are notified
// @Tags Adjustments
// @Accept json
// @Produce json
// @Param request body services.SubmitAdjustmentInput true "Claim"
// @Success 201 {object} models.AdjustmentReport
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /adjustments [post]
func (h *AdjustmentHandler) Submit(c *gin.Context) {
	var req services.SubmitAdjustmentInput
	if !bind(c, "adjustment", &req) {
		return
	}
	actor := actorFrom(c)
	// brokers submit for themselves when they leave the broker out
	if req.BrokerID == 0 && actor.BrokerID != nil {
		req.BrokerID = *actor.BrokerID
	}
	report, err := h.adjustmentService.Submit(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"adjustment": report})
}

// @Summary List Adjustment Reports
// @Tags Adjustments
// @Produce json
// @Param status query string false "pending, approved, rejected or paid"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /adjustments [get]
func (h *AdjustmentHandler) Index(c *gin.Context) {
	reports, err := h.adjustmentService.List(c.Request.Context(), actorFrom(c), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjustments": reports})
}

// @Summary Get Adjustment Report
// @Tags Adjustments
// @Produce json
// @Param report_id path int true "Report ID"
// @Success 200 {object} models.AdjustmentReport
// @Security BearerAuth
// @Router /adjustments/{report_id} [get]
func (h *AdjustmentHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "report_id")
	if !ok {
		return
	}
	report, err := h.adjustmentService.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjustment": report})
}

// @Summary Claimable Items
// @Description The unclaimed pool brokers can report
// @Tags Adjustments
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /adjustments/pending_items [get]
func (h *AdjustmentHandler) PendingItems(c *gin.Context) {
	items, err := h.adjustmentService.PendingItems(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Approve Adjustment Report
// @Tags Adjustments
// @Accept json
// @Produce json
// @Param report_id path int true "Report ID"
// @Param request body services.ApproveAdjustmentInput true "Decision"
// @Success 200 {object} models.AdjustmentReport
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /adjustments/{report_id}/approve [post]
func (h *AdjustmentHandler) Approve(c *gin.Context) {
	id, ok := paramID(c, "report_id")
	if !ok {
		return
	}
	var req services.ApproveAdjustmentInput
	if !bind(c, "adjustment", &req) {
		return
	}
	report, err := h.adjustmentService.Approve(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjustment": report})
}

type RejectAdjustmentRequest struct {
	Reason string `json:"reason"`
}

// @Summary Reject Adjustment Report
// @Tags Adjustments
// @Accept json
// @Produce json
// @Param report_id path int true "Report ID"
// @Param request body RejectAdjustmentRequest true "Reason"
// @Success 200 {object} models.AdjustmentReport
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /adjustments/{report_id}/reject [post]
func (h *AdjustmentHandler) Reject(c *gin.Context) {
	id, ok := paramID(c, "report_id")
	if !ok {
		return
	}
	var req RejectAdjustmentRequest
	if !bind(c, "adjustment", &req) {
		return
	}
	report, err := h.adjustmentService.Reject(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjustment": report})
}

type MarkPaidRequest struct {
	ReportIDs []uint `json:"report_ids"`
}

// @Summary Pay Adjustment Reports
// @Description Pays approved reports with immediate timing as one batch and returns transfer instructions
// @Tags Adjustments
// @Accept json
// @Produce json
// @Param request body MarkPaidRequest true "Reports"
// @Success 200 {object} services.AdjustmentPayout
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /adjustments/pay [post]
func (h *AdjustmentHandler) MarkPaid(c *gin.Context) {
	var req MarkPaidRequest
	if !bind(c, "adjustment", &req) {
		return
	}
	payout, err := h.adjustmentService.MarkPaid(c.Request.Context(), actorFrom(c), req.ReportIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}
