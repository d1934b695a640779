package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lissa/commissions-api/internal/services"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type FortnightHandler struct {
	fortnightService *services.FortnightService
	discountService  *services.DiscountService
	jobService       *services.JobService
}

func NewFortnightHandler(fortnightService *services.FortnightService, discountService *services.DiscountService, jobService *services.JobService) *FortnightHandler {
	return &FortnightHandler{fortnightService: fortnightService, discountService: discountService, jobService: jobService}
}

type CreateFortnightRequest struct {
	PeriodStart   string `json:"period_start" binding:"required"`
	PeriodEnd     string `json:"period_end" binding:"required"`
	NotifyBrokers bool   `json:"notify_brokers"`
}

// @Summary Create Draft Fortnight
// @Description Opens the single draft fortnight, generating recurring advances and folding approved adjustments
// @Tags Fortnights
// @Accept json
// @Produce json
// @Param request body CreateFortnightRequest true "Period (YYYY-MM-DD)"
// @Success 201 {object} services.DraftResult
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights [post]
func (h *FortnightHandler) Create(c *gin.Context) {
	var req CreateFortnightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err1 := time.Parse(dateLayout, req.PeriodStart)
	end, err2 := time.Parse(dateLayout, req.PeriodEnd)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Las fechas deben tener formato YYYY-MM-DD"})
		return
	}

	result, err := h.fortnightService.CreateDraft(c.Request.Context(), actorFrom(c), services.CreateDraftInput{
		PeriodStart:   start,
		PeriodEnd:     end,
		NotifyBrokers: req.NotifyBrokers,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.jobService.TriggerRecalculate()
	c.JSON(http.StatusCreated, result)
}

// @Summary List Fortnights
// @Tags Fortnights
// @Produce json
// @Param year query int false "Filter by year"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /fortnights [get]
func (h *FortnightHandler) Index(c *gin.Context) {
	year, _ := strconv.Atoi(c.Query("year"))
	fortnights, err := h.fortnightService.List(c.Request.Context(), year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fortnights": fortnights})
}

// @Summary Get Fortnight
// @Tags Fortnights
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Success 200 {object} models.Fortnight
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights/{fortnight_id} [get]
func (h *FortnightHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	f, err := h.fortnightService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fortnight": f})
}

// @Summary Current Draft
// @Tags Fortnights
// @Produce json
// @Success 200 {object} models.Fortnight
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights/draft [get]
func (h *FortnightHandler) Draft(c *gin.Context) {
	f, err := h.fortnightService.GetDraft(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fortnight": f})
}

// @Summary Fortnight Totals
// @Description Recalculates a draft from the ledger or returns a paid fortnight's frozen totals
// @Tags Fortnights
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Success 200 {object} services.FortnightTotals
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/totals [get]
func (h *FortnightHandler) Totals(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	totals, err := h.fortnightService.Recalculate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// @Summary Live Draft Projection
// @Description Last projection published by the background recompute
// @Tags Fortnights
// @Produce json
// @Success 200 {object} services.FortnightTotals
// @Success 204
// @Security BearerAuth
// @Router /fortnights/live [get]
func (h *FortnightHandler) Live(c *gin.Context) {
	totals := h.fortnightService.LiveProjection()
	if totals == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, totals)
}

type SetNotifyRequest struct {
	NotifyBrokers bool `json:"notify_brokers"`
}

// @Summary Toggle Broker Notifications
// @Tags Fortnights
// @Accept json
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Param request body SetNotifyRequest true "Flag"
// @Success 200 {object} models.Fortnight
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/notify [patch]
func (h *FortnightHandler) SetNotify(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	var req SetNotifyRequest
	if !bind(c, "fortnight", &req) {
		return
	}
	f, err := h.fortnightService.SetNotify(c.Request.Context(), actorFrom(c), id, req.NotifyBrokers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fortnight": f})
}

// @Summary Close Fortnight
// @Description Applies staged discounts, freezes broker totals and marks the draft as paid in one transaction
// @Tags Fortnights
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Success 200 {object} services.FortnightTotals
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/close [post]
func (h *FortnightHandler) Close(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	totals, err := h.fortnightService.Close(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// @Summary Discard Draft
// @Tags Fortnights
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights/{fortnight_id} [delete]
func (h *FortnightHandler) Discard(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	if err := h.fortnightService.Discard(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.jobService.TriggerRecalculate()
	c.JSON(http.StatusOK, gin.H{"message": "Borrador descartado"})
}

type StageDiscountRequest struct {
	BrokerID  uint            `json:"broker_id"`
	AdvanceID uint            `json:"advance_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// @Summary Stage Discount
// @Description Creates or replaces the staged advance discount for a broker in the draft
// @Tags Discounts
// @Accept json
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Param request body StageDiscountRequest true "Discount"
// @Success 200 {object} models.TemporaryDiscount
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/discounts [put]
func (h *FortnightHandler) StageDiscount(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	var req StageDiscountRequest
	if !bind(c, "discount", &req) {
		return
	}
	discount, err := h.discountService.Stage(c.Request.Context(), actorFrom(c), services.StageDiscountInput{
		FortnightID: id,
		BrokerID:    req.BrokerID,
		AdvanceID:   req.AdvanceID,
		Amount:      req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discount": discount})
}

// @Summary Unstage Discount
// @Tags Discounts
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Param broker_id path int true "Broker ID"
// @Param advance_id path int true "Advance ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/discounts/{broker_id}/{advance_id} [delete]
func (h *FortnightHandler) UnstageDiscount(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	brokerID, ok := paramID(c, "broker_id")
	if !ok {
		return
	}
	advanceID, ok := paramID(c, "advance_id")
	if !ok {
		return
	}
	if err := h.discountService.Unstage(c.Request.Context(), actorFrom(c), id, brokerID, advanceID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Descuento retirado"})
}

// @Summary List Staged Discounts
// @Tags Discounts
// @Produce json
// @Param fortnight_id path int true "Fortnight ID"
// @Param broker_id query int false "Broker ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /fortnights/{fortnight_id}/discounts [get]
func (h *FortnightHandler) Discounts(c *gin.Context) {
	id, ok := paramID(c, "fortnight_id")
	if !ok {
		return
	}
	brokerID, ok := queryID(c, "broker_id")
	if !ok {
		return
	}
	discounts, err := h.discountService.ListStaged(c.Request.Context(), id, brokerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discounts": discounts})
}
