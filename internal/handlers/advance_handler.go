package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/internal/services"
	"github.com/shopspring/decimal"
)

type AdvanceHandler struct {
	advanceService    *services.AdvanceService
	recurrenceService *services.RecurrenceService
}

func NewAdvanceHandler(advanceService *services.AdvanceService, recurrenceService *services.RecurrenceService) *AdvanceHandler {
	return &AdvanceHandler{advanceService: advanceService, recurrenceService: recurrenceService}
}

// @Summary Create Advance
// @Tags Advances
// @Accept json
// @Produce json
// @Param request body services.CreateAdvanceInput true "Advance"
// @Success 201 {object} models.Advance
// @Security BearerAuth
// @Router /advances [post]
func (h *AdvanceHandler) Create(c *gin.Context) {
	var req services.CreateAdvanceInput
	if !bind(c, "advance", &req) {
		return
	}
	adv, err := h.advanceService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"advance": adv})
}

// @Summary List Advances
// @Description Advances with their remaining balance. Brokers only see their own.
// @Tags Advances
// @Produce json
// @Param broker_id query int false "Broker ID"
// @Param status query string false "Comma-separated statuses"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /advances [get]
func (h *AdvanceHandler) Index(c *gin.Context) {
	brokerID, ok := queryID(c, "broker_id")
	if !ok {
		return
	}
	filter := repository.AdvanceFilter{BrokerID: brokerID}
	if raw := c.Query("status"); raw != "" {
		filter.Statuses = strings.Split(raw, ",")
	}
	advances, err := h.advanceService.List(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advances": advances})
}

// @Summary Get Advance
// @Tags Advances
// @Produce json
// @Param advance_id path int true "Advance ID"
// @Success 200 {object} services.AdvanceBalance
// @Security BearerAuth
// @Router /advances/{advance_id} [get]
func (h *AdvanceHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "advance_id")
	if !ok {
		return
	}
	balance, err := h.advanceService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	actor := actorFrom(c)
	if !actor.IsMaster() && !actor.OwnsBroker(balance.BrokerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes acceso a este adelanto"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"advance": balance})
}

// @Summary Advance Payment History
// @Tags Advances
// @Produce json
// @Param advance_id path int true "Advance ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /advances/{advance_id}/history [get]
func (h *AdvanceHandler) History(c *gin.Context) {
	id, ok := paramID(c, "advance_id")
	if !ok {
		return
	}
	logs, err := h.advanceService.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": logs})
}

type ApplyPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	PaymentType    string          `json:"payment_type"`
	Reference      string          `json:"reference"`
	BankTransferID *uint           `json:"bank_transfer_id"`
	FortnightID    *uint           `json:"fortnight_id"`
}

// @Summary Apply Advance Payment
// @Description Records cash, a bank transfer or a fortnight discount against the advance balance.
// @Description A fortnight discount with fortnight_id is charged to that draft's broker gross.
// @Tags Advances
// @Accept json
// @Produce json
// @Param advance_id path int true "Advance ID"
// @Param request body ApplyPaymentRequest true "Payment"
// @Success 201 {object} models.AdvancePaymentLog
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /advances/{advance_id}/payments [post]
func (h *AdvanceHandler) ApplyPayment(c *gin.Context) {
	id, ok := paramID(c, "advance_id")
	if !ok {
		return
	}
	var req ApplyPaymentRequest
	if !bind(c, "payment", &req) {
		return
	}
	log, err := h.advanceService.ApplyPayment(c.Request.Context(), actorFrom(c), services.ApplyPaymentInput{
		AdvanceID:      id,
		Amount:         req.Amount,
		PaymentType:    req.PaymentType,
		Reference:      req.Reference,
		BankTransferID: req.BankTransferID,
		FortnightID:    req.FortnightID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": log})
}

// @Summary Edit Advance
// @Tags Advances
// @Accept json
// @Produce json
// @Param advance_id path int true "Advance ID"
// @Param request body services.EditAdvanceInput true "Changes"
// @Success 200 {object} models.Advance
// @Security BearerAuth
// @Router /advances/{advance_id} [patch]
func (h *AdvanceHandler) Edit(c *gin.Context) {
	id, ok := paramID(c, "advance_id")
	if !ok {
		return
	}
	var req services.EditAdvanceInput
	if !bind(c, "advance", &req) {
		return
	}
	adv, err := h.advanceService.Edit(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advance": adv})
}

type ReassignRequest struct {
	BrokerID uint `json:"broker_id"`
}

// @Summary Reassign Advance
// @Tags Advances
// @Accept json
// @Produce json
// @Param advance_id path int true "Advance ID"
// @Param request body ReassignRequest true "New broker"
// @Success 200 {object} models.Advance
// @Security BearerAuth
// @Router /advances/{advance_id}/reassign [post]
func (h *AdvanceHandler) Reassign(c *gin.Context) {
	id, ok := paramID(c, "advance_id")
	if !ok {
		return
	}
	var req ReassignRequest
	if !bind(c, "advance", &req) {
		return
	}
	adv, err := h.advanceService.Reassign(c.Request.Context(), actorFrom(c), id, req.BrokerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advance": adv})
}

// @Summary Delete Advance
// @Tags Advances
// @Produce json
// @Param advance_id path int true "Advance ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /advances/{advance_id} [delete]
func (h *AdvanceHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "advance_id")
	if !ok {
		return
	}
	if err := h.advanceService.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Adelanto eliminado"})
}

type CreateRecurrenceRequest struct {
	BrokerID      uint            `json:"broker_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	FortnightType string          `json:"fortnight_type"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
}

// @Summary Create Recurring Advance
// @Description Registers the schedule and generates the advances owed for the start month
// @Tags Recurrences
// @Accept json
// @Produce json
// @Param request body CreateRecurrenceRequest true "Schedule (dates YYYY-MM-DD)"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /recurrences [post]
func (h *AdvanceHandler) CreateRecurrence(c *gin.Context) {
	var req CreateRecurrenceRequest
	if !bind(c, "recurrence", &req) {
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date debe tener formato YYYY-MM-DD"})
		return
	}
	in := services.CreateRecurrenceInput{
		BrokerID:      req.BrokerID,
		Amount:        req.Amount,
		Reason:        req.Reason,
		FortnightType: req.FortnightType,
		StartDate:     start,
	}
	if req.EndDate != "" {
		end, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date debe tener formato YYYY-MM-DD"})
			return
		}
		in.EndDate = &end
	}

	rec, advances, err := h.recurrenceService.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recurrence": rec, "generated_advances": advances})
}

// @Summary List Recurring Advances
// @Tags Recurrences
// @Produce json
// @Param broker_id query int false "Broker ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /recurrences [get]
func (h *AdvanceHandler) Recurrences(c *gin.Context) {
	brokerID, ok := queryID(c, "broker_id")
	if !ok {
		return
	}
	actor := actorFrom(c)
	if !actor.IsMaster() {
		brokerID = actor.BrokerID
		if brokerID == nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "No tienes acceso a esta sección"})
			return
		}
	}
	recs, err := h.recurrenceService.List(c.Request.Context(), brokerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recurrences": recs})
}

// @Summary Get Recurring Advance
// @Tags Recurrences
// @Produce json
// @Param recurrence_id path int true "Recurrence ID"
// @Success 200 {object} models.AdvanceRecurrence
// @Security BearerAuth
// @Router /recurrences/{recurrence_id} [get]
func (h *AdvanceHandler) ShowRecurrence(c *gin.Context) {
	id, ok := paramID(c, "recurrence_id")
	if !ok {
		return
	}
	rec, err := h.recurrenceService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recurrence": rec})
}

type UpdateRecurrenceRequest struct {
	Amount   *decimal.Decimal `json:"amount"`
	Reason   *string          `json:"reason"`
	EndDate  *string          `json:"end_date"`
	IsActive *bool            `json:"is_active"`
}

// @Summary Update Recurring Advance
// @Description Changes apply to future generations only
// @Tags Recurrences
// @Accept json
// @Produce json
// @Param recurrence_id path int true "Recurrence ID"
// @Param request body UpdateRecurrenceRequest true "Changes"
// @Success 200 {object} models.AdvanceRecurrence
// @Security BearerAuth
// @Router /recurrences/{recurrence_id} [patch]
func (h *AdvanceHandler) UpdateRecurrence(c *gin.Context) {
	id, ok := paramID(c, "recurrence_id")
	if !ok {
		return
	}
	var req UpdateRecurrenceRequest
	if !bind(c, "recurrence", &req) {
		return
	}
	in := services.UpdateRecurrenceInput{Amount: req.Amount, Reason: req.Reason, IsActive: req.IsActive}
	if req.EndDate != nil && *req.EndDate != "" {
		end, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date debe tener formato YYYY-MM-DD"})
			return
		}
		in.EndDate = &end
	}
	rec, err := h.recurrenceService.Update(c.Request.Context(), actorFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recurrence": rec})
}
