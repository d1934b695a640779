package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lissa/commissions-api/internal/services"
)

type BrokerHandler struct {
	brokerService *services.BrokerService
}

func NewBrokerHandler(brokerService *services.BrokerService) *BrokerHandler {
	return &BrokerHandler{brokerService: brokerService}
}

// @Summary List Brokers
// @Tags Brokers
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /brokers [get]
func (h *BrokerHandler) Index(c *gin.Context) {
	brokers, err := h.brokerService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brokers": brokers})
}

// @Summary Get Broker
// @Tags Brokers
// @Produce json
// @Param broker_id path int true "Broker ID"
// @Success 200 {object} models.Broker
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /brokers/{broker_id} [get]
func (h *BrokerHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "broker_id")
	if !ok {
		return
	}
	broker, err := h.brokerService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"broker": broker})
}

// @Summary Create Broker
// @Tags Brokers
// @Accept json
// @Produce json
// @Param request body services.BrokerInput true "Broker data"
// @Success 201 {object} models.Broker
// @Security BearerAuth
// @Router /brokers [post]
func (h *BrokerHandler) Create(c *gin.Context) {
	var req services.BrokerInput
	if !bind(c, "broker", &req) {
		return
	}
	broker, err := h.brokerService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"broker": broker})
}

// @Summary Update Broker
// @Tags Brokers
// @Accept json
// @Produce json
// @Param broker_id path int true "Broker ID"
// @Param request body services.BrokerInput true "Broker data"
// @Success 200 {object} models.Broker
// @Security BearerAuth
// @Router /brokers/{broker_id} [put]
func (h *BrokerHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "broker_id")
	if !ok {
		return
	}
	var req services.BrokerInput
	if !bind(c, "broker", &req) {
		return
	}
	broker, err := h.brokerService.Update(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"broker": broker})
}

// @Summary List Insurers
// @Tags Brokers
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /insurers [get]
func (h *BrokerHandler) Insurers(c *gin.Context) {
	insurers, err := h.brokerService.ListInsurers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insurers": insurers})
}

type CreateInsurerRequest struct {
	Name string `json:"name"`
}

// @Summary Create Insurer
// @Tags Brokers
// @Accept json
// @Produce json
// @Param request body CreateInsurerRequest true "Insurer"
// @Success 201 {object} models.Insurer
// @Security BearerAuth
// @Router /insurers [post]
func (h *BrokerHandler) CreateInsurer(c *gin.Context) {
	var req CreateInsurerRequest
	if !bind(c, "insurer", &req) {
		return
	}
	insurer, err := h.brokerService.CreateInsurer(c.Request.Context(), actorFrom(c), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"insurer": insurer})
}
