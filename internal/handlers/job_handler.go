package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lissa/commissions-api/internal/services"
)

type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobSvc *services.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobSvc,
	}
}

// Status returns the worker counters and the history of each scheduled task
// @Summary Background job status
// @Description Worker counters plus last run, duration and error of the live projection and aging scan
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} jobs.WorkerStats
// @Router /jobs/status [get]
func (h *JobHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobService.GetStatus())
}

// @Summary Refresh live projection
// @Description Queue an immediate recomputation of the open draft's projection
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 202 {object} map[string]string
// @Router /jobs/recalculate [post]
func (h *JobHandler) Recalculate(c *gin.Context) {
	h.jobService.TriggerRecalculate()
	c.JSON(http.StatusAccepted, gin.H{"message": "Recálculo en cola"})
}
