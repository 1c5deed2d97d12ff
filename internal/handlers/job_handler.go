package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-matching-api/internal/services"
)

type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobSvc *services.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobSvc,
	}
}

// Status returns the current worker status
// @Summary Get background job status
// @Description Get statistics about background jobs (active, completed, failed, queue length, scheduled runs)
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /jobs/status [get]
func (h *JobHandler) Status(c *gin.Context) {
	respondOK(c, h.jobService.GetStatus())
}

// Trigger runs a scheduled job now
// @Summary Run a background job
// @Description Run matching_sweep, eligibility_notifier or stats_refresh immediately. With async=true the job is queued and the call returns 202.
// @Tags Jobs
// @Produce json
// @Param name path string true "Job name"
// @Param async query bool false "Queue the job instead of waiting for it"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Success 202 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /jobs/{name}/run [post]
func (h *JobHandler) Trigger(c *gin.Context) {
	name := c.Param("name")
	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if err := h.jobService.TriggerAsync(name); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, http.StatusAccepted, "Job "+name+" queued", nil)
		return
	}
	if err := h.jobService.Trigger(c.Request.Context(), name); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Job "+name+" completed", nil)
}
