package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-matching-api/internal/services"
)

type LegBalanceHandler struct {
	legBalanceService *services.LegBalanceService
}

func NewLegBalanceHandler(legBalanceService *services.LegBalanceService) *LegBalanceHandler {
	return &LegBalanceHandler{legBalanceService: legBalanceService}
}

// @Summary Get leg balance
// @Description Totals and available balances of both legs
// @Tags Leg Balance
// @Produce json
// @Param user_id path int true "Member ID"
// @Success 200 {object} models.LegBalanceResponse
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /leg-balance/{user_id} [get]
func (h *LegBalanceHandler) Show(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	balance, err := h.legBalanceService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, balance.ToResponse())
}

// @Summary Get leg balance summary
// @Description Balance with leg member counts and earned income
// @Tags Leg Balance
// @Produce json
// @Param user_id path int true "Member ID"
// @Success 200 {object} services.LegBalanceSummary
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /leg-balance/{user_id}/summary [get]
func (h *LegBalanceHandler) Summary(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	summary, err := h.legBalanceService.GetSummary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

// @Summary Get unmatched balance
// @Description Unmatched residual per leg and the newest sales backing it
// @Tags Leg Balance
// @Produce json
// @Param user_id path int true "Member ID"
// @Param leg query string false "left, right or both" default(both)
// @Success 200 {object} services.UnmatchedView
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /leg-balance/{user_id}/unmatched [get]
func (h *LegBalanceHandler) Unmatched(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	view, err := h.legBalanceService.GetUnmatched(c.Request.Context(), userID, c.DefaultQuery("leg", "both"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}
