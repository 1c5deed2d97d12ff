package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-matching-api/internal/middleware"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/internal/services"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

// Pagination is the paging block of list responses
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func newPagination(query *repository.ListQuery, total int64) Pagination {
	return Pagination{
		Page:       query.Page,
		PerPage:    query.PerPage,
		Total:      total,
		TotalPages: query.TotalPages(total),
	}
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func respondFail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrUnauthorized),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrInactiveAccount):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidLeg),
		errors.Is(err, services.ErrInvalidPayment),
		errors.Is(err, services.ErrMissingReason),
		errors.Is(err, services.ErrInvalidPercentage),
		errors.Is(err, services.ErrNotEligible):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAlreadyDecided),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrPositionTaken),
		errors.Is(err, services.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotInDownline),
		errors.Is(err, services.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes err in the failure envelope. Internal errors are logged
// and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		respondFail(c, status, "Internal server error")
		return
	}
	respondFail(c, status, err.Error())
}

// paramID parses a uint path parameter, writing a 400 when it is malformed
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		respondFail(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// actor identifies the authenticated caller for audit entries
func actor(c *gin.Context) services.Actor {
	return services.Actor{
		ID:        middleware.GetUserID(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
