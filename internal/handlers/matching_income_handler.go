package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-matching-api/internal/middleware"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/internal/services"
)

type MatchingIncomeHandler struct {
	incomeService *services.IncomeService
	exportService *services.ExportService
}

func NewMatchingIncomeHandler(incomeService *services.IncomeService, exportService *services.ExportService) *MatchingIncomeHandler {
	return &MatchingIncomeHandler{
		incomeService: incomeService,
		exportService: exportService,
	}
}

// parseDate accepts a calendar date or an RFC3339 instant. A calendar end
// date covers the whole day.
func parseDate(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("%w: dates must be YYYY-MM-DD", services.ErrInvalidInput)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// incomeFilter reads the listing filters shared by the income endpoints
func (h *MatchingIncomeHandler) incomeFilter(c *gin.Context) (*repository.IncomeFilter, error) {
	filter := repository.NewIncomeFilter(h.incomeService.Now())
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PerPage, _ = strconv.Atoi(c.DefaultQuery("limit", c.DefaultQuery("per_page", "20")))
	filter.SortBy = c.Query("sortBy")
	filter.SortDir = c.Query("sortOrder")
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Normalize()

	switch t := models.IncomeType(c.Query("incomeType")); t {
	case "", models.IncomeTypePersonalSale, models.IncomeTypeMatchingBonus:
		filter.IncomeType = t
	default:
		return nil, fmt.Errorf("%w: unknown incomeType %q", services.ErrInvalidInput, t)
	}

	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseIncomeStatus(raw)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", services.ErrInvalidInput, raw)
		}
		filter.Status = status
	}

	if raw := c.Query("legType"); raw != "" {
		leg, ok := models.ParseLeg(raw)
		if !ok {
			return nil, fmt.Errorf("%w: unknown legType %q", services.ErrInvalidInput, raw)
		}
		filter.LegType = leg
	}

	var err error
	if filter.StartDate, err = parseDate(c.Query("startDate"), false); err != nil {
		return nil, err
	}
	if filter.EndDate, err = parseDate(c.Query("endDate"), true); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: endDate is before startDate", services.ErrInvalidInput)
	}

	filter.EligibleOnly = c.Query("eligibleOnly") == "true"
	return filter, nil
}

func (h *MatchingIncomeHandler) responses(records []models.IncomeRecord) []models.IncomeRecordResponse {
	now := h.incomeService.Now()
	out := make([]models.IncomeRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, records[i].ToResponse(now))
	}
	return out
}

// @Summary List member income
// @Description Income records of one beneficiary with a summary of the filtered set
// @Tags Matching Income
// @Produce json
// @Param user_id path int true "Member ID"
// @Param incomeType query string false "personal_sale or matching_bonus"
// @Param status query string false "pending, eligible, approved, rejected, credited or paid"
// @Param legType query string false "left, right or personal"
// @Param startDate query string false "Sale date from (YYYY-MM-DD)"
// @Param endDate query string false "Sale date to (YYYY-MM-DD)"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param sortBy query string false "Sort column" default(createdAt)
// @Param sortOrder query string false "asc or desc" default(desc)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matching-income/user/{user_id} [get]
func (h *MatchingIncomeHandler) UserIncome(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	filter, err := h.incomeFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	records, total, summary, err := h.incomeService.ListForUser(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       h.responses(records),
		"summary":    summary,
		"pagination": newPagination(&filter.ListQuery, total),
	})
}

// @Summary List team income
// @Description Income records earned by the member's downline
// @Tags Matching Income
// @Produce json
// @Param user_id path int true "Member ID"
// @Param memberId query int false "Narrow to one downline member"
// @Param incomeType query string false "personal_sale or matching_bonus"
// @Param status query string false "Income status"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matching-income/team/{user_id} [get]
func (h *MatchingIncomeHandler) TeamIncome(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	filter, err := h.incomeFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var memberID *uint
	if raw := c.Query("memberId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondFail(c, http.StatusBadRequest, "Invalid memberId")
			return
		}
		m := uint(id)
		memberID = &m
	}

	records, total, summary, err := h.incomeService.ListForTeam(c.Request.Context(), userID, memberID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       h.responses(records),
		"summary":    summary,
		"pagination": newPagination(&filter.ListQuery, total),
	})
}

// @Summary List all income
// @Description Income records across every member
// @Tags Matching Income Admin
// @Produce json
// @Param eligibleOnly query bool false "Only records awaiting approval"
// @Param search query string false "Search member name, email or record guid"
// @Param userId query int false "Filter by member"
// @Param status query string false "Income status"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matching-income/admin/all [get]
func (h *MatchingIncomeHandler) AdminAll(c *gin.Context) {
	filter, err := h.incomeFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondFail(c, http.StatusBadRequest, "Invalid userId")
			return
		}
		filter.UserIDs = []uint{uint(id)}
	}

	records, total, summary, err := h.incomeService.ListAll(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       h.responses(records),
		"summary":    summary,
		"pagination": newPagination(&filter.ListQuery, total),
	})
}

// @Summary Income statistics
// @Description Dashboard aggregate for admins
// @Tags Matching Income Admin
// @Produce json
// @Success 200 {object} models.IncomeStats
// @Security BearerAuth
// @Router /matching-income/admin/stats [get]
func (h *MatchingIncomeHandler) Stats(c *gin.Context) {
	stats, err := h.incomeService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

// @Summary Export income
// @Description Download the filtered income records as CSV or XLSX
// @Tags Matching Income Admin
// @Produce octet-stream
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file
// @Security BearerAuth
// @Router /matching-income/admin/export [get]
func (h *MatchingIncomeHandler) Export(c *gin.Context) {
	filter, err := h.incomeFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", "csv"))

	data, filename, err := h.exportService.ExportIncome(c.Request.Context(), filter, format)
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := "text/csv"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, contentType, data)
}

type ApproveRequest struct {
	AdminID *uint  `json:"adminId"`
	Notes   string `json:"notes"`
}

type BulkApproveRequest struct {
	AdminID   *uint  `json:"adminId"`
	RecordIDs []uint `json:"recordIds" binding:"required,min=1"`
	Notes     string `json:"notes"`
}

type RejectRequest struct {
	AdminID *uint  `json:"adminId"`
	Reason  string `json:"reason"`
}

type PaymentDetailsRequest struct {
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	PaidDate      *time.Time      `json:"paidDate"`
	TransactionID string          `json:"transactionId"`
	PaymentMode   string          `json:"paymentMode"`
}

type StatusRequest struct {
	Status         models.IncomeStatus    `json:"status" binding:"required,income_status"`
	PaymentDetails *PaymentDetailsRequest `json:"paymentDetails"`
}

// checkAdminID rejects a body adminId that names someone other than the caller
func checkAdminID(c *gin.Context, adminID *uint) bool {
	if adminID != nil && *adminID != middleware.GetUserID(c) {
		respondFail(c, http.StatusForbidden, "adminId does not match the authenticated admin")
		return false
	}
	return true
}

// @Summary Approve income
// @Description Approve an eligible income record
// @Tags Matching Income Admin
// @Accept json
// @Produce json
// @Param record_id path int true "Income record ID"
// @Param request body ApproveRequest false "Approval"
// @Success 200 {object} models.IncomeRecordResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matching-income/admin/approve/{record_id} [patch]
func (h *MatchingIncomeHandler) Approve(c *gin.Context) {
	id, ok := paramID(c, "record_id")
	if !ok {
		return
	}
	var req ApproveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}
	if !checkAdminID(c, req.AdminID) {
		return
	}

	record, err := h.incomeService.Approve(c.Request.Context(), id, actor(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Income approved", record.ToResponse(h.incomeService.Now()))
}

// @Summary Bulk approve income
// @Description Approve many records. Each record succeeds or fails on its own.
// @Tags Matching Income Admin
// @Accept json
// @Produce json
// @Param request body BulkApproveRequest true "Records"
// @Success 200 {object} services.BulkApproveResult
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matching-income/admin/bulk-approve [post]
func (h *MatchingIncomeHandler) BulkApprove(c *gin.Context) {
	var req BulkApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !checkAdminID(c, req.AdminID) {
		return
	}

	result, err := h.incomeService.BulkApprove(c.Request.Context(), req.RecordIDs, actor(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, fmt.Sprintf("%d approved, %d failed", result.Approved, result.Failed), result)
}

// @Summary Reject income
// @Description Reject an eligible income record with a reason
// @Tags Matching Income Admin
// @Accept json
// @Produce json
// @Param record_id path int true "Income record ID"
// @Param request body RejectRequest true "Rejection"
// @Success 200 {object} models.IncomeRecordResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matching-income/admin/reject/{record_id} [patch]
func (h *MatchingIncomeHandler) Reject(c *gin.Context) {
	id, ok := paramID(c, "record_id")
	if !ok {
		return
	}
	// A missing or blank reason is reported by the service
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !checkAdminID(c, req.AdminID) {
		return
	}

	record, err := h.incomeService.Reject(c.Request.Context(), id, actor(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Income rejected", record.ToResponse(h.incomeService.Now()))
}

// @Summary Update income status
// @Description Credit an approved record or pay a credited one
// @Tags Matching Income Admin
// @Accept json
// @Produce json
// @Param record_id path int true "Income record ID"
// @Param request body StatusRequest true "Target status"
// @Success 200 {object} models.IncomeRecordResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matching-income/admin/status/{record_id} [patch]
func (h *MatchingIncomeHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "record_id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var payment *services.PaymentInput
	if req.PaymentDetails != nil {
		payment = &services.PaymentInput{
			PaidAmount:    req.PaymentDetails.PaidAmount,
			PaidDate:      req.PaymentDetails.PaidDate,
			TransactionID: req.PaymentDetails.TransactionID,
			PaymentMode:   req.PaymentDetails.PaymentMode,
		}
	}

	record, err := h.incomeService.UpdateStatus(c.Request.Context(), id, actor(c), req.Status, payment)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Income "+string(record.Status), record.ToResponse(h.incomeService.Now()))
}
