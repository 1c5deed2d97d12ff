package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/internal/services"
)

type SaleHandler struct {
	saleService   *services.SaleService
	incomeService *services.IncomeService
}

func NewSaleHandler(saleService *services.SaleService, incomeService *services.IncomeService) *SaleHandler {
	return &SaleHandler{
		saleService:   saleService,
		incomeService: incomeService,
	}
}

type CreateSaleRequest struct {
	BuyerID    uint            `json:"buyerId" binding:"required"`
	SellerID   uint            `json:"sellerId" binding:"required"`
	PlotID     string          `json:"plotId" binding:"required"`
	SaleAmount decimal.Decimal `json:"saleAmount"`
	SaleDate   *time.Time      `json:"saleDate"`
}

// @Summary Record a sale
// @Description Ingest a confirmed plot purchase. Leg sales are matched immediately.
// @Tags Sales
// @Accept json
// @Produce json
// @Param request body CreateSaleRequest true "Sale, flat or nested under \"sale\""
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /sales [post]
func (h *SaleHandler) Create(c *gin.Context) {
	var req CreateSaleRequest
	if err := BindNestedOrFlat(c, "sale", &req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		respondBindError(c, err)
		return
	}

	input := services.RecordSaleInput{
		BuyerID:    req.BuyerID,
		SellerID:   req.SellerID,
		PlotID:     req.PlotID,
		SaleAmount: req.SaleAmount,
	}
	if req.SaleDate != nil {
		input.SaleDate = *req.SaleDate
	}

	result, err := h.saleService.RecordSale(c.Request.Context(), actor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{"sale": result.Sale.ToResponse()}
	now := h.incomeService.Now()
	if result.Income != nil {
		data["income"] = result.Income.ToResponse(now)
	}
	if match := result.Match; match != nil {
		data["matching"] = gin.H{
			"matchedAmount": match.Matched.StringFixed(2),
			"leftBefore":    match.LeftBefore.StringFixed(2),
			"rightBefore":   match.RightBefore.StringFixed(2),
			"carryForward":  match.CarryForward,
		}
	}
	respondMessage(c, http.StatusCreated, "Sale recorded", data)
}

// @Summary List sales
// @Description Paginated sales, newest first
// @Tags Sales
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param seller_id query int false "Filter by seller"
// @Param buyer_id query int false "Filter by buyer"
// @Param leg_type query string false "left, right or personal"
// @Param search query string false "Search by plot id"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /sales [get]
func (h *SaleHandler) Index(c *gin.Context) {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search")
	query.SortDir = c.Query("sort_order")
	query.Normalize()
	for _, key := range []string{"seller_id", "buyer_id", "leg_type"} {
		query.Filters[key] = c.Query(key)
	}
	h.list(c, query)
}

// @Summary List member sales
// @Description Sales where the member is buyer or seller
// @Tags Sales
// @Produce json
// @Param user_id path int true "Member ID"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /users/{user_id}/sales [get]
func (h *SaleHandler) UserSales(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Normalize()
	query.Filters["user_id"] = strconv.FormatUint(uint64(userID), 10)
	h.list(c, query)
}

func (h *SaleHandler) list(c *gin.Context, query *repository.ListQuery) {
	sales, total, err := h.saleService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.SaleResponse, 0, len(sales))
	for i := range sales {
		responses = append(responses, sales[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       responses,
		"pagination": newPagination(query, total),
	})
}
