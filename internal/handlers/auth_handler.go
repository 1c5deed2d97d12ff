package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-matching-api/internal/middleware"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/services"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// @Summary Health Check
// @Description Checks if the API is running
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "fintera-matching-api",
		"version": "1.0.0",
	})
}

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email     string     `json:"email" binding:"required,email"`
	Password  string     `json:"password" binding:"required,min=8"`
	FullName  string     `json:"full_name" binding:"required"`
	Phone     string     `json:"phone"`
	SponsorID *uint      `json:"sponsor_id"`
	Leg       models.Leg `json:"leg" binding:"omitempty,leg"`
}

// @Summary Login
// @Description Authenticates a member and returns an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login Credentials"
// @Success 200 {object} services.LoginResult
// @Failure 401 {object} map[string]interface{}
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, result)
}

// @Summary Register
// @Description Signs up a member under a sponsor. The member is placed at the outermost free slot of the requested leg.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Member"
// @Success 201 {object} services.LoginResult
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.SponsorID != nil && req.Leg == "" {
		respondFail(c, http.StatusBadRequest, "leg is required when a sponsor is given")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.FullName,
		Phone:     req.Phone,
		SponsorID: req.SponsorID,
		Leg:       req.Leg,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondMessage(c, http.StatusCreated, "Member registered", result)
}

// @Summary Current user
// @Description Returns the authenticated member
// @Tags Auth
// @Produce json
// @Success 200 {object} models.UserResponse
// @Failure 401 {object} map[string]interface{}
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user.ToResponse())
}
