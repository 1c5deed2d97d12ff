package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/internal/services"
)

type MemberHandler struct {
	memberService *services.MemberService
}

func NewMemberHandler(memberService *services.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

// @Summary Binary tree
// @Description Nested genealogy below the member
// @Tags Members
// @Produce json
// @Param user_id path int true "Member ID"
// @Param depth query int false "Levels to return (max 10)" default(3)
// @Success 200 {object} models.TreeNode
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /members/{user_id}/tree [get]
func (h *MemberHandler) Tree(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", strconv.Itoa(services.DefaultTreeDepth)))

	tree, err := h.memberService.Tree(c.Request.Context(), userID, depth)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, tree)
}

// @Summary Downline
// @Description Paginated list of every member below the member
// @Tags Members
// @Produce json
// @Param user_id path int true "Member ID"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search query string false "Search by name or email"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /members/{user_id}/downline [get]
func (h *MemberHandler) Downline(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search")
	query.Normalize()

	members, total, err := h.memberService.Downline(c.Request.Context(), userID, query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.UserResponse, 0, len(members))
	for i := range members {
		responses = append(responses, members[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       responses,
		"pagination": newPagination(query, total),
	})
}
