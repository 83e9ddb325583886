package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	"github.com/saludbit/impactou-api/pkg/response"
)

type groupService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateGroupRequest) (*models.GroupDetail, error)
	List(ctx context.Context, claims *models.JWTClaims) ([]models.GroupSummary, error)
	Get(ctx context.Context, claims *models.JWTClaims, groupID string) (*models.GroupDetail, error)
	Update(ctx context.Context, claims *models.JWTClaims, groupID string, req dto.UpdateGroupRequest) (*models.Group, error)
	Delete(ctx context.Context, claims *models.JWTClaims, groupID string) error
	Join(ctx context.Context, claims *models.JWTClaims, req dto.JoinGroupRequest) (*models.JoinGroupResult, error)
	Leave(ctx context.Context, claims *models.JWTClaims, groupID string) error
	RemoveMember(ctx context.Context, claims *models.JWTClaims, groupID, memberID string) error
	Assignments(ctx context.Context, claims *models.JWTClaims, groupID string) ([]models.GroupAssignmentSummary, error)
}

type groupAssigner interface {
	AssignSurveysToGroup(ctx context.Context, claims *models.JWTClaims, groupID string, req dto.AssignSurveysRequest) ([]models.FanOutResult, error)
}

// GroupHandler exposes group and membership endpoints.
type GroupHandler struct {
	service  groupService
	assigner groupAssigner
}

// NewGroupHandler constructs the handler.
func NewGroupHandler(svc groupService, assigner groupAssigner) *GroupHandler {
	return &GroupHandler{service: svc, assigner: assigner}
}

// Create godoc
// @Summary Create group
// @Description Creates a group with a fresh PRO- invitation code and optional linked surveys.
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body dto.CreateGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateGroupRequest
	if !bindJSON(c, &req, "invalid group payload") {
		return
	}
	group, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// List godoc
// @Summary List groups
// @Description Students see their memberships; administrators see the groups in scope.
// @Tags Groups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /groups/{id} [get]
func (h *GroupHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	group, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Update godoc
// @Summary Update group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.UpdateGroupRequest true "Group payload"
// @Success 200 {object} response.Envelope
// @Router /groups/{id} [put]
func (h *GroupHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateGroupRequest
	if !bindJSON(c, &req, "invalid group payload") {
		return
	}
	group, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Delete godoc
// @Summary Delete group
// @Tags Groups
// @Param id path string true "Group ID"
// @Success 204
// @Router /groups/{id} [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Join godoc
// @Summary Join a group by invitation code
// @Description Joins or reactivates a membership and assigns the group's linked surveys.
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body dto.JoinGroupRequest true "Invitation payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/join [post]
func (h *GroupHandler) Join(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.JoinGroupRequest
	if !bindJSON(c, &req, "invalid invitation payload") {
		return
	}
	result, err := h.service.Join(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Leave godoc
// @Summary Leave a group
// @Tags Groups
// @Param id path string true "Group ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/leave [post]
func (h *GroupHandler) Leave(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Leave(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveMember godoc
// @Summary Remove a member from a group
// @Tags Groups
// @Param id path string true "Group ID"
// @Param memberId path string true "User ID"
// @Success 204
// @Router /groups/{id}/members/{memberId} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.RemoveMember(c.Request.Context(), claims, c.Param("id"), c.Param("memberId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignSurveys godoc
// @Summary Link surveys to a group and assign them to its active members
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.AssignSurveysRequest true "Survey ids"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/assign-surveys [post]
func (h *GroupHandler) AssignSurveys(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.AssignSurveysRequest
	if !bindJSON(c, &req, "invalid survey list") {
		return
	}
	results, err := h.assigner.AssignSurveysToGroup(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Assignments godoc
// @Summary Assignment progress of a group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/assignments [get]
func (h *GroupHandler) Assignments(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, err := h.service.Assignments(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
