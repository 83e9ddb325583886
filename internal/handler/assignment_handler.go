package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
	"github.com/saludbit/impactou-api/pkg/response"
)

type assignmentService interface {
	AssignToInstitution(ctx context.Context, claims *models.JWTClaims, surveyID string, req dto.AssignInstitutionRequest) (*models.FanOutResult, error)
	AssignToGroup(ctx context.Context, claims *models.JWTClaims, surveyID string, req dto.AssignGroupRequest) (*models.FanOutResult, error)
}

// AssignmentHandler exposes survey fan-out endpoints.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(svc assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// AssignToInstitution godoc
// @Summary Assign a survey to every student of an institution
// @Description Defaults to the caller's institution. Students already assigned are skipped.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Param payload body dto.AssignInstitutionRequest false "Target institution"
// @Success 200 {object} response.Envelope
// @Router /surveys/{surveyId}/assign [post]
func (h *AssignmentHandler) AssignToInstitution(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.AssignInstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	result, err := h.service.AssignToInstitution(c.Request.Context(), claims, c.Param("surveyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AssignToGroup godoc
// @Summary Assign a survey to a group's active members
// @Description Also links the survey to the group so future members receive it.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Param payload body dto.AssignGroupRequest true "Target group"
// @Success 200 {object} response.Envelope
// @Router /surveys/{surveyId}/assign-to-group [post]
func (h *AssignmentHandler) AssignToGroup(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.AssignGroupRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	result, err := h.service.AssignToGroup(c.Request.Context(), claims, c.Param("surveyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
