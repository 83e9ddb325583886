package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	"github.com/saludbit/impactou-api/internal/service"
	"github.com/saludbit/impactou-api/pkg/response"
)

type surveyService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateSurveyRequest) (*models.SurveyDetail, error)
	ListAssigned(ctx context.Context, claims *models.JWTClaims, includeInactive bool) ([]models.AssignedSurvey, error)
	ListAll(ctx context.Context, claims *models.JWTClaims, groupID *string) ([]models.SurveyListItem, error)
	Get(ctx context.Context, claims *models.JWTClaims, surveyID string) (*models.SurveyDetail, error)
	Update(ctx context.Context, claims *models.JWTClaims, surveyID string, req dto.UpdateSurveyRequest) (*models.Survey, error)
	Delete(ctx context.Context, claims *models.JWTClaims, surveyID string) error
	AddQuestion(ctx context.Context, claims *models.JWTClaims, surveyID string, req dto.CreateQuestionRequest) (*models.Question, error)
	ListQuestions(ctx context.Context, claims *models.JWTClaims, surveyID string) ([]models.Question, error)
	GetQuestion(ctx context.Context, claims *models.JWTClaims, surveyID, questionID string) (*models.Question, error)
	UpdateQuestion(ctx context.Context, claims *models.JWTClaims, surveyID, questionID string, req dto.UpdateQuestionRequest) (*models.Question, error)
	Results(ctx context.Context, claims *models.JWTClaims, surveyID string) (*models.SurveyResults, error)
}

type exportService interface {
	Export(ctx context.Context, claims *models.JWTClaims, surveyID, format string) (*service.ExportFile, error)
}

// SurveyHandler exposes survey, question, results and export endpoints.
type SurveyHandler struct {
	service surveyService
	export  exportService
}

// NewSurveyHandler constructs the handler.
func NewSurveyHandler(svc surveyService, export exportService) *SurveyHandler {
	return &SurveyHandler{service: svc, export: export}
}

// Create godoc
// @Summary Create survey
// @Description Creates a survey in the caller's institution and assigns it to the creator.
// @Tags Surveys
// @Accept json
// @Produce json
// @Param payload body dto.CreateSurveyRequest true "Survey payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /surveys [post]
func (h *SurveyHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateSurveyRequest
	if !bindJSON(c, &req, "invalid survey payload") {
		return
	}
	survey, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, survey)
}

// ListAssigned godoc
// @Summary Surveys assigned to the caller
// @Tags Surveys
// @Produce json
// @Param includeInactive query bool false "Include surveys reachable only through left groups"
// @Success 200 {object} response.Envelope
// @Router /surveys [get]
func (h *SurveyHandler) ListAssigned(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, err := h.service.ListAssigned(c.Request.Context(), claims, queryBool(c, "includeInactive"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListAll godoc
// @Summary Surveys in the caller's scope
// @Tags Surveys
// @Produce json
// @Param groupId query string false "Flag surveys linked to this group"
// @Success 200 {object} response.Envelope
// @Router /surveys/all [get]
func (h *SurveyHandler) ListAll(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var groupID *string
	if id := strings.TrimSpace(c.Query("groupId")); id != "" {
		groupID = &id
	}
	items, err := h.service.ListAll(c.Request.Context(), claims, groupID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get survey with questions
// @Tags Surveys
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /surveys/{surveyId} [get]
func (h *SurveyHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	survey, err := h.service.Get(c.Request.Context(), claims, c.Param("surveyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, survey, nil)
}

// Update godoc
// @Summary Update survey
// @Description Moving endDate moves every assignment due date with it.
// @Tags Surveys
// @Accept json
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Param payload body dto.UpdateSurveyRequest true "Survey payload"
// @Success 200 {object} response.Envelope
// @Router /surveys/{surveyId} [patch]
func (h *SurveyHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateSurveyRequest
	if !bindJSON(c, &req, "invalid survey payload") {
		return
	}
	survey, err := h.service.Update(c.Request.Context(), claims, c.Param("surveyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, survey, nil)
}

// Delete godoc
// @Summary Delete survey with its questions, assignments and answers
// @Tags Surveys
// @Param surveyId path string true "Survey ID"
// @Success 204
// @Router /surveys/{surveyId} [delete]
func (h *SurveyHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("surveyId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddQuestion godoc
// @Summary Add a question
// @Tags Questions
// @Accept json
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Param payload body dto.CreateQuestionRequest true "Question payload"
// @Success 201 {object} response.Envelope
// @Router /surveys/{surveyId}/questions [post]
func (h *SurveyHandler) AddQuestion(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateQuestionRequest
	if !bindJSON(c, &req, "invalid question payload") {
		return
	}
	question, err := h.service.AddQuestion(c.Request.Context(), claims, c.Param("surveyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// ListQuestions godoc
// @Summary List questions
// @Tags Questions
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Success 200 {object} response.Envelope
// @Router /surveys/{surveyId}/questions [get]
func (h *SurveyHandler) ListQuestions(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, err := h.service.ListQuestions(c.Request.Context(), claims, c.Param("surveyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// GetQuestion godoc
// @Summary Get question
// @Tags Questions
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Param questionId path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Router /surveys/{surveyId}/questions/{questionId} [get]
func (h *SurveyHandler) GetQuestion(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	question, err := h.service.GetQuestion(c.Request.Context(), claims, c.Param("surveyId"), c.Param("questionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// UpdateQuestion godoc
// @Summary Update question
// @Tags Questions
// @Accept json
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Param questionId path string true "Question ID"
// @Param payload body dto.UpdateQuestionRequest true "Question payload"
// @Success 200 {object} response.Envelope
// @Router /surveys/{surveyId}/questions/{questionId} [patch]
func (h *SurveyHandler) UpdateQuestion(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateQuestionRequest
	if !bindJSON(c, &req, "invalid question payload") {
		return
	}
	question, err := h.service.UpdateQuestion(c.Request.Context(), claims, c.Param("surveyId"), c.Param("questionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Results godoc
// @Summary Aggregated answers per question
// @Tags Surveys
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Success 200 {object} response.Envelope
// @Router /surveys/{surveyId}/results [get]
func (h *SurveyHandler) Results(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	results, err := h.service.Results(c.Request.Context(), claims, c.Param("surveyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Export godoc
// @Summary Download survey answers
// @Tags Surveys
// @Produce text/csv
// @Produce application/pdf
// @Param surveyId path string true "Survey ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /surveys/{surveyId}/export [get]
func (h *SurveyHandler) Export(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	file, err := h.export.Export(c.Request.Context(), claims, c.Param("surveyId"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Data)
}
