package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	"github.com/saludbit/impactou-api/pkg/response"
)

type answerService interface {
	Submit(ctx context.Context, claims *models.JWTClaims, surveyID string, req dto.SubmitAnswersRequest) (*models.SubmissionResult, error)
	SubmitOne(ctx context.Context, claims *models.JWTClaims, surveyID, questionID string, req dto.SingleAnswerRequest) (*models.SubmissionResult, error)
	History(ctx context.Context, claims *models.JWTClaims) ([]models.SubmissionHistoryItem, error)
}

// AnswerHandler exposes answer intake endpoints.
type AnswerHandler struct {
	service answerService
}

// NewAnswerHandler constructs the handler.
func NewAnswerHandler(svc answerService) *AnswerHandler {
	return &AnswerHandler{service: svc}
}

// Submit godoc
// @Summary Submit answers for a survey
// @Description Stores every answer in one transaction and completes the assignment once every question is answered.
// @Tags Answers
// @Accept json
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Param payload body dto.SubmitAnswersRequest true "Answers"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /surveys/{surveyId}/answers [post]
func (h *AnswerHandler) Submit(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.SubmitAnswersRequest
	if !bindJSON(c, &req, "invalid answers payload") {
		return
	}
	result, err := h.service.Submit(c.Request.Context(), claims, c.Param("surveyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// SubmitOne godoc
// @Summary Answer a single question
// @Tags Answers
// @Accept json
// @Produce json
// @Param surveyId path string true "Survey ID"
// @Param questionId path string true "Question ID"
// @Param payload body dto.SingleAnswerRequest true "Answer"
// @Success 201 {object} response.Envelope
// @Router /surveys/{surveyId}/questions/{questionId}/answers [post]
func (h *AnswerHandler) SubmitOne(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.SingleAnswerRequest
	if !bindJSON(c, &req, "invalid answer payload") {
		return
	}
	result, err := h.service.SubmitOne(c.Request.Context(), claims, c.Param("surveyId"), c.Param("questionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// History godoc
// @Summary Submission history of the caller
// @Tags Answers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /submissions/history [get]
func (h *AnswerHandler) History(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, err := h.service.History(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
