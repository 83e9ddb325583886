package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saludbit/impactou-api/internal/models"
	"github.com/saludbit/impactou-api/pkg/response"
)

type dashboardService interface {
	FilterDates(filter string) (models.TimeWindow, error)
	AdminStats(ctx context.Context, claims *models.JWTClaims, filter string) (*models.AdminStats, bool, error)
	StudentStats(ctx context.Context, claims *models.JWTClaims, filter string) (*models.StudentStats, bool, error)
	Completion(ctx context.Context, claims *models.JWTClaims, filter string) (*models.CompletionReport, bool, error)
	InstitutionSummary(ctx context.Context, claims *models.JWTClaims, filter string) ([]models.InstitutionSummary, bool, error)
	SubmissionsBySurvey(ctx context.Context, claims *models.JWTClaims, filter string) ([]models.SurveySubmissionCount, bool, error)
	WeeklyProgress(ctx context.Context, claims *models.JWTClaims, filter string) ([]models.WeekProgress, bool, error)
	MonthlyProgress(ctx context.Context, claims *models.JWTClaims, year, month int) (*models.MonthlyProgress, bool, error)
	StudentSummary(ctx context.Context, claims *models.JWTClaims, filter string) ([]models.StudentSurveySummary, bool, error)
	SubmissionsByDay(ctx context.Context, claims *models.JWTClaims, filter string) (*models.SubmissionsByDayReport, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Stats godoc
// @Summary Dashboard counters
// @Description Administrators get platform or institution counters; students get their own.
// @Tags Dashboard
// @Produce json
// @Param filter query string false "day, week, month, semester, semester1 or semester2"
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	filter := c.Query("filter")
	if claims.Role.IsAdmin() {
		stats, hit, err := h.service.AdminStats(c.Request.Context(), claims, filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		respondCached(c, stats, hit)
		return
	}
	stats, hit, err := h.service.StudentStats(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, stats, hit)
}

// Completion godoc
// @Summary Completion rate per survey
// @Tags Dashboard
// @Produce json
// @Param filter query string false "Time window"
// @Success 200 {object} response.Envelope
// @Router /dashboard/completion [get]
func (h *DashboardHandler) Completion(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	report, hit, err := h.service.Completion(c.Request.Context(), claims, c.Query("filter"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, report, hit)
}

// InstitutionSummary godoc
// @Summary Completion per institution
// @Tags Dashboard
// @Produce json
// @Param filter query string false "Time window"
// @Success 200 {object} response.Envelope
// @Router /dashboard/institution-summary [get]
func (h *DashboardHandler) InstitutionSummary(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, hit, err := h.service.InstitutionSummary(c.Request.Context(), claims, c.Query("filter"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, items, hit)
}

// SubmissionsBySurvey godoc
// @Summary Surveys with the most submissions
// @Tags Dashboard
// @Produce json
// @Param filter query string false "Time window"
// @Success 200 {object} response.Envelope
// @Router /dashboard/submissions-by-survey [get]
func (h *DashboardHandler) SubmissionsBySurvey(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, hit, err := h.service.SubmissionsBySurvey(c.Request.Context(), claims, c.Query("filter"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, items, hit)
}

// WeeklyProgress godoc
// @Summary Submissions per ISO week
// @Tags Dashboard
// @Produce json
// @Param filter query string false "Time window"
// @Success 200 {object} response.Envelope
// @Router /dashboard/weekly-progress [get]
func (h *DashboardHandler) WeeklyProgress(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	weeks, hit, err := h.service.WeeklyProgress(c.Request.Context(), claims, c.Query("filter"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, weeks, hit)
}

// MonthlyProgress godoc
// @Summary Monthly calendar of submissions
// @Tags Dashboard
// @Produce json
// @Param year query int false "Year, defaults to the current one"
// @Param month query int false "Month 1-12, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /dashboard/monthly-progress [get]
func (h *DashboardHandler) MonthlyProgress(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	progress, hit, err := h.service.MonthlyProgress(c.Request.Context(), claims, queryInt(c, "year", 0), queryInt(c, "month", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, progress, hit)
}

// StudentSummary godoc
// @Summary The caller's most answered surveys
// @Tags Dashboard
// @Produce json
// @Param filter query string false "Time window"
// @Success 200 {object} response.Envelope
// @Router /dashboard/student-summary [get]
func (h *DashboardHandler) StudentSummary(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, hit, err := h.service.StudentSummary(c.Request.Context(), claims, c.Query("filter"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, items, hit)
}

// FilterDates godoc
// @Summary Resolve a time window filter
// @Tags Dashboard
// @Produce json
// @Param filter query string false "Time window"
// @Success 200 {object} response.Envelope
// @Router /dashboard/filter-dates [get]
func (h *DashboardHandler) FilterDates(c *gin.Context) {
	window, err := h.service.FilterDates(c.Query("filter"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// SubmissionsByDay godoc
// @Summary Submissions per day with the latest submissions
// @Tags Reports
// @Produce json
// @Param filter query string false "Time window"
// @Success 200 {object} response.Envelope
// @Router /reports/submissions-by-day [get]
func (h *DashboardHandler) SubmissionsByDay(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	report, hit, err := h.service.SubmissionsByDay(c.Request.Context(), claims, c.Query("filter"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, report, hit)
}
