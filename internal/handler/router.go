package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/middleware"
	"github.com/saludbit/impactou-api/internal/models"
)

// Handlers bundles every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Institutions *InstitutionHandler
	Groups       *GroupHandler
	Surveys      *SurveyHandler
	Assignments  *AssignmentHandler
	Answers      *AnswerHandler
	Dashboard    *DashboardHandler
	Processes    *ProcessHandler
}

// RouteDeps are the cross-cutting collaborators of the API routes.
type RouteDeps struct {
	Tokens middleware.TokenValidator
	Audit  middleware.AuditWriter
	Logger *zap.Logger
}

// RegisterRoutes mounts the API under the given group.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, deps RouteDeps) {
	admins := middleware.RequireAdmins()

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/forgot-password", h.Auth.ForgotPassword)
	auth.POST("/reset-password", h.Auth.ResetPassword)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))

	secured.GET("/auth/me", h.Auth.Me)
	secured.PUT("/auth/change-password", h.Auth.ChangePassword)

	users := secured.Group("/users")
	users.GET("", admins, h.Users.List)
	users.GET("/institution/:institutionId", admins, h.Users.ListByInstitution)
	users.PUT("/:id/institution", admins, h.Users.UpdateInstitution)
	users.PUT("/:id/role", middleware.RequireRoles(models.RoleAdmin), h.Users.UpdateRole)
	users.DELETE("/:id", middleware.RBAC("SELF"), h.Users.Delete)

	institutions := secured.Group("/institutions")
	institutions.POST("", admins, h.Institutions.Create)
	institutions.GET("", h.Institutions.List)
	institutions.GET("/:id", h.Institutions.Get)
	institutions.PUT("/:id", admins, h.Institutions.Update)

	groups := secured.Group("/groups")
	groups.POST("", admins, h.Groups.Create)
	groups.GET("", h.Groups.List)
	groups.POST("/join", h.Groups.Join)
	groups.GET("/:id", h.Groups.Get)
	groups.PUT("/:id", admins, h.Groups.Update)
	groups.DELETE("/:id", admins, h.Groups.Delete)
	groups.POST("/:id/leave", h.Groups.Leave)
	groups.POST("/:id/assign-surveys", admins, h.Groups.AssignSurveys)
	groups.GET("/:id/assignments", admins, h.Groups.Assignments)
	groups.DELETE("/:id/members/:memberId", admins, h.Groups.RemoveMember)

	surveys := secured.Group("/surveys")
	surveys.POST("", admins, h.Surveys.Create)
	surveys.GET("", h.Surveys.ListAssigned)
	surveys.GET("/all", admins, h.Surveys.ListAll)
	surveys.GET("/:surveyId", h.Surveys.Get)
	surveys.PATCH("/:surveyId", admins, h.Surveys.Update)
	surveys.DELETE("/:surveyId", admins, h.Surveys.Delete)
	surveys.POST("/:surveyId/questions", admins, h.Surveys.AddQuestion)
	surveys.GET("/:surveyId/questions", h.Surveys.ListQuestions)
	surveys.GET("/:surveyId/questions/:questionId", h.Surveys.GetQuestion)
	surveys.PATCH("/:surveyId/questions/:questionId", admins, h.Surveys.UpdateQuestion)
	surveys.POST("/:surveyId/questions/:questionId/answers", h.Answers.SubmitOne)
	surveys.POST("/:surveyId/answers", h.Answers.Submit)
	surveys.GET("/:surveyId/results", admins, h.Surveys.Results)
	surveys.GET("/:surveyId/export", admins,
		middleware.Audit(deps.Audit, deps.Logger, models.AuditActionSurveyExport, "survey", "surveyId"),
		h.Surveys.Export)
	surveys.POST("/:surveyId/assign", admins, h.Assignments.AssignToInstitution)
	surveys.POST("/:surveyId/assign-to-group", admins, h.Assignments.AssignToGroup)

	secured.GET("/submissions/history", h.Answers.History)

	dashboard := secured.Group("/dashboard")
	dashboard.GET("/stats", h.Dashboard.Stats)
	dashboard.GET("/completion", admins, h.Dashboard.Completion)
	dashboard.GET("/institution-summary", admins, h.Dashboard.InstitutionSummary)
	dashboard.GET("/submissions-by-survey", admins, h.Dashboard.SubmissionsBySurvey)
	dashboard.GET("/weekly-progress", h.Dashboard.WeeklyProgress)
	dashboard.GET("/monthly-progress", h.Dashboard.MonthlyProgress)
	dashboard.GET("/student-summary", middleware.RequireRoles(models.RoleStudent), h.Dashboard.StudentSummary)
	dashboard.GET("/filter-dates", h.Dashboard.FilterDates)

	secured.GET("/reports/submissions-by-day", admins, h.Dashboard.SubmissionsByDay)

	processes := secured.Group("/processes")
	processes.POST("", admins, h.Processes.Create)
	processes.GET("", h.Processes.List)
	processes.PUT("/:id", admins, h.Processes.Update)
	processes.DELETE("/:id", admins, h.Processes.Delete)
}
