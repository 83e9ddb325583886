package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/saludbit/impactou-api/internal/models"
	"github.com/saludbit/impactou-api/internal/service"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
)

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type stubExport struct{ calls int }

func (s *stubExport) Export(_ context.Context, _ *models.JWTClaims, surveyID, format string) (*service.ExportFile, error) {
	s.calls++
	if format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid export format")
	}
	return &service.ExportFile{Filename: "habitos_responses.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("UserID,Nombre,Email\n")}, nil
}

type recordingAuditWriter struct{ actions []string }

func (r *recordingAuditWriter) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.actions = append(r.actions, log.Action)
	return nil
}

func newTestRouter(export *stubExport, audit *recordingAuditWriter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tokens := stubTokens{
		"admin":   {UserID: "a1", Role: models.RoleAdmin},
		"student": {UserID: "s1", Role: models.RoleStudent},
	}
	RegisterRoutes(r.Group("/api"), Handlers{
		Auth:         NewAuthHandler(nil),
		Users:        NewUserHandler(nil),
		Institutions: NewInstitutionHandler(nil),
		Groups:       NewGroupHandler(nil, nil),
		Surveys:      NewSurveyHandler(nil, export),
		Assignments:  NewAssignmentHandler(nil),
		Answers:      NewAnswerHandler(nil),
		Dashboard:    NewDashboardHandler(&fakeDashboardSrv{}),
		Processes:    NewProcessHandler(nil),
	}, RouteDeps{Tokens: tokens, Audit: audit})
	return r
}

func request(r *gin.Engine, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRoutesRequireAuthentication(t *testing.T) {
	r := newTestRouter(&stubExport{}, &recordingAuditWriter{})

	for _, target := range []string{"/api/auth/me", "/api/groups", "/api/surveys", "/api/dashboard/stats", "/api/submissions/history"} {
		assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, target, "").Code, target)
	}
}

func TestAdminRoutesRejectStudents(t *testing.T) {
	r := newTestRouter(&stubExport{}, &recordingAuditWriter{})

	cases := []struct{ method, target string }{
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/surveys"},
		{http.MethodGet, "/api/surveys/all"},
		{http.MethodPost, "/api/surveys/s-1/assign"},
		{http.MethodGet, "/api/surveys/s-1/export"},
		{http.MethodGet, "/api/dashboard/completion"},
		{http.MethodGet, "/api/reports/submissions-by-day"},
		{http.MethodPut, "/api/users/s2/role"},
		{http.MethodDelete, "/api/users/s2"},
	}
	for _, tc := range cases {
		assert.Equal(t, http.StatusForbidden, request(r, tc.method, tc.target, "student").Code, tc.target)
	}
}

func TestExportRouteStreamsFileAndAudits(t *testing.T) {
	export := &stubExport{}
	audit := &recordingAuditWriter{}
	r := newTestRouter(export, audit)

	rec := request(r, http.MethodGet, "/api/surveys/s-1/export?format=csv", "admin")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="habitos_responses.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "UserID,Nombre,Email\n", rec.Body.String())
	assert.Equal(t, []string{models.AuditActionSurveyExport}, audit.actions)

	rec = request(r, http.MethodGet, "/api/surveys/s-1/export?format=xlsx", "admin")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, audit.actions, 1)
}

func TestStudentSummaryIsStudentOnly(t *testing.T) {
	r := newTestRouter(&stubExport{}, &recordingAuditWriter{})
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodGet, "/api/dashboard/student-summary", "admin").Code)
}
