package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
)

func newExportFixture() (*ExportService, *fakeAnswers) {
	users := newFakeUsers(
		&models.User{ID: "owner", Role: models.RoleInstitutionAdmin, InstitutionID: ptr(instA)},
		&models.User{ID: "other-admin", Role: models.RoleInstitutionAdmin, InstitutionID: ptr(instB)},
	)
	surveys := newFakeSurveys(&models.Survey{ID: surveyOne, Title: "Hábitos de Sueño 2026", InstitutionID: ptr(instA), CreatedBy: ptr("owner")})
	questions := &fakeQuestions{}
	questions.add(models.Question{ID: questionText, SurveyID: surveyOne, Type: models.QuestionText, Text: "Comentario"})
	questions.add(models.Question{ID: questionMulti, SurveyID: surveyOne, Type: models.QuestionMultiple, Text: "Bebidas", Options: []string{"Agua", "Jugo"}})
	answers := &fakeAnswers{questions: questions, exportRow: []models.ExportAnswer{
		{UserID: "s1", UserName: "Ana", UserEmail: "ana@example.com", QuestionID: questionText, Value: ptr("duermo, poco")},
		{UserID: "s1", UserName: "Ana", UserEmail: "ana@example.com", QuestionID: questionMulti, SelectedOptions: []string{"Agua", "Jugo"}},
		{UserID: "s2", UserName: "Luis", UserEmail: "luis@example.com", QuestionID: questionMulti, SelectedOptions: []string{"Agua"}},
		{UserID: "s2", UserName: "Luis", UserEmail: "luis@example.com", QuestionID: "removed-question", Value: ptr("x")},
	}}
	return NewExportService(surveys, questions, answers, users, zap.NewNop(), nil, nil), answers
}

func TestExportCSVPivotsAnswers(t *testing.T) {
	svc, _ := newExportFixture()

	file, err := svc.Export(context.Background(), &models.JWTClaims{UserID: "owner"}, surveyOne, "")
	require.NoError(t, err)
	assert.Equal(t, "h_bitos_de_sue_o_2026_responses.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "UserID,Nombre,Email,Comentario,Bebidas", lines[0])
	assert.Equal(t, `s1,Ana,ana@example.com,"duermo, poco",Agua; Jugo`, lines[1])
	assert.Equal(t, "s2,Luis,luis@example.com,,Agua", lines[2])
}

func TestExportPDF(t *testing.T) {
	svc, _ := newExportFixture()

	file, err := svc.Export(context.Background(), &models.JWTClaims{UserID: "owner"}, surveyOne, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, "_responses.pdf"))
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestExportWithoutAnswersKeepsHeader(t *testing.T) {
	svc, answers := newExportFixture()
	answers.exportRow = nil

	file, err := svc.Export(context.Background(), &models.JWTClaims{UserID: "owner"}, surveyOne, "csv")
	require.NoError(t, err)
	assert.Equal(t, "UserID,Nombre,Email,Comentario,Bebidas\n", string(file.Data))
}

func TestExportRejections(t *testing.T) {
	svc, _ := newExportFixture()
	ctx := context.Background()

	_, err := svc.Export(ctx, &models.JWTClaims{UserID: "owner"}, surveyOne, "xlsx")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "format")

	_, err = svc.Export(ctx, &models.JWTClaims{UserID: "other-admin"}, surveyOne, "csv")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Export(ctx, &models.JWTClaims{UserID: "owner"}, "missing", "csv")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "survey_responses.csv", exportFilename("¡¿?!", FormatCSV))
	assert.Equal(t, "salud_mental_responses.pdf", exportFilename("Salud Mental", FormatPDF))
}
