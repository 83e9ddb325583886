package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
)

const (
	questionText   = "aaaaaaaa-0000-0000-0000-000000000001"
	questionSingle = "aaaaaaaa-0000-0000-0000-000000000002"
	questionMulti  = "aaaaaaaa-0000-0000-0000-000000000003"
)

type answerFixture struct {
	service     *AnswerService
	assignments *fakeAssignments
	answers     *fakeAnswers
}

func newAnswerFixture(t *testing.T) (*answerFixture, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newTxProviderMock(t)
	surveys := newFakeSurveys(&models.Survey{ID: surveyOne, Title: "Bienestar"})
	questions := &fakeQuestions{}
	questions.add(models.Question{ID: questionText, SurveyID: surveyOne, Type: models.QuestionText})
	questions.add(models.Question{ID: questionSingle, SurveyID: surveyOne, Type: models.QuestionSingle, Options: []string{"Si", "No"}})
	questions.add(models.Question{ID: questionMulti, SurveyID: surveyOne, Type: models.QuestionMultiple, Options: []string{"Fruta", "Verdura", "Agua"}})
	assignments := newFakeAssignments()
	answers := &fakeAnswers{questions: questions}

	svc := NewAnswerService(db, answers, assignments, surveys, questions, nil, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return &answerFixture{service: svc, assignments: assignments, answers: answers}, mock
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}
}

func TestSubmitCompletesAssignmentOnLastQuestion(t *testing.T) {
	f, mock := newAnswerFixture(t)
	f.assignments.seed("s1", surveyOne, models.AssignmentPending)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	partial, err := f.service.Submit(ctx, studentClaims(), surveyOne, dto.SubmitAnswersRequest{Answers: []dto.AnswerInput{
		{QuestionID: questionText, Value: ptr("Duermo bien")},
		{QuestionID: questionSingle, Value: ptr("Si")},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, partial.Saved)
	assert.Equal(t, 2, partial.Answered)
	assert.Equal(t, 3, partial.Questions)
	assert.Equal(t, models.AssignmentPending, partial.Status)
	assert.Equal(t, models.AssignmentPending, f.assignments.get("s1", surveyOne).Status)

	mock.ExpectBegin()
	mock.ExpectCommit()
	final, err := f.service.SubmitOne(ctx, studentClaims(), surveyOne, questionMulti, dto.SingleAnswerRequest{Options: []string{"Agua", "Fruta", "Agua"}})
	require.NoError(t, err)
	assert.Equal(t, 3, final.Answered)
	assert.Equal(t, models.AssignmentCompleted, final.Status)

	completed := f.assignments.get("s1", surveyOne)
	assert.Equal(t, models.AssignmentCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.NotEqual(t, partial.SubmissionID, final.SubmissionID)

	var stored models.Answer
	for _, a := range f.answers.items {
		if a.QuestionID == questionMulti {
			stored = a
		}
	}
	assert.Equal(t, []string{"Agua", "Fruta"}, []string(stored.SelectedOptions))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitRejectsAnsweredQuestionAndStoresNothing(t *testing.T) {
	f, mock := newAnswerFixture(t)
	f.assignments.seed("s1", surveyOne, models.AssignmentPending)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := f.service.Submit(ctx, studentClaims(), surveyOne, dto.SubmitAnswersRequest{Answers: []dto.AnswerInput{
		{QuestionID: questionText, Value: ptr("Primera")},
	}})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = f.service.Submit(ctx, studentClaims(), surveyOne, dto.SubmitAnswersRequest{Answers: []dto.AnswerInput{
		{QuestionID: questionSingle, Value: ptr("No")},
		{QuestionID: questionText, Value: ptr("Segunda")},
	}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, questionText, appErr.Details["questionIds"])
	assert.Len(t, f.answers.items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitWithoutAssignmentIsNotFound(t *testing.T) {
	f, mock := newAnswerFixture(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := f.service.Submit(context.Background(), studentClaims(), surveyOne, dto.SubmitAnswersRequest{Answers: []dto.AnswerInput{
		{QuestionID: questionText, Value: ptr("Hola")},
	}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.answers.items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitValidatesOptions(t *testing.T) {
	f, mock := newAnswerFixture(t)
	f.assignments.seed("s1", surveyOne, models.AssignmentPending)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := f.service.Submit(context.Background(), studentClaims(), surveyOne, dto.SubmitAnswersRequest{Answers: []dto.AnswerInput{
		{QuestionID: questionSingle, Options: []string{"Si", "No"}},
		{QuestionID: questionMulti, Options: []string{"Pan"}},
		{QuestionID: questionText, Value: ptr("  ")},
	}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "answers[0].options")
	assert.Contains(t, appErr.Details, "answers[1].options")
	assert.Contains(t, appErr.Details, "answers[2].value")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitRejectsDuplicateQuestionInPayload(t *testing.T) {
	f, mock := newAnswerFixture(t)

	_, err := f.service.Submit(context.Background(), studentClaims(), surveyOne, dto.SubmitAnswersRequest{Answers: []dto.AnswerInput{
		{QuestionID: questionText, Value: ptr("uno")},
		{QuestionID: questionText, Value: ptr("dos")},
	}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "duplicates answers[0]", appErr.Details["answers[1].questionId"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitKeepsCompletedAssignment(t *testing.T) {
	f, mock := newAnswerFixture(t)
	f.assignments.seed("s1", surveyOne, models.AssignmentCompleted)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := f.service.Submit(context.Background(), studentClaims(), surveyOne, dto.SubmitAnswersRequest{Answers: []dto.AnswerInput{
		{QuestionID: questionText, Value: ptr("tarde")},
	}})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentCompleted, result.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRequiresClaims(t *testing.T) {
	f, _ := newAnswerFixture(t)
	_, err := f.service.History(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	items, err := f.service.History(context.Background(), studentClaims())
	require.NoError(t, err)
	assert.Empty(t, items)
}
