package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saludbit/impactou-api/internal/models"
)

var surveyRowColumns = []string{"id", "title", "description", "start_date", "end_date", "institution_id", "created_by", "created_at", "updated_at"}

func TestListAllWithGroupFlag(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	now := time.Now()
	cols := append(append([]string{}, surveyRowColumns...), "question_count", "is_assigned")
	mock.ExpectQuery(regexp.QuoteMeta("gs.group_id = $1) AS is_assigned")).
		WithArgs("g-1", "inst-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("s-1", "S1", "", now, now, "inst-1", "admin", now, now, 2, true))

	group, inst := "g-1", "inst-1"
	items, err := repo.ListAll(context.Background(), models.SurveyFilter{GroupID: &group, InstitutionID: &inst})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].IsAssigned)
	assert.True(t, *items[0].IsAssigned)
	assert.Equal(t, 2, items[0].QuestionCount)
}

func TestListAssignedPassesInactiveFlag(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	now := time.Now()
	cols := append(append([]string{}, surveyRowColumns...), "assignment_id", "status", "due_date", "completed_at", "question_count", "answer_count", "active")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM assigned WHERE active OR $2")).
		WithArgs("u-1", false).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("s-1", "S1", "", now, now, nil, nil, now, now, "a-1", "PENDING", now, nil, 2, 1, true))

	items, err := repo.ListAssigned(context.Background(), "u-1", false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.AssignmentPending, items[0].Status)
	assert.Equal(t, 1, items[0].AnswerCount)
}

func TestQuestionListBySurveyOrdersByCreation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQuestionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM questions WHERE survey_id = $1 ORDER BY created_at, id")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "survey_id", "text", "type", "options", "created_at"}).
			AddRow("q-1", "s-1", "Color?", "SINGLE", "{Rojo,Azul}", now))

	questions, err := repo.ListBySurvey(context.Background(), nil, "s-1")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, []string{"Rojo", "Azul"}, []string(questions[0].Options))
}
