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

func TestScopeArgsFilter(t *testing.T) {
	inst := "inst-1"
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 6, 0)
	s := newScopeArgs(models.DashboardScope{InstitutionID: &inst, Window: models.TimeWindow{Start: &start, End: &end}})

	assert.Equal(t, " AND u.institution_id = $1 AND a.created_at >= $2 AND a.created_at < $3", s.filter("u.institution_id", "a.created_at"))
	assert.Equal(t, " AND g.institution_id = $1", s.filter("g.institution_id", ""))
	assert.Equal(t, " AND sa.created_at >= $2 AND sa.created_at < $3", s.filter("", "sa.created_at"))
	assert.Len(t, s.args, 3)

	global := newScopeArgs(models.DashboardScope{})
	assert.Empty(t, global.filter("u.institution_id", "a.created_at"))
}

func TestAdminCountsScoped(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	inst := "inst-1"
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM institutions i WHERE 1=1 AND i.id = $1) AS institutions")).
		WithArgs(inst).
		WillReturnRows(sqlmock.NewRows([]string{"institutions", "users", "students", "groups", "surveys", "questions", "assignments", "completed_assignments", "submissions"}).
			AddRow(1, 10, 8, 2, 3, 9, 20, 5, 7))

	stats, err := repo.AdminCounts(context.Background(), models.DashboardScope{InstitutionID: &inst})
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Students)
	assert.Equal(t, 5, stats.CompletedAssignments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM survey_assignments sa JOIN users u ON u.id = sa.user_id")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "survey_id", "institution_id", "questions", "answers"}).
			AddRow("u-1", "s-1", "inst-1", 2, 1))

	rows, err := repo.Progress(context.Background(), models.DashboardScope{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Questions)
}

func TestSubmissionTimesForUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("AND a.user_id = $1")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"submitted_at"}).AddRow(now))

	user := "u-1"
	times, err := repo.SubmissionTimes(context.Background(), models.DashboardScope{}, &user)
	require.NoError(t, err)
	assert.Len(t, times, 1)
}
