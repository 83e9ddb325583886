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

var groupRowColumns = []string{"id", "name", "description", "tutor", "invitation_code", "created_by", "institution_id", "created_at", "updated_at"}

func TestFindByCodeNormalisesInput(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM groups g WHERE g.invitation_code = $1")).
		WithArgs("PRO-AB12CD").
		WillReturnRows(sqlmock.NewRows(groupRowColumns).AddRow("g-1", "Grupo A", "", "", "PRO-AB12CD", "admin-1", nil, now, now))

	group, err := repo.FindByCode(context.Background(), nil, "  pro-ab12cd ")
	require.NoError(t, err)
	assert.Equal(t, "g-1", group.ID)
	assert.Nil(t, group.InstitutionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListGroupsForMember(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	now := time.Now()
	cols := append(append([]string{}, groupRowColumns...), "member_count", "survey_count", "active")
	mock.ExpectQuery(regexp.QuoteMeta("FROM groups g JOIN group_members gm ON gm.group_id = g.id")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("g-1", "A", "", "", "PRO-AAAAAA", "admin", nil, now, now, 3, 1, true).
			AddRow("g-2", "B", "", "", "PRO-BBBBBB", "admin", nil, now, now, 2, 0, false))

	member := "u-1"
	groups, err := repo.List(context.Background(), models.GroupFilter{MemberID: &member})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.NotNil(t, groups[1].Active)
	assert.False(t, *groups[1].Active)
	assert.Equal(t, 3, groups[0].MemberCount)
}

func TestDeactivateMemberReportsChange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members SET deactivated_at = $3 WHERE group_id = $1 AND user_id = $2 AND deactivated_at IS NULL")).
		WithArgs("g-1", "u-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.DeactivateMember(context.Background(), nil, "g-1", "u-1", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestLinkSurveysIgnoresDuplicates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (group_id, survey_id) DO NOTHING")).
		WithArgs("g-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.LinkSurveys(context.Background(), nil, "g-1", []string{"s-1", "s-2"}))
	require.NoError(t, repo.LinkSurveys(context.Background(), nil, "g-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveMemberIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE group_id = $1 AND deactivated_at IS NULL")).
		WithArgs("g-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u-1").AddRow("u-2"))

	ids, err := repo.ActiveMemberIDs(context.Background(), nil, "g-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1", "u-2"}, ids)
}

func TestCreateGroupReportsTakenCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (invitation_code) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.Create(context.Background(), nil, &models.Group{Name: "Grupo A", InvitationCode: "PRO-AB12CD", CreatedBy: "admin-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}
