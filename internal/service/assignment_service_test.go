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
	instA     = "11111111-1111-1111-1111-111111111111"
	instB     = "22222222-2222-2222-2222-222222222222"
	groupID   = "33333333-3333-3333-3333-333333333333"
	surveyOne = "44444444-4444-4444-4444-444444444444"
	surveyB   = "55555555-5555-5555-5555-555555555555"
)

type assignmentFixture struct {
	service     *AssignmentService
	users       *fakeUsers
	surveys     *fakeSurveys
	groups      *fakeGroups
	assignments *fakeAssignments
}

func newAssignmentFixture(t *testing.T) (*assignmentFixture, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newTxProviderMock(t)
	users := newFakeUsers(
		&models.User{ID: "admin", Role: models.RoleAdmin},
		&models.User{ID: "inst-admin", Role: models.RoleInstitutionAdmin, InstitutionID: ptr(instA)},
		&models.User{ID: "s1", Role: models.RoleStudent, InstitutionID: ptr(instA)},
		&models.User{ID: "s2", Role: models.RoleStudent, InstitutionID: ptr(instA)},
		&models.User{ID: "s3", Role: models.RoleStudent, InstitutionID: ptr(instB)},
	)
	surveys := newFakeSurveys(&models.Survey{
		ID:            surveyOne,
		Title:         "Habitos",
		EndDate:       time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		InstitutionID: ptr(instA),
	}, &models.Survey{
		ID:            surveyB,
		Title:         "Estres",
		EndDate:       time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		InstitutionID: ptr(instB),
	})
	groups := newFakeGroups(&models.Group{ID: groupID, CreatedBy: "inst-admin", InstitutionID: ptr(instA), InvitationCode: "PRO-ABC123"})
	institutions := newFakeInstitutions(&models.Institution{ID: instA, Name: "A"}, &models.Institution{ID: instB, Name: "B"})
	assignments := newFakeAssignments()

	svc := NewAssignmentService(db, assignments, surveys, users, groups, institutions, nil, nil, nil, zap.NewNop())
	return &assignmentFixture{service: svc, users: users, surveys: surveys, groups: groups, assignments: assignments}, mock
}

func TestFanOutIsIdempotent(t *testing.T) {
	f, _ := newAssignmentFixture(t)
	survey, _ := f.surveys.FindByID(context.Background(), nil, surveyOne)

	first, err := f.service.FanOut(context.Background(), nil, survey, []string{"s1", "s2", "s1"}, models.SourceInstitution)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Targeted)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 0, first.AlreadyAssigned)

	second, err := f.service.FanOut(context.Background(), nil, survey, []string{"s1", "s2"}, models.SourceInstitution)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.AlreadyAssigned)
	assert.Equal(t, "all users already assigned", second.Message)
	assert.Equal(t, 2, f.assignments.count(surveyOne))

	assigned := f.assignments.get("s1", surveyOne)
	require.NotNil(t, assigned)
	assert.Equal(t, models.AssignmentPending, assigned.Status)
	assert.True(t, assigned.DueDate.Equal(survey.EndDate))
}

func TestFanOutWithoutTargets(t *testing.T) {
	f, _ := newAssignmentFixture(t)
	survey, _ := f.surveys.FindByID(context.Background(), nil, surveyOne)

	result, err := f.service.FanOut(context.Background(), nil, survey, nil, models.SourceGroup)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Targeted)
	assert.Equal(t, "no users to assign", result.Message)
}

func TestAssignToInstitutionUsesCallerInstitution(t *testing.T) {
	f, mock := newAssignmentFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := f.service.AssignToInstitution(context.Background(), &models.JWTClaims{UserID: "inst-admin", Role: models.RoleInstitutionAdmin}, surveyOne, dto.AssignInstitutionRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Nil(t, f.assignments.get("s3", surveyOne))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignToInstitutionRejectsForeignInstitution(t *testing.T) {
	f, _ := newAssignmentFixture(t)

	_, err := f.service.AssignToInstitution(context.Background(), &models.JWTClaims{UserID: "inst-admin", Role: models.RoleInstitutionAdmin}, surveyOne, dto.AssignInstitutionRequest{InstitutionID: ptr(instB)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestFanOutRejectsSurveyOfAnotherInstitution(t *testing.T) {
	f, mock := newAssignmentFixture(t)
	ctx := context.Background()
	claims := &models.JWTClaims{UserID: "inst-admin", Role: models.RoleInstitutionAdmin}
	require.NoError(t, f.groups.AddMember(ctx, nil, groupID, "s1", time.Now()))

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := f.service.AssignToInstitution(ctx, claims, surveyB, dto.AssignInstitutionRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = f.service.AssignSurveysToGroup(ctx, claims, groupID, dto.AssignSurveysRequest{SurveyIDs: []string{surveyOne, surveyB}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Equal(t, surveyB, appErr.Details["surveyIds"])

	assert.Zero(t, f.assignments.count(surveyB))
	assert.Zero(t, f.assignments.count(surveyOne))
	linked, _ := f.groups.LinkedSurveyIDs(ctx, nil, groupID)
	assert.Empty(t, linked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignToInstitutionUnknownSurveyRollsBack(t *testing.T) {
	f, mock := newAssignmentFixture(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := f.service.AssignToInstitution(context.Background(), &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, "missing", dto.AssignInstitutionRequest{InstitutionID: ptr(instA)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignToGroupSkipsInactiveMembers(t *testing.T) {
	f, mock := newAssignmentFixture(t)
	ctx := context.Background()
	require.NoError(t, f.groups.AddMember(ctx, nil, groupID, "s1", time.Now()))
	require.NoError(t, f.groups.AddMember(ctx, nil, groupID, "s2", time.Now()))
	_, err := f.groups.DeactivateMember(ctx, nil, groupID, "s2", time.Now())
	require.NoError(t, err)
	f.assignments.seed("s1", surveyOne, models.AssignmentCompleted)

	mock.ExpectBegin()
	mock.ExpectCommit()
	result, err := f.service.AssignToGroup(ctx, &models.JWTClaims{UserID: "inst-admin", Role: models.RoleInstitutionAdmin}, surveyOne, dto.AssignGroupRequest{GroupID: groupID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Targeted)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.AlreadyAssigned)
	assert.Nil(t, f.assignments.get("s2", surveyOne))
	assert.Equal(t, models.AssignmentCompleted, f.assignments.get("s1", surveyOne).Status)

	linked, _ := f.groups.LinkedSurveyIDs(ctx, nil, groupID)
	assert.Equal(t, []string{surveyOne}, linked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignToGroupRequiresManager(t *testing.T) {
	f, _ := newAssignmentFixture(t)

	_, err := f.service.AssignToGroup(context.Background(), &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, surveyOne, dto.AssignGroupRequest{GroupID: groupID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignSurveysValidatesPayload(t *testing.T) {
	f, _ := newAssignmentFixture(t)

	_, err := f.service.AssignSurveysToGroup(context.Background(), &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, groupID, dto.AssignSurveysRequest{SurveyIDs: []string{"not-a-uuid"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
