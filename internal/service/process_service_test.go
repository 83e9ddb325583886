package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
)

type fakeProcesses struct {
	items        map[string]*models.Process
	nextCode     int64
	knownGroups  map[string]bool
	knownSurveys map[string]bool
}

func newFakeProcesses() *fakeProcesses {
	return &fakeProcesses{
		items:        map[string]*models.Process{},
		knownGroups:  map[string]bool{groupID: true},
		knownSurveys: map[string]bool{surveyOne: true},
	}
}

func (f *fakeProcesses) Create(ctx context.Context, exec sqlx.ExtContext, process *models.Process) error {
	f.nextCode++
	process.ID = fmt.Sprintf("proc-%d", f.nextCode)
	process.Code = f.nextCode
	copy := *process
	f.items[process.ID] = &copy
	return nil
}

func (f *fakeProcesses) Update(ctx context.Context, exec sqlx.ExtContext, process *models.Process) error {
	if _, ok := f.items[process.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *process
	f.items[process.ID] = &copy
	return nil
}

func (f *fakeProcesses) ReplaceGroups(ctx context.Context, exec sqlx.ExtContext, processID string, groupIDs []string) error {
	for _, id := range groupIDs {
		if !f.knownGroups[id] {
			return &pq.Error{Code: "23503"}
		}
	}
	f.items[processID].GroupIDs = groupIDs
	return nil
}

func (f *fakeProcesses) ReplaceSurveys(ctx context.Context, exec sqlx.ExtContext, processID string, surveyIDs []string) error {
	for _, id := range surveyIDs {
		if !f.knownSurveys[id] {
			return &pq.Error{Code: "23503"}
		}
	}
	f.items[processID].SurveyIDs = surveyIDs
	return nil
}

func (f *fakeProcesses) FindByID(ctx context.Context, id string) (*models.Process, error) {
	p, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *p
	return &copy, nil
}

func (f *fakeProcesses) List(ctx context.Context, institutionID *string) ([]models.Process, error) {
	var out []models.Process
	for _, p := range f.items {
		if institutionID == nil || sameInstitution(p.InstitutionID, institutionID) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProcesses) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

func newProcessFixture(t *testing.T) (*ProcessService, *fakeProcesses, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newTxProviderMock(t)
	users := newFakeUsers(
		&models.User{ID: "owner", Role: models.RoleInstitutionAdmin, InstitutionID: ptr(instA)},
		&models.User{ID: "other-admin", Role: models.RoleInstitutionAdmin, InstitutionID: ptr(instB)},
		&models.User{ID: "orphan-admin", Role: models.RoleInstitutionAdmin},
		&models.User{ID: "s1", Role: models.RoleStudent, InstitutionID: ptr(instA)},
	)
	processes := newFakeProcesses()
	return NewProcessService(db, processes, users, nil, zap.NewNop()), processes, mock
}

func TestCreateProcessAssignsSequentialCodes(t *testing.T) {
	svc, _, mock := newProcessFixture(t)
	ctx := context.Background()
	claims := &models.JWTClaims{UserID: "owner"}

	mock.ExpectBegin()
	mock.ExpectCommit()
	first, err := svc.Create(ctx, claims, dto.CreateProcessRequest{
		Name: "Tamizaje", Type: "valoración", GroupIDs: []string{groupID, groupID}, SurveyIDs: []string{surveyOne},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessValoracion, first.Type)
	assert.Equal(t, []string{groupID}, first.GroupIDs)
	assert.Equal(t, instA, strValue(first.InstitutionID))

	mock.ExpectBegin()
	mock.ExpectCommit()
	second, err := svc.Create(ctx, claims, dto.CreateProcessRequest{Name: "Seguimiento", Type: "PROCEDIMIENTO"})
	require.NoError(t, err)
	assert.Equal(t, first.Code+1, second.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProcessRejections(t *testing.T) {
	svc, _, mock := newProcessFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &models.JWTClaims{UserID: "owner"}, dto.CreateProcessRequest{Name: "X", Type: "otro"})
	assert.Contains(t, appErrors.FromError(err).Details, "type")

	_, err = svc.Create(ctx, &models.JWTClaims{UserID: "s1"}, dto.CreateProcessRequest{Name: "X", Type: "PROCEDIMIENTO"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(ctx, &models.JWTClaims{UserID: "orphan-admin"}, dto.CreateProcessRequest{Name: "X", Type: "PROCEDIMIENTO"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Create(ctx, &models.JWTClaims{UserID: "owner"}, dto.CreateProcessRequest{
		Name: "X", Type: "PROCEDIMIENTO", SurveyIDs: []string{"99999999-9999-9999-9999-999999999999"},
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "surveyIds")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProcessKeepsLinksWhenOmitted(t *testing.T) {
	svc, processes, mock := newProcessFixture(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	created, err := svc.Create(ctx, &models.JWTClaims{UserID: "owner"}, dto.CreateProcessRequest{Name: "Tamizaje", Type: "VALORACION", SurveyIDs: []string{surveyOne}})
	require.NoError(t, err)

	_, err = svc.Update(ctx, &models.JWTClaims{UserID: "other-admin", Role: models.RoleInstitutionAdmin}, created.ID, dto.UpdateProcessRequest{Name: ptr("x")})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	mock.ExpectBegin()
	mock.ExpectCommit()
	updated, err := svc.Update(ctx, &models.JWTClaims{UserID: "owner"}, created.ID, dto.UpdateProcessRequest{Name: ptr(" Tamizaje II "), GroupIDs: []string{groupID}})
	require.NoError(t, err)
	assert.Equal(t, "Tamizaje II", updated.Name)
	stored := processes.items[created.ID]
	assert.Equal(t, []string{surveyOne}, stored.SurveyIDs)
	assert.Equal(t, []string{groupID}, stored.GroupIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAndDeleteProcesses(t *testing.T) {
	svc, processes, _ := newProcessFixture(t)
	ctx := context.Background()
	processes.items["p1"] = &models.Process{ID: "p1", InstitutionID: ptr(instA), CreatedBy: "owner"}
	processes.items["p2"] = &models.Process{ID: "p2", InstitutionID: ptr(instB), CreatedBy: "other-admin"}

	items, err := svc.List(ctx, &models.JWTClaims{UserID: "s1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ID)

	none, err := svc.List(ctx, &models.JWTClaims{UserID: "orphan-admin"})
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, svc.Delete(ctx, &models.JWTClaims{UserID: "root", Role: models.RoleAdmin}, "p2"))
	err = svc.Delete(ctx, &models.JWTClaims{UserID: "owner"}, "p2")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
