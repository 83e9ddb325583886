package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
)

type memoryCache struct {
	items  map[string][]byte
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
		}
	}
	return nil
}

type fakeDashboardRepo struct {
	counts     models.AdminStats
	progress   []models.UserSurveyProgress
	headers    []models.SurveyHeader
	times      []time.Time
	calls      int
	lastScope  models.DashboardScope
	lastUserID *string
	err        error
}

func (f *fakeDashboardRepo) AdminCounts(ctx context.Context, scope models.DashboardScope) (*models.AdminStats, error) {
	f.calls++
	f.lastScope = scope
	if f.err != nil {
		return nil, f.err
	}
	stats := f.counts
	return &stats, nil
}

func (f *fakeDashboardRepo) Progress(ctx context.Context, scope models.DashboardScope) ([]models.UserSurveyProgress, error) {
	f.lastScope = scope
	return f.progress, f.err
}

func (f *fakeDashboardRepo) SurveyHeaders(ctx context.Context, ids []string) ([]models.SurveyHeader, error) {
	return f.headers, nil
}

func (f *fakeDashboardRepo) InstitutionHeaders(ctx context.Context, institutionID *string) ([]models.InstitutionHeader, error) {
	return []models.InstitutionHeader{{ID: instA, Name: "A", Students: 2}}, nil
}

func (f *fakeDashboardRepo) SubmissionsBySurvey(ctx context.Context, scope models.DashboardScope, limit int) ([]models.SurveySubmissionCount, error) {
	return nil, nil
}

func (f *fakeDashboardRepo) SubmissionTimes(ctx context.Context, scope models.DashboardScope, userID *string) ([]time.Time, error) {
	f.lastScope = scope
	f.lastUserID = userID
	return f.times, nil
}

func (f *fakeDashboardRepo) RecentSubmissions(ctx context.Context, scope models.DashboardScope, limit int) ([]models.RecentSubmission, error) {
	return nil, nil
}

func (f *fakeDashboardRepo) StudentCounts(ctx context.Context, userID string, window models.TimeWindow) (*models.StudentStats, error) {
	return &models.StudentStats{AssignedSurveys: 2, Pending: 1, Completed: 1}, nil
}

func (f *fakeDashboardRepo) StudentSurveySummary(ctx context.Context, userID string, window models.TimeWindow, limit int) ([]models.StudentSurveySummary, error) {
	return nil, nil
}

func newDashboardFixture(cache *memoryCache) (*DashboardService, *fakeDashboardRepo) {
	repo := &fakeDashboardRepo{
		counts: models.AdminStats{Users: 3, Surveys: 1},
		progress: []models.UserSurveyProgress{
			{UserID: "s1", SurveyID: surveyOne, InstitutionID: ptr(instA), Questions: 3, Answers: 3},
			{UserID: "s2", SurveyID: surveyOne, InstitutionID: ptr(instA), Questions: 3, Answers: 2},
		},
		headers: []models.SurveyHeader{{ID: surveyOne, Title: "Habitos", Questions: 3}},
	}
	users := newFakeUsers(
		&models.User{ID: "admin", Role: models.RoleAdmin},
		&models.User{ID: "inst-admin", Role: models.RoleInstitutionAdmin, InstitutionID: ptr(instA)},
		&models.User{ID: "orphan-admin", Role: models.RoleInstitutionAdmin},
		&models.User{ID: "s1", Role: models.RoleStudent, InstitutionID: ptr(instA)},
	)
	var cacheSvc *CacheService
	if cache != nil {
		cacheSvc = NewCacheService(cache, nil, time.Minute, zap.NewNop(), true)
	}
	svc := NewDashboardService(repo, users, cacheSvc, zap.NewNop(), DashboardServiceConfig{})
	svc.now = func() time.Time { return time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestAdminStatsCachesPerScope(t *testing.T) {
	cache := newMemoryCache()
	svc, repo := newDashboardFixture(cache)
	ctx := context.Background()
	claims := &models.JWTClaims{UserID: "inst-admin"}

	stats, hit, err := svc.AdminStats(ctx, claims, "month")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, stats.Completions)
	assert.Equal(t, instA, strValue(repo.lastScope.InstitutionID))
	require.NotNil(t, repo.lastScope.Window.Start)
	assert.Contains(t, cache.items, "dash:stats:inst:"+instA+":month")

	again, hit, err := svc.AdminStats(ctx, claims, "month")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, stats, again)
	assert.Equal(t, 1, repo.calls)

	svc.cache.InvalidateDashboards(ctx)
	_, hit, err = svc.AdminStats(ctx, claims, "month")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.calls)
}

func TestAdminStatsDegradesWhenCacheFails(t *testing.T) {
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	svc, repo := newDashboardFixture(cache)

	stats, hit, err := svc.AdminStats(context.Background(), &models.JWTClaims{UserID: "admin"}, "")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, stats.Users)
	assert.Nil(t, repo.lastScope.InstitutionID)
}

func TestDashboardAccessRules(t *testing.T) {
	svc, _ := newDashboardFixture(nil)
	ctx := context.Background()

	_, _, err := svc.AdminStats(ctx, &models.JWTClaims{UserID: "s1"}, "")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Completion(ctx, &models.JWTClaims{UserID: "orphan-admin"}, "")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Completion(ctx, &models.JWTClaims{UserID: "admin"}, "decade")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCompletionReport(t *testing.T) {
	svc, _ := newDashboardFixture(nil)

	report, hit, err := svc.Completion(context.Background(), &models.JWTClaims{UserID: "admin"}, "all")
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, report.Surveys, 1)
	assert.Equal(t, 2, report.Assigned)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 50.0, report.CompletionRate)

	summary, _, err := svc.InstitutionSummary(context.Background(), &models.JWTClaims{UserID: "admin"}, "all")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].Completed)
}

func TestWeeklyProgressScopesStudents(t *testing.T) {
	svc, repo := newDashboardFixture(nil)
	repo.times = []time.Time{time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}

	weeks, _, err := svc.WeeklyProgress(context.Background(), &models.JWTClaims{UserID: "s1"}, "")
	require.NoError(t, err)
	require.Len(t, weeks, 1)
	assert.Equal(t, "s1", strValue(repo.lastUserID))
}

func TestMonthlyProgressDefaultsToCurrentMonth(t *testing.T) {
	svc, repo := newDashboardFixture(nil)
	repo.times = []time.Time{time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	progress, _, err := svc.MonthlyProgress(context.Background(), &models.JWTClaims{UserID: "admin"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2026, progress.Year)
	assert.Equal(t, 3, progress.Month)
	assert.Equal(t, 1, progress.Total)
	assert.True(t, repo.lastScope.Window.Start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	_, _, err = svc.MonthlyProgress(context.Background(), &models.JWTClaims{UserID: "admin"}, 2026, 13)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentStats(t *testing.T) {
	svc, _ := newDashboardFixture(nil)
	stats, _, err := svc.StudentStats(context.Background(), &models.JWTClaims{UserID: "s1"}, "week")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.AssignedSurveys)
}
