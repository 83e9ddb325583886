package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
)

const (
	topSurveysLimit     = 10
	studentSummaryLimit = 5
	recentLimit         = 100
	weeksLimit          = 12
)

type dashboardRepository interface {
	AdminCounts(ctx context.Context, scope models.DashboardScope) (*models.AdminStats, error)
	Progress(ctx context.Context, scope models.DashboardScope) ([]models.UserSurveyProgress, error)
	SurveyHeaders(ctx context.Context, ids []string) ([]models.SurveyHeader, error)
	InstitutionHeaders(ctx context.Context, institutionID *string) ([]models.InstitutionHeader, error)
	SubmissionsBySurvey(ctx context.Context, scope models.DashboardScope, limit int) ([]models.SurveySubmissionCount, error)
	SubmissionTimes(ctx context.Context, scope models.DashboardScope, userID *string) ([]time.Time, error)
	RecentSubmissions(ctx context.Context, scope models.DashboardScope, limit int) ([]models.RecentSubmission, error)
	StudentCounts(ctx context.Context, userID string, window models.TimeWindow) (*models.StudentStats, error)
	StudentSurveySummary(ctx context.Context, userID string, window models.TimeWindow, limit int) ([]models.StudentSurveySummary, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
	Location *time.Location
}

// DashboardService computes aggregation views and caches them.
type DashboardService struct {
	repo   dashboardRepository
	users  actorReader
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo dashboardRepository, users actorReader, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, users: users, cache: cache, logger: logger, now: time.Now, cfg: cfg}
}

// dashboardView is the caller and window every aggregation is computed for.
type dashboardView struct {
	actor  *models.User
	scope  models.DashboardScope
	userID *string
	key    string
}

func (s *DashboardService) resolve(ctx context.Context, claims *models.JWTClaims, filter string) (*dashboardView, error) {
	window, err := ResolveWindow(filter, s.now(), s.cfg.Location)
	if err != nil {
		return nil, err
	}
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	view := &dashboardView{actor: actor, scope: models.DashboardScope{Window: window}}
	switch actor.Role {
	case models.RoleAdmin:
		view.key = "all"
	case models.RoleInstitutionAdmin:
		if actor.InstitutionID == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no institution assigned")
		}
		view.scope.InstitutionID = actor.InstitutionID
		view.key = "inst:" + *actor.InstitutionID
	default:
		view.userID = &actor.ID
		view.key = "user:" + actor.ID
	}
	view.key += ":" + window.Filter
	return view, nil
}

func (v *dashboardView) isAdmin() bool {
	return v.actor.Role.IsAdmin()
}

// FilterDates returns the bounds a filter resolves to.
func (s *DashboardService) FilterDates(filter string) (models.TimeWindow, error) {
	return ResolveWindow(filter, s.now(), s.cfg.Location)
}

// AdminStats returns entity totals and activity for the caller's scope.
func (s *DashboardService) AdminStats(ctx context.Context, claims *models.JWTClaims, filter string) (*models.AdminStats, bool, error) {
	view, err := s.resolve(ctx, claims, filter)
	if err != nil {
		return nil, false, err
	}
	if !view.isAdmin() {
		return nil, false, appErrors.ErrForbidden
	}
	return cachedView(ctx, s, dashboardKey("stats", view.key), func() (*models.AdminStats, error) {
		stats, err := s.repo.AdminCounts(ctx, view.scope)
		if err != nil {
			return nil, s.storeError(err, "failed to load dashboard counts")
		}
		rows, err := s.repo.Progress(ctx, view.scope)
		if err != nil {
			return nil, s.storeError(err, "failed to load completion progress")
		}
		stats.Completions = totalCompletions(rows)
		return stats, nil
	})
}

// StudentStats returns the caller's own counters.
func (s *DashboardService) StudentStats(ctx context.Context, claims *models.JWTClaims, filter string) (*models.StudentStats, bool, error) {
	view, err := s.resolve(ctx, claims, filter)
	if err != nil {
		return nil, false, err
	}
	key := dashboardKey("student-stats", "user", view.actor.ID, view.scope.Window.Filter)
	return cachedView(ctx, s, key, func() (*models.StudentStats, error) {
		stats, err := s.repo.StudentCounts(ctx, view.actor.ID, view.scope.Window)
		if err != nil {
			return nil, s.storeError(err, "failed to load student counts")
		}
		return stats, nil
	})
}

// Completion reports per survey how many assignments reached completion.
func (s *DashboardService) Completion(ctx context.Context, claims *models.JWTClaims, filter string) (*models.CompletionReport, bool, error) {
	view, err := s.resolve(ctx, claims, filter)
	if err != nil {
		return nil, false, err
	}
	if !view.isAdmin() {
		return nil, false, appErrors.ErrForbidden
	}
	return cachedView(ctx, s, dashboardKey("completion", view.key), func() (*models.CompletionReport, error) {
		rows, err := s.repo.Progress(ctx, view.scope)
		if err != nil {
			return nil, s.storeError(err, "failed to load completion progress")
		}
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.SurveyID)
		}
		headers, err := s.repo.SurveyHeaders(ctx, uniqueIDs(ids))
		if err != nil {
			return nil, s.storeError(err, "failed to load surveys")
		}
		report := buildCompletionReport(rows, headers)
		return &report, nil
	})
}

// InstitutionSummary rolls completion up per institution.
func (s *DashboardService) InstitutionSummary(ctx context.Context, claims *models.JWTClaims, filter string) ([]models.InstitutionSummary, bool, error) {
	view, err := s.resolve(ctx, claims, filter)
	if err != nil {
		return nil, false, err
	}
	if !view.isAdmin() {
		return nil, false, appErrors.ErrForbidden
	}
	return cachedView(ctx, s, dashboardKey("institutions", view.key), func() ([]models.InstitutionSummary, error) {
		headers, err := s.repo.InstitutionHeaders(ctx, view.scope.InstitutionID)
		if err != nil {
			return nil, s.storeError(err, "failed to load institutions")
		}
		rows, err := s.repo.Progress(ctx, view.scope)
		if err != nil {
			return nil, s.storeError(err, "failed to load completion progress")
		}
		return buildInstitutionSummary(rows, headers), nil
	})
}

// SubmissionsBySurvey ranks the surveys with most submissions.
func (s *DashboardService) SubmissionsBySurvey(ctx context.Context, claims *models.JWTClaims, filter string) ([]models.SurveySubmissionCount, bool, error) {
	view, err := s.resolve(ctx, claims, filter)
	if err != nil {
		return nil, false, err
	}
	if !view.isAdmin() {
		return nil, false, appErrors.ErrForbidden
	}
	return cachedView(ctx, s, dashboardKey("by-survey", view.key), func() ([]models.SurveySubmissionCount, error) {
		rows, err := s.repo.SubmissionsBySurvey(ctx, view.scope, topSurveysLimit)
		if err != nil {
			return nil, s.storeError(err, "failed to load submissions by survey")
		}
		if rows == nil {
			rows = []models.SurveySubmissionCount{}
		}
		return rows, nil
	})
}

// WeeklyProgress buckets submissions by ISO week. Students see their own.
func (s *DashboardService) WeeklyProgress(ctx context.Context, claims *models.JWTClaims, filter string) ([]models.WeekProgress, bool, error) {
	view, err := s.resolve(ctx, claims, filter)
	if err != nil {
		return nil, false, err
	}
	return cachedView(ctx, s, dashboardKey("weekly", view.key), func() ([]models.WeekProgress, error) {
		times, err := s.repo.SubmissionTimes(ctx, view.scope, view.userID)
		if err != nil {
			return nil, s.storeError(err, "failed to load submissions")
		}
		return WeeklyProgress(times, s.cfg.Location, weeksLimit), nil
	})
}

// MonthlyProgress lays a month of submissions out as a calendar. A zero year
// or month means the current one.
func (s *DashboardService) MonthlyProgress(ctx context.Context, claims *models.JWTClaims, year, month int) (*models.MonthlyProgress, bool, error) {
	now := s.now().In(s.cfg.Location)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 || year < 1970 || year > 9999 {
		return nil, false, validationError("invalid month", map[string]string{"month": "year and month must form a valid calendar month"})
	}

	view, err := s.resolve(ctx, claims, "")
	if err != nil {
		return nil, false, err
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.cfg.Location)
	end := start.AddDate(0, 1, 0)
	startUTC, endUTC := start.UTC(), end.UTC()
	scope := view.scope
	scope.Window = models.TimeWindow{Filter: FilterMonth, Start: &startUTC, End: &endUTC}

	key := dashboardKey("monthly", view.key, fmt.Sprintf("%04d-%02d", year, month))
	return cachedView(ctx, s, key, func() (*models.MonthlyProgress, error) {
		times, err := s.repo.SubmissionTimes(ctx, scope, view.userID)
		if err != nil {
			return nil, s.storeError(err, "failed to load submissions")
		}
		progress := MonthlyProgress(times, s.cfg.Location, year, time.Month(month))
		return &progress, nil
	})
}

// StudentSummary lists the caller's surveys with most answers.
func (s *DashboardService) StudentSummary(ctx context.Context, claims *models.JWTClaims, filter string) ([]models.StudentSurveySummary, bool, error) {
	view, err := s.resolve(ctx, claims, filter)
	if err != nil {
		return nil, false, err
	}
	key := dashboardKey("student-summary", "user", view.actor.ID, view.scope.Window.Filter)
	return cachedView(ctx, s, key, func() ([]models.StudentSurveySummary, error) {
		rows, err := s.repo.StudentSurveySummary(ctx, view.actor.ID, view.scope.Window, studentSummaryLimit)
		if err != nil {
			return nil, s.storeError(err, "failed to load student summary")
		}
		if rows == nil {
			rows = []models.StudentSurveySummary{}
		}
		return rows, nil
	})
}

// SubmissionsByDay reports daily submission counts and the latest submissions.
func (s *DashboardService) SubmissionsByDay(ctx context.Context, claims *models.JWTClaims, filter string) (*models.SubmissionsByDayReport, bool, error) {
	view, err := s.resolve(ctx, claims, filter)
	if err != nil {
		return nil, false, err
	}
	if !view.isAdmin() {
		return nil, false, appErrors.ErrForbidden
	}
	return cachedView(ctx, s, dashboardKey("by-day", view.key), func() (*models.SubmissionsByDayReport, error) {
		times, err := s.repo.SubmissionTimes(ctx, view.scope, nil)
		if err != nil {
			return nil, s.storeError(err, "failed to load submissions")
		}
		recent, err := s.repo.RecentSubmissions(ctx, view.scope, recentLimit)
		if err != nil {
			return nil, s.storeError(err, "failed to load recent submissions")
		}
		if recent == nil {
			recent = []models.RecentSubmission{}
		}
		return &models.SubmissionsByDayReport{Days: dailyCounts(times, s.cfg.Location), Recent: recent}, nil
	})
}

func (s *DashboardService) storeError(err error, message string) error {
	s.logger.Error(message, zap.Error(err))
	return appErrors.Internal(err, message)
}

// cachedView serves key from cache when possible and otherwise computes and
// stores it.
func cachedView[T any](ctx context.Context, s *DashboardService, key string, compute func() (T, error)) (T, bool, error) {
	var cached T
	if s.cache.Lookup(ctx, key, &cached) {
		return cached, true, nil
	}
	value, err := compute()
	if err != nil {
		var zero T
		return zero, false, err
	}
	s.cache.Store(ctx, key, value)
	return value, false, nil
}
