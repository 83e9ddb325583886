package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/saludbit/impactou-api/internal/models"
)

// DashboardRepository exposes read-only aggregation queries for dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository instantiates the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// scopeArgs binds the institution and window of a scope once so several
// subqueries can share the same placeholders.
type scopeArgs struct {
	args  []interface{}
	inst  string
	start string
	end   string
}

func newScopeArgs(scope models.DashboardScope) *scopeArgs {
	s := &scopeArgs{}
	if scope.InstitutionID != nil {
		s.args = append(s.args, *scope.InstitutionID)
		s.inst = fmt.Sprintf("$%d", len(s.args))
	}
	if scope.Window.Start != nil {
		s.args = append(s.args, *scope.Window.Start)
		s.start = fmt.Sprintf("$%d", len(s.args))
	}
	if scope.Window.End != nil {
		s.args = append(s.args, *scope.Window.End)
		s.end = fmt.Sprintf("$%d", len(s.args))
	}
	return s
}

// filter renders " AND ..." clauses for the given columns; empty columns are skipped.
func (s *scopeArgs) filter(instCol, timeCol string) string {
	var b strings.Builder
	if instCol != "" && s.inst != "" {
		fmt.Fprintf(&b, " AND %s = %s", instCol, s.inst)
	}
	if timeCol != "" && s.start != "" {
		fmt.Fprintf(&b, " AND %s >= %s", timeCol, s.start)
	}
	if timeCol != "" && s.end != "" {
		fmt.Fprintf(&b, " AND %s < %s", timeCol, s.end)
	}
	return b.String()
}

// AdminCounts returns entity totals and windowed activity counters. Completions
// are derived by the caller from Progress.
func (r *DashboardRepository) AdminCounts(ctx context.Context, scope models.DashboardScope) (*models.AdminStats, error) {
	s := newScopeArgs(scope)
	query := `SELECT
    (SELECT COUNT(*) FROM institutions i WHERE 1=1` + s.filter("i.id", "") + `) AS institutions,
    (SELECT COUNT(*) FROM users u WHERE 1=1` + s.filter("u.institution_id", "") + `) AS users,
    (SELECT COUNT(*) FROM users u WHERE u.role = 'STUDENT'` + s.filter("u.institution_id", "") + `) AS students,
    (SELECT COUNT(*) FROM groups g WHERE 1=1` + s.filter("g.institution_id", "") + `) AS groups,
    (SELECT COUNT(*) FROM surveys s WHERE 1=1` + s.filter("s.institution_id", "") + `) AS surveys,
    (SELECT COUNT(*) FROM questions q JOIN surveys s ON s.id = q.survey_id WHERE 1=1` + s.filter("s.institution_id", "") + `) AS questions,
    (SELECT COUNT(*) FROM survey_assignments sa JOIN users u ON u.id = sa.user_id WHERE 1=1` + s.filter("u.institution_id", "sa.created_at") + `) AS assignments,
    (SELECT COUNT(*) FROM survey_assignments sa JOIN users u ON u.id = sa.user_id WHERE sa.status = 'COMPLETED'` + s.filter("u.institution_id", "sa.created_at") + `) AS completed_assignments,
    (SELECT COUNT(DISTINCT a.submission_id) FROM answers a JOIN users u ON u.id = a.user_id WHERE 1=1` + s.filter("u.institution_id", "a.created_at") + `) AS submissions`

	var stats models.AdminStats
	if err := r.db.GetContext(ctx, &stats, query, s.args...); err != nil {
		return nil, fmt.Errorf("query admin counts: %w", err)
	}
	return &stats, nil
}

// Progress returns answer and question counts for every assignment in scope.
func (r *DashboardRepository) Progress(ctx context.Context, scope models.DashboardScope) ([]models.UserSurveyProgress, error) {
	s := newScopeArgs(scope)
	query := `SELECT sa.user_id, sa.survey_id, u.institution_id,
    (SELECT COUNT(*) FROM questions q WHERE q.survey_id = sa.survey_id) AS questions,
    (SELECT COUNT(*) FROM answers a JOIN questions q ON q.id = a.question_id
        WHERE q.survey_id = sa.survey_id AND a.user_id = sa.user_id) AS answers
FROM survey_assignments sa JOIN users u ON u.id = sa.user_id
WHERE 1=1` + s.filter("u.institution_id", "sa.created_at")

	var rows []models.UserSurveyProgress
	if err := r.db.SelectContext(ctx, &rows, query, s.args...); err != nil {
		return nil, fmt.Errorf("query assignment progress: %w", err)
	}
	return rows, nil
}

// SurveyHeaders returns title and question count for the given surveys.
func (r *DashboardRepository) SurveyHeaders(ctx context.Context, ids []string) ([]models.SurveyHeader, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT s.id, s.title, (SELECT COUNT(*) FROM questions q WHERE q.survey_id = s.id) AS questions
FROM surveys s WHERE s.id = ANY($1::uuid[]) ORDER BY s.title`
	var headers []models.SurveyHeader
	if err := r.db.SelectContext(ctx, &headers, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("query survey headers: %w", err)
	}
	return headers, nil
}

// InstitutionHeaders returns institutions in scope with their student counts.
func (r *DashboardRepository) InstitutionHeaders(ctx context.Context, institutionID *string) ([]models.InstitutionHeader, error) {
	s := newScopeArgs(models.DashboardScope{InstitutionID: institutionID})
	query := `SELECT i.id, i.name,
    (SELECT COUNT(*) FROM users u WHERE u.institution_id = i.id AND u.role = 'STUDENT') AS students
FROM institutions i WHERE 1=1` + s.filter("i.id", "") + ` ORDER BY i.name`
	var headers []models.InstitutionHeader
	if err := r.db.SelectContext(ctx, &headers, query, s.args...); err != nil {
		return nil, fmt.Errorf("query institution headers: %w", err)
	}
	return headers, nil
}

// SubmissionsBySurvey ranks surveys by distinct submissions in scope.
func (r *DashboardRepository) SubmissionsBySurvey(ctx context.Context, scope models.DashboardScope, limit int) ([]models.SurveySubmissionCount, error) {
	s := newScopeArgs(scope)
	query := `SELECT q.survey_id, s.title, COUNT(DISTINCT a.submission_id) AS submissions, COUNT(DISTINCT a.user_id) AS respondents
FROM answers a
JOIN questions q ON q.id = a.question_id
JOIN surveys s ON s.id = q.survey_id
JOIN users u ON u.id = a.user_id
WHERE 1=1` + s.filter("u.institution_id", "a.created_at") + `
GROUP BY q.survey_id, s.title
ORDER BY submissions DESC, s.title
LIMIT ` + fmt.Sprint(limit)
	var rows []models.SurveySubmissionCount
	if err := r.db.SelectContext(ctx, &rows, query, s.args...); err != nil {
		return nil, fmt.Errorf("query submissions by survey: %w", err)
	}
	return rows, nil
}

// SubmissionTimes returns the instant of every submission in scope, optionally
// limited to one user. Bucketing happens in the caller's timezone.
func (r *DashboardRepository) SubmissionTimes(ctx context.Context, scope models.DashboardScope, userID *string) ([]time.Time, error) {
	s := newScopeArgs(scope)
	userFilter := ""
	if userID != nil {
		s.args = append(s.args, *userID)
		userFilter = fmt.Sprintf(" AND a.user_id = $%d", len(s.args))
	}
	query := `SELECT MIN(a.created_at) AS submitted_at
FROM answers a JOIN users u ON u.id = a.user_id
WHERE 1=1` + s.filter("u.institution_id", "a.created_at") + userFilter + `
GROUP BY a.submission_id
ORDER BY submitted_at`
	var times []time.Time
	if err := r.db.SelectContext(ctx, &times, query, s.args...); err != nil {
		return nil, fmt.Errorf("query submission times: %w", err)
	}
	return times, nil
}

// RecentSubmissions lists the latest submissions with student and survey names.
func (r *DashboardRepository) RecentSubmissions(ctx context.Context, scope models.DashboardScope, limit int) ([]models.RecentSubmission, error) {
	s := newScopeArgs(scope)
	query := `SELECT a.submission_id, a.user_id, u.name AS student_name, q.survey_id, s.title AS survey_title,
    COUNT(*) AS answers, MIN(a.created_at) AS submitted_at
FROM answers a
JOIN questions q ON q.id = a.question_id
JOIN surveys s ON s.id = q.survey_id
JOIN users u ON u.id = a.user_id
WHERE 1=1` + s.filter("u.institution_id", "a.created_at") + `
GROUP BY a.submission_id, a.user_id, u.name, q.survey_id, s.title
ORDER BY submitted_at DESC
LIMIT ` + fmt.Sprint(limit)
	var rows []models.RecentSubmission
	if err := r.db.SelectContext(ctx, &rows, query, s.args...); err != nil {
		return nil, fmt.Errorf("query recent submissions: %w", err)
	}
	return rows, nil
}

// StudentCounts returns the counters of a student's dashboard.
func (r *DashboardRepository) StudentCounts(ctx context.Context, userID string, window models.TimeWindow) (*models.StudentStats, error) {
	s := newScopeArgs(models.DashboardScope{Window: window})
	s.args = append(s.args, userID)
	user := fmt.Sprintf("$%d", len(s.args))
	query := `SELECT
    (SELECT COUNT(*) FROM group_members gm WHERE gm.user_id = ` + user + `) AS groups,
    (SELECT COUNT(*) FROM group_members gm WHERE gm.user_id = ` + user + ` AND gm.deactivated_at IS NULL) AS active_groups,
    (SELECT COUNT(*) FROM survey_assignments sa WHERE sa.user_id = ` + user + s.filter("", "sa.created_at") + `) AS assigned_surveys,
    (SELECT COUNT(*) FROM survey_assignments sa WHERE sa.user_id = ` + user + ` AND sa.status = 'PENDING'` + s.filter("", "sa.created_at") + `) AS pending,
    (SELECT COUNT(*) FROM survey_assignments sa WHERE sa.user_id = ` + user + ` AND sa.status = 'COMPLETED'` + s.filter("", "sa.created_at") + `) AS completed,
    (SELECT COUNT(*) FROM answers a WHERE a.user_id = ` + user + s.filter("", "a.created_at") + `) AS answers`
	var stats models.StudentStats
	if err := r.db.GetContext(ctx, &stats, query, s.args...); err != nil {
		return nil, fmt.Errorf("query student counts: %w", err)
	}
	return &stats, nil
}

// StudentSurveySummary ranks the student's assigned surveys by answers given.
func (r *DashboardRepository) StudentSurveySummary(ctx context.Context, userID string, window models.TimeWindow, limit int) ([]models.StudentSurveySummary, error) {
	s := newScopeArgs(models.DashboardScope{Window: window})
	s.args = append(s.args, userID)
	user := fmt.Sprintf("$%d", len(s.args))
	query := `SELECT sa.survey_id, s.title,
    (SELECT COUNT(*) FROM answers a JOIN questions q ON q.id = a.question_id
        WHERE q.survey_id = sa.survey_id AND a.user_id = sa.user_id` + s.filter("", "a.created_at") + `) AS answers,
    (SELECT COUNT(*) FROM questions q WHERE q.survey_id = sa.survey_id) AS questions,
    sa.status
FROM survey_assignments sa JOIN surveys s ON s.id = sa.survey_id
WHERE sa.user_id = ` + user + `
ORDER BY answers DESC, s.title
LIMIT ` + fmt.Sprint(limit)
	var rows []models.StudentSurveySummary
	if err := r.db.SelectContext(ctx, &rows, query, s.args...); err != nil {
		return nil, fmt.Errorf("query student survey summary: %w", err)
	}
	return rows, nil
}
