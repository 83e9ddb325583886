package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saludbit/impactou-api/internal/models"
)

const surveyColumns = `s.id, s.title, s.description, s.start_date, s.end_date, s.institution_id, s.created_by, s.created_at, s.updated_at`

// SurveyRepository persists surveys.
type SurveyRepository struct {
	db *sqlx.DB
}

// NewSurveyRepository constructs the repository.
func NewSurveyRepository(db *sqlx.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

func (r *SurveyRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a survey.
func (r *SurveyRepository) Create(ctx context.Context, exec sqlx.ExtContext, survey *models.Survey) error {
	if survey.ID == "" {
		survey.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	survey.CreatedAt = now
	survey.UpdatedAt = now
	const query = `INSERT INTO surveys (id, title, description, start_date, end_date, institution_id, created_by, created_at, updated_at)
VALUES (:id, :title, :description, :start_date, :end_date, :institution_id, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, survey); err != nil {
		return fmt.Errorf("create survey: %w", err)
	}
	return nil
}

// FindByID returns a survey by id.
func (r *SurveyRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys s WHERE s.id = $1`
	var survey models.Survey
	if err := sqlx.GetContext(ctx, r.exec(exec), &survey, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find survey: %w", err)
	}
	return &survey, nil
}

// ListAll returns surveys in scope. Institution-scoped listings include global surveys.
// A GroupID filter adds whether each survey is linked to that group.
func (r *SurveyRepository) ListAll(ctx context.Context, filter models.SurveyFilter) ([]models.SurveyListItem, error) {
	var args []interface{}
	assigned := `NULL::boolean AS is_assigned`
	if filter.GroupID != nil {
		args = append(args, *filter.GroupID)
		assigned = fmt.Sprintf(`EXISTS (SELECT 1 FROM group_surveys gs WHERE gs.survey_id = s.id AND gs.group_id = $%d) AS is_assigned`, len(args))
	}
	where := ""
	if filter.InstitutionID != nil {
		args = append(args, *filter.InstitutionID)
		where = fmt.Sprintf(` WHERE (s.institution_id = $%d OR s.institution_id IS NULL)`, len(args))
	}
	query := `SELECT ` + surveyColumns + `,
    (SELECT COUNT(*) FROM questions q WHERE q.survey_id = s.id) AS question_count,
    ` + assigned + `
FROM surveys s` + where + ` ORDER BY s.created_at DESC`

	var items []models.SurveyListItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	return items, nil
}

// ListAssigned returns the user's assignments joined with their surveys. An
// assignment is inactive when every group linking the survey to the user has
// been left; those are only returned when includeInactive is set.
func (r *SurveyRepository) ListAssigned(ctx context.Context, userID string, includeInactive bool) ([]models.AssignedSurvey, error) {
	query := `WITH assigned AS (
    SELECT ` + surveyColumns + `, sa.id AS assignment_id, sa.status, sa.due_date, sa.completed_at,
        (SELECT COUNT(*) FROM questions q WHERE q.survey_id = s.id) AS question_count,
        (SELECT COUNT(*) FROM answers a JOIN questions q ON q.id = a.question_id WHERE q.survey_id = s.id AND a.user_id = sa.user_id) AS answer_count,
        NOT (
            EXISTS (SELECT 1 FROM group_surveys gs JOIN group_members gm ON gm.group_id = gs.group_id
                    WHERE gs.survey_id = s.id AND gm.user_id = sa.user_id AND gm.deactivated_at IS NOT NULL)
            AND NOT EXISTS (SELECT 1 FROM group_surveys gs JOIN group_members gm ON gm.group_id = gs.group_id
                    WHERE gs.survey_id = s.id AND gm.user_id = sa.user_id AND gm.deactivated_at IS NULL)
        ) AS active
    FROM survey_assignments sa JOIN surveys s ON s.id = sa.survey_id
    WHERE sa.user_id = $1
)
SELECT * FROM assigned WHERE active OR $2 ORDER BY due_date ASC, created_at DESC`

	var items []models.AssignedSurvey
	if err := r.db.SelectContext(ctx, &items, query, userID, includeInactive); err != nil {
		return nil, fmt.Errorf("list assigned surveys: %w", err)
	}
	return items, nil
}

// Update persists survey changes.
func (r *SurveyRepository) Update(ctx context.Context, exec sqlx.ExtContext, survey *models.Survey) error {
	survey.UpdatedAt = time.Now().UTC()
	const query = `UPDATE surveys SET title = :title, description = :description, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, survey)
	if err != nil {
		return fmt.Errorf("update survey: %w", err)
	}
	return expectAffected(res)
}

// Delete removes the survey row.
func (r *SurveyRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM surveys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete survey: %w", err)
	}
	return expectAffected(res)
}

// ExistingIDs returns the subset of ids that reference surveys.
func (r *SurveyRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM surveys WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build survey lookup: %w", err)
	}
	var found []string
	if err := r.db.SelectContext(ctx, &found, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("lookup surveys: %w", err)
	}
	return found, nil
}
