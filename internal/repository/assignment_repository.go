package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/saludbit/impactou-api/internal/models"
)

const assignmentColumns = `id, user_id, survey_id, status, due_date, completed_at, created_at`

// AssignmentRepository persists survey assignments. (user_id, survey_id) is unique
// at the store level and every insert path tolerates the conflict.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// AssignedUserIDs returns the users among userIDs already assigned to the survey.
func (r *AssignmentRepository) AssignedUserIDs(ctx context.Context, exec sqlx.ExtContext, surveyID string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT user_id FROM survey_assignments WHERE survey_id = $1 AND user_id = ANY($2::uuid[])`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, surveyID, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("list assigned users: %w", err)
	}
	return ids, nil
}

// BulkCreate inserts a PENDING assignment for each user lacking one and
// returns how many rows were created. Concurrent duplicates are skipped.
func (r *AssignmentRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, surveyID string, userIDs []string, dueDate, now time.Time) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(userIDs))
	for i := range userIDs {
		ids[i] = uuid.NewString()
	}
	const query = `INSERT INTO survey_assignments (id, user_id, survey_id, status, due_date, created_at)
SELECT t.id, t.user_id, $3, 'PENDING', $4, $5
FROM unnest($1::uuid[], $2::uuid[]) AS t(id, user_id)
ON CONFLICT (user_id, survey_id) DO NOTHING`
	res, err := r.exec(exec).ExecContext(ctx, query, pq.Array(ids), pq.Array(userIDs), surveyID, dueDate, now)
	if err != nil {
		return 0, fmt.Errorf("bulk create assignments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk create assignments rows: %w", err)
	}
	return int(affected), nil
}

// Find returns the assignment for (user, survey).
func (r *AssignmentRepository) Find(ctx context.Context, userID, surveyID string) (*models.SurveyAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM survey_assignments WHERE user_id = $1 AND survey_id = $2`
	var assignment models.SurveyAssignment
	if err := r.db.GetContext(ctx, &assignment, query, userID, surveyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// FindForUpdate locks and returns the assignment for (user, survey).
func (r *AssignmentRepository) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, userID, surveyID string) (*models.SurveyAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM survey_assignments WHERE user_id = $1 AND survey_id = $2 FOR UPDATE`
	var assignment models.SurveyAssignment
	if err := sqlx.GetContext(ctx, r.exec(exec), &assignment, query, userID, surveyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock assignment: %w", err)
	}
	return &assignment, nil
}

// MarkCompleted flips a PENDING assignment to COMPLETED. It reports whether a row changed.
func (r *AssignmentRepository) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (bool, error) {
	const query = `UPDATE survey_assignments SET status = 'COMPLETED', completed_at = $2 WHERE id = $1 AND status = 'PENDING'`
	res, err := r.exec(exec).ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("complete assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete assignment rows: %w", err)
	}
	return affected > 0, nil
}

// ReopenIncomplete moves COMPLETED assignments of a survey back to PENDING when
// the user has answered fewer than questionCount of its questions.
func (r *AssignmentRepository) ReopenIncomplete(ctx context.Context, exec sqlx.ExtContext, surveyID string, questionCount int) (int, error) {
	const query = `UPDATE survey_assignments sa SET status = 'PENDING', completed_at = NULL
WHERE sa.survey_id = $1 AND sa.status = 'COMPLETED'
AND (SELECT COUNT(*) FROM answers a JOIN questions q ON q.id = a.question_id
     WHERE a.user_id = sa.user_id AND q.survey_id = sa.survey_id) < $2`
	res, err := r.exec(exec).ExecContext(ctx, query, surveyID, questionCount)
	if err != nil {
		return 0, fmt.Errorf("reopen assignments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reopen assignments rows: %w", err)
	}
	return int(affected), nil
}

// UpdateDueDates moves every assignment of a survey to a new due date.
func (r *AssignmentRepository) UpdateDueDates(ctx context.Context, exec sqlx.ExtContext, surveyID string, due time.Time) (int, error) {
	res, err := r.exec(exec).ExecContext(ctx, `UPDATE survey_assignments SET due_date = $2 WHERE survey_id = $1`, surveyID, due)
	if err != nil {
		return 0, fmt.Errorf("update assignment due dates: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update assignment due dates rows: %w", err)
	}
	return int(affected), nil
}

// DeleteBySurvey removes every assignment of a survey.
func (r *AssignmentRepository) DeleteBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM survey_assignments WHERE survey_id = $1`, surveyID); err != nil {
		return fmt.Errorf("delete survey assignments: %w", err)
	}
	return nil
}
