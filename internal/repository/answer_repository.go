package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saludbit/impactou-api/internal/models"
)

// AnswerRepository persists answers. (user_id, question_id) is unique.
type AnswerRepository struct {
	db *sqlx.DB
}

// NewAnswerRepository constructs the repository.
func NewAnswerRepository(db *sqlx.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

func (r *AnswerRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Insert stores answers one row at a time so a duplicate aborts at the offending row.
func (r *AnswerRepository) Insert(ctx context.Context, exec sqlx.ExtContext, answers []models.Answer) error {
	const query = `INSERT INTO answers (id, submission_id, user_id, question_id, value, selected_options, created_at)
VALUES (:id, :submission_id, :user_id, :question_id, :value, :selected_options, :created_at)`
	target := r.exec(exec)
	now := time.Now().UTC()
	for i := range answers {
		if answers[i].ID == "" {
			answers[i].ID = uuid.NewString()
		}
		if answers[i].CreatedAt.IsZero() {
			answers[i].CreatedAt = now
		}
		if answers[i].SelectedOptions == nil {
			answers[i].SelectedOptions = []string{}
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, answers[i]); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}
	return nil
}

// AnsweredQuestionIDs returns the survey questions the user already answered.
func (r *AnswerRepository) AnsweredQuestionIDs(ctx context.Context, exec sqlx.ExtContext, userID, surveyID string) ([]string, error) {
	const query = `SELECT a.question_id FROM answers a JOIN questions q ON q.id = a.question_id WHERE a.user_id = $1 AND q.survey_id = $2`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, userID, surveyID); err != nil {
		return nil, fmt.Errorf("list answered questions: %w", err)
	}
	return ids, nil
}

// CountForSurvey counts the user's answers to the survey's questions.
func (r *AnswerRepository) CountForSurvey(ctx context.Context, exec sqlx.ExtContext, userID, surveyID string) (int, error) {
	const query = `SELECT COUNT(*) FROM answers a JOIN questions q ON q.id = a.question_id WHERE a.user_id = $1 AND q.survey_id = $2`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, userID, surveyID); err != nil {
		return 0, fmt.Errorf("count survey answers: %w", err)
	}
	return count, nil
}

// DeleteBySurvey removes every answer to the survey's questions.
func (r *AnswerRepository) DeleteBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) error {
	const query = `DELETE FROM answers WHERE question_id IN (SELECT id FROM questions WHERE survey_id = $1)`
	if _, err := r.exec(exec).ExecContext(ctx, query, surveyID); err != nil {
		return fmt.Errorf("delete survey answers: %w", err)
	}
	return nil
}

// ListForSurvey returns every answer to the survey's questions.
func (r *AnswerRepository) ListForSurvey(ctx context.Context, surveyID string) ([]models.Answer, error) {
	const query = `SELECT a.id, a.submission_id, a.user_id, a.question_id, a.value, a.selected_options, a.created_at
FROM answers a JOIN questions q ON q.id = a.question_id
WHERE q.survey_id = $1 ORDER BY a.created_at`
	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, query, surveyID); err != nil {
		return nil, fmt.Errorf("list survey answers: %w", err)
	}
	return answers, nil
}

// ExportRows returns answers flattened with respondent identity, grouped by respondent.
func (r *AnswerRepository) ExportRows(ctx context.Context, surveyID string) ([]models.ExportAnswer, error) {
	const query = `SELECT u.id AS user_id, u.name AS user_name, u.email AS user_email, a.question_id, a.value, a.selected_options
FROM answers a
JOIN questions q ON q.id = a.question_id
JOIN users u ON u.id = a.user_id
WHERE q.survey_id = $1
ORDER BY u.name, u.id, q.created_at`
	var rows []models.ExportAnswer
	if err := r.db.SelectContext(ctx, &rows, query, surveyID); err != nil {
		return nil, fmt.Errorf("export survey answers: %w", err)
	}
	return rows, nil
}

// History lists the user's submissions, newest first.
func (r *AnswerRepository) History(ctx context.Context, userID string) ([]models.SubmissionHistoryItem, error) {
	const query = `SELECT a.submission_id, q.survey_id, s.title AS survey_title, COUNT(*) AS answers, MAX(a.created_at) AS submitted_at
FROM answers a
JOIN questions q ON q.id = a.question_id
JOIN surveys s ON s.id = q.survey_id
WHERE a.user_id = $1
GROUP BY a.submission_id, q.survey_id, s.title
ORDER BY submitted_at DESC`
	var items []models.SubmissionHistoryItem
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("submission history: %w", err)
	}
	return items, nil
}
