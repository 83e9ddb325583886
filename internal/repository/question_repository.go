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

const questionColumns = `id, survey_id, text, type, options, created_at`

// QuestionRepository persists survey questions.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository constructs the repository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a question.
func (r *QuestionRepository) Create(ctx context.Context, exec sqlx.ExtContext, question *models.Question) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now().UTC()
	}
	if question.Options == nil {
		question.Options = []string{}
	}
	const query = `INSERT INTO questions (id, survey_id, text, type, options, created_at)
VALUES (:id, :survey_id, :text, :type, :options, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, question); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// ListBySurvey returns the survey's questions in creation order.
func (r *QuestionRepository) ListBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE survey_id = $1 ORDER BY created_at, id`
	var questions []models.Question
	if err := sqlx.SelectContext(ctx, r.exec(exec), &questions, query, surveyID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// FindByID returns a question scoped to its survey.
func (r *QuestionRepository) FindByID(ctx context.Context, surveyID, id string) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE survey_id = $1 AND id = $2`
	var question models.Question
	if err := r.db.GetContext(ctx, &question, query, surveyID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find question: %w", err)
	}
	return &question, nil
}

// Update persists text, type and options.
func (r *QuestionRepository) Update(ctx context.Context, question *models.Question) error {
	if question.Options == nil {
		question.Options = []string{}
	}
	const query = `UPDATE questions SET text = :text, type = :type, options = :options WHERE id = :id AND survey_id = :survey_id`
	res, err := r.db.NamedExecContext(ctx, query, question)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return expectAffected(res)
}

// DeleteBySurvey removes every question of a survey.
func (r *QuestionRepository) DeleteBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM questions WHERE survey_id = $1`, surveyID); err != nil {
		return fmt.Errorf("delete survey questions: %w", err)
	}
	return nil
}
