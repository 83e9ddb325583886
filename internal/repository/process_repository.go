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

const processColumns = `id, code, name, type, institution_id, created_by, created_at, updated_at`

// ProcessRepository persists processes and their group/survey links.
type ProcessRepository struct {
	db *sqlx.DB
}

// NewProcessRepository constructs the repository.
func NewProcessRepository(db *sqlx.DB) *ProcessRepository {
	return &ProcessRepository{db: db}
}

func (r *ProcessRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a process; its code is drawn from the process_code_seq sequence.
func (r *ProcessRepository) Create(ctx context.Context, exec sqlx.ExtContext, process *models.Process) error {
	if process.ID == "" {
		process.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	process.CreatedAt = now
	process.UpdatedAt = now
	const query = `INSERT INTO processes (id, name, type, institution_id, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING code`
	if err := sqlx.GetContext(ctx, r.exec(exec), &process.Code, query,
		process.ID, process.Name, process.Type, process.InstitutionID, process.CreatedBy, now); err != nil {
		return fmt.Errorf("create process: %w", err)
	}
	return nil
}

// Update persists name and type.
func (r *ProcessRepository) Update(ctx context.Context, exec sqlx.ExtContext, process *models.Process) error {
	process.UpdatedAt = time.Now().UTC()
	const query = `UPDATE processes SET name = :name, type = :type, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, process)
	if err != nil {
		return fmt.Errorf("update process: %w", err)
	}
	return expectAffected(res)
}

// ReplaceGroups swaps the linked groups of a process.
func (r *ProcessRepository) ReplaceGroups(ctx context.Context, exec sqlx.ExtContext, processID string, groupIDs []string) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM process_groups WHERE process_id = $1`, processID); err != nil {
		return fmt.Errorf("clear process groups: %w", err)
	}
	if len(groupIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO process_groups (process_id, group_id) SELECT $1, g FROM unnest($2::uuid[]) AS g ON CONFLICT DO NOTHING`
	if _, err := target.ExecContext(ctx, query, processID, pq.Array(groupIDs)); err != nil {
		return fmt.Errorf("link process groups: %w", err)
	}
	return nil
}

// ReplaceSurveys swaps the linked surveys of a process.
func (r *ProcessRepository) ReplaceSurveys(ctx context.Context, exec sqlx.ExtContext, processID string, surveyIDs []string) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM process_surveys WHERE process_id = $1`, processID); err != nil {
		return fmt.Errorf("clear process surveys: %w", err)
	}
	if len(surveyIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO process_surveys (process_id, survey_id) SELECT $1, s FROM unnest($2::uuid[]) AS s ON CONFLICT DO NOTHING`
	if _, err := target.ExecContext(ctx, query, processID, pq.Array(surveyIDs)); err != nil {
		return fmt.Errorf("link process surveys: %w", err)
	}
	return nil
}

// FindByID returns a process with its links.
func (r *ProcessRepository) FindByID(ctx context.Context, id string) (*models.Process, error) {
	query := `SELECT ` + processColumns + ` FROM processes WHERE id = $1`
	var process models.Process
	if err := r.db.GetContext(ctx, &process, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find process: %w", err)
	}
	if err := r.loadLinks(ctx, []*models.Process{&process}); err != nil {
		return nil, err
	}
	return &process, nil
}

// List returns processes, restricted to an institution when given, newest code first.
func (r *ProcessRepository) List(ctx context.Context, institutionID *string) ([]models.Process, error) {
	query := `SELECT ` + processColumns + ` FROM processes`
	var args []interface{}
	if institutionID != nil {
		query += ` WHERE institution_id = $1`
		args = append(args, *institutionID)
	}
	query += ` ORDER BY code DESC`

	var processes []models.Process
	if err := r.db.SelectContext(ctx, &processes, query, args...); err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	ptrs := make([]*models.Process, len(processes))
	for i := range processes {
		ptrs[i] = &processes[i]
	}
	if err := r.loadLinks(ctx, ptrs); err != nil {
		return nil, err
	}
	return processes, nil
}

// Delete removes a process; links cascade.
func (r *ProcessRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM processes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete process: %w", err)
	}
	return expectAffected(res)
}

type processLink struct {
	ProcessID string `db:"process_id"`
	TargetID  string `db:"target_id"`
}

func (r *ProcessRepository) loadLinks(ctx context.Context, processes []*models.Process) error {
	if len(processes) == 0 {
		return nil
	}
	ids := make([]string, len(processes))
	byID := make(map[string]*models.Process, len(processes))
	for i, p := range processes {
		ids[i] = p.ID
		byID[p.ID] = p
		p.GroupIDs = []string{}
		p.SurveyIDs = []string{}
	}

	var groups []processLink
	if err := r.db.SelectContext(ctx, &groups, `SELECT process_id, group_id AS target_id FROM process_groups WHERE process_id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return fmt.Errorf("load process groups: %w", err)
	}
	for _, link := range groups {
		if p, ok := byID[link.ProcessID]; ok {
			p.GroupIDs = append(p.GroupIDs, link.TargetID)
		}
	}

	var surveys []processLink
	if err := r.db.SelectContext(ctx, &surveys, `SELECT process_id, survey_id AS target_id FROM process_surveys WHERE process_id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return fmt.Errorf("load process surveys: %w", err)
	}
	for _, link := range surveys {
		if p, ok := byID[link.ProcessID]; ok {
			p.SurveyIDs = append(p.SurveyIDs, link.TargetID)
		}
	}
	return nil
}
