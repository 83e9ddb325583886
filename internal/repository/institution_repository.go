package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saludbit/impactou-api/internal/models"
)

const institutionColumns = `id, name, description, created_by, created_at, updated_at`

// InstitutionRepository persists institutions.
type InstitutionRepository struct {
	db *sqlx.DB
}

// NewInstitutionRepository constructs the repository.
func NewInstitutionRepository(db *sqlx.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

func (r *InstitutionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an institution. A duplicate name surfaces as a unique violation.
func (r *InstitutionRepository) Create(ctx context.Context, exec sqlx.ExtContext, inst *models.Institution) error {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	const query = `INSERT INTO institutions (id, name, description, created_by, created_at, updated_at)
VALUES (:id, :name, :description, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, inst); err != nil {
		return fmt.Errorf("create institution: %w", err)
	}
	return nil
}

// UpsertByName returns the institution with the given name, creating it when missing.
func (r *InstitutionRepository) UpsertByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Institution, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO institutions (id, name, description, created_at, updated_at)
VALUES ($1, $2, '', $3, $3)
ON CONFLICT ((LOWER(name))) DO UPDATE SET name = institutions.name
RETURNING ` + institutionColumns
	var inst models.Institution
	if err := sqlx.GetContext(ctx, r.exec(exec), &inst, query, uuid.NewString(), strings.TrimSpace(name), now); err != nil {
		return nil, fmt.Errorf("upsert institution: %w", err)
	}
	return &inst, nil
}

// FindByID returns an institution by id.
func (r *InstitutionRepository) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE id = $1`
	var inst models.Institution
	if err := r.db.GetContext(ctx, &inst, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find institution: %w", err)
	}
	return &inst, nil
}

// FindByName returns an institution by case-insensitive name.
func (r *InstitutionRepository) FindByName(ctx context.Context, name string) (*models.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE LOWER(name) = LOWER($1)`
	var inst models.Institution
	if err := r.db.GetContext(ctx, &inst, query, strings.TrimSpace(name)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find institution by name: %w", err)
	}
	return &inst, nil
}

// List returns all institutions ordered by name.
func (r *InstitutionRepository) List(ctx context.Context) ([]models.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions ORDER BY name`
	var items []models.Institution
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	return items, nil
}

// Update persists name and description changes.
func (r *InstitutionRepository) Update(ctx context.Context, inst *models.Institution) error {
	inst.UpdatedAt = time.Now().UTC()
	const query = `UPDATE institutions SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, inst)
	if err != nil {
		return fmt.Errorf("update institution: %w", err)
	}
	return expectAffected(res)
}
