package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	"github.com/saludbit/impactou-api/pkg/database"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
	"github.com/saludbit/impactou-api/pkg/validation"
)

type institutionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, inst *models.Institution) error
	FindByID(ctx context.Context, id string) (*models.Institution, error)
	List(ctx context.Context) ([]models.Institution, error)
	Update(ctx context.Context, inst *models.Institution) error
}

type institutionUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	AdoptInstitution(ctx context.Context, exec sqlx.ExtContext, id, institutionID string) (bool, error)
}

// InstitutionService manages institutions.
type InstitutionService struct {
	db           txProvider
	institutions institutionStore
	users        institutionUserStore
	cache        *CacheService
	validator    *validation.Validator
	logger       *zap.Logger
}

// NewInstitutionService constructs an InstitutionService.
func NewInstitutionService(db txProvider, institutions institutionStore, users institutionUserStore, cache *CacheService, validate *validation.Validator, logger *zap.Logger) *InstitutionService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstitutionService{db: db, institutions: institutions, users: users, cache: cache, validator: validate, logger: logger}
}

// Create registers an institution with a unique name. An institution
// administrator without an institution adopts the new one.
func (s *InstitutionService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateInstitutionRequest) (*models.Institution, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid institution payload", fields)
	}
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}

	creator := actor.ID
	inst := &models.Institution{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   &creator,
	}
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.institutions.Create(ctx, tx, inst); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "institution name already exists")
			}
			return appErrors.Internal(err, "failed to create institution")
		}
		if actor.Role == models.RoleInstitutionAdmin && actor.InstitutionID == nil {
			if _, err := s.users.AdoptInstitution(ctx, tx, actor.ID, inst.ID); err != nil {
				return appErrors.Internal(err, "failed to assign institution")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateDashboards(ctx)
	return inst, nil
}

// List returns every institution.
func (s *InstitutionService) List(ctx context.Context) ([]models.Institution, error) {
	items, err := s.institutions.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list institutions")
	}
	if items == nil {
		items = []models.Institution{}
	}
	return items, nil
}

// Get returns one institution.
func (s *InstitutionService) Get(ctx context.Context, id string) (*models.Institution, error) {
	inst, err := s.institutions.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "institution")
	}
	return inst, nil
}

// Update renames or re-describes an institution. Allowed for its creator and ADMIN.
func (s *InstitutionService) Update(ctx context.Context, claims *models.JWTClaims, id string, req dto.UpdateInstitutionRequest) (*models.Institution, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid institution payload", fields)
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	inst, err := s.institutions.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "institution")
	}
	if claims.Role != models.RoleAdmin && strValue(inst.CreatedBy) != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot edit this institution")
	}
	if req.Name != nil {
		inst.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		inst.Description = strings.TrimSpace(*req.Description)
	}
	if err := s.institutions.Update(ctx, inst); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "institution name already exists")
		}
		return nil, notFound(err, "institution")
	}
	s.cache.InvalidateDashboards(ctx)
	return inst, nil
}
