package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
	"github.com/saludbit/impactou-api/pkg/validation"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	UpdateInstitution(ctx context.Context, exec sqlx.ExtContext, id string, institutionID *string) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type institutionNameFinder interface {
	FindByName(ctx context.Context, name string) (*models.Institution, error)
}

// UserService handles user management use cases.
type UserService struct {
	repo         userRepository
	institutions institutionNameFinder
	cache        *CacheService
	validator    *validation.Validator
	logger       *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(repo userRepository, institutions institutionNameFinder, cache *CacheService, validate *validation.Validator, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &UserService{repo: repo, institutions: institutions, cache: cache, validator: validate, logger: logger}
}

// List returns users with pagination. Institution administrators only see
// their own institution.
func (s *UserService) List(ctx context.Context, claims *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	actor, err := loadActor(ctx, s.repo, claims)
	if err != nil {
		return nil, nil, err
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleInstitutionAdmin:
		if actor.InstitutionID == nil {
			return []models.User{}, &models.Pagination{Page: 1, PageSize: filter.PageSize}, nil
		}
		filter.InstitutionID = actor.InstitutionID
	default:
		return nil, nil, appErrors.ErrForbidden
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, validationError("invalid role filter", map[string]string{"role": "role is not recognised"})
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListByInstitution lists every user of one institution.
func (s *UserService) ListByInstitution(ctx context.Context, claims *models.JWTClaims, institutionID string, page, pageSize int) ([]models.User, *models.Pagination, error) {
	actor, err := loadActor(ctx, s.repo, claims)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role != models.RoleAdmin && !sameInstitution(actor.InstitutionID, &institutionID) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "cannot list users of another institution")
	}
	return s.List(ctx, claims, models.UserFilter{InstitutionID: &institutionID, Page: page, PageSize: pageSize})
}

// UpdateInstitution moves a user to the institution with the given name.
func (s *UserService) UpdateInstitution(ctx context.Context, claims *models.JWTClaims, userID string, req dto.UpdateUserInstitutionRequest) (*models.User, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid institution payload", fields)
	}
	actor, err := loadActor(ctx, s.repo, claims)
	if err != nil {
		return nil, err
	}
	target, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	inst, err := s.institutions.FindByName(ctx, req.InstitutionName)
	if err != nil {
		return nil, notFound(err, "institution")
	}
	if actor.Role != models.RoleAdmin {
		if !sameInstitution(actor.InstitutionID, &inst.ID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot move users into another institution")
		}
		if target.InstitutionID != nil && !sameInstitution(actor.InstitutionID, target.InstitutionID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot move users of another institution")
		}
	}

	if err := s.repo.UpdateInstitution(ctx, nil, target.ID, &inst.ID); err != nil {
		return nil, notFound(err, "user")
	}
	target.InstitutionID = &inst.ID
	target.InstitutionName = &inst.Name
	s.cache.InvalidateDashboards(ctx)
	return target, nil
}

// UpdateRole changes a user's role.
func (s *UserService) UpdateRole(ctx context.Context, claims *models.JWTClaims, userID string, req dto.UpdateUserRoleRequest) (*models.User, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid role payload", fields)
	}
	if claims == nil || claims.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	role := models.UserRole(req.Role)
	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		return nil, notFound(err, "user")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	s.cache.InvalidateDashboards(ctx)
	return user, nil
}

// DeleteSelf removes the caller's own account with everything it owns.
func (s *UserService) DeleteSelf(ctx context.Context, claims *models.JWTClaims, userID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "users can only delete their own account")
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to delete user")
	}
	recordAudit(ctx, s.repo, s.logger, userID, models.AuditActionUserDelete, "user", userID)
	s.cache.InvalidateDashboards(ctx)
	return nil
}
