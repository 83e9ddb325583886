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

type processStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, process *models.Process) error
	Update(ctx context.Context, exec sqlx.ExtContext, process *models.Process) error
	ReplaceGroups(ctx context.Context, exec sqlx.ExtContext, processID string, groupIDs []string) error
	ReplaceSurveys(ctx context.Context, exec sqlx.ExtContext, processID string, surveyIDs []string) error
	FindByID(ctx context.Context, id string) (*models.Process, error)
	List(ctx context.Context, institutionID *string) ([]models.Process, error)
	Delete(ctx context.Context, id string) error
}

// ProcessService manages processes bundling groups and surveys.
type ProcessService struct {
	db        txProvider
	processes processStore
	users     actorReader
	validator *validation.Validator
	logger    *zap.Logger
}

// NewProcessService constructs a ProcessService.
func NewProcessService(db txProvider, processes processStore, users actorReader, validate *validation.Validator, logger *zap.Logger) *ProcessService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessService{db: db, processes: processes, users: users, validator: validate, logger: logger}
}

// Create stores a process in the caller's institution with its links.
func (s *ProcessService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateProcessRequest) (*models.Process, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid process payload", fields)
	}
	pType, ok := models.ParseProcessType(req.Type)
	if !ok {
		return nil, validationError("invalid process type", map[string]string{"type": "type must be one of VALORACION, PROCEDIMIENTO"})
	}
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if actor.InstitutionID == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "an institution is required to create processes")
	}

	process := &models.Process{
		Name:          strings.TrimSpace(req.Name),
		Type:          pType,
		InstitutionID: actor.InstitutionID,
		CreatedBy:     actor.ID,
		GroupIDs:      uniqueIDs(req.GroupIDs),
		SurveyIDs:     uniqueIDs(req.SurveyIDs),
	}
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.processes.Create(ctx, tx, process); err != nil {
			return appErrors.Internal(err, "failed to create process")
		}
		return s.replaceLinks(ctx, tx, process)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("process created", zap.String("process_id", process.ID), zap.Int64("code", process.Code))
	return process, nil
}

// List returns the processes of the caller's institution; ADMIN sees all.
func (s *ProcessService) List(ctx context.Context, claims *models.JWTClaims) ([]models.Process, error) {
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	var scope *string
	if actor.Role != models.RoleAdmin {
		if actor.InstitutionID == nil {
			return []models.Process{}, nil
		}
		scope = actor.InstitutionID
	}
	items, err := s.processes.List(ctx, scope)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list processes")
	}
	if items == nil {
		items = []models.Process{}
	}
	return items, nil
}

// Update edits a process. Nil link lists keep the current links.
func (s *ProcessService) Update(ctx context.Context, claims *models.JWTClaims, id string, req dto.UpdateProcessRequest) (*models.Process, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid process payload", fields)
	}
	process, err := s.owned(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		process.Name = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		pType, ok := models.ParseProcessType(*req.Type)
		if !ok {
			return nil, validationError("invalid process type", map[string]string{"type": "type must be one of VALORACION, PROCEDIMIENTO"})
		}
		process.Type = pType
	}
	if req.GroupIDs != nil {
		process.GroupIDs = uniqueIDs(req.GroupIDs)
	}
	if req.SurveyIDs != nil {
		process.SurveyIDs = uniqueIDs(req.SurveyIDs)
	}

	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.processes.Update(ctx, tx, process); err != nil {
			return notFound(err, "process")
		}
		return s.replaceLinks(ctx, tx, process)
	})
	if err != nil {
		return nil, err
	}
	return process, nil
}

// Delete removes a process.
func (s *ProcessService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	process, err := s.owned(ctx, claims, id)
	if err != nil {
		return err
	}
	if err := s.processes.Delete(ctx, process.ID); err != nil {
		return notFound(err, "process")
	}
	return nil
}

func (s *ProcessService) owned(ctx context.Context, claims *models.JWTClaims, id string) (*models.Process, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	process, err := s.processes.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "process")
	}
	if claims.Role != models.RoleAdmin && process.CreatedBy != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify this process")
	}
	return process, nil
}

func (s *ProcessService) replaceLinks(ctx context.Context, exec sqlx.ExtContext, process *models.Process) error {
	if err := s.processes.ReplaceGroups(ctx, exec, process.ID, process.GroupIDs); err != nil {
		return linkError(err, "groupIds")
	}
	if err := s.processes.ReplaceSurveys(ctx, exec, process.ID, process.SurveyIDs); err != nil {
		return linkError(err, "surveyIds")
	}
	return nil
}

func linkError(err error, field string) error {
	if database.IsForeignKeyViolation(err) {
		return validationError("unknown linked resource", map[string]string{field: "references a resource that does not exist"})
	}
	return appErrors.Internal(err, "failed to link process resources")
}
