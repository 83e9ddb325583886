package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
)

type actorReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// loadActor resolves the caller from the store so role and institution reflect
// the current state rather than what was signed into the token.
func loadActor(ctx context.Context, users actorReader, claims *models.JWTClaims) (*models.User, error) {
	if claims == nil || claims.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Internal(err, "failed to load current user")
	}
	return user, nil
}

// canManage reports whether actor may administer a resource owned by
// institutionID and created by createdBy. ADMIN manages everything; an
// INSTITUTION_ADMIN manages what belongs to their institution or what they created.
func canManage(actor *models.User, institutionID *string, createdBy string) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleInstitutionAdmin:
		if createdBy != "" && createdBy == actor.ID {
			return true
		}
		return sameInstitution(actor.InstitutionID, institutionID)
	}
	return false
}

func sameInstitution(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// notFound maps sql.ErrNoRows to NotFound and everything else to Internal.
func notFound(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, resource+" not found")
	}
	return appErrors.Internal(err, "failed to load "+resource)
}

func validationError(message string, details map[string]string) error {
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, message), details)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes an audit entry. Failures are logged and never surface.
func recordAudit(ctx context.Context, audit auditRecorder, logger *zap.Logger, userID, action, resource, resourceID string) {
	if audit == nil {
		return
	}
	entry := &models.AuditLog{UserID: &userID, Action: action, Resource: resource}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
