package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	"github.com/saludbit/impactou-api/pkg/database"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
	"github.com/saludbit/impactou-api/pkg/validation"
)

const (
	invitationPrefix   = "PRO-"
	invitationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	invitationLength   = 6
	invitationAttempts = 5
)

type groupStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, group *models.Group) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.Group, error)
	List(ctx context.Context, filter models.GroupFilter) ([]models.GroupSummary, error)
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id string) error
	Members(ctx context.Context, groupID string) ([]models.GroupMember, error)
	FindMembership(ctx context.Context, exec sqlx.ExtContext, groupID, userID string) (*models.Membership, error)
	AddMember(ctx context.Context, exec sqlx.ExtContext, groupID, userID string, at time.Time) error
	ReactivateMember(ctx context.Context, exec sqlx.ExtContext, groupID, userID string, at time.Time) error
	DeactivateMember(ctx context.Context, exec sqlx.ExtContext, groupID, userID string, at time.Time) (bool, error)
	RemoveMember(ctx context.Context, groupID, userID string) error
	LinkSurveys(ctx context.Context, exec sqlx.ExtContext, groupID string, surveyIDs []string) error
	LinkedSurveyIDs(ctx context.Context, exec sqlx.ExtContext, groupID string) ([]string, error)
	LinkedSurveys(ctx context.Context, groupID string) ([]models.Survey, error)
	AssignmentSummary(ctx context.Context, groupID string) ([]models.GroupAssignmentSummary, error)
}

type groupUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	AdoptInstitution(ctx context.Context, exec sqlx.ExtContext, id, institutionID string) (bool, error)
}

type groupSurveyReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Survey, error)
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

type surveyFanOut interface {
	FanOut(ctx context.Context, exec sqlx.ExtContext, survey *models.Survey, targets []string, source models.AssignmentSource) (*models.FanOutResult, error)
}

// GroupService manages groups, invitation codes and memberships.
type GroupService struct {
	db        txProvider
	groups    groupStore
	users     groupUserStore
	surveys   groupSurveyReader
	fanOut    surveyFanOut
	audit     auditRecorder
	cache     *CacheService
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
	codes     func() (string, error)
}

// NewGroupService constructs a GroupService.
func NewGroupService(
	db txProvider,
	groups groupStore,
	users groupUserStore,
	surveys groupSurveyReader,
	fanOut surveyFanOut,
	audit auditRecorder,
	cache *CacheService,
	validate *validation.Validator,
	logger *zap.Logger,
) *GroupService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{
		db:        db,
		groups:    groups,
		users:     users,
		surveys:   surveys,
		fanOut:    fanOut,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		codes:     generateInvitationCode,
	}
}

// Create registers a group with a fresh invitation code and links the
// requested surveys to it.
func (s *GroupService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateGroupRequest) (*models.GroupDetail, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid group payload", fields)
	}
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}

	institutionID := actor.InstitutionID
	if req.InstitutionID != nil {
		if actor.Role != models.RoleAdmin && !sameInstitution(actor.InstitutionID, req.InstitutionID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot create groups for another institution")
		}
		institutionID = req.InstitutionID
	}

	surveyIDs := uniqueIDs(req.SurveyIDs)
	if len(surveyIDs) > 0 {
		existing, err := s.surveys.ExistingIDs(ctx, surveyIDs)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to verify surveys")
		}
		if missing := difference(surveyIDs, existing); len(missing) > 0 {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "survey not found"),
				map[string]string{"surveyIds": strings.Join(missing, ",")})
		}
	}

	group := &models.Group{
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		Tutor:         strings.TrimSpace(req.Tutor),
		CreatedBy:     actor.ID,
		InstitutionID: institutionID,
	}

	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.insertWithCode(ctx, tx, group); err != nil {
			return err
		}
		if len(surveyIDs) > 0 {
			if err := s.groups.LinkSurveys(ctx, tx, group.ID, surveyIDs); err != nil {
				return appErrors.Internal(err, "failed to link surveys to group")
			}
		}
		return nil
	})
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "institution does not exist")
		}
		return nil, err
	}

	s.cache.InvalidateDashboards(ctx)
	s.logger.Info("group created", zap.String("group_id", group.ID), zap.String("code", group.InvitationCode))
	return s.detail(ctx, group)
}

func (s *GroupService) insertWithCode(ctx context.Context, exec sqlx.ExtContext, group *models.Group) error {
	for attempt := 0; attempt < invitationAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return appErrors.Internal(err, "failed to generate invitation code")
		}
		group.InvitationCode = code
		created, err := s.groups.Create(ctx, exec, group)
		if err != nil {
			return appErrors.Internal(err, "failed to create group")
		}
		if created {
			return nil
		}
		s.logger.Debug("invitation code collision", zap.String("code", code))
	}
	return appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique invitation code")
}

// List returns the groups visible to the caller. Students see their own
// memberships, left ones included and flagged.
func (s *GroupService) List(ctx context.Context, claims *models.JWTClaims) ([]models.GroupSummary, error) {
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	var filter models.GroupFilter
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleInstitutionAdmin:
		if actor.InstitutionID == nil {
			return []models.GroupSummary{}, nil
		}
		filter.InstitutionID = actor.InstitutionID
	default:
		filter.MemberID = &actor.ID
	}
	groups, err := s.groups.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list groups")
	}
	if groups == nil {
		groups = []models.GroupSummary{}
	}
	return groups, nil
}

// Get returns a group with its members and linked surveys.
func (s *GroupService) Get(ctx context.Context, claims *models.JWTClaims, groupID string) (*models.GroupDetail, error) {
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, notFound(err, "group")
	}
	if !canManage(actor, group.InstitutionID, group.CreatedBy) {
		if _, err := s.groups.FindMembership(ctx, nil, group.ID, actor.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this group")
			}
			return nil, appErrors.Internal(err, "failed to verify membership")
		}
	}
	return s.detail(ctx, group)
}

func (s *GroupService) detail(ctx context.Context, group *models.Group) (*models.GroupDetail, error) {
	members, err := s.groups.Members(ctx, group.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load group members")
	}
	surveys, err := s.groups.LinkedSurveys(ctx, group.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load group surveys")
	}
	if members == nil {
		members = []models.GroupMember{}
	}
	if surveys == nil {
		surveys = []models.Survey{}
	}
	return &models.GroupDetail{Group: *group, Members: members, Surveys: surveys}, nil
}

// Update edits group metadata. Only the creator may do so.
func (s *GroupService) Update(ctx context.Context, claims *models.JWTClaims, groupID string, req dto.UpdateGroupRequest) (*models.Group, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid group payload", fields)
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, notFound(err, "group")
	}
	if group.CreatedBy != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator can edit this group")
	}
	if req.Name != nil {
		group.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		group.Description = strings.TrimSpace(*req.Description)
	}
	if req.Tutor != nil {
		group.Tutor = strings.TrimSpace(*req.Tutor)
	}
	if err := s.groups.Update(ctx, group); err != nil {
		return nil, notFound(err, "group")
	}
	return group, nil
}

// Delete removes a group together with its memberships and survey links.
// Assignments and answers already created are kept.
func (s *GroupService) Delete(ctx context.Context, claims *models.JWTClaims, groupID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return notFound(err, "group")
	}
	if group.CreatedBy != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the creator can delete this group")
	}
	if err := s.groups.Delete(ctx, group.ID); err != nil {
		return notFound(err, "group")
	}
	recordAudit(ctx, s.audit, s.logger, claims.UserID, models.AuditActionGroupDelete, "group", group.ID)
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// Join redeems an invitation code. A left membership is reactivated, a new one
// is created otherwise, and surveys linked to the group are assigned to the
// user. Joining while already an active member is a conflict.
func (s *GroupService) Join(ctx context.Context, claims *models.JWTClaims, req dto.JoinGroupRequest) (*models.JoinGroupResult, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid invitation code", fields)
	}
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}

	result := &models.JoinGroupResult{}
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		group, err := s.groups.FindByCode(ctx, tx, req.InvitationCode)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "invalid invitation code")
			}
			return appErrors.Internal(err, "failed to resolve invitation code")
		}
		result.Group = *group
		now := s.now().UTC()

		membership, err := s.groups.FindMembership(ctx, tx, group.ID, actor.ID)
		switch {
		case err == nil && membership.IsActive():
			return appErrors.Clone(appErrors.ErrConflict, "already a member of this group")
		case err == nil:
			if err := s.groups.ReactivateMember(ctx, tx, group.ID, actor.ID, now); err != nil {
				return appErrors.Internal(err, "failed to reactivate membership")
			}
			result.Reactivated = true
		case errors.Is(err, sql.ErrNoRows):
			if err := s.groups.AddMember(ctx, tx, group.ID, actor.ID, now); err != nil {
				if database.IsUniqueViolation(err) {
					return appErrors.Clone(appErrors.ErrConflict, "already a member of this group")
				}
				return appErrors.Internal(err, "failed to add membership")
			}
		default:
			return appErrors.Internal(err, "failed to load membership")
		}

		if group.InstitutionID != nil && actor.InstitutionID == nil {
			if _, err := s.users.AdoptInstitution(ctx, tx, actor.ID, *group.InstitutionID); err != nil {
				return appErrors.Internal(err, "failed to adopt group institution")
			}
		}

		surveyIDs, err := s.groups.LinkedSurveyIDs(ctx, tx, group.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to load group surveys")
		}
		for _, id := range surveyIDs {
			survey, err := s.fanOutSurvey(ctx, tx, id)
			if err != nil {
				return err
			}
			fan, err := s.fanOut.FanOut(ctx, tx, survey, []string{actor.ID}, models.SourceJoin)
			if err != nil {
				return err
			}
			result.Assigned += fan.Created
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Reactivated {
		result.Message = "membership reactivated"
	} else {
		result.Message = "joined group"
	}
	s.cache.InvalidateDashboards(ctx)
	s.logger.Info("group joined",
		zap.String("group_id", result.Group.ID),
		zap.String("user_id", actor.ID),
		zap.Bool("reactivated", result.Reactivated),
		zap.Int("assigned", result.Assigned),
	)
	return result, nil
}

func (s *GroupService) fanOutSurvey(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Survey, error) {
	survey, err := s.surveys.FindByID(ctx, exec, id)
	if err != nil {
		return nil, notFound(err, "survey")
	}
	return survey, nil
}

// Leave soft-removes the caller's membership. Leaving a group already left is
// a no-op.
func (s *GroupService) Leave(ctx context.Context, claims *models.JWTClaims, groupID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	membership, err := s.groups.FindMembership(ctx, nil, groupID, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "not a member of this group")
		}
		return appErrors.Internal(err, "failed to load membership")
	}
	if !membership.IsActive() {
		return nil
	}
	if _, err := s.groups.DeactivateMember(ctx, nil, groupID, claims.UserID, s.now().UTC()); err != nil {
		return appErrors.Internal(err, "failed to leave group")
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// RemoveMember hard-deletes a membership. Allowed for the group creator and ADMIN.
func (s *GroupService) RemoveMember(ctx context.Context, claims *models.JWTClaims, groupID, memberID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return notFound(err, "group")
	}
	if group.CreatedBy != claims.UserID && claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot remove members from this group")
	}
	if err := s.groups.RemoveMember(ctx, group.ID, memberID); err != nil {
		return notFound(err, "member")
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// Assignments reports per linked survey how the group's members progress.
func (s *GroupService) Assignments(ctx context.Context, claims *models.JWTClaims, groupID string) ([]models.GroupAssignmentSummary, error) {
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, notFound(err, "group")
	}
	if !canManage(actor, group.InstitutionID, group.CreatedBy) {
		return nil, appErrors.ErrForbidden
	}
	summary, err := s.groups.AssignmentSummary(ctx, group.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load group assignments")
	}
	if summary == nil {
		summary = []models.GroupAssignmentSummary{}
	}
	return summary, nil
}

// generateInvitationCode returns PRO- followed by six characters drawn
// uniformly from A-Z and 0-9.
func generateInvitationCode() (string, error) {
	var b strings.Builder
	b.WriteString(invitationPrefix)
	max := big.NewInt(int64(len(invitationAlphabet)))
	for i := 0; i < invitationLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(invitationAlphabet[n.Int64()])
	}
	return b.String(), nil
}
