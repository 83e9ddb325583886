package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
	"github.com/saludbit/impactou-api/pkg/validation"
)

type assignmentWriter interface {
	AssignedUserIDs(ctx context.Context, exec sqlx.ExtContext, surveyID string, userIDs []string) ([]string, error)
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, surveyID string, userIDs []string, dueDate, now time.Time) (int, error)
}

type fanOutSurveyReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Survey, error)
}

type fanOutUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListStudentIDsByInstitution(ctx context.Context, exec sqlx.ExtContext, institutionID string) ([]string, error)
}

type fanOutGroupStore interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	ActiveMemberIDs(ctx context.Context, exec sqlx.ExtContext, groupID string) ([]string, error)
	LinkSurveys(ctx context.Context, exec sqlx.ExtContext, groupID string, surveyIDs []string) error
}

type institutionFinder interface {
	FindByID(ctx context.Context, id string) (*models.Institution, error)
}

// AssignmentService fans surveys out to institutions and groups.
type AssignmentService struct {
	db           txProvider
	assignments  assignmentWriter
	surveys      fanOutSurveyReader
	users        fanOutUserReader
	groups       fanOutGroupStore
	institutions institutionFinder
	cache        *CacheService
	metrics      *MetricsService
	validator    *validation.Validator
	logger       *zap.Logger
	now          func() time.Time
}

// NewAssignmentService constructs the fan-out service.
func NewAssignmentService(
	db txProvider,
	assignments assignmentWriter,
	surveys fanOutSurveyReader,
	users fanOutUserReader,
	groups fanOutGroupStore,
	institutions institutionFinder,
	cache *CacheService,
	metrics *MetricsService,
	validate *validation.Validator,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		db:           db,
		assignments:  assignments,
		surveys:      surveys,
		users:        users,
		groups:       groups,
		institutions: institutions,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// FanOut makes sure every target holds exactly one assignment for survey. It
// runs on exec so callers can compose it into their own transaction. Targets
// that are already assigned, including ones inserted concurrently, are skipped.
func (s *AssignmentService) FanOut(ctx context.Context, exec sqlx.ExtContext, survey *models.Survey, targets []string, source models.AssignmentSource) (*models.FanOutResult, error) {
	targets = uniqueIDs(targets)
	result := &models.FanOutResult{SurveyID: survey.ID, Targeted: len(targets)}
	if len(targets) == 0 {
		result.Message = "no users to assign"
		return result, nil
	}

	existing, err := s.assignments.AssignedUserIDs(ctx, exec, survey.ID, targets)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check existing assignments")
	}
	pending := difference(targets, existing)

	created, err := s.assignments.BulkCreate(ctx, exec, survey.ID, pending, survey.EndDate, s.now().UTC())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create assignments")
	}
	result.Created = created
	result.AlreadyAssigned = result.Targeted - created
	if created == 0 {
		result.Message = "all users already assigned"
	} else {
		result.Message = fmt.Sprintf("%d assignments created", created)
	}

	if s.metrics != nil {
		s.metrics.AssignmentsCreated(source, created)
	}
	s.logger.Debug("survey fan-out",
		zap.String("survey_id", survey.ID),
		zap.String("source", string(source)),
		zap.Int("targeted", result.Targeted),
		zap.Int("created", created),
	)
	return result, nil
}

// AssignToInstitution assigns the survey to every student of an institution.
// Without an explicit institution the caller's own is used.
func (s *AssignmentService) AssignToInstitution(ctx context.Context, claims *models.JWTClaims, surveyID string, req dto.AssignInstitutionRequest) (*models.FanOutResult, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid assignment payload", fields)
	}
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}

	institutionID := strValue(req.InstitutionID)
	if institutionID == "" {
		institutionID = strValue(actor.InstitutionID)
	}
	if institutionID == "" {
		return nil, validationError("institution is required", map[string]string{"institutionId": "institutionId is required"})
	}
	if actor.Role != models.RoleAdmin && !sameInstitution(actor.InstitutionID, &institutionID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot assign surveys to another institution")
	}
	if _, err := s.institutions.FindByID(ctx, institutionID); err != nil {
		return nil, notFound(err, "institution")
	}

	var result *models.FanOutResult
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		survey, err := s.surveys.FindByID(ctx, tx, surveyID)
		if err != nil {
			return notFound(err, "survey")
		}
		if !canView(actor, survey) {
			return appErrors.Clone(appErrors.ErrForbidden, "cannot assign this survey")
		}
		targets, err := s.users.ListStudentIDsByInstitution(ctx, tx, institutionID)
		if err != nil {
			return appErrors.Internal(err, "failed to resolve institution students")
		}
		result, err = s.FanOut(ctx, tx, survey, targets, models.SourceInstitution)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateDashboards(ctx)
	return result, nil
}

// AssignToGroup links the survey to a group and assigns it to the group's
// active members. Members who join later receive it on join.
func (s *AssignmentService) AssignToGroup(ctx context.Context, claims *models.JWTClaims, surveyID string, req dto.AssignGroupRequest) (*models.FanOutResult, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid assignment payload", fields)
	}
	results, err := s.AssignSurveysToGroup(ctx, claims, req.GroupID, dto.AssignSurveysRequest{SurveyIDs: []string{surveyID}})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// AssignSurveysToGroup links several surveys to a group and fans each of them
// out to the active members in a single transaction.
func (s *AssignmentService) AssignSurveysToGroup(ctx context.Context, claims *models.JWTClaims, groupID string, req dto.AssignSurveysRequest) ([]models.FanOutResult, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid assignment payload", fields)
	}
	surveyIDs := uniqueIDs(req.SurveyIDs)
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, notFound(err, "group")
	}
	if !canManage(actor, group.InstitutionID, group.CreatedBy) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot assign surveys to this group")
	}

	results := make([]models.FanOutResult, 0, len(surveyIDs))
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		surveys := make([]*models.Survey, 0, len(surveyIDs))
		for _, id := range surveyIDs {
			survey, err := s.surveys.FindByID(ctx, tx, id)
			if err != nil {
				return notFound(err, "survey")
			}
			if !canView(actor, survey) {
				return appErrors.WithDetails(appErrors.Clone(appErrors.ErrForbidden, "cannot assign this survey"),
					map[string]string{"surveyIds": id})
			}
			surveys = append(surveys, survey)
		}
		if err := s.groups.LinkSurveys(ctx, tx, group.ID, surveyIDs); err != nil {
			return appErrors.Internal(err, "failed to link surveys to group")
		}
		members, err := s.groups.ActiveMemberIDs(ctx, tx, group.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to resolve group members")
		}
		for _, survey := range surveys {
			result, err := s.FanOut(ctx, tx, survey, members, models.SourceGroup)
			if err != nil {
				return err
			}
			results = append(results, *result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateDashboards(ctx)
	return results, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func difference(all, remove []string) []string {
	if len(remove) == 0 {
		return all
	}
	skip := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(all))
	for _, id := range all {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
