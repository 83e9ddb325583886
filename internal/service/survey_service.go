package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
	"github.com/saludbit/impactou-api/pkg/validation"
)

type surveyStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, survey *models.Survey) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Survey, error)
	ListAll(ctx context.Context, filter models.SurveyFilter) ([]models.SurveyListItem, error)
	ListAssigned(ctx context.Context, userID string, includeInactive bool) ([]models.AssignedSurvey, error)
	Update(ctx context.Context, exec sqlx.ExtContext, survey *models.Survey) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type questionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, question *models.Question) error
	ListBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) ([]models.Question, error)
	FindByID(ctx context.Context, surveyID, id string) (*models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	DeleteBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) error
}

type surveyAssignmentStore interface {
	Find(ctx context.Context, userID, surveyID string) (*models.SurveyAssignment, error)
	UpdateDueDates(ctx context.Context, exec sqlx.ExtContext, surveyID string, due time.Time) (int, error)
	ReopenIncomplete(ctx context.Context, exec sqlx.ExtContext, surveyID string, questionCount int) (int, error)
	DeleteBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) error
}

type surveyAnswerStore interface {
	DeleteBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) error
	ListForSurvey(ctx context.Context, surveyID string) ([]models.Answer, error)
}

// SurveyService manages surveys, their questions and results.
type SurveyService struct {
	db          txProvider
	surveys     surveyStore
	questions   questionStore
	assignments surveyAssignmentStore
	answers     surveyAnswerStore
	users       actorReader
	fanOut      surveyFanOut
	audit       auditRecorder
	cache       *CacheService
	validator   *validation.Validator
	logger      *zap.Logger
}

// NewSurveyService constructs a SurveyService.
func NewSurveyService(
	db txProvider,
	surveys surveyStore,
	questions questionStore,
	assignments surveyAssignmentStore,
	answers surveyAnswerStore,
	users actorReader,
	fanOut surveyFanOut,
	audit auditRecorder,
	cache *CacheService,
	validate *validation.Validator,
	logger *zap.Logger,
) *SurveyService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurveyService{
		db:          db,
		surveys:     surveys,
		questions:   questions,
		assignments: assignments,
		answers:     answers,
		users:       users,
		fanOut:      fanOut,
		audit:       audit,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// Create stores a survey owned by the caller's institution and assigns it to
// the caller in the same transaction.
func (s *SurveyService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateSurveyRequest) (*models.SurveyDetail, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid survey payload", fields)
	}
	if fields := checkSurveyDates(req.StartDate, req.EndDate); fields != nil {
		return nil, validationError("invalid survey dates", fields)
	}
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}

	creator := actor.ID
	survey := &models.Survey{
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		StartDate:     req.StartDate.UTC(),
		EndDate:       req.EndDate.UTC(),
		InstitutionID: actor.InstitutionID,
		CreatedBy:     &creator,
	}
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.surveys.Create(ctx, tx, survey); err != nil {
			return appErrors.Internal(err, "failed to create survey")
		}
		_, err := s.fanOut.FanOut(ctx, tx, survey, []string{actor.ID}, models.SourceCreator)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateDashboards(ctx)
	s.logger.Info("survey created", zap.String("survey_id", survey.ID), zap.String("created_by", actor.ID))
	return &models.SurveyDetail{Survey: *survey, Questions: []models.Question{}}, nil
}

// ListAssigned returns the caller's assigned surveys. Surveys only reachable
// through groups the caller left are included on request, flagged inactive.
func (s *SurveyService) ListAssigned(ctx context.Context, claims *models.JWTClaims, includeInactive bool) ([]models.AssignedSurvey, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	items, err := s.surveys.ListAssigned(ctx, claims.UserID, includeInactive)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list assigned surveys")
	}
	if items == nil {
		items = []models.AssignedSurvey{}
	}
	return items, nil
}

// ListAll returns the surveys an administrator can see.
func (s *SurveyService) ListAll(ctx context.Context, claims *models.JWTClaims, groupID *string) ([]models.SurveyListItem, error) {
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	filter := models.SurveyFilter{GroupID: groupID}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleInstitutionAdmin:
		if actor.InstitutionID == nil {
			return []models.SurveyListItem{}, nil
		}
		filter.InstitutionID = actor.InstitutionID
	default:
		return nil, appErrors.ErrForbidden
	}
	items, err := s.surveys.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list surveys")
	}
	if items == nil {
		items = []models.SurveyListItem{}
	}
	return items, nil
}

// Get returns a survey with its questions. Students only see surveys assigned
// to them and receive their assignment alongside.
func (s *SurveyService) Get(ctx context.Context, claims *models.JWTClaims, surveyID string) (*models.SurveyDetail, error) {
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	survey, err := s.surveys.FindByID(ctx, nil, surveyID)
	if err != nil {
		return nil, notFound(err, "survey")
	}

	assignment, err := s.assignments.Find(ctx, actor.ID, survey.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load assignment")
	}
	if assignment == nil && !canView(actor, survey) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
	}

	questions, err := s.questions.ListBySurvey(ctx, nil, survey.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load questions")
	}
	if questions == nil {
		questions = []models.Question{}
	}
	return &models.SurveyDetail{Survey: *survey, Questions: questions, Assignment: assignment}, nil
}

// Update patches a survey. Moving the end date moves every assignment due date
// in the same transaction.
func (s *SurveyService) Update(ctx context.Context, claims *models.JWTClaims, surveyID string, req dto.UpdateSurveyRequest) (*models.Survey, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid survey payload", fields)
	}
	survey, err := s.manageable(ctx, claims, surveyID)
	if err != nil {
		return nil, err
	}

	endChanged := false
	if req.Title != nil {
		survey.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		survey.Description = strings.TrimSpace(*req.Description)
	}
	if req.StartDate != nil {
		survey.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		endChanged = !req.EndDate.Equal(survey.EndDate)
		survey.EndDate = req.EndDate.UTC()
	}
	if fields := checkSurveyDates(survey.StartDate, survey.EndDate); fields != nil {
		return nil, validationError("invalid survey dates", fields)
	}

	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.surveys.Update(ctx, tx, survey); err != nil {
			return notFound(err, "survey")
		}
		if endChanged {
			if _, err := s.assignments.UpdateDueDates(ctx, tx, survey.ID, survey.EndDate); err != nil {
				return appErrors.Internal(err, "failed to update assignment due dates")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateDashboards(ctx)
	return survey, nil
}

// Delete removes a survey with its answers, questions and assignments, all or
// nothing.
func (s *SurveyService) Delete(ctx context.Context, claims *models.JWTClaims, surveyID string) error {
	survey, err := s.manageable(ctx, claims, surveyID)
	if err != nil {
		return err
	}
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.answers.DeleteBySurvey(ctx, tx, survey.ID); err != nil {
			return appErrors.Internal(err, "failed to delete answers")
		}
		if err := s.questions.DeleteBySurvey(ctx, tx, survey.ID); err != nil {
			return appErrors.Internal(err, "failed to delete questions")
		}
		if err := s.assignments.DeleteBySurvey(ctx, tx, survey.ID); err != nil {
			return appErrors.Internal(err, "failed to delete assignments")
		}
		if err := s.surveys.Delete(ctx, tx, survey.ID); err != nil {
			return notFound(err, "survey")
		}
		return nil
	})
	if err != nil {
		return err
	}
	recordAudit(ctx, s.audit, s.logger, claims.UserID, models.AuditActionSurveyDelete, "survey", survey.ID)
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// AddQuestion appends a question to a survey.
func (s *SurveyService) AddQuestion(ctx context.Context, claims *models.JWTClaims, surveyID string, req dto.CreateQuestionRequest) (*models.Question, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid question payload", fields)
	}
	survey, err := s.manageable(ctx, claims, surveyID)
	if err != nil {
		return nil, err
	}
	qType, _ := models.ParseQuestionType(req.Type)
	options, fields := normaliseOptions(qType, req.Options)
	if fields != nil {
		return nil, validationError("invalid question options", fields)
	}

	question := &models.Question{SurveyID: survey.ID, Text: strings.TrimSpace(req.Text), Type: qType, Options: options}
	reopened := 0
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.questions.Create(ctx, tx, question); err != nil {
			return appErrors.Internal(err, "failed to create question")
		}
		questions, err := s.questions.ListBySurvey(ctx, tx, survey.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to count questions")
		}
		// A completed assignment stays completed only while its answers cover every question.
		reopened, err = s.assignments.ReopenIncomplete(ctx, tx, survey.ID, len(questions))
		if err != nil {
			return appErrors.Internal(err, "failed to reopen assignments")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reopened > 0 {
		s.logger.Info("assignments reopened by new question",
			zap.String("survey_id", survey.ID), zap.Int("reopened", reopened))
	}
	s.cache.InvalidateDashboards(ctx)
	return question, nil
}

// ListQuestions returns a survey's questions in creation order.
func (s *SurveyService) ListQuestions(ctx context.Context, claims *models.JWTClaims, surveyID string) ([]models.Question, error) {
	detail, err := s.Get(ctx, claims, surveyID)
	if err != nil {
		return nil, err
	}
	return detail.Questions, nil
}

// GetQuestion returns one question of a survey.
func (s *SurveyService) GetQuestion(ctx context.Context, claims *models.JWTClaims, surveyID, questionID string) (*models.Question, error) {
	if _, err := s.Get(ctx, claims, surveyID); err != nil {
		return nil, err
	}
	question, err := s.questions.FindByID(ctx, surveyID, questionID)
	if err != nil {
		return nil, notFound(err, "question")
	}
	return question, nil
}

// UpdateQuestion edits a question. Changing the type re-checks the options.
func (s *SurveyService) UpdateQuestion(ctx context.Context, claims *models.JWTClaims, surveyID, questionID string, req dto.UpdateQuestionRequest) (*models.Question, error) {
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid question payload", fields)
	}
	if _, err := s.manageable(ctx, claims, surveyID); err != nil {
		return nil, err
	}
	question, err := s.questions.FindByID(ctx, surveyID, questionID)
	if err != nil {
		return nil, notFound(err, "question")
	}

	if req.Text != nil {
		question.Text = strings.TrimSpace(*req.Text)
	}
	if req.Type != nil {
		question.Type, _ = models.ParseQuestionType(*req.Type)
	}
	options := []string(question.Options)
	if req.Options != nil {
		options = req.Options
	}
	normalised, fields := normaliseOptions(question.Type, options)
	if fields != nil {
		return nil, validationError("invalid question options", fields)
	}
	question.Options = normalised

	if err := s.questions.Update(ctx, question); err != nil {
		return nil, notFound(err, "question")
	}
	return question, nil
}

// Results aggregates the answers of a survey per question.
func (s *SurveyService) Results(ctx context.Context, claims *models.JWTClaims, surveyID string) (*models.SurveyResults, error) {
	survey, err := s.viewable(ctx, claims, surveyID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.ListBySurvey(ctx, nil, survey.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load questions")
	}
	answers, err := s.answers.ListForSurvey(ctx, survey.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load answers")
	}
	return buildResults(survey, questions, answers), nil
}

func buildResults(survey *models.Survey, questions []models.Question, answers []models.Answer) *models.SurveyResults {
	results := &models.SurveyResults{SurveyID: survey.ID, Title: survey.Title, Questions: make([]models.QuestionResult, 0, len(questions))}
	index := make(map[string]int, len(questions))
	for i, q := range questions {
		item := models.QuestionResult{QuestionID: q.ID, Text: q.Text, Type: q.Type}
		if q.Type.IsChoice() {
			item.OptionCounts = make(map[string]int, len(q.Options))
			for _, opt := range q.Options {
				item.OptionCounts[opt] = 0
			}
		} else {
			item.TextAnswers = []string{}
		}
		results.Questions = append(results.Questions, item)
		index[q.ID] = i
	}

	respondents := make(map[string]struct{})
	for _, a := range answers {
		i, ok := index[a.QuestionID]
		if !ok {
			continue
		}
		respondents[a.UserID] = struct{}{}
		item := &results.Questions[i]
		item.Responses++
		if item.Type.IsChoice() {
			for _, opt := range a.SelectedOptions {
				item.OptionCounts[opt]++
			}
		} else if a.Value != nil {
			item.TextAnswers = append(item.TextAnswers, *a.Value)
		}
	}
	results.Respondents = len(respondents)
	return results
}

func (s *SurveyService) viewable(ctx context.Context, claims *models.JWTClaims, surveyID string) (*models.Survey, error) {
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	survey, err := s.surveys.FindByID(ctx, nil, surveyID)
	if err != nil {
		return nil, notFound(err, "survey")
	}
	if !canView(actor, survey) {
		return nil, appErrors.ErrForbidden
	}
	return survey, nil
}

func (s *SurveyService) manageable(ctx context.Context, claims *models.JWTClaims, surveyID string) (*models.Survey, error) {
	actor, err := loadActor(ctx, s.users, claims)
	if err != nil {
		return nil, err
	}
	survey, err := s.surveys.FindByID(ctx, nil, surveyID)
	if err != nil {
		return nil, notFound(err, "survey")
	}
	if !canManage(actor, survey.InstitutionID, strValue(survey.CreatedBy)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify this survey")
	}
	return survey, nil
}

// canView lets administrators read surveys of their scope, global ones included.
func canView(actor *models.User, survey *models.Survey) bool {
	if actor.Role == models.RoleInstitutionAdmin && survey.InstitutionID == nil {
		return true
	}
	return canManage(actor, survey.InstitutionID, strValue(survey.CreatedBy))
}

func checkSurveyDates(start, end time.Time) map[string]string {
	fields := map[string]string{}
	if start.IsZero() {
		fields["startDate"] = "startDate is required"
	}
	if end.IsZero() {
		fields["endDate"] = "endDate is required"
	}
	if len(fields) == 0 && end.Before(start) {
		fields["endDate"] = "endDate must not be before startDate"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// normaliseOptions trims and de-duplicates options. Choice questions need at
// least one option; text questions never store any.
func normaliseOptions(qType models.QuestionType, options []string) ([]string, map[string]string) {
	if !qType.IsChoice() {
		return []string{}, nil
	}
	seen := make(map[string]struct{}, len(options))
	out := make([]string, 0, len(options))
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		if _, ok := seen[opt]; ok {
			continue
		}
		seen[opt] = struct{}{}
		out = append(out, opt)
	}
	if len(out) == 0 {
		return nil, map[string]string{"options": "choice questions need at least one option"}
	}
	return out, nil
}
