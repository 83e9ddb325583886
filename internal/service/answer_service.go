package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/dto"
	"github.com/saludbit/impactou-api/internal/models"
	"github.com/saludbit/impactou-api/pkg/database"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
	"github.com/saludbit/impactou-api/pkg/validation"
)

type answerStore interface {
	Insert(ctx context.Context, exec sqlx.ExtContext, answers []models.Answer) error
	AnsweredQuestionIDs(ctx context.Context, exec sqlx.ExtContext, userID, surveyID string) ([]string, error)
	CountForSurvey(ctx context.Context, exec sqlx.ExtContext, userID, surveyID string) (int, error)
	History(ctx context.Context, userID string) ([]models.SubmissionHistoryItem, error)
}

type intakeAssignmentStore interface {
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, userID, surveyID string) (*models.SurveyAssignment, error)
	MarkCompleted(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (bool, error)
}

type intakeSurveyReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Survey, error)
}

type intakeQuestionReader interface {
	ListBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) ([]models.Question, error)
}

// AnswerService records answers and completes assignments.
type AnswerService struct {
	db          txProvider
	answers     answerStore
	assignments intakeAssignmentStore
	surveys     intakeSurveyReader
	questions   intakeQuestionReader
	cache       *CacheService
	metrics     *MetricsService
	validator   *validation.Validator
	logger      *zap.Logger
	now         func() time.Time
}

// NewAnswerService constructs an AnswerService.
func NewAnswerService(
	db txProvider,
	answers answerStore,
	assignments intakeAssignmentStore,
	surveys intakeSurveyReader,
	questions intakeQuestionReader,
	cache *CacheService,
	metrics *MetricsService,
	validate *validation.Validator,
	logger *zap.Logger,
) *AnswerService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnswerService{
		db:          db,
		answers:     answers,
		assignments: assignments,
		surveys:     surveys,
		questions:   questions,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit stores a batch of answers for the caller and, in the same
// transaction, completes the assignment once every question is answered.
// Answers without an assignment are rejected, and so is answering a question
// twice; either way nothing of the batch is stored.
func (s *AnswerService) Submit(ctx context.Context, claims *models.JWTClaims, surveyID string, req dto.SubmitAnswersRequest) (*models.SubmissionResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid answers payload", fields)
	}
	if fields := duplicateQuestions(req.Answers); fields != nil {
		return nil, validationError("each question can be answered once per submission", fields)
	}

	userID := claims.UserID
	now := s.now().UTC()
	result := &models.SubmissionResult{SubmissionID: uuid.NewString(), SurveyID: surveyID}

	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.surveys.FindByID(ctx, tx, surveyID); err != nil {
			return notFound(err, "survey")
		}
		assignment, err := s.assignments.FindForUpdate(ctx, tx, userID, surveyID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "survey is not assigned to this user")
			}
			return appErrors.Internal(err, "failed to lock assignment")
		}

		questions, err := s.questions.ListBySurvey(ctx, tx, surveyID)
		if err != nil {
			return appErrors.Internal(err, "failed to load questions")
		}
		answers, fields := buildAnswers(req.Answers, questions, result.SubmissionID, userID, now)
		if fields != nil {
			return validationError("invalid answers", fields)
		}

		answered, err := s.answers.AnsweredQuestionIDs(ctx, tx, userID, surveyID)
		if err != nil {
			return appErrors.Internal(err, "failed to load previous answers")
		}
		if repeated := intersect(answeredIDs(answers), answered); len(repeated) > 0 {
			return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "question already answered"),
				map[string]string{"questionIds": strings.Join(repeated, ",")})
		}

		if err := s.answers.Insert(ctx, tx, answers); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "question already answered")
			}
			return appErrors.Internal(err, "failed to store answers")
		}

		count, err := s.answers.CountForSurvey(ctx, tx, userID, surveyID)
		if err != nil {
			return appErrors.Internal(err, "failed to count answers")
		}
		result.Saved = len(answers)
		result.Answered = count
		result.Questions = len(questions)
		result.Status = assignment.Status

		if assignment.Status == models.AssignmentPending && IsComplete(count, len(questions)) {
			if _, err := s.assignments.MarkCompleted(ctx, tx, assignment.ID, now); err != nil {
				return appErrors.Internal(err, "failed to complete assignment")
			}
			result.Status = models.AssignmentCompleted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AnswersSubmitted(result.Saved, result.Status == models.AssignmentCompleted)
	}
	s.cache.InvalidateDashboards(ctx)
	s.logger.Info("answers submitted",
		zap.String("survey_id", surveyID),
		zap.String("user_id", userID),
		zap.String("submission_id", result.SubmissionID),
		zap.Int("saved", result.Saved),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// SubmitOne answers a single question addressed by id.
func (s *AnswerService) SubmitOne(ctx context.Context, claims *models.JWTClaims, surveyID, questionID string, req dto.SingleAnswerRequest) (*models.SubmissionResult, error) {
	return s.Submit(ctx, claims, surveyID, dto.SubmitAnswersRequest{
		Answers: []dto.AnswerInput{{QuestionID: questionID, Value: req.Value, Options: req.Options}},
	})
}

// History lists the caller's past submissions.
func (s *AnswerService) History(ctx context.Context, claims *models.JWTClaims) ([]models.SubmissionHistoryItem, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	items, err := s.answers.History(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load submission history")
	}
	if items == nil {
		items = []models.SubmissionHistoryItem{}
	}
	return items, nil
}

func duplicateQuestions(inputs []dto.AnswerInput) map[string]string {
	seen := make(map[string]int, len(inputs))
	fields := map[string]string{}
	for i, in := range inputs {
		if first, ok := seen[in.QuestionID]; ok {
			fields[fmt.Sprintf("answers[%d].questionId", i)] = fmt.Sprintf("duplicates answers[%d]", first)
			continue
		}
		seen[in.QuestionID] = i
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// buildAnswers checks every input against its question and converts it into
// an answer row. Field errors are keyed by the input position.
func buildAnswers(inputs []dto.AnswerInput, questions []models.Question, submissionID, userID string, now time.Time) ([]models.Answer, map[string]string) {
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	fields := map[string]string{}
	answers := make([]models.Answer, 0, len(inputs))
	for i, in := range inputs {
		key := fmt.Sprintf("answers[%d]", i)
		question, ok := byID[in.QuestionID]
		if !ok {
			fields[key+".questionId"] = "question does not belong to this survey"
			continue
		}
		answer := models.Answer{SubmissionID: submissionID, UserID: userID, QuestionID: question.ID, CreatedAt: now}
		switch question.Type {
		case models.QuestionText:
			if in.Value == nil || strings.TrimSpace(*in.Value) == "" {
				fields[key+".value"] = "value is required"
				continue
			}
			value := strings.TrimSpace(*in.Value)
			answer.Value = &value
			answer.SelectedOptions = []string{}
		case models.QuestionSingle:
			options := selectedOptions(in)
			if len(options) != 1 {
				fields[key+".options"] = "exactly one option must be selected"
				continue
			}
			if !question.HasOption(options[0]) {
				fields[key+".options"] = fmt.Sprintf("%q is not an option of this question", options[0])
				continue
			}
			answer.SelectedOptions = options
		case models.QuestionMultiple:
			options := selectedOptions(in)
			if len(options) == 0 {
				fields[key+".options"] = "at least one option must be selected"
				continue
			}
			invalid := ""
			for _, opt := range options {
				if !question.HasOption(opt) {
					invalid = opt
					break
				}
			}
			if invalid != "" {
				fields[key+".options"] = fmt.Sprintf("%q is not an option of this question", invalid)
				continue
			}
			answer.SelectedOptions = options
		default:
			fields[key+".questionId"] = "question has an unsupported type"
			continue
		}
		answers = append(answers, answer)
	}
	if len(fields) > 0 {
		return nil, fields
	}
	return answers, nil
}

// selectedOptions returns the distinct, trimmed options of an input. A bare
// value is accepted as the single selection of a choice question.
func selectedOptions(in dto.AnswerInput) []string {
	raw := in.Options
	if len(raw) == 0 && in.Value != nil {
		raw = []string{*in.Value}
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, opt := range raw {
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
	return out
}

func answeredIDs(answers []models.Answer) []string {
	ids := make([]string, len(answers))
	for i, a := range answers {
		ids[i] = a.QuestionID
	}
	return ids
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
