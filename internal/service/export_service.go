package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
	"github.com/saludbit/impactou-api/pkg/export"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

var exportHeaders = []string{"UserID", "Nombre", "Email"}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

type exportSurveyReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Survey, error)
}

type exportQuestionReader interface {
	ListBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) ([]models.Question, error)
}

type exportAnswerReader interface {
	ExportRows(ctx context.Context, surveyID string) ([]models.ExportAnswer, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
}

// ExportFile is a rendered survey export.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders survey answers as CSV or PDF documents.
type ExportService struct {
	surveys   exportSurveyReader
	questions exportQuestionReader
	answers   exportAnswerReader
	users     actorReader
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(surveys exportSurveyReader, questions exportQuestionReader, answers exportAnswerReader, users actorReader, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{surveys: surveys, questions: questions, answers: answers, users: users, csv: csv, pdf: pdf, logger: logger}
}

// Export renders one row per respondent with a column per question.
func (s *ExportService) Export(ctx context.Context, claims *models.JWTClaims, surveyID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, validationError("invalid export format", map[string]string{"format": "format must be one of csv, pdf"})
	}

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

	questions, err := s.questions.ListBySurvey(ctx, nil, survey.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load questions")
	}
	rows, err := s.answers.ExportRows(ctx, survey.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load answers")
	}
	dataset := buildExportDataset(questions, rows)

	file := &ExportFile{Filename: exportFilename(survey.Title, format)}
	switch format {
	case FormatPDF:
		file.Data, err = s.pdf.Render(dataset, survey.Title)
		file.ContentType = s.pdf.ContentType()
	default:
		file.Data, err = s.csv.Render(dataset)
		file.ContentType = s.csv.ContentType()
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}

	s.logger.Info("survey exported",
		zap.String("survey_id", survey.ID),
		zap.String("format", format),
		zap.Int("respondents", len(dataset.Rows)),
	)
	return file, nil
}

// buildExportDataset pivots answer rows, which arrive grouped by respondent,
// into one record per respondent. Choice answers are joined with "; ".
func buildExportDataset(questions []models.Question, rows []models.ExportAnswer) export.Dataset {
	headers := append([]string{}, exportHeaders...)
	column := make(map[string]int, len(questions))
	for i, q := range questions {
		headers = append(headers, q.Text)
		column[q.ID] = len(exportHeaders) + i
	}

	dataset := export.Dataset{Headers: headers}
	index := make(map[string]int)
	for _, row := range rows {
		col, ok := column[row.QuestionID]
		if !ok {
			continue
		}
		i, seen := index[row.UserID]
		if !seen {
			record := make([]string, len(headers))
			record[0], record[1], record[2] = row.UserID, row.UserName, row.UserEmail
			dataset.Rows = append(dataset.Rows, record)
			i = len(dataset.Rows) - 1
			index[row.UserID] = i
		}
		dataset.Rows[i][col] = answerText(row)
	}
	return dataset
}

func answerText(row models.ExportAnswer) string {
	if len(row.SelectedOptions) > 0 {
		return strings.Join(row.SelectedOptions, "; ")
	}
	return strValue(row.Value)
}

func exportFilename(title, format string) string {
	base := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(title), "_"), "_")
	if base == "" {
		base = "survey"
	}
	return fmt.Sprintf("%s_responses.%s", base, format)
}
