package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// Survey is a dated questionnaire, also called a record.
type Survey struct {
	ID            string    `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	StartDate     time.Time `db:"start_date" json:"startDate"`
	EndDate       time.Time `db:"end_date" json:"endDate"`
	InstitutionID *string   `db:"institution_id" json:"institutionId,omitempty"`
	CreatedBy     *string   `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// SurveyListItem is an admin listing row.
type SurveyListItem struct {
	Survey
	QuestionCount int   `db:"question_count" json:"questionCount"`
	IsAssigned    *bool `db:"is_assigned" json:"isAssigned,omitempty"`
}

// AssignedSurvey is a survey seen through the current user's assignment.
type AssignedSurvey struct {
	Survey
	AssignmentID  string           `db:"assignment_id" json:"assignmentId"`
	Status        AssignmentStatus `db:"status" json:"status"`
	DueDate       time.Time        `db:"due_date" json:"dueDate"`
	CompletedAt   *time.Time       `db:"completed_at" json:"completedAt,omitempty"`
	QuestionCount int              `db:"question_count" json:"questionCount"`
	AnswerCount   int              `db:"answer_count" json:"answerCount"`
	Active        bool             `db:"active" json:"active"`
}

// SurveyDetail bundles a survey with its ordered questions.
type SurveyDetail struct {
	Survey
	Questions  []Question        `json:"questions"`
	Assignment *SurveyAssignment `json:"assignment,omitempty"`
}

// SurveyFilter scopes admin survey listings.
type SurveyFilter struct {
	InstitutionID *string
	GroupID       *string
}

// SurveyUpdate carries the mutable survey fields.
type SurveyUpdate struct {
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
}

// QuestionType enumerates the supported answer shapes.
type QuestionType string

const (
	QuestionText     QuestionType = "TEXT"
	QuestionSingle   QuestionType = "SINGLE"
	QuestionMultiple QuestionType = "MULTIPLE"
)

// ParseQuestionType normalises user input into a QuestionType.
func ParseQuestionType(raw string) (QuestionType, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TEXT":
		return QuestionText, true
	case "SINGLE", "SINGLE_CHOICE":
		return QuestionSingle, true
	case "MULTIPLE", "MULTIPLE_CHOICE":
		return QuestionMultiple, true
	}
	return "", false
}

// IsChoice reports whether the type selects among listed options.
func (t QuestionType) IsChoice() bool {
	return t == QuestionSingle || t == QuestionMultiple
}

// Question belongs to exactly one survey; ordering follows creation time.
type Question struct {
	ID        string         `db:"id" json:"id"`
	SurveyID  string         `db:"survey_id" json:"surveyId"`
	Text      string         `db:"text" json:"text"`
	Type      QuestionType   `db:"type" json:"type"`
	Options   pq.StringArray `db:"options" json:"options"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// HasOption reports whether opt is one of the listed options.
func (q Question) HasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// QuestionResult aggregates the responses to a question.
type QuestionResult struct {
	QuestionID   string         `json:"questionId"`
	Text         string         `json:"text"`
	Type         QuestionType   `json:"type"`
	Responses    int            `json:"responses"`
	OptionCounts map[string]int `json:"optionCounts,omitempty"`
	TextAnswers  []string       `json:"textAnswers,omitempty"`
}

// SurveyResults is the per-question breakdown of a survey.
type SurveyResults struct {
	SurveyID    string           `json:"surveyId"`
	Title       string           `json:"title"`
	Respondents int              `json:"respondents"`
	Questions   []QuestionResult `json:"questions"`
}
