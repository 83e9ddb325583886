package models

import (
	"time"

	"github.com/lib/pq"
)

// Answer is one user's response to one question.
type Answer struct {
	ID              string         `db:"id" json:"id"`
	SubmissionID    string         `db:"submission_id" json:"submissionId"`
	UserID          string         `db:"user_id" json:"userId"`
	QuestionID      string         `db:"question_id" json:"questionId"`
	Value           *string        `db:"value" json:"value,omitempty"`
	SelectedOptions pq.StringArray `db:"selected_options" json:"options"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
}

// SubmissionResult reports the state of an assignment after an answer intake.
type SubmissionResult struct {
	SubmissionID string           `json:"submissionId"`
	SurveyID     string           `json:"surveyId"`
	Saved        int              `json:"saved"`
	Answered     int              `json:"answered"`
	Questions    int              `json:"questions"`
	Status       AssignmentStatus `json:"status"`
}

// SubmissionHistoryItem summarises one past submission.
type SubmissionHistoryItem struct {
	SubmissionID string    `db:"submission_id" json:"submissionId"`
	SurveyID     string    `db:"survey_id" json:"surveyId"`
	SurveyTitle  string    `db:"survey_title" json:"surveyTitle"`
	Answers      int       `db:"answers" json:"answers"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submittedAt"`
}

// ExportAnswer is a flattened answer row used to build survey exports.
type ExportAnswer struct {
	UserID          string         `db:"user_id"`
	UserName        string         `db:"user_name"`
	UserEmail       string         `db:"user_email"`
	QuestionID      string         `db:"question_id"`
	Value           *string        `db:"value"`
	SelectedOptions pq.StringArray `db:"selected_options"`
}
