package models

import "time"

// AssignmentStatus tracks progress of a user on a survey.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "PENDING"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
)

// AssignmentSource labels how an assignment came to exist.
type AssignmentSource string

const (
	SourceCreator     AssignmentSource = "creator"
	SourceInstitution AssignmentSource = "institution"
	SourceGroup       AssignmentSource = "group"
	SourceJoin        AssignmentSource = "join"
)

// SurveyAssignment binds one user to one survey. (user_id, survey_id) is unique.
type SurveyAssignment struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"userId"`
	SurveyID    string           `db:"survey_id" json:"surveyId"`
	Status      AssignmentStatus `db:"status" json:"status"`
	DueDate     time.Time        `db:"due_date" json:"dueDate"`
	CompletedAt *time.Time       `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

// FanOutResult reports what a fan-out changed.
type FanOutResult struct {
	SurveyID        string `json:"surveyId"`
	Targeted        int    `json:"targeted"`
	AlreadyAssigned int    `json:"alreadyAssigned"`
	Created         int    `json:"created"`
	Message         string `json:"message"`
}

// GroupAssignmentSummary is the progress of a group's members on one linked survey.
type GroupAssignmentSummary struct {
	SurveyID  string    `db:"survey_id" json:"surveyId"`
	Title     string    `db:"title" json:"title"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
	Members   int       `db:"members" json:"members"`
	Assigned  int       `db:"assigned" json:"assigned"`
	Completed int       `db:"completed" json:"completed"`
}
