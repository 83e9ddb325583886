package dto

import "time"

// CreateSurveyRequest creates a survey.
type CreateSurveyRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	StartDate   time.Time `json:"startDate" validate:"required"`
	EndDate     time.Time `json:"endDate" validate:"required,gtefield=StartDate"`
}

// UpdateSurveyRequest patches a survey. Omitted fields are left untouched.
type UpdateSurveyRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// CreateQuestionRequest adds a question to a survey.
type CreateQuestionRequest struct {
	Text    string   `json:"text" validate:"required,max=1000"`
	Type    string   `json:"type" validate:"required,question_type"`
	Options []string `json:"options" validate:"omitempty,dive,max=200"`
}

// UpdateQuestionRequest edits a question. A nil Options keeps the current list.
type UpdateQuestionRequest struct {
	Text    *string  `json:"text" validate:"omitempty,min=1,max=1000"`
	Type    *string  `json:"type" validate:"omitempty,question_type"`
	Options []string `json:"options" validate:"omitempty,dive,max=200"`
}

// AssignInstitutionRequest fans a survey out to an institution's students.
type AssignInstitutionRequest struct {
	InstitutionID *string `json:"institutionId" validate:"omitempty,uuid"`
}

// AssignGroupRequest fans a survey out to a group's active members.
type AssignGroupRequest struct {
	GroupID string `json:"groupId" validate:"required,uuid"`
}

// AnswerInput is one submitted answer.
type AnswerInput struct {
	QuestionID string   `json:"questionId" validate:"required,uuid"`
	Value      *string  `json:"value"`
	Options    []string `json:"options"`
}

// SubmitAnswersRequest submits answers to a survey.
type SubmitAnswersRequest struct {
	Answers []AnswerInput `json:"answers" validate:"required,min=1,dive"`
}

// SingleAnswerRequest answers one question addressed by the URL.
type SingleAnswerRequest struct {
	Value   *string  `json:"value"`
	Options []string `json:"options"`
}
