package dto

// CreateGroupRequest creates a group and optionally links surveys to it.
type CreateGroupRequest struct {
	Name          string   `json:"name" validate:"required,max=120"`
	Description   string   `json:"description" validate:"max=1000"`
	Tutor         string   `json:"tutor" validate:"max=120"`
	InstitutionID *string  `json:"institutionId" validate:"omitempty,uuid"`
	SurveyIDs     []string `json:"surveyIds" validate:"omitempty,dive,uuid"`
}

// UpdateGroupRequest edits group metadata.
type UpdateGroupRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Tutor       *string `json:"tutor" validate:"omitempty,max=120"`
}

// JoinGroupRequest redeems an invitation code. Codes that match no group are
// reported as not found whatever their shape.
type JoinGroupRequest struct {
	InvitationCode string `json:"invitationCode" validate:"required,max=64"`
}

// AssignSurveysRequest links surveys to a group and fans them out.
type AssignSurveysRequest struct {
	SurveyIDs []string `json:"surveyIds" validate:"required,min=1,dive,uuid"`
}
