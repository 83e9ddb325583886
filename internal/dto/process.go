package dto

// CreateProcessRequest creates a process.
type CreateProcessRequest struct {
	Name      string   `json:"name" validate:"required,max=160"`
	Type      string   `json:"type" validate:"required,process_type"`
	GroupIDs  []string `json:"groupIds" validate:"omitempty,dive,uuid"`
	SurveyIDs []string `json:"surveyIds" validate:"omitempty,dive,uuid"`
}

// UpdateProcessRequest edits a process. Nil slices keep the current links.
type UpdateProcessRequest struct {
	Name      *string  `json:"name" validate:"omitempty,min=1,max=160"`
	Type      *string  `json:"type" validate:"omitempty,process_type"`
	GroupIDs  []string `json:"groupIds" validate:"omitempty,dive,uuid"`
	SurveyIDs []string `json:"surveyIds" validate:"omitempty,dive,uuid"`
}
