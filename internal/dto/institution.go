package dto

// CreateInstitutionRequest registers an institution.
type CreateInstitutionRequest struct {
	Name        string `json:"name" validate:"required,max=160"`
	Description string `json:"description" validate:"max=1000"`
}

// UpdateInstitutionRequest renames or re-describes an institution.
type UpdateInstitutionRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=160"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}
