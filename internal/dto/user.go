package dto

// UpdateUserInstitutionRequest moves a user to the institution with the given name.
type UpdateUserInstitutionRequest struct {
	InstitutionName string `json:"institutionName" validate:"required"`
}

// UpdateUserRoleRequest changes a user's role.
type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN INSTITUTION_ADMIN STUDENT SIN_ROL"`
}
