package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin            UserRole = "ADMIN"
	RoleInstitutionAdmin UserRole = "INSTITUTION_ADMIN"
	RoleStudent          UserRole = "STUDENT"
	// RoleUnassigned is the placeholder role for accounts awaiting classification.
	RoleUnassigned UserRole = "SIN_ROL"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstitutionAdmin, RoleStudent, RoleUnassigned:
		return true
	}
	return false
}

// IsAdmin reports whether the role manages surveys and groups.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin || r == RoleInstitutionAdmin
}

// User represents an application user stored in the users table.
type User struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	Identification  string    `db:"identification" json:"identification"`
	Phone           string    `db:"phone" json:"phone"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	Role            UserRole  `db:"role" json:"role"`
	InstitutionID   *string   `db:"institution_id" json:"institutionId,omitempty"`
	InstitutionName *string   `db:"institution_name" json:"institutionName,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role          *UserRole
	InstitutionID *string
	Search        string
	Page          int
	PageSize      int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}
