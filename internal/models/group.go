package models

import "time"

// Group is a cohort of users joined through an invitation code.
type Group struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	Tutor          string    `db:"tutor" json:"tutor"`
	InvitationCode string    `db:"invitation_code" json:"invitationCode"`
	CreatedBy      string    `db:"created_by" json:"createdBy"`
	InstitutionID  *string   `db:"institution_id" json:"institutionId,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// GroupSummary is a list row. Active is only set for membership listings.
type GroupSummary struct {
	Group
	MemberCount int   `db:"member_count" json:"memberCount"`
	SurveyCount int   `db:"survey_count" json:"surveyCount"`
	Active      *bool `db:"active" json:"active,omitempty"`
}

// GroupMember is one membership row joined with the member's identity.
type GroupMember struct {
	GroupID       string     `db:"group_id" json:"groupId"`
	UserID        string     `db:"user_id" json:"userId"`
	Name          string     `db:"name" json:"name"`
	Email         string     `db:"email" json:"email"`
	JoinedAt      time.Time  `db:"joined_at" json:"joinedAt"`
	DeactivatedAt *time.Time `db:"deactivated_at" json:"deactivatedAt,omitempty"`
	Active        bool       `db:"active" json:"active"`
}

// Membership is the raw link between a user and a group.
type Membership struct {
	GroupID       string     `db:"group_id"`
	UserID        string     `db:"user_id"`
	JoinedAt      time.Time  `db:"joined_at"`
	DeactivatedAt *time.Time `db:"deactivated_at"`
}

// IsActive reports whether the membership has not been left.
func (m Membership) IsActive() bool {
	return m.DeactivatedAt == nil
}

// GroupDetail bundles a group with its members and linked surveys.
type GroupDetail struct {
	Group
	Members []GroupMember `json:"members"`
	Surveys []Survey      `json:"surveys"`
}

// GroupFilter scopes group listings.
type GroupFilter struct {
	InstitutionID *string
	MemberID      *string
}

// JoinGroupResult reports the outcome of redeeming an invitation code.
type JoinGroupResult struct {
	Group       Group  `json:"group"`
	Reactivated bool   `json:"reactivated"`
	Assigned    int    `json:"assigned"`
	Message     string `json:"message"`
}
