package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/saludbit/impactou-api/internal/models"
)

const groupColumns = `g.id, g.name, g.description, g.tutor, g.invitation_code, g.created_by, g.institution_id, g.created_at, g.updated_at`

// GroupRepository persists groups, memberships and survey links.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a group and reports false when the invitation code is
// already taken, leaving any surrounding transaction usable.
func (r *GroupRepository) Create(ctx context.Context, exec sqlx.ExtContext, group *models.Group) (bool, error) {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now
	const query = `INSERT INTO groups (id, name, description, tutor, invitation_code, created_by, institution_id, created_at, updated_at)
VALUES (:id, :name, :description, :tutor, :invitation_code, :created_by, :institution_id, :created_at, :updated_at)
ON CONFLICT (invitation_code) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, group)
	if err != nil {
		return false, fmt.Errorf("create group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create group rows: %w", err)
	}
	return affected == 1, nil
}

// FindByID returns a group by id.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g WHERE g.id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// FindByCode returns the group owning an invitation code, matched case-insensitively.
func (r *GroupRepository) FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g WHERE g.invitation_code = $1`
	var group models.Group
	if err := sqlx.GetContext(ctx, r.exec(exec), &group, query, strings.ToUpper(strings.TrimSpace(code))); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find group by code: %w", err)
	}
	return &group, nil
}

// List returns group summaries. A MemberID filter lists that user's memberships,
// left ones included and flagged inactive.
func (r *GroupRepository) List(ctx context.Context, filter models.GroupFilter) ([]models.GroupSummary, error) {
	counts := `(SELECT COUNT(*) FROM group_members m WHERE m.group_id = g.id AND m.deactivated_at IS NULL) AS member_count,
(SELECT COUNT(*) FROM group_surveys s WHERE s.group_id = g.id) AS survey_count`

	var (
		query string
		args  []interface{}
	)
	switch {
	case filter.MemberID != nil:
		query = `SELECT ` + groupColumns + `, ` + counts + `, (gm.deactivated_at IS NULL) AS active
FROM groups g JOIN group_members gm ON gm.group_id = g.id
WHERE gm.user_id = $1 ORDER BY g.created_at DESC`
		args = append(args, *filter.MemberID)
	case filter.InstitutionID != nil:
		query = `SELECT ` + groupColumns + `, ` + counts + ` FROM groups g WHERE g.institution_id = $1 ORDER BY g.created_at DESC`
		args = append(args, *filter.InstitutionID)
	default:
		query = `SELECT ` + groupColumns + `, ` + counts + ` FROM groups g ORDER BY g.created_at DESC`
	}

	var groups []models.GroupSummary
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Update persists metadata changes.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE groups SET name = :name, description = :description, tutor = :tutor, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, group)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a group; memberships and survey links cascade.
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return expectAffected(res)
}

// Members lists every membership of a group, active first.
func (r *GroupRepository) Members(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	const query = `SELECT gm.group_id, gm.user_id, u.name, u.email, gm.joined_at, gm.deactivated_at, (gm.deactivated_at IS NULL) AS active
FROM group_members gm JOIN users u ON u.id = gm.user_id
WHERE gm.group_id = $1 ORDER BY active DESC, u.name`
	var members []models.GroupMember
	if err := r.db.SelectContext(ctx, &members, query, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return members, nil
}

// FindMembership locks and returns the membership row.
func (r *GroupRepository) FindMembership(ctx context.Context, exec sqlx.ExtContext, groupID, userID string) (*models.Membership, error) {
	const query = `SELECT group_id, user_id, joined_at, deactivated_at FROM group_members WHERE group_id = $1 AND user_id = $2 FOR UPDATE`
	var membership models.Membership
	if err := sqlx.GetContext(ctx, r.exec(exec), &membership, query, groupID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return &membership, nil
}

// AddMember inserts an active membership.
func (r *GroupRepository) AddMember(ctx context.Context, exec sqlx.ExtContext, groupID, userID string, at time.Time) error {
	const query = `INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, $3)`
	if _, err := r.exec(exec).ExecContext(ctx, query, groupID, userID, at); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// ReactivateMember clears the deactivated flag of a left membership.
func (r *GroupRepository) ReactivateMember(ctx context.Context, exec sqlx.ExtContext, groupID, userID string, at time.Time) error {
	const query = `UPDATE group_members SET deactivated_at = NULL, joined_at = $3 WHERE group_id = $1 AND user_id = $2`
	res, err := r.exec(exec).ExecContext(ctx, query, groupID, userID, at)
	if err != nil {
		return fmt.Errorf("reactivate group member: %w", err)
	}
	return expectAffected(res)
}

// DeactivateMember soft-removes an active membership. It reports whether a row changed.
func (r *GroupRepository) DeactivateMember(ctx context.Context, exec sqlx.ExtContext, groupID, userID string, at time.Time) (bool, error) {
	const query = `UPDATE group_members SET deactivated_at = $3 WHERE group_id = $1 AND user_id = $2 AND deactivated_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, groupID, userID, at)
	if err != nil {
		return false, fmt.Errorf("deactivate group member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate group member rows: %w", err)
	}
	return affected > 0, nil
}

// RemoveMember hard-deletes a membership.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return expectAffected(res)
}

// ActiveMemberIDs returns the users currently in the group.
func (r *GroupRepository) ActiveMemberIDs(ctx context.Context, exec sqlx.ExtContext, groupID string) ([]string, error) {
	const query = `SELECT user_id FROM group_members WHERE group_id = $1 AND deactivated_at IS NULL ORDER BY joined_at`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, groupID); err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	return ids, nil
}

// LinkSurveys links surveys to the group, ignoring links that already exist.
func (r *GroupRepository) LinkSurveys(ctx context.Context, exec sqlx.ExtContext, groupID string, surveyIDs []string) error {
	if len(surveyIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO group_surveys (group_id, survey_id, linked_at)
SELECT $1, s, $3 FROM unnest($2::uuid[]) AS s
ON CONFLICT (group_id, survey_id) DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, groupID, pq.Array(surveyIDs), time.Now().UTC()); err != nil {
		return fmt.Errorf("link group surveys: %w", err)
	}
	return nil
}

// LinkedSurveyIDs returns the surveys linked to a group.
func (r *GroupRepository) LinkedSurveyIDs(ctx context.Context, exec sqlx.ExtContext, groupID string) ([]string, error) {
	const query = `SELECT survey_id FROM group_surveys WHERE group_id = $1 ORDER BY linked_at`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, groupID); err != nil {
		return nil, fmt.Errorf("list linked surveys: %w", err)
	}
	return ids, nil
}

// LinkedSurveys returns the full surveys linked to a group.
func (r *GroupRepository) LinkedSurveys(ctx context.Context, groupID string) ([]models.Survey, error) {
	const query = `SELECT s.id, s.title, s.description, s.start_date, s.end_date, s.institution_id, s.created_by, s.created_at, s.updated_at
FROM group_surveys gs JOIN surveys s ON s.id = gs.survey_id
WHERE gs.group_id = $1 ORDER BY gs.linked_at`
	var surveys []models.Survey
	if err := r.db.SelectContext(ctx, &surveys, query, groupID); err != nil {
		return nil, fmt.Errorf("list linked surveys: %w", err)
	}
	return surveys, nil
}

// AssignmentSummary reports, per linked survey, how many active members are
// assigned and how many completed.
func (r *GroupRepository) AssignmentSummary(ctx context.Context, groupID string) ([]models.GroupAssignmentSummary, error) {
	const query = `SELECT s.id AS survey_id, s.title, s.end_date,
    COUNT(DISTINCT gm.user_id) AS members,
    COUNT(DISTINCT sa.user_id) AS assigned,
    COUNT(DISTINCT sa.user_id) FILTER (WHERE sa.status = 'COMPLETED') AS completed
FROM group_surveys gs
JOIN surveys s ON s.id = gs.survey_id
LEFT JOIN group_members gm ON gm.group_id = gs.group_id AND gm.deactivated_at IS NULL
LEFT JOIN survey_assignments sa ON sa.survey_id = s.id AND sa.user_id = gm.user_id
WHERE gs.group_id = $1
GROUP BY s.id, s.title, s.end_date, gs.linked_at
ORDER BY gs.linked_at`
	var rows []models.GroupAssignmentSummary
	if err := r.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, fmt.Errorf("group assignment summary: %w", err)
	}
	return rows, nil
}
