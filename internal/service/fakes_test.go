package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/saludbit/impactou-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505"}
}

func ptr[T any](v T) *T {
	return &v
}

// fakeUsers is an in-memory user store.
type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]*models.User
	auditLogs []*models.AuditLog
	listErr   error
	lastList  models.UserFilter
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return uniqueViolation()
		}
	}
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(f.users)+1)
	}
	copy := *user
	f.users[user.ID] = &copy
	return nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	return nil
}

func (f *fakeUsers) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = filter
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var out []models.User
	for _, u := range f.users {
		if filter.InstitutionID != nil && !sameInstitution(u.InstitutionID, filter.InstitutionID) {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeUsers) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = role
	return nil
}

func (f *fakeUsers) UpdateInstitution(ctx context.Context, exec sqlx.ExtContext, id string, institutionID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.InstitutionID = institutionID
	return nil
}

func (f *fakeUsers) AdoptInstitution(ctx context.Context, exec sqlx.ExtContext, id, institutionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.InstitutionID != nil {
		return false, nil
	}
	u.InstitutionID = &institutionID
	return true, nil
}

func (f *fakeUsers) ListStudentIDsByInstitution(ctx context.Context, exec sqlx.ExtContext, institutionID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, u := range f.users {
		if u.Role == models.RoleStudent && sameInstitution(u.InstitutionID, &institutionID) {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeUsers) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditLogs = append(f.auditLogs, log)
	return nil
}

// fakeInstitutions is an in-memory institution store with case-insensitive names.
type fakeInstitutions struct {
	items map[string]*models.Institution
}

func newFakeInstitutions(items ...*models.Institution) *fakeInstitutions {
	f := &fakeInstitutions{items: map[string]*models.Institution{}}
	for _, i := range items {
		f.items[i.ID] = i
	}
	return f
}

func (f *fakeInstitutions) Create(ctx context.Context, exec sqlx.ExtContext, inst *models.Institution) error {
	for _, existing := range f.items {
		if strings.EqualFold(existing.Name, inst.Name) {
			return uniqueViolation()
		}
	}
	inst.ID = fmt.Sprintf("inst-%d", len(f.items)+1)
	copy := *inst
	f.items[inst.ID] = &copy
	return nil
}

func (f *fakeInstitutions) UpsertByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Institution, error) {
	if inst, err := f.FindByName(ctx, name); err == nil {
		return inst, nil
	}
	inst := &models.Institution{Name: name}
	if err := f.Create(ctx, exec, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (f *fakeInstitutions) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	if inst, ok := f.items[id]; ok {
		copy := *inst
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInstitutions) FindByName(ctx context.Context, name string) (*models.Institution, error) {
	for _, inst := range f.items {
		if strings.EqualFold(inst.Name, strings.TrimSpace(name)) {
			copy := *inst
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInstitutions) List(ctx context.Context) ([]models.Institution, error) {
	var out []models.Institution
	for _, inst := range f.items {
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeInstitutions) Update(ctx context.Context, inst *models.Institution) error {
	if _, ok := f.items[inst.ID]; !ok {
		return sql.ErrNoRows
	}
	for id, existing := range f.items {
		if id != inst.ID && strings.EqualFold(existing.Name, inst.Name) {
			return uniqueViolation()
		}
	}
	copy := *inst
	f.items[inst.ID] = &copy
	return nil
}

// fakeSurveys stores surveys by id.
type fakeSurveys struct {
	items map[string]*models.Survey
}

func newFakeSurveys(items ...*models.Survey) *fakeSurveys {
	f := &fakeSurveys{items: map[string]*models.Survey{}}
	for _, s := range items {
		f.items[s.ID] = s
	}
	return f
}

func (f *fakeSurveys) Create(ctx context.Context, exec sqlx.ExtContext, survey *models.Survey) error {
	if survey.ID == "" {
		survey.ID = fmt.Sprintf("survey-%d", len(f.items)+1)
	}
	copy := *survey
	f.items[survey.ID] = &copy
	return nil
}

func (f *fakeSurveys) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Survey, error) {
	if s, ok := f.items[id]; ok {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSurveys) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		if _, ok := f.items[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeSurveys) ListAll(ctx context.Context, filter models.SurveyFilter) ([]models.SurveyListItem, error) {
	var out []models.SurveyListItem
	for _, s := range f.items {
		if filter.InstitutionID != nil && !sameInstitution(s.InstitutionID, filter.InstitutionID) && s.InstitutionID != nil {
			continue
		}
		out = append(out, models.SurveyListItem{Survey: *s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSurveys) ListAssigned(ctx context.Context, userID string, includeInactive bool) ([]models.AssignedSurvey, error) {
	return nil, nil
}

func (f *fakeSurveys) Update(ctx context.Context, exec sqlx.ExtContext, survey *models.Survey) error {
	if _, ok := f.items[survey.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *survey
	f.items[survey.ID] = &copy
	return nil
}

func (f *fakeSurveys) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

// fakeQuestions keeps questions in creation order.
type fakeQuestions struct {
	items []models.Question
}

func (f *fakeQuestions) add(q models.Question) {
	f.items = append(f.items, q)
}

func (f *fakeQuestions) surveyOf(questionID string) string {
	for _, q := range f.items {
		if q.ID == questionID {
			return q.SurveyID
		}
	}
	return ""
}

func (f *fakeQuestions) Create(ctx context.Context, exec sqlx.ExtContext, question *models.Question) error {
	if question.ID == "" {
		question.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", len(f.items)+1)
	}
	f.items = append(f.items, *question)
	return nil
}

func (f *fakeQuestions) ListBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) ([]models.Question, error) {
	var out []models.Question
	for _, q := range f.items {
		if q.SurveyID == surveyID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) FindByID(ctx context.Context, surveyID, id string) (*models.Question, error) {
	for _, q := range f.items {
		if q.ID == id && q.SurveyID == surveyID {
			copy := q
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeQuestions) Update(ctx context.Context, question *models.Question) error {
	for i, q := range f.items {
		if q.ID == question.ID {
			f.items[i] = *question
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeQuestions) DeleteBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) error {
	kept := f.items[:0]
	for _, q := range f.items {
		if q.SurveyID != surveyID {
			kept = append(kept, q)
		}
	}
	f.items = kept
	return nil
}

// fakeAssignments enforces one assignment per (user, survey) like the table's
// unique constraint.
type fakeAssignments struct {
	mu    sync.Mutex
	items map[string]*models.SurveyAssignment
	// answered reports how many questions of a survey a user has answered.
	answered func(userID, surveyID string) int
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{items: map[string]*models.SurveyAssignment{}}
}

func assignmentKey(userID, surveyID string) string {
	return userID + "|" + surveyID
}

func (f *fakeAssignments) seed(userID, surveyID string, status models.AssignmentStatus) *models.SurveyAssignment {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &models.SurveyAssignment{ID: "asg-" + userID + "-" + surveyID, UserID: userID, SurveyID: surveyID, Status: status}
	f.items[assignmentKey(userID, surveyID)] = a
	return a
}

func (f *fakeAssignments) get(userID, surveyID string) *models.SurveyAssignment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[assignmentKey(userID, surveyID)]
}

func (f *fakeAssignments) count(surveyID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.items {
		if a.SurveyID == surveyID {
			n++
		}
	}
	return n
}

func (f *fakeAssignments) AssignedUserIDs(ctx context.Context, exec sqlx.ExtContext, surveyID string, userIDs []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range userIDs {
		if _, ok := f.items[assignmentKey(id, surveyID)]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeAssignments) BulkCreate(ctx context.Context, exec sqlx.ExtContext, surveyID string, userIDs []string, dueDate, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := 0
	for _, id := range userIDs {
		key := assignmentKey(id, surveyID)
		if _, ok := f.items[key]; ok {
			continue
		}
		f.items[key] = &models.SurveyAssignment{
			ID: "asg-" + id + "-" + surveyID, UserID: id, SurveyID: surveyID,
			Status: models.AssignmentPending, DueDate: dueDate, CreatedAt: now,
		}
		created++
	}
	return created, nil
}

func (f *fakeAssignments) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, userID, surveyID string) (*models.SurveyAssignment, error) {
	return f.Find(ctx, userID, surveyID)
}

func (f *fakeAssignments) Find(ctx context.Context, userID, surveyID string) (*models.SurveyAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.items[assignmentKey(userID, surveyID)]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssignments) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.items {
		if a.ID == id && a.Status == models.AssignmentPending {
			a.Status = models.AssignmentCompleted
			a.CompletedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignments) UpdateDueDates(ctx context.Context, exec sqlx.ExtContext, surveyID string, due time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.items {
		if a.SurveyID == surveyID {
			a.DueDate = due
			n++
		}
	}
	return n, nil
}

func (f *fakeAssignments) ReopenIncomplete(ctx context.Context, exec sqlx.ExtContext, surveyID string, questionCount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.items {
		if a.SurveyID != surveyID || a.Status != models.AssignmentCompleted {
			continue
		}
		answered := 0
		if f.answered != nil {
			answered = f.answered(a.UserID, surveyID)
		}
		if answered < questionCount {
			a.Status = models.AssignmentPending
			a.CompletedAt = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeAssignments) DeleteBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, a := range f.items {
		if a.SurveyID == surveyID {
			delete(f.items, key)
		}
	}
	return nil
}

// fakeAnswers enforces one answer per (user, question).
type fakeAnswers struct {
	questions *fakeQuestions
	items     []models.Answer
	exportRow []models.ExportAnswer
}

func (f *fakeAnswers) Insert(ctx context.Context, exec sqlx.ExtContext, answers []models.Answer) error {
	for _, a := range answers {
		for _, existing := range f.items {
			if existing.UserID == a.UserID && existing.QuestionID == a.QuestionID {
				return uniqueViolation()
			}
		}
	}
	f.items = append(f.items, answers...)
	return nil
}

func (f *fakeAnswers) AnsweredQuestionIDs(ctx context.Context, exec sqlx.ExtContext, userID, surveyID string) ([]string, error) {
	var out []string
	for _, a := range f.items {
		if a.UserID == userID && f.questions.surveyOf(a.QuestionID) == surveyID {
			out = append(out, a.QuestionID)
		}
	}
	return out, nil
}

func (f *fakeAnswers) CountForSurvey(ctx context.Context, exec sqlx.ExtContext, userID, surveyID string) (int, error) {
	ids, err := f.AnsweredQuestionIDs(ctx, exec, userID, surveyID)
	return len(ids), err
}

func (f *fakeAnswers) History(ctx context.Context, userID string) ([]models.SubmissionHistoryItem, error) {
	return nil, nil
}

func (f *fakeAnswers) ListForSurvey(ctx context.Context, surveyID string) ([]models.Answer, error) {
	var out []models.Answer
	for _, a := range f.items {
		if f.questions.surveyOf(a.QuestionID) == surveyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAnswers) DeleteBySurvey(ctx context.Context, exec sqlx.ExtContext, surveyID string) error {
	kept := f.items[:0]
	for _, a := range f.items {
		if f.questions.surveyOf(a.QuestionID) != surveyID {
			kept = append(kept, a)
		}
	}
	f.items = kept
	return nil
}

func (f *fakeAnswers) ExportRows(ctx context.Context, surveyID string) ([]models.ExportAnswer, error) {
	return f.exportRow, nil
}

// fakeGroups keeps groups, memberships and survey links in memory.
type fakeGroups struct {
	groups  map[string]*models.Group
	members map[string]*models.Membership
	links   map[string][]string
	taken   map[string]bool
}

func newFakeGroups(groups ...*models.Group) *fakeGroups {
	f := &fakeGroups{
		groups:  map[string]*models.Group{},
		members: map[string]*models.Membership{},
		links:   map[string][]string{},
		taken:   map[string]bool{},
	}
	for _, g := range groups {
		f.groups[g.ID] = g
		f.taken[g.InvitationCode] = true
	}
	return f
}

func (f *fakeGroups) Create(ctx context.Context, exec sqlx.ExtContext, group *models.Group) (bool, error) {
	if f.taken[group.InvitationCode] {
		return false, nil
	}
	group.ID = fmt.Sprintf("group-%d", len(f.groups)+1)
	f.taken[group.InvitationCode] = true
	copy := *group
	f.groups[group.ID] = &copy
	return true, nil
}

func (f *fakeGroups) FindByID(ctx context.Context, id string) (*models.Group, error) {
	if g, ok := f.groups[id]; ok {
		copy := *g
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGroups) FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.Group, error) {
	for _, g := range f.groups {
		if strings.EqualFold(g.InvitationCode, code) {
			copy := *g
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGroups) List(ctx context.Context, filter models.GroupFilter) ([]models.GroupSummary, error) {
	var out []models.GroupSummary
	for _, g := range f.groups {
		if filter.InstitutionID != nil && !sameInstitution(g.InstitutionID, filter.InstitutionID) {
			continue
		}
		if filter.MemberID != nil {
			if _, ok := f.members[g.ID+"|"+*filter.MemberID]; !ok {
				continue
			}
		}
		out = append(out, models.GroupSummary{Group: *g})
	}
	return out, nil
}

func (f *fakeGroups) Update(ctx context.Context, group *models.Group) error {
	if _, ok := f.groups[group.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *group
	f.groups[group.ID] = &copy
	return nil
}

func (f *fakeGroups) Delete(ctx context.Context, id string) error {
	if _, ok := f.groups[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.groups, id)
	return nil
}

func (f *fakeGroups) Members(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	var out []models.GroupMember
	for _, m := range f.members {
		if m.GroupID == groupID {
			out = append(out, models.GroupMember{GroupID: groupID, UserID: m.UserID, JoinedAt: m.JoinedAt, DeactivatedAt: m.DeactivatedAt, Active: m.IsActive()})
		}
	}
	return out, nil
}

func (f *fakeGroups) FindMembership(ctx context.Context, exec sqlx.ExtContext, groupID, userID string) (*models.Membership, error) {
	if m, ok := f.members[groupID+"|"+userID]; ok {
		copy := *m
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGroups) AddMember(ctx context.Context, exec sqlx.ExtContext, groupID, userID string, at time.Time) error {
	key := groupID + "|" + userID
	if _, ok := f.members[key]; ok {
		return uniqueViolation()
	}
	f.members[key] = &models.Membership{GroupID: groupID, UserID: userID, JoinedAt: at}
	return nil
}

func (f *fakeGroups) ReactivateMember(ctx context.Context, exec sqlx.ExtContext, groupID, userID string, at time.Time) error {
	m, ok := f.members[groupID+"|"+userID]
	if !ok {
		return sql.ErrNoRows
	}
	m.DeactivatedAt = nil
	m.JoinedAt = at
	return nil
}

func (f *fakeGroups) DeactivateMember(ctx context.Context, exec sqlx.ExtContext, groupID, userID string, at time.Time) (bool, error) {
	m, ok := f.members[groupID+"|"+userID]
	if !ok || !m.IsActive() {
		return false, nil
	}
	m.DeactivatedAt = &at
	return true, nil
}

func (f *fakeGroups) RemoveMember(ctx context.Context, groupID, userID string) error {
	key := groupID + "|" + userID
	if _, ok := f.members[key]; !ok {
		return sql.ErrNoRows
	}
	delete(f.members, key)
	return nil
}

func (f *fakeGroups) ActiveMemberIDs(ctx context.Context, exec sqlx.ExtContext, groupID string) ([]string, error) {
	var out []string
	for _, m := range f.members {
		if m.GroupID == groupID && m.IsActive() {
			out = append(out, m.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeGroups) LinkSurveys(ctx context.Context, exec sqlx.ExtContext, groupID string, surveyIDs []string) error {
	f.links[groupID] = uniqueIDs(append(f.links[groupID], surveyIDs...))
	return nil
}

func (f *fakeGroups) LinkedSurveyIDs(ctx context.Context, exec sqlx.ExtContext, groupID string) ([]string, error) {
	return f.links[groupID], nil
}

func (f *fakeGroups) LinkedSurveys(ctx context.Context, groupID string) ([]models.Survey, error) {
	var out []models.Survey
	for _, id := range f.links[groupID] {
		out = append(out, models.Survey{ID: id})
	}
	return out, nil
}

func (f *fakeGroups) AssignmentSummary(ctx context.Context, groupID string) ([]models.GroupAssignmentSummary, error) {
	return nil, nil
}
