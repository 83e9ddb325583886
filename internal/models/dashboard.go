package models

import "time"

// TimeWindow is a resolved dashboard filter. Nil bounds are open.
type TimeWindow struct {
	Filter string     `json:"filter"`
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
}

// DashboardScope restricts aggregation to an institution, or all when nil.
type DashboardScope struct {
	InstitutionID *string
	Window        TimeWindow
}

// AdminStats are the counters shown to administrators.
type AdminStats struct {
	Institutions         int `db:"institutions" json:"institutions"`
	Users                int `db:"users" json:"users"`
	Students             int `db:"students" json:"students"`
	Groups               int `db:"groups" json:"groups"`
	Surveys              int `db:"surveys" json:"surveys"`
	Questions            int `db:"questions" json:"questions"`
	Assignments          int `db:"assignments" json:"assignments"`
	CompletedAssignments int `db:"completed_assignments" json:"completedAssignments"`
	Completions          int `json:"completions"`
	Submissions          int `db:"submissions" json:"submissions"`
}

// StudentStats are the counters shown to a student.
type StudentStats struct {
	Groups          int `db:"groups" json:"groups"`
	ActiveGroups    int `db:"active_groups" json:"activeGroups"`
	AssignedSurveys int `db:"assigned_surveys" json:"assignedSurveys"`
	Pending         int `db:"pending" json:"pending"`
	Completed       int `db:"completed" json:"completed"`
	Answers         int `db:"answers" json:"answers"`
}

// UserSurveyProgress is the raw material of the completion computation.
type UserSurveyProgress struct {
	UserID        string  `db:"user_id"`
	SurveyID      string  `db:"survey_id"`
	InstitutionID *string `db:"institution_id"`
	Questions     int     `db:"questions"`
	Answers       int     `db:"answers"`
}

// SurveyCompletion is per-survey completion.
type SurveyCompletion struct {
	SurveyID       string  `json:"surveyId"`
	Title          string  `json:"title"`
	Questions      int     `json:"questions"`
	Assigned       int     `json:"assigned"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completionRate"`
}

// CompletionReport lists per-survey completion with totals.
type CompletionReport struct {
	Surveys        []SurveyCompletion `json:"surveys"`
	Assigned       int                `json:"assigned"`
	Completed      int                `json:"completed"`
	CompletionRate float64            `json:"completionRate"`
}

// SurveyHeader is the minimal survey identity used by aggregations.
type SurveyHeader struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Questions int    `db:"questions"`
}

// InstitutionSummary is completion rolled up per institution.
type InstitutionSummary struct {
	InstitutionID  string  `json:"institutionId"`
	Name           string  `json:"name"`
	Students       int     `json:"students"`
	Assignments    int     `json:"assignments"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completionRate"`
}

// InstitutionHeader is the identity and student count of an institution.
type InstitutionHeader struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Students int    `db:"students"`
}

// SurveySubmissionCount ranks surveys by distinct submissions.
type SurveySubmissionCount struct {
	SurveyID    string `db:"survey_id" json:"surveyId"`
	Title       string `db:"title" json:"title"`
	Submissions int    `db:"submissions" json:"submissions"`
	Respondents int    `db:"respondents" json:"respondents"`
}

// WeekProgress is one ISO week of activity, Monday first.
type WeekProgress struct {
	Year      int     `json:"year"`
	Week      int     `json:"week"`
	StartDate string  `json:"startDate"`
	Days      [7]int  `json:"days"`
	Active    [7]bool `json:"active"`
	Total     int     `json:"total"`
}

// DayCell is one calendar cell. Day 0 marks padding outside the month.
type DayCell struct {
	Day   int `json:"day"`
	Count int `json:"count"`
}

// MonthlyProgress is a Monday-first calendar grid of activity.
type MonthlyProgress struct {
	Year         int         `json:"year"`
	Month        int         `json:"month"`
	Weeks        [][]DayCell `json:"weeks"`
	WeeklyTotals []int       `json:"weeklyTotals"`
	Total        int         `json:"total"`
}

// TimestampCount is a raw activity bucket from the store.
type TimestampCount struct {
	Day   time.Time `db:"day"`
	Count int       `db:"count"`
}

// StudentSurveySummary ranks a student's surveys by answers given.
type StudentSurveySummary struct {
	SurveyID  string           `db:"survey_id" json:"surveyId"`
	Title     string           `db:"title" json:"title"`
	Answers   int              `db:"answers" json:"answers"`
	Questions int              `db:"questions" json:"questions"`
	Status    AssignmentStatus `db:"status" json:"status"`
}

// DailySubmissionCount is the number of submissions on a calendar day.
type DailySubmissionCount struct {
	Date        string `json:"date"`
	Submissions int    `json:"submissions"`
}

// RecentSubmission is a submission joined with student and survey names.
type RecentSubmission struct {
	SubmissionID string    `db:"submission_id" json:"submissionId"`
	UserID       string    `db:"user_id" json:"userId"`
	StudentName  string    `db:"student_name" json:"studentName"`
	SurveyID     string    `db:"survey_id" json:"surveyId"`
	SurveyTitle  string    `db:"survey_title" json:"surveyTitle"`
	Answers      int       `db:"answers" json:"answers"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submittedAt"`
}

// SubmissionsByDayReport is the admin submissions report.
type SubmissionsByDayReport struct {
	Days   []DailySubmissionCount `json:"days"`
	Recent []RecentSubmission     `json:"recent"`
}
