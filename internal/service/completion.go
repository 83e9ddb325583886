package service

import (
	"math"
	"sort"

	"github.com/saludbit/impactou-api/internal/models"
)

// Completions is floor(answers/questions). Surveys without questions never
// count as completed.
func Completions(answers, questions int) int {
	if questions <= 0 || answers <= 0 {
		return 0
	}
	return answers / questions
}

// IsComplete reports whether the answer count has reached the question count.
func IsComplete(answers, questions int) bool {
	return Completions(answers, questions) >= 1
}

// completionRate is completed/assigned as a percentage with two decimals.
func completionRate(completed, assigned int) float64 {
	if assigned <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(assigned)*10000) / 100
}

// totalCompletions sums per-user-per-survey completions.
func totalCompletions(rows []models.UserSurveyProgress) int {
	total := 0
	for _, row := range rows {
		total += Completions(row.Answers, row.Questions)
	}
	return total
}

// buildCompletionReport groups progress rows per survey. Surveys are ordered
// by title, then id.
func buildCompletionReport(rows []models.UserSurveyProgress, headers []models.SurveyHeader) models.CompletionReport {
	bySurvey := make(map[string]*models.SurveyCompletion, len(headers))
	for _, h := range headers {
		bySurvey[h.ID] = &models.SurveyCompletion{SurveyID: h.ID, Title: h.Title, Questions: h.Questions}
	}
	for _, row := range rows {
		item, ok := bySurvey[row.SurveyID]
		if !ok {
			item = &models.SurveyCompletion{SurveyID: row.SurveyID, Questions: row.Questions}
			bySurvey[row.SurveyID] = item
		}
		item.Assigned++
		if IsComplete(row.Answers, row.Questions) {
			item.Completed++
		}
	}

	report := models.CompletionReport{Surveys: make([]models.SurveyCompletion, 0, len(bySurvey))}
	for _, item := range bySurvey {
		item.CompletionRate = completionRate(item.Completed, item.Assigned)
		report.Assigned += item.Assigned
		report.Completed += item.Completed
		report.Surveys = append(report.Surveys, *item)
	}
	sort.Slice(report.Surveys, func(i, j int) bool {
		a, b := report.Surveys[i], report.Surveys[j]
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.SurveyID < b.SurveyID
	})
	report.CompletionRate = completionRate(report.Completed, report.Assigned)
	return report
}

// buildInstitutionSummary rolls progress rows up per institution. Rows of
// users without an institution are dropped.
func buildInstitutionSummary(rows []models.UserSurveyProgress, headers []models.InstitutionHeader) []models.InstitutionSummary {
	byID := make(map[string]*models.InstitutionSummary, len(headers))
	order := make([]string, 0, len(headers))
	for _, h := range headers {
		byID[h.ID] = &models.InstitutionSummary{InstitutionID: h.ID, Name: h.Name, Students: h.Students}
		order = append(order, h.ID)
	}
	for _, row := range rows {
		if row.InstitutionID == nil {
			continue
		}
		item, ok := byID[*row.InstitutionID]
		if !ok {
			continue
		}
		item.Assignments++
		if IsComplete(row.Answers, row.Questions) {
			item.Completed++
		}
	}

	result := make([]models.InstitutionSummary, 0, len(order))
	for _, id := range order {
		item := byID[id]
		item.CompletionRate = completionRate(item.Completed, item.Assignments)
		result = append(result, *item)
	}
	return result
}
