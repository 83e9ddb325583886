package service

import (
	"sort"
	"time"

	"github.com/saludbit/impactou-api/internal/models"
)

const dateLayout = "2006-01-02"

// weekday returns 0 for Monday through 6 for Sunday.
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeeklyProgress buckets timestamps by ISO week in loc and returns the weeks
// that saw activity, most recent first, capped at limit when positive.
func WeeklyProgress(times []time.Time, loc *time.Location, limit int) []models.WeekProgress {
	if loc == nil {
		loc = time.UTC
	}
	type key struct{ year, week int }
	weeks := make(map[key]*models.WeekProgress)
	for _, ts := range times {
		local := ts.In(loc)
		year, week := local.ISOWeek()
		k := key{year, week}
		item, ok := weeks[k]
		if !ok {
			day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
			monday := day.AddDate(0, 0, -weekday(day))
			item = &models.WeekProgress{Year: year, Week: week, StartDate: monday.Format(dateLayout)}
			weeks[k] = item
		}
		d := weekday(local)
		item.Days[d]++
		item.Active[d] = true
		item.Total++
	}

	result := make([]models.WeekProgress, 0, len(weeks))
	for _, item := range weeks {
		result = append(result, *item)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Year != result[j].Year {
			return result[i].Year > result[j].Year
		}
		return result[i].Week > result[j].Week
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// MonthlyProgress lays the month out as a Monday-first grid of day cells with
// zero-day padding and counts the timestamps that fall on each day in loc.
func MonthlyProgress(times []time.Time, loc *time.Location, year int, month time.Month) models.MonthlyProgress {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	counts := make([]int, daysInMonth+1)
	total := 0
	for _, ts := range times {
		local := ts.In(loc)
		if local.Year() != year || local.Month() != month {
			continue
		}
		counts[local.Day()]++
		total++
	}

	progress := models.MonthlyProgress{Year: year, Month: int(month), Total: total}
	week := make([]models.DayCell, 0, 7)
	weekTotal := 0
	for i := 0; i < weekday(first); i++ {
		week = append(week, models.DayCell{})
	}
	for day := 1; day <= daysInMonth; day++ {
		week = append(week, models.DayCell{Day: day, Count: counts[day]})
		weekTotal += counts[day]
		if len(week) == 7 {
			progress.Weeks = append(progress.Weeks, week)
			progress.WeeklyTotals = append(progress.WeeklyTotals, weekTotal)
			week = make([]models.DayCell, 0, 7)
			weekTotal = 0
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, models.DayCell{})
		}
		progress.Weeks = append(progress.Weeks, week)
		progress.WeeklyTotals = append(progress.WeeklyTotals, weekTotal)
	}
	return progress
}

// dailyCounts buckets timestamps by calendar day in loc, newest day first.
func dailyCounts(times []time.Time, loc *time.Location) []models.DailySubmissionCount {
	if loc == nil {
		loc = time.UTC
	}
	byDay := make(map[string]int)
	for _, ts := range times {
		byDay[ts.In(loc).Format(dateLayout)]++
	}
	result := make([]models.DailySubmissionCount, 0, len(byDay))
	for day, count := range byDay {
		result = append(result, models.DailySubmissionCount{Date: day, Submissions: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date > result[j].Date })
	return result
}
