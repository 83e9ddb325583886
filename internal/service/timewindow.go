package service

import (
	"strings"
	"time"

	"github.com/saludbit/impactou-api/internal/models"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
)

// Dashboard time filters.
const (
	FilterAll       = "all"
	FilterDay       = "day"
	FilterWeek      = "week"
	FilterMonth     = "month"
	FilterSemester  = "semester"
	FilterSemester1 = "semester1"
	FilterSemester2 = "semester2"
)

// ResolveWindow turns a filter name into calendar-aligned bounds in loc. Weeks
// start on Monday; semesters are January-June and July-December. The returned
// instants are in UTC and the end is exclusive.
func ResolveWindow(filter string, now time.Time, loc *time.Location) (models.TimeWindow, error) {
	if loc == nil {
		loc = time.UTC
	}
	filter = strings.ToLower(strings.TrimSpace(filter))
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var start, end time.Time
	switch filter {
	case "", FilterAll:
		return models.TimeWindow{Filter: FilterAll}, nil
	case FilterDay:
		start, end = today, today.AddDate(0, 0, 1)
	case FilterWeek:
		offset := (int(today.Weekday()) + 6) % 7
		start = today.AddDate(0, 0, -offset)
		end = start.AddDate(0, 0, 7)
	case FilterMonth:
		start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0)
	case FilterSemester:
		if local.Month() <= time.June {
			start, end = semester(local.Year(), time.January, loc)
		} else {
			start, end = semester(local.Year(), time.July, loc)
		}
	case FilterSemester1:
		start, end = semester(local.Year(), time.January, loc)
	case FilterSemester2:
		start, end = semester(local.Year(), time.July, loc)
	default:
		return models.TimeWindow{}, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "invalid filter"),
			map[string]string{"filter": "filter must be one of day, week, month, semester, semester1, semester2"},
		)
	}

	start, end = start.UTC(), end.UTC()
	return models.TimeWindow{Filter: filter, Start: &start, End: &end}, nil
}

func semester(year int, first time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, first, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 6, 0)
}
