package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saludbit/impactou-api/internal/models"
)

func TestWeeklyProgress(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 19, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}

	weeks := WeeklyProgress(times, time.UTC, 12)
	require.Len(t, weeks, 2)
	latest := weeks[0]
	assert.Equal(t, 2026, latest.Year)
	assert.Equal(t, 11, latest.Week)
	assert.Equal(t, "2026-03-09", latest.StartDate)
	assert.Equal(t, [7]int{1, 0, 2, 0, 0, 0, 0}, latest.Days)
	assert.Equal(t, [7]bool{true, false, true, false, false, false, false}, latest.Active)
	assert.Equal(t, 3, latest.Total)
	assert.Equal(t, 10, weeks[1].Week)

	assert.Len(t, WeeklyProgress(times, time.UTC, 1), 1)
	assert.Empty(t, WeeklyProgress(nil, nil, 12))
}

func TestWeeklyProgressShiftsDaysByLocation(t *testing.T) {
	bogota := time.FixedZone("COT", -5*3600)
	// Monday 02:00 UTC is still Sunday evening in Bogotá.
	weeks := WeeklyProgress([]time.Time{time.Date(2026, 3, 9, 2, 0, 0, 0, time.UTC)}, bogota, 0)
	require.Len(t, weeks, 1)
	assert.Equal(t, 1, weeks[0].Days[6])
	assert.Equal(t, "2026-03-02", weeks[0].StartDate)
}

func TestMonthlyProgressGrid(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}

	progress := MonthlyProgress(times, time.UTC, 2026, time.March)
	assert.Equal(t, 3, progress.Total)
	require.Len(t, progress.Weeks, 6)
	for _, week := range progress.Weeks {
		assert.Len(t, week, 7)
	}
	// March 2026 starts on a Sunday.
	assert.Equal(t, models.DayCell{}, progress.Weeks[0][0])
	assert.Equal(t, models.DayCell{Day: 1, Count: 1}, progress.Weeks[0][6])
	assert.Equal(t, models.DayCell{Day: 31, Count: 2}, progress.Weeks[5][1])
	assert.Equal(t, models.DayCell{}, progress.Weeks[5][2])
	assert.Equal(t, []int{1, 0, 0, 0, 0, 2}, progress.WeeklyTotals)
}

func TestDailyCountsNewestFirst(t *testing.T) {
	days := dailyCounts([]time.Time{
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC),
	}, nil)
	require.Len(t, days, 2)
	assert.Equal(t, models.DailySubmissionCount{Date: "2026-03-03", Submissions: 2}, days[0])
	assert.Equal(t, "2026-03-01", days[1].Date)
}
