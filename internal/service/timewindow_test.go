package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/saludbit/impactou-api/pkg/errors"
)

func TestResolveWindow(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	utc := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	cases := []struct {
		filter string
		start  time.Time
		end    time.Time
	}{
		{FilterDay, utc(2026, 3, 11), utc(2026, 3, 12)},
		{FilterWeek, utc(2026, 3, 9), utc(2026, 3, 16)},
		{FilterMonth, utc(2026, 3, 1), utc(2026, 4, 1)},
		{FilterSemester, utc(2026, 1, 1), utc(2026, 7, 1)},
		{FilterSemester1, utc(2026, 1, 1), utc(2026, 7, 1)},
		{FilterSemester2, utc(2026, 7, 1), utc(2027, 1, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.filter, func(t *testing.T) {
			window, err := ResolveWindow(tc.filter, now, time.UTC)
			require.NoError(t, err)
			require.NotNil(t, window.Start)
			require.NotNil(t, window.End)
			assert.True(t, tc.start.Equal(*window.Start), "start %s", window.Start)
			assert.True(t, tc.end.Equal(*window.End), "end %s", window.End)
		})
	}
}

func TestResolveWindowAllIsOpen(t *testing.T) {
	for _, filter := range []string{"", "all", " ALL "} {
		window, err := ResolveWindow(filter, time.Now(), nil)
		require.NoError(t, err)
		assert.Equal(t, FilterAll, window.Filter)
		assert.Nil(t, window.Start)
		assert.Nil(t, window.End)
	}
}

func TestResolveWindowUsesLocation(t *testing.T) {
	bogota := time.FixedZone("COT", -5*3600)
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	window, err := ResolveWindow(FilterDay, now, bogota)
	require.NoError(t, err)
	assert.True(t, window.Start.Equal(time.Date(2026, 3, 9, 5, 0, 0, 0, time.UTC)))
	assert.True(t, window.End.Equal(time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)))
}

func TestResolveWindowSemesterInSecondHalf(t *testing.T) {
	window, err := ResolveWindow(FilterSemester, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	require.NoError(t, err)
	assert.True(t, window.Start.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestResolveWindowRejectsUnknownFilter(t *testing.T) {
	_, err := ResolveWindow("year", time.Now(), time.UTC)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "filter")
}
