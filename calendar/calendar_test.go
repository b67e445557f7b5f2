package calendar_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/calendar"
)

func d(s string) calendar.Date { return calendar.MustParseDate(s) }

func rng(start, end string) calendar.Range { return calendar.NewRange(d(start), d(end)) }

// =============================================================================
// DATE / RANGE
// =============================================================================

func TestParseDate_RejectsBadInput(t *testing.T) {
	_, err := calendar.ParseDate("2024-13-01")
	assert.Error(t, err)

	_, err = calendar.ParseDate("01/03/2024")
	assert.Error(t, err)

	got, err := calendar.ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, got.Weekday())
}

func TestDate_TextRoundTripKeepsDay(t *testing.T) {
	var got calendar.Date
	require.NoError(t, got.UnmarshalText([]byte("2024-02-29")))
	text, err := got.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", string(text))
}

func TestRange_Relations(t *testing.T) {
	outer := rng("2024-03-01", "2024-03-15")

	assert.True(t, outer.Covers(rng("2024-03-05", "2024-03-07")))
	assert.True(t, outer.Covers(outer))
	assert.False(t, outer.Covers(rng("2024-02-28", "2024-03-02")))

	assert.True(t, outer.Overlaps(rng("2024-03-15", "2024-03-20")))
	assert.False(t, outer.Overlaps(rng("2024-03-16", "2024-03-20")))

	assert.False(t, rng("2024-03-02", "2024-03-01").Valid())
	assert.Equal(t, 15, outer.Len())
	assert.Len(t, outer.Days(), 15)
}

func TestRange_BeforeAndAfterCut(t *testing.T) {
	outer := rng("2024-03-01", "2024-03-15")

	before, ok := outer.Before(d("2024-03-05"))
	require.True(t, ok)
	assert.Equal(t, rng("2024-03-01", "2024-03-04"), before)

	after, ok := outer.After(d("2024-03-07"))
	require.True(t, ok)
	assert.Equal(t, rng("2024-03-08", "2024-03-15"), after)

	// Cutting at the edges leaves nothing on that side.
	_, ok = outer.Before(d("2024-03-01"))
	assert.False(t, ok)
	_, ok = outer.After(d("2024-03-15"))
	assert.False(t, ok)
}

// =============================================================================
// BUSINESS DAYS
// =============================================================================

func TestBusinessDays_WeekendsExcluded(t *testing.T) {
	// GIVEN: No holidays
	// WHEN: Counting March 1-15 2024 (Fri to Fri)
	// THEN: 11 business days, and the split fragments count 2 and 6

	none := calendar.HolidaySet{}
	assert.Equal(t, 11, calendar.BusinessDays(rng("2024-03-01", "2024-03-15"), none))
	assert.Equal(t, 2, calendar.BusinessDays(rng("2024-03-01", "2024-03-04"), none))
	assert.Equal(t, 6, calendar.BusinessDays(rng("2024-03-08", "2024-03-15"), none))
	assert.Equal(t, 3, calendar.BusinessDays(rng("2024-03-05", "2024-03-07"), none))
}

func TestBusinessDays_WeekendOnlyRangeIsZero(t *testing.T) {
	assert.Equal(t, 0, calendar.BusinessDays(rng("2024-03-02", "2024-03-03"), nil))
}

func TestBusinessDays_InvalidRangeIsZero(t *testing.T) {
	assert.Equal(t, 0, calendar.BusinessDays(rng("2024-03-10", "2024-03-01"), nil))
}

func TestBusinessDays_HolidaysExcluded(t *testing.T) {
	// GIVEN: A one-off holiday on Wednesday March 6
	// WHEN: Counting the week of March 4
	// THEN: 4 business days

	hs := calendar.HolidaySet{}
	hs.Add(d("2024-03-06"), "Audit day")

	assert.Equal(t, 4, calendar.BusinessDays(rng("2024-03-04", "2024-03-08"), hs))
	assert.Equal(t, "Audit day", hs.Name(d("2024-03-06")))
}

// =============================================================================
// HOLIDAY WINDOW
// =============================================================================

func TestCalendar_RecurringHolidaysExpandedPerYear(t *testing.T) {
	source := calendar.StaticSource{
		{Date: d("2000-05-01"), Name: "Labour Day", Recurring: true},
		{Date: d("2025-03-31"), Name: "Eid", Recurring: false},
		{Date: d("2030-01-01"), Name: "Out of window", Recurring: false},
	}
	cal := calendar.New(source)

	hs, err := cal.HolidaySet(context.Background(), 2024, 2026)
	require.NoError(t, err)

	assert.True(t, hs.Contains(d("2024-05-01")))
	assert.True(t, hs.Contains(d("2025-05-01")))
	assert.True(t, hs.Contains(d("2026-05-01")))
	assert.True(t, hs.Contains(d("2025-03-31")))
	assert.False(t, hs.Contains(d("2030-01-01")))
	assert.Len(t, hs, 4)
}

func TestCalendar_LeapDayOnlyInLeapYears(t *testing.T) {
	cal := calendar.New(calendar.StaticSource{
		{Date: d("2000-02-29"), Name: "Leap", Recurring: true},
	})

	hs, err := cal.HolidaySet(context.Background(), 2023, 2024)
	require.NoError(t, err)

	assert.True(t, hs.Contains(d("2024-02-29")))
	assert.False(t, hs.Contains(d("2023-03-01")))
	assert.Len(t, hs, 1)
}

func TestCalendar_WindowWidensAroundRanges(t *testing.T) {
	cal := calendar.New(nil)
	from, to := cal.Window(rng("2024-12-20", "2025-01-10"), rng("2024-03-01", "2024-03-15"))
	assert.Equal(t, 2023, from)
	assert.Equal(t, 2027, to)

	cal = calendar.New(nil, calendar.WithWindow(0, 0))
	from, to = cal.Window(rng("2024-03-01", "2024-03-15"))
	assert.Equal(t, 2024, from)
	assert.Equal(t, 2024, to)
}

type failingSource struct{}

func (failingSource) Holidays(context.Context, int, int) ([]calendar.Holiday, error) {
	return nil, errors.New("db down")
}

func TestCalendar_SourceErrorPropagates(t *testing.T) {
	cal := calendar.New(failingSource{})
	_, err := cal.HolidaysFor(context.Background(), rng("2024-03-01", "2024-03-15"))
	assert.ErrorContains(t, err, "db down")
}

func TestDefaultHolidays_AreRecurring(t *testing.T) {
	defaults := calendar.DefaultHolidays()
	require.NotEmpty(t, defaults)
	for _, h := range defaults {
		assert.True(t, h.Recurring, h.Name)
		assert.NotEmpty(t, h.Name)
	}
}
