package calendar

import (
	"context"
	"time"
)

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday is a non-working day that does not count against leave.
type Holiday struct {
	ID        string
	Date      Date
	Name      string
	Recurring bool // true = same month/day every year
}

// HolidaySource loads the holidays relevant to a span of years.
// Recurring holidays are returned once; the Calendar expands them per year.
type HolidaySource interface {
	Holidays(ctx context.Context, fromYear, toYear int) ([]Holiday, error)
}

// StaticSource serves a fixed list. Used in tests and when no store is wired.
type StaticSource []Holiday

func (s StaticSource) Holidays(_ context.Context, fromYear, toYear int) ([]Holiday, error) {
	var out []Holiday
	for _, h := range s {
		if h.Recurring || (h.Date.Year() >= fromYear && h.Date.Year() <= toYear) {
			out = append(out, h)
		}
	}
	return out, nil
}

// HolidaySet is the expanded set of holiday dates for a window of years,
// keyed by YYYY-MM-DD.
type HolidaySet map[string]string

func (hs HolidaySet) Add(d Date, name string) { hs[d.String()] = name }

func (hs HolidaySet) Contains(d Date) bool {
	_, ok := hs[d.String()]
	return ok
}

// Name returns the holiday name for d, or "".
func (hs HolidaySet) Name(d Date) string { return hs[d.String()] }

// DefaultHolidays are the fixed-date public holidays seeded on a fresh database.
// Movable religious holidays are entered yearly as one-off holidays.
func DefaultHolidays() []Holiday {
	fixed := []struct {
		month time.Month
		day   int
		name  string
	}{
		{time.January, 1, "New Year's Day"},
		{time.January, 11, "Independence Manifesto Day"},
		{time.January, 14, "Amazigh New Year"},
		{time.May, 1, "Labour Day"},
		{time.July, 30, "Throne Day"},
		{time.August, 14, "Oued Ed-Dahab Day"},
		{time.August, 20, "Revolution of the King and the People"},
		{time.August, 21, "Youth Day"},
		{time.November, 6, "Green March"},
		{time.November, 18, "Independence Day"},
	}

	holidays := make([]Holiday, 0, len(fixed))
	for _, f := range fixed {
		holidays = append(holidays, Holiday{
			Date:      NewDate(2000, f.month, f.day),
			Name:      f.name,
			Recurring: true,
		})
	}
	return holidays
}
