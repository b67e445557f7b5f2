package calendar

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// CALENDAR - Holiday window loading and business-day counting
// =============================================================================

// Calendar loads holiday sets from a HolidaySource. Callers ask for a window
// that generously spans every range they are about to count, so one load
// serves a whole operation.
type Calendar struct {
	source      HolidaySource
	yearsBefore int
	yearsAfter  int
}

type Option func(*Calendar)

// WithWindow sets how many years before the earliest and after the latest
// range year are loaded by HolidaysFor. Defaults are 1 and 2.
func WithWindow(before, after int) Option {
	return func(c *Calendar) {
		c.yearsBefore = before
		c.yearsAfter = after
	}
}

func New(source HolidaySource, opts ...Option) *Calendar {
	if source == nil {
		source = StaticSource(nil)
	}
	c := &Calendar{source: source, yearsBefore: 1, yearsAfter: 2}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HolidaySet returns every holiday date in [fromYear, toYear], with recurring
// holidays expanded into each year of the window.
func (c *Calendar) HolidaySet(ctx context.Context, fromYear, toYear int) (HolidaySet, error) {
	if toYear < fromYear {
		return nil, fmt.Errorf("invalid holiday window: %d..%d", fromYear, toYear)
	}

	holidays, err := c.source.Holidays(ctx, fromYear, toYear)
	if err != nil {
		return nil, fmt.Errorf("failed to load holidays: %w", err)
	}

	set := make(HolidaySet)
	for _, h := range holidays {
		if !h.Recurring {
			if h.Date.Year() >= fromYear && h.Date.Year() <= toYear {
				set.Add(h.Date, h.Name)
			}
			continue
		}
		for year := fromYear; year <= toYear; year++ {
			// Feb 29 only exists in leap years.
			t := time.Date(year, h.Date.Month(), h.Date.Day(), 0, 0, 0, 0, time.UTC)
			if t.Month() != h.Date.Month() {
				continue
			}
			set.Add(DateOf(t), h.Name)
		}
	}
	return set, nil
}

// Window returns the year span covering all ranges, widened by the
// calendar's configured margins.
func (c *Calendar) Window(ranges ...Range) (fromYear, toYear int) {
	for i, r := range ranges {
		if i == 0 || r.Start.Year() < fromYear {
			fromYear = r.Start.Year()
		}
		if i == 0 || r.End.Year() > toYear {
			toYear = r.End.Year()
		}
	}
	return fromYear - c.yearsBefore, toYear + c.yearsAfter
}

// HolidaysFor loads the holiday set for the window around the given ranges.
func (c *Calendar) HolidaysFor(ctx context.Context, ranges ...Range) (HolidaySet, error) {
	if len(ranges) == 0 {
		return HolidaySet{}, nil
	}
	from, to := c.Window(ranges...)
	return c.HolidaySet(ctx, from, to)
}

// IsBusinessDay is true for a weekday that is not in the holiday set.
func IsBusinessDay(d Date, holidays HolidaySet) bool {
	return !d.IsWeekend() && !holidays.Contains(d)
}

// BusinessDays counts the business days in r. An invalid range counts 0.
func BusinessDays(r Range, holidays HolidaySet) int {
	if !r.Valid() {
		return 0
	}
	count := 0
	for current := r.Start; current.BeforeOrEqual(r.End); current = current.AddDays(1) {
		if IsBusinessDay(current, holidays) {
			count++
		}
	}
	return count
}
