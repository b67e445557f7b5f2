package calendar

// =============================================================================
// RANGE - Inclusive span of calendar days
// =============================================================================

// Range is an inclusive [Start, End] span. A valid range has End >= Start.
type Range struct {
	Start Date
	End   Date
}

func NewRange(start, end Date) Range {
	return Range{Start: start, End: end}
}

// Valid reports whether both ends are set and End is not before Start.
func (r Range) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.End.AfterOrEqual(r.Start)
}

// Contains returns true if the date is within [Start, End].
func (r Range) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Covers returns true if other lies entirely inside r.
func (r Range) Covers(other Range) bool {
	return r.Start.BeforeOrEqual(other.Start) && r.End.AfterOrEqual(other.End)
}

// Overlaps returns true if the two ranges share at least one day.
func (r Range) Overlaps(other Range) bool {
	return r.End.AfterOrEqual(other.Start) && r.Start.BeforeOrEqual(other.End)
}

// Days returns every calendar day in the range.
func (r Range) Days() []Date {
	var days []Date
	for current := r.Start; current.BeforeOrEqual(r.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Len is the number of calendar days, weekends and holidays included.
func (r Range) Len() int {
	if !r.Valid() {
		return 0
	}
	return int(r.End.Time.Sub(r.Start.Time).Hours()/24) + 1
}

// Before returns the part of r strictly before cut, and whether it is non-empty.
func (r Range) Before(cut Date) (Range, bool) {
	if !r.Start.Before(cut) {
		return Range{}, false
	}
	return Range{Start: r.Start, End: MinDate(r.End, cut.AddDays(-1))}, true
}

// After returns the part of r strictly after cut, and whether it is non-empty.
func (r Range) After(cut Date) (Range, bool) {
	if !r.End.After(cut) {
		return Range{}, false
	}
	return Range{Start: MaxDate(r.Start, cut.AddDays(1)), End: r.End}, true
}

func (r Range) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}
