package generic

// =============================================================================
// PERIOD - The accounting window for an allowance
// =============================================================================

// Period is a closed interval of days [Start, End], or the whole timeline
// when Unbounded is set. Allowances are always consumed within a period.
//
// Examples:
//   - Calendar year 2025: Jan 1 - Dec 31
//   - Calendar month: Mar 1 - Mar 31
//   - Child age band: birth + 0y .. birth + 3y - 1d
//   - Always: unbounded
type Period struct {
	Start     TimePoint
	End       TimePoint
	Unbounded bool
}

// UnboundedPeriod returns the period covering every day.
func UnboundedPeriod() Period {
	return Period{Unbounded: true}
}

// NewPeriod returns [start, end] or ErrInvalidPeriod when end precedes start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the day is within the period.
func (p Period) Contains(t TimePoint) bool {
	if p.Unbounded {
		return true
	}
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps reports whether the two periods share at least one day.
func (p Period) Overlaps(o Period) bool {
	if p.Unbounded || o.Unbounded {
		return true
	}
	return !p.End.Before(o.Start) && !o.End.Before(p.Start)
}

// Clamp returns the intersection of p with o. The result is only meaningful
// when the periods overlap.
func (p Period) Clamp(o Period) Period {
	switch {
	case p.Unbounded:
		return o
	case o.Unbounded:
		return p
	}
	return Period{Start: MaxTimePoint(p.Start, o.Start), End: MinTimePoint(p.End, o.End)}
}

// Days returns all days in a bounded period.
func (p Period) Days() []TimePoint {
	if p.Unbounded {
		return nil
	}
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// DaysCount is the number of days in a bounded period, inclusive.
func (p Period) DaysCount() int {
	if p.Unbounded {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Bounds returns the first and last day, using DistantPast/DistantFuture
// for unbounded periods so it can drive range queries.
func (p Period) Bounds() (TimePoint, TimePoint) {
	if p.Unbounded {
		return DistantPast, DistantFuture
	}
	return p.Start, p.End
}

// String returns a string representation of the period.
func (p Period) String() string {
	if p.Unbounded {
		return "[always]"
	}
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// CALENDAR SPLITTING
// =============================================================================

// YearOf returns the calendar year containing day.
func YearOf(day TimePoint) Period {
	return Period{Start: StartOfYear(day.Year()), End: EndOfYear(day.Year())}
}

// MonthOf returns the calendar month containing day.
func MonthOf(day TimePoint) Period {
	return Period{Start: StartOfMonth(day.Year(), day.Month()), End: EndOfMonth(day.Year(), day.Month())}
}

// SplitByYear returns one full calendar-year period for every year the
// bounded period touches, in order. A December→January range yields two.
func (p Period) SplitByYear() []Period {
	if p.Unbounded {
		return []Period{p}
	}
	var out []Period
	for year := p.Start.Year(); year <= p.End.Year(); year++ {
		out = append(out, Period{Start: StartOfYear(year), End: EndOfYear(year)})
	}
	return out
}

// SplitByMonth returns one full calendar-month period for every month the
// bounded period touches, in order.
func (p Period) SplitByMonth() []Period {
	if p.Unbounded {
		return []Period{p}
	}
	var out []Period
	current := StartOfMonth(p.Start.Year(), p.Start.Month())
	last := StartOfMonth(p.End.Year(), p.End.Month())
	for !current.After(last) {
		out = append(out, Period{Start: current, End: EndOfMonth(current.Year(), current.Month())})
		current = current.AddMonths(1)
	}
	return out
}

// CoveredDays counts the days of p that also belong to o. Used to scale
// allowances for contracts that cover only part of a period.
func (p Period) CoveredDays(o Period) int {
	if p.Unbounded || !p.Overlaps(o) {
		return 0
	}
	return p.Clamp(o).DaysCount()
}
