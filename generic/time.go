package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - A calendar day
// =============================================================================

// TimePoint is a calendar day in UTC. Absences, periods and baselines are all
// day-granular, so the time of day is always normalised away.
type TimePoint struct {
	Time time.Time
}

const DateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return FromTime(t), nil
}

func Today() TimePoint {
	return FromTime(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return FromTime(tp.normalize().AddDate(0, 0, n)) }
func (tp TimePoint) AddMonths(n int) TimePoint { return FromTime(tp.normalize().AddDate(0, n, 0)) }
func (tp TimePoint) AddYears(n int) TimePoint  { return FromTime(tp.normalize().AddDate(n, 0, 0)) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) IsWeekend() bool {
	wd := tp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (tp TimePoint) String() string {
	return tp.Time.Format(DateLayout)
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// HolidayCalendar answers whether a day is a public or company holiday.
type HolidayCalendar interface {
	IsHoliday(day TimePoint) bool
}

// Holiday is a single calendar entry. Recurring entries match the same
// month/day every year.
type Holiday struct {
	ID        string
	Date      TimePoint
	Name      string
	Recurring bool
}

// Matches reports whether the holiday falls on day.
func (h Holiday) Matches(day TimePoint) bool {
	if h.Recurring {
		return h.Date.Month() == day.Month() && h.Date.Day() == day.Day()
	}
	return h.Date.Equal(day)
}

// DefaultHolidayCalendar has no holidays.
type DefaultHolidayCalendar struct{}

func (DefaultHolidayCalendar) IsHoliday(TimePoint) bool { return false }

// IsWorkday reports whether day is neither a weekend nor a holiday.
func IsWorkday(day TimePoint, calendar HolidayCalendar) bool {
	if day.IsWeekend() {
		return false
	}
	if calendar != nil && calendar.IsHoliday(day) {
		return false
	}
	return true
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int { return int(to.normalize().Sub(from.normalize()).Hours() / 24) }
func StartOfYear(year int) TimePoint    { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint      { return NewTimePoint(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month, 1)
}
func EndOfMonth(year int, month time.Month) TimePoint {
	return FromTime(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}

// Range query bounds for unbounded periods.
var (
	DistantPast   = NewTimePoint(1900, time.January, 1)
	DistantFuture = NewTimePoint(2999, time.December, 31)
)

// MaxTimePoint returns the later of two days.
func MaxTimePoint(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}

// MinTimePoint returns the earlier of two days.
func MinTimePoint(a, b TimePoint) TimePoint {
	if a.Before(b) {
		return a
	}
	return b
}
