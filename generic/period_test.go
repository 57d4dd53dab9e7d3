package generic_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(year int, month time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(year, month, d)
}

func year2025() generic.Period {
	return generic.Period{Start: day(2025, time.January, 1), End: day(2025, time.December, 31)}
}

type holidays []generic.Holiday

func (h holidays) IsHoliday(d generic.TimePoint) bool {
	for _, hol := range h {
		if hol.Matches(d) {
			return true
		}
	}
	return false
}

// =============================================================================
// PERIOD
// =============================================================================

func TestNewPeriod(t *testing.T) {
	_, err := generic.NewPeriod(day(2025, time.March, 5), day(2025, time.March, 3))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	p, err := generic.NewPeriod(day(2025, time.March, 3), day(2025, time.March, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, p.DaysCount())
}

func TestPeriod_Contains(t *testing.T) {
	p := year2025()

	assert.True(t, p.Contains(day(2025, time.January, 1)))
	assert.True(t, p.Contains(day(2025, time.December, 31)))
	assert.False(t, p.Contains(day(2024, time.December, 31)))
	assert.False(t, p.Contains(day(2026, time.January, 1)))
	assert.True(t, generic.UnboundedPeriod().Contains(day(1900, time.January, 1)))
}

func TestPeriod_DaysCount(t *testing.T) {
	assert.Equal(t, 365, year2025().DaysCount())
	assert.Equal(t, 366, generic.YearOf(day(2024, time.May, 1)).DaysCount())
	assert.Equal(t, 28, generic.MonthOf(day(2025, time.February, 10)).DaysCount())
	assert.Equal(t, 0, generic.UnboundedPeriod().DaysCount())
	assert.Len(t, generic.MonthOf(day(2025, time.April, 10)).Days(), 30)
}

func TestPeriod_SplitByYear(t *testing.T) {
	p := generic.Period{Start: day(2024, time.December, 30), End: day(2026, time.January, 2)}

	years := p.SplitByYear()

	require.Len(t, years, 3)
	assert.Equal(t, "[2024-01-01, 2024-12-31]", years[0].String())
	assert.Equal(t, "[2025-01-01, 2025-12-31]", years[1].String())
	assert.Equal(t, "[2026-01-01, 2026-12-31]", years[2].String())
}

func TestPeriod_SplitByMonth(t *testing.T) {
	p := generic.Period{Start: day(2025, time.January, 31), End: day(2025, time.March, 1)}

	months := p.SplitByMonth()

	require.Len(t, months, 3)
	assert.Equal(t, "[2025-01-01, 2025-01-31]", months[0].String())
	assert.Equal(t, "[2025-02-01, 2025-02-28]", months[1].String())
	assert.Equal(t, "[2025-03-01, 2025-03-31]", months[2].String())
}

func TestPeriod_Overlap(t *testing.T) {
	first := generic.Period{Start: day(2025, time.March, 1), End: day(2025, time.March, 10)}
	second := generic.Period{Start: day(2025, time.March, 10), End: day(2025, time.March, 20)}
	third := generic.Period{Start: day(2025, time.March, 11), End: day(2025, time.March, 20)}

	assert.True(t, first.Overlaps(second))
	assert.False(t, first.Overlaps(third))
	assert.Equal(t, 1, first.CoveredDays(second))
	assert.Equal(t, 0, first.CoveredDays(third))
	assert.Equal(t, 10, year2025().CoveredDays(first))

	bounds := generic.UnboundedPeriod()
	from, to := bounds.Bounds()
	assert.Equal(t, generic.DistantPast, from)
	assert.Equal(t, generic.DistantFuture, to)
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestIsWorkday(t *testing.T) {
	cal := holidays{
		{Date: day(2020, time.December, 25), Name: "Christmas", Recurring: true},
		{Date: day(2025, time.March, 11), Name: "Patron saint"},
	}

	assert.True(t, generic.IsWorkday(day(2025, time.March, 10), cal))
	assert.False(t, generic.IsWorkday(day(2025, time.March, 8), cal), "saturday")
	assert.False(t, generic.IsWorkday(day(2025, time.March, 11), cal))
	assert.True(t, generic.IsWorkday(day(2026, time.March, 11), cal), "one-off holiday does not recur")
	assert.False(t, generic.IsWorkday(day(2025, time.December, 25), cal))
	assert.True(t, generic.IsWorkday(day(2025, time.March, 11), nil))
}

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate("2025-03-03")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, "2025-03-03", d.String())

	_, err = generic.ParseDate("03/03/2025")
	assert.Error(t, err)
}

// =============================================================================
// AMOUNT
// =============================================================================

func TestAmount_Rounding(t *testing.T) {
	half := decimal.NewFromFloat(0.5)

	tests := []struct {
		name    string
		value   float64
		rounded string
		floored string
	}{
		{"exact half", 2.5, "2.5", "2.5"},
		{"rounds down", 5.04, "5", "5"},
		{"rounds up at the quarter", 2.75, "3", "2.5"},
		{"rounds up", 4.8, "5", "4.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := generic.NewAmount(tt.value, generic.UnitUnits)
			assert.Equal(t, tt.rounded, a.RoundTo(half).Value.String())
			assert.Equal(t, tt.floored, a.Floor(half).Value.String())
		})
	}
}

func TestAmount_Arithmetic(t *testing.T) {
	a := generic.NewAmountFromInt(420, generic.UnitMinutes)
	b := generic.NewAmountFromInt(240, generic.UnitMinutes)

	assert.Equal(t, 660, a.Add(b).Minutes())
	assert.True(t, b.Sub(a).IsNegative())
	assert.True(t, a.GreaterThan(b))
	assert.Equal(t, b, a.Min(b))
	assert.True(t, a.Zero().IsZero())
	assert.Equal(t, generic.UnitMinutes, a.Zero().Unit)
}
