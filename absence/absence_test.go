package absence_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

func intPtr(i int) *int { return &i }

// =============================================================================
// JUSTIFIED TIME
// =============================================================================

func TestAbsence_JustifiedTime(t *testing.T) {
	typ := &absence.AbsenceType{Code: "92M", JustifiedTime: 120}

	tests := []struct {
		name     string
		jt       absence.JustifiedType
		minutes  *int
		expected int
	}{
		{"type minutes", absence.JustifiedAbsenceTypeMinutes, nil, 120},
		{"specified minutes", absence.JustifiedSpecifiedMinutes, intPtr(45), 45},
		{"specified minutes limit", absence.JustifiedSpecifiedMinutesLimit, intPtr(90), 90},
		{"specified without value", absence.JustifiedSpecifiedMinutes, nil, 0},
		{"all day", absence.JustifiedAllDay, intPtr(400), 0},
		{"half day", absence.JustifiedHalfDay, nil, 0},
		{"nothing", absence.JustifiedNothing, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := absence.Absence{Type: typ, JustifiedType: tt.jt, JustifiedMinutes: tt.minutes}
			assert.Equal(t, tt.expected, a.JustifiedTime())
		})
	}
}

func TestAbsence_NothingJustified(t *testing.T) {
	zero := &absence.AbsenceType{Code: "ZERO"}
	some := &absence.AbsenceType{Code: "SOME", JustifiedTime: 60}

	assert.True(t, (&absence.Absence{Type: some, JustifiedType: absence.JustifiedNothing}).NothingJustified())
	assert.True(t, (&absence.Absence{Type: zero, JustifiedType: absence.JustifiedAbsenceTypeMinutes}).NothingJustified())
	assert.False(t, (&absence.Absence{Type: some, JustifiedType: absence.JustifiedAbsenceTypeMinutes}).NothingJustified())
	assert.False(t, (&absence.Absence{Type: zero, JustifiedType: absence.JustifiedAllDay}).NothingJustified())
}

func TestJustifiedType_Classification(t *testing.T) {
	assert.Len(t, absence.JustifiedTypes(), 12)
	for _, jt := range absence.JustifiedTypes() {
		assert.True(t, jt.Valid(), jt)
	}

	assert.True(t, absence.JustifiedAllDayPercentage.IsAllDay())
	assert.True(t, absence.JustifiedCompleteDayAndAddOvertime.IsAllDay())
	assert.False(t, absence.JustifiedHalfDay.IsAllDay())
	assert.True(t, absence.JustifiedSpecifiedMinutesLimit.RequiresMinutes())
	assert.False(t, absence.JustifiedAbsenceTypeMinutes.RequiresMinutes())

	_, err := absence.ParseJustifiedType("whole_week")
	assert.Error(t, err)
}

// =============================================================================
// ABSENCE TYPE
// =============================================================================

func TestAbsenceType_IsValidOn_ClosedOpen(t *testing.T) {
	// GIVEN: a code valid from 2024-01-01 until (excluded) 2025-01-01
	from := generic.NewTimePoint(2024, time.January, 1)
	to := generic.NewTimePoint(2025, time.January, 1)
	typ := &absence.AbsenceType{Code: "OLD", ValidFrom: &from, ValidTo: &to}

	// THEN: the start is included, the end excluded
	assert.False(t, typ.IsValidOn(generic.NewTimePoint(2023, time.December, 31)))
	assert.True(t, typ.IsValidOn(from))
	assert.True(t, typ.IsValidOn(generic.NewTimePoint(2024, time.December, 31)))
	assert.False(t, typ.IsValidOn(to))

	open := &absence.AbsenceType{Code: "OPEN"}
	assert.True(t, open.IsValidOn(generic.NewTimePoint(1990, time.May, 5)))
}

func TestAbsenceType_PermitsAndBehaviour(t *testing.T) {
	typ := &absence.AbsenceType{
		Code:           "18",
		JustifiedTypes: []absence.JustifiedType{absence.JustifiedAllDay, absence.JustifiedSpecifiedMinutes},
		Behaviours: []absence.AbsenceTypeBehaviour{
			{Kind: absence.BehaviourMinimumTime, Data: intPtr(60)},
		},
		IncompatibleCodes: []string{"19"},
	}

	assert.True(t, typ.Permits(absence.JustifiedAllDay))
	assert.False(t, typ.Permits(absence.JustifiedHalfDay))

	b, ok := typ.Behaviour(absence.BehaviourMinimumTime)
	require.True(t, ok)
	assert.Equal(t, 60, *b.Data)

	_, ok = typ.Behaviour(absence.BehaviourMaximumTime)
	assert.False(t, ok)

	assert.True(t, typ.IncompatibleWith("19"))
	assert.False(t, typ.IncompatibleWith("20"))
}

// =============================================================================
// PERIOD TYPE
// =============================================================================

func TestParsePeriodType(t *testing.T) {
	pt, err := absence.ParsePeriodType("child2_3_6")
	require.NoError(t, err)
	assert.Equal(t, absence.PeriodChild, pt.Kind)
	assert.Equal(t, 2, pt.ChildNumber)
	assert.Equal(t, 3, pt.FromYears)
	assert.Equal(t, 6, pt.ToYears)
	assert.Equal(t, "child2_3_6", pt.String())

	pt, err = absence.ParsePeriodType("year")
	require.NoError(t, err)
	assert.Equal(t, absence.PeriodYear, pt.Kind)
	assert.False(t, pt.IsChild())

	for _, bad := range []string{"week", "child5_0_3", "child1_3_3", "child1_x_3", "child1_3"} {
		_, err := absence.ParsePeriodType(bad)
		assert.Error(t, err, bad)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func TestInitializationGroup_ConsumedInput(t *testing.T) {
	units := decimal.NewFromFloat(3.5)
	init := &absence.InitializationGroup{
		UnitsInput:   &units,
		HoursInput:   intPtr(2),
		MinutesInput: intPtr(15),
	}

	assert.True(t, init.ConsumedInput(absence.AmountUnits).Value.Equal(units))
	assert.Equal(t, 135, init.ConsumedInput(absence.AmountMinutes).Minutes())

	empty := &absence.InitializationGroup{}
	assert.True(t, empty.ConsumedInput(absence.AmountUnits).IsZero())
	_, ok := empty.ResidualMinutes()
	assert.False(t, ok)
}

// =============================================================================
// PROBLEMS
// =============================================================================

func TestAbsenceProblem_Classes(t *testing.T) {
	assert.True(t, absence.ForceInsert.IsWarning())
	assert.True(t, absence.InReperibility.IsWarning())
	assert.True(t, absence.OrphanReplacing.IsWarning())
	assert.False(t, absence.OrphanReplacingEscalated.IsWarning())

	assert.True(t, absence.LimitExceeded.IsHard())
	assert.True(t, absence.NoChildExist.IsHard())
	assert.False(t, absence.LimitExceeded.IsImplementationProblem())

	assert.True(t, absence.AmbiguousChain.IsImplementationProblem())
	assert.False(t, absence.AmbiguousChain.IsHard())

	assert.False(t, absence.HasBlocking([]absence.AbsenceTrouble{{Problem: absence.InShift}}))
	assert.True(t, absence.HasBlocking([]absence.AbsenceTrouble{{Problem: absence.InShift}, {Problem: absence.Expired}}))

	_, err := absence.ParseAbsenceProblem("NotAProblem")
	assert.Error(t, err)
}
