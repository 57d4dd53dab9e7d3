package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/catalog"
	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/store/memory"
)

// =============================================================================
// SCENARIOS
// =============================================================================

func TestInsert_ProgrammedWithinTotal(t *testing.T) {
	// GIVEN: a programmed baseline of 20 days, nothing consumed
	ctx := context.Background()
	eng, store := newTestEngine(t)
	require.NoError(t, store.SaveInitialization(ctx, absence.InitializationGroup{
		PersonID: ada, GroupName: "programmed", Date: generic.NewTimePoint(2025, 1, 1),
		TakableTotal: decPtr(20),
	}))

	// WHEN: five consecutive all-day absences are requested
	report, err := eng.Insert(ctx, request(ada, "PB", march(3), march(7)))
	require.NoError(t, err)

	// THEN: all accepted, 5 consumed, 15 left
	assert.True(t, report.Accepted)
	assert.Equal(t, engine.StateReported, report.State)
	require.Len(t, report.TemplateRows, 5)
	for _, row := range report.TemplateRows {
		assert.Empty(t, row.Troubles)
		assert.Equal(t, "programmed", row.Group)
	}
	require.Len(t, report.Ledgers, 1)
	ledger := report.Ledgers[0]
	assert.True(t, ledger.Seeded)
	assertAmount(t, 5, ledger.Consumed)
	remaining, ok := ledger.Remaining()
	require.True(t, ok)
	assertAmount(t, 15, remaining)
}

func TestInsert_ProgrammedLimitExceeded(t *testing.T) {
	// GIVEN: 18 of 20 days already consumed at the baseline
	ctx := context.Background()
	eng, store := newTestEngine(t)
	require.NoError(t, store.SaveInitialization(ctx, absence.InitializationGroup{
		PersonID: ada, GroupName: "programmed", Date: generic.NewTimePoint(2025, 1, 1),
		TakableTotal: decPtr(20), UnitsInput: decPtr(18),
	}))

	// WHEN: five more days are requested
	report, err := eng.Insert(ctx, request(ada, "PB", march(3), march(7)))
	require.NoError(t, err)

	// THEN: days 1-2 fit, day 3 onwards exceed
	assert.False(t, report.Accepted)
	require.Len(t, report.TemplateRows, 5)
	for i, row := range report.TemplateRows {
		if i < 2 {
			assert.True(t, row.Accepted, "day %d", i+1)
			assert.Empty(t, row.Troubles)
			continue
		}
		assert.False(t, row.Accepted, "day %d", i+1)
		assert.Equal(t, []absence.AbsenceProblem{absence.LimitExceeded}, row.Problems())
	}
	assertAmount(t, 20, report.Ledgers[0].Consumed)

	// AND: a commit only persists the accepted days
	saved, err := eng.Commit(ctx, report)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestInsert_ForceInsertAcceptsExceedingDays(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)
	require.NoError(t, store.SaveInitialization(ctx, absence.InitializationGroup{
		PersonID: ada, GroupName: "programmed", Date: generic.NewTimePoint(2025, 1, 1),
		TakableTotal: decPtr(20), UnitsInput: decPtr(18),
	}))

	req := request(ada, "PB", march(3), march(7))
	req.ForceInsert = true
	report, err := eng.Insert(ctx, req)
	require.NoError(t, err)

	assert.True(t, report.Accepted)
	for _, row := range report.TemplateRows[2:] {
		assert.Equal(t, []absence.AbsenceProblem{absence.LimitExceeded, absence.ForceInsert}, row.Problems())
	}
	assertAmount(t, 23, report.Ledgers[0].Consumed)
}

func TestInsert_NoChildExist(t *testing.T) {
	eng, _ := newTestEngine(t)

	report, err := eng.Insert(context.Background(), request(ada, "23", march(3), march(5)))
	require.NoError(t, err)

	assert.False(t, report.Accepted)
	require.Len(t, report.TemplateRows, 3)
	for _, row := range report.TemplateRows {
		assert.Equal(t, []absence.AbsenceProblem{absence.NoChildExist}, row.Problems())
		assert.True(t, row.Amount.IsZero())
	}
	assert.Empty(t, report.Ledgers)
}

func TestInsert_TwoSameCodeSameDay(t *testing.T) {
	eng, _ := newTestEngine(t)
	commit(t, eng, request(ada, "31", march(3), march(3)))

	report, err := eng.Insert(context.Background(), request(ada, "31", march(3), march(3)))
	require.NoError(t, err)

	assert.False(t, report.Accepted)
	require.Len(t, report.TemplateRows, 1)
	assert.Equal(t, []absence.AbsenceProblem{absence.TwoSameCodeSameDay}, report.TemplateRows[0].Problems())
	trouble := report.TemplateRows[0].Troubles[0]
	require.NotNil(t, trouble.Absence)
	assert.NotEmpty(t, trouble.Absence.ID)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestSimulate_Idempotent(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	commit(t, eng, request(ada, "31", march(3), march(4)))

	first, err := eng.Simulate(ctx, request(ada, "31", march(5), march(14)))
	require.NoError(t, err)
	second, err := eng.Simulate(ctx, request(ada, "31", march(5), march(14)))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, engine.StateSimulated, first.State)
}

func TestInsert_MonotonicConsumptionAndLimit(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	// 10 days allowed; three working weeks requested
	report, err := eng.Insert(ctx, request(ada, "31", march(3), march(21)))
	require.NoError(t, err)

	ledger, ok := report.Ledger("vacation", march(3))
	require.True(t, ok)
	require.NotNil(t, ledger.Limit)

	running := generic.ZeroAmount(generic.UnitUnits)
	for _, entry := range ledger.Entries {
		assert.False(t, entry.Amount.IsNegative())
		running = running.Add(entry.Amount)
		assert.False(t, running.GreaterThan(*ledger.Limit))
	}
	for _, row := range report.TemplateRows {
		if !row.Accepted {
			assert.True(t, row.HasProblem(absence.LimitExceeded))
		}
	}
	assert.Len(t, report.AcceptedRows(), 10)
	assert.Len(t, report.Skipped, 4)
}

func TestCommit_JustifiedTimeRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	req := request(ada, "18", march(3), march(3))
	req.JustifiedType = absence.JustifiedSpecifiedMinutes
	req.Minutes = intPtr(120)
	report := commit(t, eng, req)

	assert.Equal(t, 120, report.TemplateRows[0].Amount.Minutes())
	stored, err := store.AbsencesInRange(ctx, ada, march(3), march(3))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 120, stored[0].JustifiedTime())
	assert.Equal(t, absence.JustifiedSpecifiedMinutes, stored[0].JustifiedType)
}

// =============================================================================
// DAY VALIDATION
// =============================================================================

func TestInsert_WeekendsAndHolidays(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)
	store.AddHoliday(generic.Holiday{Date: march(11), Name: "Local feast"})

	t.Run("multi-day range skips non-working days", func(t *testing.T) {
		report, err := eng.Simulate(ctx, request(ada, "31", march(7), march(11)))
		require.NoError(t, err)

		assert.Equal(t, []string{"2025-03-07", "2025-03-10"}, rowDates(report))
		assert.Equal(t, []generic.TimePoint{march(8), march(9), march(11)}, report.Skipped)
		assert.True(t, report.Accepted)
	})

	t.Run("single day on a weekend", func(t *testing.T) {
		report, err := eng.Simulate(ctx, request(ada, "31", march(8), march(8)))
		require.NoError(t, err)

		require.Len(t, report.TemplateRows, 1)
		assert.Equal(t, []absence.AbsenceProblem{absence.NotOnHoliday}, report.TemplateRows[0].Problems())
	})

	t.Run("codes considered on weekends", func(t *testing.T) {
		report, err := eng.Simulate(ctx, request(ada, "RW", march(8), march(9)))
		require.NoError(t, err)

		assert.Len(t, report.TemplateRows, 2)
		assert.True(t, report.Accepted)
	})
}

func TestInsert_Expired(t *testing.T) {
	eng, _ := newTestEngine(t)

	report, err := eng.Simulate(context.Background(), request(ada, "661", march(3), march(3)))
	require.NoError(t, err)

	require.Len(t, report.TemplateRows, 1)
	assert.Equal(t, []absence.AbsenceProblem{absence.Expired}, report.TemplateRows[0].Problems())
}

func TestInsert_MinutesBounds(t *testing.T) {
	eng, _ := newTestEngine(t)

	tests := []struct {
		name     string
		minutes  int
		expected []absence.AbsenceProblem
	}{
		{"below minimum", 30, []absence.AbsenceProblem{absence.MinimumTimeViolated}},
		{"above maximum", 300, []absence.AbsenceProblem{absence.MaximumTimeExceed}},
		{"within bounds", 120, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(ada, "18", march(3), march(3))
			req.JustifiedType = absence.JustifiedSpecifiedMinutes
			req.Minutes = intPtr(tt.minutes)

			report, err := eng.Simulate(context.Background(), req)
			require.NoError(t, err)

			require.Len(t, report.TemplateRows, 1)
			assert.Equal(t, tt.expected, nilIfEmpty(report.TemplateRows[0].Problems()))
		})
	}
}

func TestInsert_MinutePoolLimit(t *testing.T) {
	eng, _ := newTestEngine(t)

	// 600 minutes allowed, an all-day permit consumes 432
	report, err := eng.Simulate(context.Background(), request(ada, "18", march(3), march(4)))
	require.NoError(t, err)

	require.Len(t, report.TemplateRows, 2)
	assert.True(t, report.TemplateRows[0].Accepted)
	assert.Equal(t, 432, report.TemplateRows[0].Amount.Minutes())
	assert.True(t, report.TemplateRows[1].HasProblem(absence.LimitExceeded))
}

func TestInsert_SameDayConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("incompatible codes", func(t *testing.T) {
		eng, _ := newTestEngine(t)
		permit := request(ada, "18", march(3), march(3))
		permit.JustifiedType = absence.JustifiedSpecifiedMinutes
		permit.Minutes = intPtr(120)
		commit(t, eng, permit)

		report, err := eng.Simulate(ctx, request(ada, "19", march(3), march(3)))
		require.NoError(t, err)

		assert.Equal(t, []absence.AbsenceProblem{absence.IncompatibilyTypeSameDay}, report.TemplateRows[0].Problems())
	})

	t.Run("all day already exists", func(t *testing.T) {
		eng, _ := newTestEngine(t)
		commit(t, eng, request(ada, "31", march(3), march(3)))

		permit := request(ada, "18", march(3), march(3))
		permit.JustifiedType = absence.JustifiedSpecifiedMinutes
		permit.Minutes = intPtr(120)
		report, err := eng.Simulate(ctx, permit)
		require.NoError(t, err)

		assert.Equal(t, []absence.AbsenceProblem{absence.AllDayAlreadyExists}, report.TemplateRows[0].Problems())
	})
}

func TestInsert_DutyWarnings(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)
	store.SetOnCall(ada, march(3))
	store.SetInShift(ada, march(4))
	store.SetOnCall(ada, march(5))
	store.SetInShift(ada, march(5))

	report, err := eng.Insert(ctx, request(ada, "31", march(3), march(5)))
	require.NoError(t, err)

	assert.True(t, report.Accepted)
	assert.Equal(t, []absence.AbsenceProblem{absence.InReperibility}, report.TemplateRows[0].Problems())
	assert.Equal(t, []absence.AbsenceProblem{absence.InShift}, report.TemplateRows[1].Problems())
	assert.Equal(t, []absence.AbsenceProblem{absence.InReperibilityOrShift}, report.TemplateRows[2].Problems())
}

func TestInsert_BeforeInitialization(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)
	require.NoError(t, store.SaveInitialization(ctx, absence.InitializationGroup{
		PersonID: ada, GroupName: "programmed", Date: march(5), TakableTotal: decPtr(20),
	}))

	report, err := eng.Simulate(ctx, request(ada, "PB", march(4), march(5)))
	require.NoError(t, err)

	assert.Equal(t, []absence.AbsenceProblem{absence.BeforeInitialization}, report.TemplateRows[0].Problems())
	assert.Empty(t, report.TemplateRows[1].Troubles)
}

func TestInsert_OutOfForcedPeriod(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	// GIVEN: a baseline forcing the 2025 programmed period to February-November
	begin := generic.NewTimePoint(2025, time.February, 1)
	end := generic.NewTimePoint(2025, time.November, 30)
	require.NoError(t, store.SaveInitialization(ctx, absence.InitializationGroup{
		PersonID: ada, GroupName: "programmed", Date: generic.NewTimePoint(2025, time.March, 1),
		ForcedBegin: &begin, ForcedEnd: &end, TakableTotal: decPtr(20),
	}))

	t.Run("days after the forced end", func(t *testing.T) {
		// WHEN: a range crosses the forced end
		report, err := eng.Simulate(ctx, request(ada, "PB",
			generic.NewTimePoint(2025, time.November, 28), generic.NewTimePoint(2025, time.December, 2)))
		require.NoError(t, err)

		// THEN: the day inside is counted, the days outside are rejected
		assert.Equal(t, []string{"2025-11-28", "2025-12-01", "2025-12-02"}, rowDates(report))
		assert.True(t, report.TemplateRows[0].Accepted)
		assert.Empty(t, report.TemplateRows[0].Troubles)
		for _, row := range report.TemplateRows[1:] {
			assert.False(t, row.Accepted, row.Date.String())
			assert.Equal(t, []absence.AbsenceProblem{absence.OutOfForcedPeriod}, row.Problems())
		}
		require.Len(t, report.Ledgers, 1)
		assert.Equal(t, "[2025-02-01, 2025-11-30]", report.Ledgers[0].Period.Period.String())
		assertAmount(t, 1, report.Ledgers[0].Consumed)
	})

	t.Run("day before the forced begin", func(t *testing.T) {
		report, err := eng.Simulate(ctx, request(ada, "PB",
			generic.NewTimePoint(2025, time.January, 20), generic.NewTimePoint(2025, time.January, 20)))
		require.NoError(t, err)

		require.Len(t, report.TemplateRows, 1)
		assert.Equal(t, []absence.AbsenceProblem{absence.OutOfForcedPeriod}, report.TemplateRows[0].Problems())
		assert.False(t, report.Accepted)
	})

	t.Run("following year is not forced", func(t *testing.T) {
		report, err := eng.Simulate(ctx, request(ada, "PB",
			generic.NewTimePoint(2026, time.January, 5), generic.NewTimePoint(2026, time.January, 5)))
		require.NoError(t, err)

		assert.True(t, report.Accepted)
		require.Len(t, report.Ledgers, 1)
		assert.Equal(t, "[2026-01-01, 2026-12-31]", report.Ledgers[0].Period.Period.String())
	})
}

func TestInsert_ForcedBeginAfterBaselineKeepsTotal(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	// GIVEN: 1 of 2 days consumed, the window forced to start after the baseline
	begin := march(3)
	require.NoError(t, store.SaveInitialization(ctx, absence.InitializationGroup{
		PersonID: ada, GroupName: "programmed", Date: march(1), ForcedBegin: &begin,
		TakableTotal: decPtr(2), UnitsInput: decPtr(1),
	}))

	// WHEN: a working week is requested
	report, err := eng.Simulate(ctx, request(ada, "PB", march(3), march(7)))
	require.NoError(t, err)

	// THEN: the total still caps the period
	require.Len(t, report.Ledgers, 1)
	ledger := report.Ledgers[0]
	assert.True(t, ledger.Seeded)
	require.NotNil(t, ledger.Limit)
	assertAmount(t, 2, *ledger.Limit)

	// AND: only the first day fits
	require.Len(t, report.TemplateRows, 5)
	assert.True(t, report.TemplateRows[0].Accepted)
	for _, row := range report.TemplateRows[1:] {
		assert.Equal(t, []absence.AbsenceProblem{absence.LimitExceeded}, row.Problems(), row.Date.String())
	}
}

func TestInsert_RangeAcrossMonths(t *testing.T) {
	// GIVEN: donation allows 4 days per month
	eng, _ := newTestEngine(t)

	// WHEN: a range runs from late March into April
	report, err := eng.Simulate(context.Background(), request(ada, "19",
		march(27), generic.NewTimePoint(2025, time.April, 7)))
	require.NoError(t, err)

	// THEN: each month has its own ledger
	require.Len(t, report.Ledgers, 2)
	assert.Equal(t, "[2025-03-01, 2025-03-31]", report.Ledgers[0].Period.Period.String())
	assertAmount(t, 3, report.Ledgers[0].Consumed)
	assert.Equal(t, "[2025-04-01, 2025-04-30]", report.Ledgers[1].Period.Period.String())
	assertAmount(t, 4, report.Ledgers[1].Consumed)

	// AND: only the fifth April day exceeds
	assert.Equal(t, []string{
		"2025-03-27", "2025-03-28", "2025-03-31",
		"2025-04-01", "2025-04-02", "2025-04-03", "2025-04-04", "2025-04-07",
	}, rowDates(report))
	for _, row := range report.TemplateRows[:7] {
		assert.Empty(t, row.Troubles, row.Date.String())
	}
	assert.Equal(t, []absence.AbsenceProblem{absence.LimitExceeded}, report.TemplateRows[7].Problems())
	assert.False(t, report.Accepted)
}

func TestInsert_CompensatoryRestResiduals(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)
	require.NoError(t, store.SaveInitialization(ctx, absence.InitializationGroup{
		PersonID: ada, GroupName: "compensatory_rest", Date: generic.NewTimePoint(2025, 1, 1),
		ResidualMinutesLastYear: intPtr(600), ResidualMinutesCurrentYear: intPtr(300),
	}))

	t.Run("reserved group needs an explicit name", func(t *testing.T) {
		_, err := eng.Simulate(ctx, request(ada, "91", march(3), march(3)))
		assert.ErrorIs(t, err, generic.ErrNoGoverningGroup)
	})

	t.Run("residual minutes cap the pool", func(t *testing.T) {
		req := request(ada, "91", march(3), march(5))
		req.GroupName = "compensatory_rest"
		report, err := eng.Simulate(ctx, req)
		require.NoError(t, err)

		limit := report.Ledgers[0].Limit
		require.NotNil(t, limit)
		assert.Equal(t, 900, limit.Minutes())
		assert.True(t, report.TemplateRows[1].Accepted)
		assert.True(t, report.TemplateRows[2].HasProblem(absence.LimitExceeded))
	})
}

// =============================================================================
// CHAINS
// =============================================================================

func TestInsert_AutomaticChainFallsThrough(t *testing.T) {
	eng, _ := newTestEngine(t)

	req := engine.Request{PersonID: bob, GroupName: "parental_1", From: march(3), To: march(6)}
	report, err := eng.Insert(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, report.Accepted)
	assert.Equal(t, []string{"23", "23", "25", "25"}, codes(report.TemplateRows))
	assert.Equal(t, "parental_1", report.TemplateRows[0].Group)
	assert.Equal(t, "parental_1_reduced", report.TemplateRows[2].Group)
	require.Len(t, report.Chain, 2)
}

func TestInsert_ExplicitCodeStaysInItsGroup(t *testing.T) {
	eng, _ := newTestEngine(t)

	report, err := eng.Simulate(context.Background(), request(bob, "23", march(3), march(5)))
	require.NoError(t, err)

	assert.False(t, report.Accepted)
	assert.True(t, report.TemplateRows[2].HasProblem(absence.LimitExceeded))
	assert.Equal(t, "parental_1", report.TemplateRows[2].Group)
}

func TestInsert_OutOfChildPeriod(t *testing.T) {
	eng, _ := newTestEngine(t)

	// Cleo turns 3 on 2027-06-01
	day := generic.NewTimePoint(2027, 6, 1)
	report, err := eng.Simulate(context.Background(), request(bob, "23", day, day))
	require.NoError(t, err)

	assert.Equal(t, []absence.AbsenceProblem{absence.OutOfChildPeriod}, report.TemplateRows[0].Problems())
}

func TestInsert_AmbiguousChainAborts(t *testing.T) {
	cat, err := factory.ParseCatalog([]byte(`
absence_types:
  - {code: "31", justified_types: [all_day]}
takable_behaviours:
  - {name: t, amount_type: units, taken_codes: ["31"], takable_codes: ["31"], fixed_limit: 5}
groups:
  - {name: a, priority: 1, pattern: simpleGrouping, period_type: year, takable_behaviour: t, next_group: c}
  - {name: b, priority: 2, pattern: simpleGrouping, period_type: year, takable_behaviour: t, next_group: c}
  - {name: c, priority: 3, pattern: simpleGrouping, period_type: year, takable_behaviour: t}
`), catalog.Options{})
	require.NoError(t, err)
	store := memory.New()
	require.NoError(t, store.SavePerson(context.Background(), engine.Person{ID: ada}))
	eng := engine.New(cat, store, store, store)

	req := request(ada, "31", march(3), march(3))
	req.GroupName = "c"
	_, err = eng.Simulate(context.Background(), req)

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrImplementationProblem)
	assert.ErrorIs(t, err, generic.ErrAmbiguousChain)
	var impl *generic.ImplementationError
	require.True(t, errors.As(err, &impl))
	assert.Equal(t, string(absence.AmbiguousChain), impl.Problem)
}

// =============================================================================
// COMPLATION
// =============================================================================

func recovery(person string, day generic.TimePoint, minutes int) engine.Request {
	req := request(person, "09M", day, day)
	req.Minutes = intPtr(minutes)
	return req
}

func TestInsert_ComplationAddsReplacing(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)
	first := commit(t, eng, recovery(ada, march(3), 240))
	assert.Equal(t, []string{"09M"}, codes(first.TemplateRows))

	// WHEN: the running total crosses the 420 minutes threshold
	report := commit(t, eng, recovery(ada, march(4), 240))

	// THEN: a replacing code is added the same day
	require.Equal(t, []string{"09M", "09H7"}, codes(report.TemplateRows))
	auto := report.TemplateRows[1]
	assert.True(t, auto.AutoReplacing)
	assert.True(t, auto.Accepted)
	assert.Equal(t, absence.JustifiedAllDay, auto.JustifiedType)
	assertAmount(t, 480, report.Ledgers[0].Consumed)

	stored, err := store.AbsencesInRange(ctx, ada, march(4), march(4))
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestInsert_OrphanReplacing(t *testing.T) {
	ctx := context.Background()

	t.Run("warning by default", func(t *testing.T) {
		eng, _ := newTestEngine(t)
		report, err := eng.Simulate(ctx, request(ada, "09H7", march(5), march(5)))
		require.NoError(t, err)

		assert.True(t, report.Accepted)
		assert.Equal(t, []absence.AbsenceProblem{absence.OrphanReplacing}, report.TemplateRows[0].Problems())
		assert.True(t, report.TemplateRows[0].Amount.IsZero())
	})

	t.Run("escalated by settings", func(t *testing.T) {
		settings := engine.DefaultSettings()
		settings.EscalateOrphanReplacing = true
		eng, _ := newTestEngine(t, engine.WithSettings(engine.StaticSettings(settings)))

		report, err := eng.Simulate(ctx, request(ada, "09H7", march(5), march(5)))
		require.NoError(t, err)

		assert.False(t, report.Accepted)
		assert.Equal(t, []absence.AbsenceProblem{absence.OrphanReplacingEscalated}, report.TemplateRows[0].Problems())
	})
}

func TestInsert_CompromisedComplation(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)
	recoveryType, _ := eng.Catalog().AbsenceTypeByCode("09M")

	// GIVEN: history crossing the threshold on the 4th with no replacing
	require.NoError(t, store.SaveAbsences(ctx, []absence.Absence{
		{ID: "r1", PersonID: ada, Date: march(3), Type: recoveryType, JustifiedType: absence.JustifiedSpecifiedMinutes, JustifiedMinutes: intPtr(240)},
		{ID: "r2", PersonID: ada, Date: march(4), Type: recoveryType, JustifiedType: absence.JustifiedSpecifiedMinutes, JustifiedMinutes: intPtr(240)},
	}))

	t.Run("later complation is compromised", func(t *testing.T) {
		report, err := eng.Simulate(ctx, recovery(ada, march(5), 60))
		require.NoError(t, err)

		assert.Equal(t, []absence.AbsenceProblem{absence.CompromisedTakableComplationGroup}, report.TemplateRows[0].Problems())
	})

	t.Run("second complation on a day", func(t *testing.T) {
		report, err := eng.Simulate(ctx, recovery(ada, march(3), 60))
		require.NoError(t, err)

		row := report.TemplateRows[0]
		assert.True(t, row.HasProblem(absence.TwoSameCodeSameDay))
		assert.True(t, row.HasProblem(absence.CompromisedTwoComplation))
	})
}

// =============================================================================
// CALLER ERRORS
// =============================================================================

func TestInsert_CallerErrors(t *testing.T) {
	eng, _ := newTestEngine(t)

	tests := []struct {
		name     string
		req      engine.Request
		expected error
	}{
		{"reversed range", request(ada, "31", march(5), march(3)), generic.ErrInvalidPeriod},
		{"missing dates", engine.Request{PersonID: ada, Code: "31"}, generic.ErrInvalidRequest},
		{"unknown code", request(ada, "ZZ", march(3), march(3)), generic.ErrAbsenceTypeNotFound},
		{"unknown person", request("nobody", "31", march(3), march(3)), generic.ErrPersonNotFound},
		{"too long", request(ada, "31", march(3), generic.NewTimePoint(2026, 6, 1)), generic.ErrRequestTooLong},
		{"unknown group", engine.Request{PersonID: ada, GroupName: "nope", From: march(3), To: march(3)}, generic.ErrGroupNotFound},
		{"no code for manual group", engine.Request{PersonID: ada, GroupName: "vacation", From: march(3), To: march(3)}, generic.ErrInvalidRequest},
		{"group does not govern code", engine.Request{PersonID: ada, Code: "31", GroupName: "donation", From: march(3), To: march(3)}, generic.ErrNoGoverningGroup},
		{"justified type not permitted", engine.Request{PersonID: ada, Code: "18", JustifiedType: absence.JustifiedHalfDay, From: march(3), To: march(3)}, generic.ErrJustifiedTypeNotPermitted},
		{"missing minutes", engine.Request{PersonID: ada, Code: "18", JustifiedType: absence.JustifiedSpecifiedMinutes, From: march(3), To: march(3)}, generic.ErrMissingMinutes},
		{"missing minutes by default", request(ada, "09M", march(3), march(3)), generic.ErrMissingMinutes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := eng.Simulate(context.Background(), tt.req)
			assert.Nil(t, report)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestCommit_Errors(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	_, err := eng.Commit(ctx, nil)
	assert.ErrorIs(t, err, generic.ErrNothingToCommit)

	simulated, err := eng.Simulate(ctx, request(ada, "31", march(3), march(3)))
	require.NoError(t, err)
	_, err = eng.Commit(ctx, simulated)
	assert.ErrorIs(t, err, generic.ErrSimulatedReport)

	rejected, err := eng.Insert(ctx, request(ada, "661", march(3), march(3)))
	require.NoError(t, err)
	_, err = eng.Commit(ctx, rejected)
	assert.ErrorIs(t, err, generic.ErrNothingToCommit)

	report := commit(t, eng, request(ada, "31", march(3), march(3)))
	assert.Equal(t, engine.StateCommitted, report.State)
	_, err = eng.Commit(ctx, report)
	assert.ErrorIs(t, err, generic.ErrAlreadyCommitted)
}

func rowDates(report *engine.InsertReport) []string {
	out := make([]string, 0, len(report.TemplateRows))
	for _, r := range report.TemplateRows {
		out = append(out, r.Date.String())
	}
	return out
}

func nilIfEmpty(p []absence.AbsenceProblem) []absence.AbsenceProblem {
	if len(p) == 0 {
		return nil
	}
	return p
}
