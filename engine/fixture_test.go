package engine_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
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
// TEST HELPERS
// =============================================================================

const testCatalog = `
tabs:
  - {name: main, priority: 1}
  - {name: family, priority: 2}

categories:
  - {name: permits, tab: main, priority: 1}
  - {name: vacation, tab: main, priority: 2}
  - {name: recovery, tab: main, priority: 3}
  - {name: parental, tab: family, priority: 1}

absence_types:
  - code: "18"
    justified_types: [all_day, specified_minutes]
    behaviours:
      - {kind: minimumTime, data: 60}
      - {kind: maximumTime, data: 240}
  - {code: "19", justified_types: [all_day], incompatible_codes: ["18"]}
  - {code: "23", justified_types: [all_day]}
  - {code: "25", justified_types: [all_day]}
  - {code: "31", justified_types: [all_day, half_day]}
  - {code: "91", justified_types: [all_day]}
  - {code: "PB", justified_types: [all_day]}
  - {code: "RW", justified_types: [all_day], considered_week_end: true}
  - {code: "09M", justified_types: [specified_minutes]}
  - {code: "09H7", justified_types: [all_day], replacing_type: all_day, replacing_time: 420}
  - {code: "661", justified_types: [all_day], valid_to: "2020-01-01"}

takable_behaviours:
  - {name: t_18, amount_type: minutes, taken_codes: ["18"], takable_codes: ["18"], fixed_limit: 600}
  - {name: t_19, amount_type: units, taken_codes: ["19"], takable_codes: ["19"], fixed_limit: 4}
  - {name: t_23, amount_type: units, taken_codes: ["23"], takable_codes: ["23"], fixed_limit: 2}
  - {name: t_25, amount_type: units, taken_codes: ["25"], takable_codes: ["25"], fixed_limit: 10}
  - name: t_31
    amount_type: units
    taken_codes: ["31"]
    takable_codes: ["31"]
    fixed_limit: 10
    adjustment: workingTimeAndPeriodPercent
  - {name: t_91, amount_type: minutes, taken_codes: ["91"], takable_codes: ["91"]}
  - {name: t_pb, amount_type: units, taken_codes: ["PB"], takable_codes: ["PB"]}
  - {name: t_rw, amount_type: units, taken_codes: ["RW"], takable_codes: ["RW"]}
  - {name: t_661, amount_type: units, taken_codes: ["661"], takable_codes: ["661"]}

complation_behaviours:
  - {name: c_09, amount_type: minutes, complation_codes: ["09M"], replacing_codes: ["09H7"]}

groups:
  - {name: permit_18, category: permits, priority: 1, pattern: simpleGrouping, period_type: year, takable_behaviour: t_18}
  - {name: donation, category: permits, priority: 2, pattern: simpleGrouping, period_type: month, takable_behaviour: t_19}
  - {name: legacy, category: permits, priority: 3, pattern: simpleGrouping, period_type: year, takable_behaviour: t_661}
  - {name: weekend_duty, category: permits, priority: 4, pattern: simpleGrouping, period_type: always, takable_behaviour: t_rw}
  - name: parental_1
    category: parental
    priority: 1
    pattern: simpleGrouping
    period_type: child1_0_3
    takable_behaviour: t_23
    next_group: parental_1_reduced
    automatic: true
  - {name: parental_1_reduced, category: parental, priority: 2, pattern: simpleGrouping, period_type: child1_0_3, takable_behaviour: t_25}
  - {name: vacation, category: vacation, priority: 1, pattern: simpleGrouping, period_type: year, takable_behaviour: t_31}
  - {name: programmed, category: vacation, priority: 2, pattern: programmed, period_type: year, takable_behaviour: t_pb, initializable: true}
  - {name: compensatory_rest, category: vacation, priority: 3, pattern: compensatoryRestCnr, period_type: year, takable_behaviour: t_91, initializable: true}
  - {name: recovery, category: recovery, priority: 1, pattern: simpleGrouping, period_type: month, complation_behaviour: c_09}
`

const (
	// Ada has no children, Bob has one born mid-2024.
	ada = "ada"
	bob = "bob"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := factory.ParseCatalog([]byte(testCatalog), catalog.Options{})
	require.NoError(t, err)
	return cat
}

func newTestEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.SavePerson(ctx, engine.Person{ID: ada, Name: "Ada", WorkingTimePercent: 100, DailyMinutes: 432}))
	require.NoError(t, store.SavePerson(ctx, engine.Person{
		ID:                 bob,
		Name:               "Bob",
		WorkingTimePercent: 100,
		DailyMinutes:       432,
		Children:           []engine.Child{{Name: "Cleo", BirthDate: generic.NewTimePoint(2024, time.June, 1)}},
	}))

	base := []engine.Option{
		engine.WithHolidayCalendar(store),
		engine.WithDutyRoster(store),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	eng := engine.New(newTestCatalog(t), store, store, store, append(base, opts...)...)
	return eng, store
}

// march returns a day of March 2025. March 3rd is a Monday.
func march(d int) generic.TimePoint { return generic.NewTimePoint(2025, time.March, d) }

func intPtr(i int) *int { return &i }

func decPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func request(person, code string, from, to generic.TimePoint) engine.Request {
	return engine.Request{PersonID: person, Code: code, From: from, To: to}
}

func assertAmount(t *testing.T, want float64, got generic.Amount) {
	t.Helper()
	assert.True(t, decimal.NewFromFloat(want).Equal(got.Value), "expected %v, got %s", want, got)
}

func codes(rows []engine.TemplateRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Code())
	}
	return out
}

// commit runs an insert and commits it, failing the test if it is not accepted.
func commit(t *testing.T, eng *engine.Engine, req engine.Request) *engine.InsertReport {
	t.Helper()
	ctx := context.Background()
	report, err := eng.Insert(ctx, req)
	require.NoError(t, err)
	require.True(t, report.Accepted, "troubles: %v", troubles(report))
	_, err = eng.Commit(ctx, report)
	require.NoError(t, err)
	return report
}

func troubles(report *engine.InsertReport) map[string][]absence.AbsenceProblem {
	out := map[string][]absence.AbsenceProblem{}
	for _, r := range report.TemplateRows {
		out[r.Date.String()+" "+r.Code()] = r.Problems()
	}
	return out
}
