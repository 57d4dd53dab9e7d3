/*
ledger.go - Consumption ledger

PURPOSE:
  For a person, a group and one of its periods, computes how much of the
  group's allowance is already consumed and what the limit is. The ledger
  is an immutable value: Apply returns a new snapshot, so a simulation can
  be thrown away without side effects and simulate/insert share one path.

SEEDING:
  With an initialization baseline whose date lies inside the period, or
  whose forced bounds produced the period, the ledger starts from the baseline's consumed counters and only replays
  absences strictly after the baseline date. Otherwise every absence whose
  code is taken by the group is replayed.

PATTERNS:
  simpleGrouping       limit = fixedLimit x adjustments
  programmed           limit = baseline takableTotal, else as simple
  vacationsCnr         as simple; baseline only for its vacationYear
  compensatoryRestCnr  minutes pool from the baseline residuals, else as simple

ROUNDING:
  Unit limits round to the nearest half unit, minute limits to whole minutes.

SEE ALSO:
  - periods.go: where periods come from
  - insert.go: how the pipeline advances ledgers day by day
*/
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/catalog"
	"github.com/warp/absence-engine/generic"
)

var (
	halfUnit  = decimal.NewFromFloat(0.5)
	oneMinute = decimal.NewFromInt(1)
	hundred   = decimal.NewFromInt(100)
	perMille  = decimal.NewFromInt(1000)
)

// =============================================================================
// LEDGER
// =============================================================================

// LedgerEntry is one consumption recorded against a ledger.
type LedgerEntry struct {
	Date          generic.TimePoint
	Code          string
	JustifiedType absence.JustifiedType
	Amount        generic.Amount
	AbsenceID     string // empty for rows of the current request
	Requested     bool
}

// Ledger is a point-in-time snapshot of a group's consumption in a period.
type Ledger struct {
	Period     GroupPeriod
	Group      string
	AmountType absence.AmountType
	Consumed   generic.Amount
	Limit      *generic.Amount // nil when the group has no cap

	// Baseline date when an initialization exists, and whether it seeded
	// this period.
	Initialization *generic.TimePoint
	Seeded         bool

	Entries []LedgerEntry
}

// Remaining returns limit - consumed, false when the ledger has no limit.
func (l Ledger) Remaining() (generic.Amount, bool) {
	if l.Limit == nil {
		return generic.Amount{}, false
	}
	return l.Limit.Sub(l.Consumed), true
}

// WouldExceed reports whether consuming amount would go past the limit.
func (l Ledger) WouldExceed(amount generic.Amount) bool {
	if l.Limit == nil {
		return false
	}
	return l.Consumed.Add(amount).GreaterThan(*l.Limit)
}

// Apply returns a new ledger with the entry consumed.
func (l Ledger) Apply(entry LedgerEntry) Ledger {
	next := l
	next.Consumed = l.Consumed.Add(entry.Amount)
	next.Entries = make([]LedgerEntry, len(l.Entries), len(l.Entries)+1)
	copy(next.Entries, l.Entries)
	next.Entries = append(next.Entries, entry)
	return next
}

// BeforeBaseline reports whether day precedes the initialization date.
func (l Ledger) BeforeBaseline(day generic.TimePoint) bool {
	return l.Initialization != nil && day.Before(*l.Initialization)
}

// =============================================================================
// PROJECTOR
// =============================================================================

// Projector builds ledgers from committed history. A projector is bound to
// one settings snapshot and lives for a single request.
type Projector struct {
	catalog  *catalog.Catalog
	absences AbsenceRepository
	inits    InitializationGroupRepository
	settings Settings
}

func NewProjector(c *catalog.Catalog, absences AbsenceRepository, inits InitializationGroupRepository, settings Settings) *Projector {
	return &Projector{catalog: c, absences: absences, inits: inits, settings: settings}
}

// Project replays the person's history for the group period.
func (p *Projector) Project(ctx context.Context, person *Person, gp GroupPeriod) (Ledger, error) {
	group := gp.Group
	init, err := p.initialization(ctx, person, group)
	if err != nil {
		return Ledger{}, err
	}

	from, to := gp.Period.Bounds()
	history, err := p.absences.AbsencesInRange(ctx, person.ID, from, to)
	if err != nil {
		return Ledger{}, fmt.Errorf("load absences for %s: %w", group.Name, err)
	}
	hydrate(p.catalog, history)
	sort.SliceStable(history, func(i, j int) bool { return history[i].Date.Before(history[j].Date) })

	amountType := group.AmountType()
	ledger := Ledger{
		Period:     gp,
		Group:      group.Name,
		AmountType: amountType,
		Consumed:   generic.ZeroAmount(amountType.Unit()),
	}

	seeded := false
	if init != nil {
		baseline := init.Date
		ledger.Initialization = &baseline
		seeded = seedsPeriod(group, gp, init)
	}
	if seeded {
		ledger.Seeded = true
		ledger.Consumed = init.ConsumedInput(amountType)
	}

	daily := p.dailyMinutes(person)
	for i := range history {
		a := &history[i]
		if !takes(group, a.Code()) {
			continue
		}
		if seeded && !a.Date.After(init.Date) {
			continue
		}
		ledger = ledger.Apply(LedgerEntry{
			Date:          a.Date,
			Code:          a.Code(),
			JustifiedType: a.JustifiedType,
			Amount:        AmountOf(a, amountType, daily),
			AbsenceID:     a.ID,
		})
	}

	ledger.Limit = p.limit(person, gp, init, seeded)
	return ledger, nil
}

func (p *Projector) initialization(ctx context.Context, person *Person, group *absence.GroupAbsenceType) (*absence.InitializationGroup, error) {
	if !group.Initializable || p.inits == nil {
		return nil, nil
	}
	init, err := p.inits.Initialization(ctx, person.ID, group.Name)
	if err != nil {
		return nil, fmt.Errorf("load initialization for %s: %w", group.Name, err)
	}
	return init, nil
}

// seedsPeriod reports whether the baseline seeds this period.
func seedsPeriod(group *absence.GroupAbsenceType, gp GroupPeriod, init *absence.InitializationGroup) bool {
	if !gp.Forced && !gp.Period.Contains(init.Date) {
		return false
	}
	if group.Pattern == absence.PatternVacationsCnr && init.VacationYear != nil && !gp.Period.Unbounded {
		return gp.Period.Start.Year() == *init.VacationYear
	}
	return true
}

func (p *Projector) limit(person *Person, gp GroupPeriod, init *absence.InitializationGroup, seeded bool) *generic.Amount {
	group := gp.Group
	if group.Takable == nil {
		return nil
	}
	unit := group.Takable.AmountType.Unit()

	switch group.Pattern {
	case absence.PatternProgrammed:
		if seeded && init.TakableTotal != nil {
			total := generic.NewAmountFromDecimal(*init.TakableTotal, unit)
			return &total
		}
	case absence.PatternCompensatoryRestCnr:
		if seeded {
			if minutes, ok := init.ResidualMinutes(); ok {
				residual := generic.NewAmountFromInt(minutes, generic.UnitMinutes)
				return &residual
			}
		}
	case absence.PatternSimpleGrouping, absence.PatternVacationsCnr:
	}

	if group.Takable.FixedLimit == nil {
		return nil
	}
	value := *group.Takable.FixedLimit
	if adj := group.Takable.Adjustment; adj != nil {
		if adj.ScalesWorkingTime() {
			value = value.Mul(decimal.NewFromInt(int64(workingTimePercent(person)))).Div(hundred)
		}
		if adj.ScalesWorkingPeriod() && !gp.Period.Unbounded {
			covered := person.ActiveContractDays(gp.Period)
			value = value.Mul(decimal.NewFromInt(int64(covered))).Div(decimal.NewFromInt(int64(gp.Period.DaysCount())))
		}
	}

	limit := generic.NewAmountFromDecimal(value, unit)
	if unit == generic.UnitUnits {
		limit = limit.RoundTo(halfUnit)
	} else {
		limit = limit.RoundTo(oneMinute)
	}
	return &limit
}

func workingTimePercent(person *Person) int {
	if person.WorkingTimePercent <= 0 {
		return 100
	}
	return person.WorkingTimePercent
}

func (p *Projector) dailyMinutes(person *Person) int {
	if person.DailyMinutes > 0 {
		return person.DailyMinutes
	}
	return p.settings.DefaultDailyMinutes
}

// =============================================================================
// AMOUNTS
// =============================================================================

// AmountOf is how much an absence consumes from a pool of the given type.
//
// Units: all-day kinds count 1, half_day 0.5, minute kinds their share of a
// working day. Minutes: justifiedTime, or the working-day minutes for
// all-day kinds (half for half_day, the takenPercentageTime share for
// all_day_percentage).
func AmountOf(a *absence.Absence, amountType absence.AmountType, dailyMinutes int) generic.Amount {
	unit := amountType.Unit()
	if a.NothingJustified() {
		return generic.ZeroAmount(unit)
	}
	jt := a.JustifiedType

	if amountType == absence.AmountUnits {
		switch {
		case jt.IsAllDay():
			return generic.NewAmountFromInt(1, unit)
		case jt == absence.JustifiedHalfDay:
			return generic.NewAmountFromDecimal(halfUnit, unit)
		}
		minutes := a.JustifiedTime()
		if minutes == 0 || dailyMinutes <= 0 {
			return generic.ZeroAmount(unit)
		}
		return generic.NewAmountFromDecimal(decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(int64(dailyMinutes))), unit)
	}

	switch {
	case jt == absence.JustifiedAllDayPercentage:
		if a.Type != nil {
			if b, ok := a.Type.Behaviour(absence.BehaviourTakenPercentageTime); ok && b.Data != nil {
				share := decimal.NewFromInt(int64(dailyMinutes)).Mul(decimal.NewFromInt(int64(*b.Data))).Div(perMille)
				return generic.NewAmountFromDecimal(share, unit).RoundTo(oneMinute)
			}
		}
		return generic.NewAmountFromInt(dailyMinutes, unit)
	case jt.IsAllDay():
		return generic.NewAmountFromInt(dailyMinutes, unit)
	case jt == absence.JustifiedHalfDay:
		return generic.NewAmountFromInt(dailyMinutes/2, unit)
	}
	return generic.NewAmountFromInt(a.JustifiedTime(), unit)
}

// takes reports whether code consumes the group's pool: its taken codes, or
// its complation codes for a group with no takable behaviour.
func takes(group *absence.GroupAbsenceType, code string) bool {
	if group.Takable != nil {
		return group.Takable.Takes(code)
	}
	if group.Complation != nil {
		return group.Complation.IsComplation(code)
	}
	return false
}

// hydrate swaps stored type stubs for the catalog's definitions. Codes the
// catalog no longer knows keep their stub.
func hydrate(c *catalog.Catalog, absences []absence.Absence) {
	for i := range absences {
		if absences[i].Type == nil {
			continue
		}
		if t, ok := c.AbsenceTypeByCode(absences[i].Type.Code); ok {
			absences[i].Type = t
		}
	}
}
