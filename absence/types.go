/*
Package absence holds the data model of the absence engine.

PURPOSE:
  Catalog definitions (what codes exist and how they are grouped) and the
  absence instances produced by the insertion pipeline. Everything here is
  plain data plus small pure helpers: no lookups, no persistence.

KEY CONCEPTS:
  - AbsenceType:   a leaf rule identified by its code ("31", "661G", ...)
  - JustifiedType: how much of a working day an absence justifies
  - TakableBehaviour:   a pool of codes consuming a shared allowance
  - ComplationBehaviour: codes that complete a day and the codes replacing them
  - GroupAbsenceType:   the unit of resolution, chained via NextGroupToCheck
  - InitializationGroup: a per person/group baseline seeding the ledger
  - Absence:       a single day of absence for a person
  - AbsenceProblem: closed enum of per-day troubles

OPTIONAL REFERENCES:
  Nullable relations are pointers (Takable, Complation, ValidFrom, ...) or
  empty strings (NextGroupToCheck). Callers check presence explicitly.

SEE ALSO:
  - catalog/catalog.go: validated, read-only lookup over these types
  - engine/insert.go: the pipeline producing Absence rows
*/
package absence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// ABSENCE TYPE
// =============================================================================

// BehaviourKind tags a per-type behaviour.
type BehaviourKind string

const (
	BehaviourMinimumTime         BehaviourKind = "minimumTime"
	BehaviourMaximumTime         BehaviourKind = "maximumTime"
	BehaviourTakenPercentageTime BehaviourKind = "takenPercentageTime"
	BehaviourNoOvertime          BehaviourKind = "no_overtime"
	BehaviourReduceOvertime      BehaviourKind = "reduce_overtime"
)

// Valid reports whether k is a known behaviour kind.
func (k BehaviourKind) Valid() bool {
	switch k {
	case BehaviourMinimumTime, BehaviourMaximumTime, BehaviourTakenPercentageTime,
		BehaviourNoOvertime, BehaviourReduceOvertime:
		return true
	}
	return false
}

// AbsenceTypeBehaviour is a (kind, data) pair. Data is minutes for the time
// behaviours and a per-mille share for takenPercentageTime.
type AbsenceTypeBehaviour struct {
	Kind BehaviourKind
	Data *int
}

// AbsenceType is a leaf rule.
type AbsenceType struct {
	Code        string
	Description string

	// Closed-open validity interval. Nil bounds are open.
	ValidFrom *generic.TimePoint
	ValidTo   *generic.TimePoint

	// Minutes justified when the justified type is absence_type_minutes.
	JustifiedTime int

	JustifiedTypes []JustifiedType
	Behaviours     []AbsenceTypeBehaviour

	// Used when this code replaces time elsewhere (complation replacing codes).
	ReplacingType JustifiedType
	ReplacingTime int

	ConsideredWeekEnd bool
	IncompatibleCodes []string
}

// IsValidOn reports whether day lies in [ValidFrom, ValidTo).
func (t *AbsenceType) IsValidOn(day generic.TimePoint) bool {
	if t.ValidFrom != nil && day.Before(*t.ValidFrom) {
		return false
	}
	if t.ValidTo != nil && !day.Before(*t.ValidTo) {
		return false
	}
	return true
}

// Permits reports whether jt is in the type's permitted set.
func (t *AbsenceType) Permits(jt JustifiedType) bool {
	for _, p := range t.JustifiedTypes {
		if p == jt {
			return true
		}
	}
	return false
}

// Behaviour returns the behaviour of the given kind, if any.
func (t *AbsenceType) Behaviour(kind BehaviourKind) (AbsenceTypeBehaviour, bool) {
	for _, b := range t.Behaviours {
		if b.Kind == kind {
			return b, true
		}
	}
	return AbsenceTypeBehaviour{}, false
}

// IncompatibleWith reports whether the catalog forbids both codes on one day.
func (t *AbsenceType) IncompatibleWith(code string) bool {
	for _, c := range t.IncompatibleCodes {
		if c == code {
			return true
		}
	}
	return false
}

// =============================================================================
// BEHAVIOURS
// =============================================================================

// AmountType is the unit an allowance is counted in.
type AmountType string

const (
	AmountUnits   AmountType = "units"
	AmountMinutes AmountType = "minutes"
)

// Unit maps the amount type to the generic quantity unit.
func (a AmountType) Unit() generic.Unit {
	if a == AmountMinutes {
		return generic.UnitMinutes
	}
	return generic.UnitUnits
}

// Valid reports whether a is units or minutes.
func (a AmountType) Valid() bool { return a == AmountUnits || a == AmountMinutes }

// TakableAmountAdjustment scales a fixed limit.
type TakableAmountAdjustment string

const (
	AdjustWorkingTimePercent          TakableAmountAdjustment = "workingTimePercent"
	AdjustWorkingPeriodPercent        TakableAmountAdjustment = "workingPeriodPercent"
	AdjustWorkingTimeAndPeriodPercent TakableAmountAdjustment = "workingTimeAndPeriodPercent"
)

// ScalesWorkingTime reports whether the contractual working-time share applies.
func (a TakableAmountAdjustment) ScalesWorkingTime() bool {
	return a == AdjustWorkingTimePercent || a == AdjustWorkingTimeAndPeriodPercent
}

// ScalesWorkingPeriod reports whether the covered-period share applies.
func (a TakableAmountAdjustment) ScalesWorkingPeriod() bool {
	return a == AdjustWorkingPeriodPercent || a == AdjustWorkingTimeAndPeriodPercent
}

// TakableBehaviour governs a pool of codes.
type TakableBehaviour struct {
	Name         string
	AmountType   AmountType
	TakenCodes   []string
	TakableCodes []string
	FixedLimit   *decimal.Decimal
	Adjustment   *TakableAmountAdjustment
}

// Takes reports whether code consumes the pool.
func (b *TakableBehaviour) Takes(code string) bool { return containsCode(b.TakenCodes, code) }

// Takable reports whether code may be requested against the pool.
func (b *TakableBehaviour) Takable(code string) bool { return containsCode(b.TakableCodes, code) }

// ComplationBehaviour governs "complete the working day" semantics.
type ComplationBehaviour struct {
	Name            string
	AmountType      AmountType
	ComplationCodes []string
	ReplacingCodes  []string
}

func (b *ComplationBehaviour) IsComplation(code string) bool {
	return containsCode(b.ComplationCodes, code)
}

func (b *ComplationBehaviour) IsReplacing(code string) bool {
	return containsCode(b.ReplacingCodes, code)
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// =============================================================================
// GROUPS
// =============================================================================

// GroupPattern selects the algorithm governing periods and limits.
type GroupPattern string

const (
	PatternSimpleGrouping      GroupPattern = "simpleGrouping"
	PatternProgrammed          GroupPattern = "programmed"
	PatternVacationsCnr        GroupPattern = "vacationsCnr"
	PatternCompensatoryRestCnr GroupPattern = "compensatoryRestCnr"
)

func (p GroupPattern) Valid() bool {
	switch p {
	case PatternSimpleGrouping, PatternProgrammed, PatternVacationsCnr, PatternCompensatoryRestCnr:
		return true
	}
	return false
}

// Structural reports whether groups of this pattern are never picked implicitly.
func (p GroupPattern) Structural() bool {
	return p == PatternVacationsCnr || p == PatternCompensatoryRestCnr
}

// PeriodKind is the calendar unit of a group's accounting period.
type PeriodKind string

const (
	PeriodAlways PeriodKind = "always"
	PeriodYear   PeriodKind = "year"
	PeriodMonth  PeriodKind = "month"
	PeriodChild  PeriodKind = "child"
)

// PeriodType is a parsed period specifier: always, year, month or childN_a_b.
type PeriodType struct {
	Kind        PeriodKind
	ChildNumber int // 1..4
	FromYears   int
	ToYears     int
}

// ParsePeriodType parses "always", "year", "month" or "childN_a_b".
func ParsePeriodType(s string) (PeriodType, error) {
	switch PeriodKind(s) {
	case PeriodAlways, PeriodYear, PeriodMonth:
		return PeriodType{Kind: PeriodKind(s)}, nil
	}
	if !strings.HasPrefix(s, "child") {
		return PeriodType{}, fmt.Errorf("unknown period type %q", s)
	}
	parts := strings.Split(strings.TrimPrefix(s, "child"), "_")
	if len(parts) != 3 {
		return PeriodType{}, fmt.Errorf("malformed child period type %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return PeriodType{}, fmt.Errorf("malformed child period type %q: %w", s, err)
		}
		nums[i] = n
	}
	pt := PeriodType{Kind: PeriodChild, ChildNumber: nums[0], FromYears: nums[1], ToYears: nums[2]}
	if pt.ChildNumber < 1 || pt.ChildNumber > 4 {
		return PeriodType{}, fmt.Errorf("child number out of range in %q", s)
	}
	if pt.FromYears < 0 || pt.ToYears <= pt.FromYears {
		return PeriodType{}, fmt.Errorf("empty age band in %q", s)
	}
	return pt, nil
}

// MustParsePeriodType panics on malformed input. For fixtures.
func MustParsePeriodType(s string) PeriodType {
	pt, err := ParsePeriodType(s)
	if err != nil {
		panic(err)
	}
	return pt
}

func (p PeriodType) IsChild() bool { return p.Kind == PeriodChild }

func (p PeriodType) String() string {
	if p.Kind == PeriodChild {
		return fmt.Sprintf("child%d_%d_%d", p.ChildNumber, p.FromYears, p.ToYears)
	}
	return string(p.Kind)
}

// CategoryTab groups categories for presentation.
type CategoryTab struct {
	Name        string
	Description string
	Priority    int
}

// Category is a priority-ordered bucket of alternative groups.
type Category struct {
	Name        string
	Description string
	Priority    int
	Tab         string
}

// GroupAbsenceType is the unit of resolution.
type GroupAbsenceType struct {
	Name             string
	Description      string
	ChainDescription string
	Category         string
	Priority         int // lower wins
	Pattern          GroupPattern
	PeriodType       PeriodType

	Takable    *TakableBehaviour
	Complation *ComplationBehaviour

	// Successor in the chain, empty when this group ends it.
	NextGroupToCheck string

	Automatic     bool
	Initializable bool
}

// HasNext reports whether the group has a successor in its chain.
func (g *GroupAbsenceType) HasNext() bool { return g.NextGroupToCheck != "" }

// AmountType is the unit of the group's takable pool, units when it has none.
func (g *GroupAbsenceType) AmountType() AmountType {
	if g.Takable != nil {
		return g.Takable.AmountType
	}
	if g.Complation != nil {
		return g.Complation.AmountType
	}
	return AmountUnits
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// InitializationGroup is a per person/group baseline. All counters are optional.
type InitializationGroup struct {
	PersonID  string
	GroupName string
	Date      generic.TimePoint

	ForcedBegin *generic.TimePoint
	ForcedEnd   *generic.TimePoint

	UnitsInput      *decimal.Decimal
	HoursInput      *int
	MinutesInput    *int
	AverageWeekTime *int

	// programmed
	TakableTotal *decimal.Decimal

	// vacationsCnr
	VacationYear *int

	// compensatoryRestCnr
	ResidualMinutesLastYear    *int
	ResidualMinutesCurrentYear *int
}

// ConsumedInput returns the amount already consumed at the baseline date.
func (i *InitializationGroup) ConsumedInput(amountType AmountType) generic.Amount {
	if amountType == AmountMinutes {
		minutes := 0
		if i.HoursInput != nil {
			minutes += *i.HoursInput * 60
		}
		if i.MinutesInput != nil {
			minutes += *i.MinutesInput
		}
		return generic.NewAmountFromInt(minutes, generic.UnitMinutes)
	}
	if i.UnitsInput != nil {
		return generic.NewAmountFromDecimal(*i.UnitsInput, generic.UnitUnits)
	}
	return generic.ZeroAmount(generic.UnitUnits)
}

// ResidualMinutes sums the compensatory rest residuals carried by the baseline.
func (i *InitializationGroup) ResidualMinutes() (int, bool) {
	if i.ResidualMinutesLastYear == nil && i.ResidualMinutesCurrentYear == nil {
		return 0, false
	}
	total := 0
	if i.ResidualMinutesLastYear != nil {
		total += *i.ResidualMinutesLastYear
	}
	if i.ResidualMinutesCurrentYear != nil {
		total += *i.ResidualMinutesCurrentYear
	}
	return total, true
}
