package engine

import (
	"context"
	"sort"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// PERSON - Read-only view of the employee
// =============================================================================

// Person is what the engine needs to know about an employee. Contract and
// working-time data are computed elsewhere and consumed as-is.
type Person struct {
	ID        string
	Name      string
	Contracts []Contract
	Children  []Child

	// Current share of a full-time schedule, 100 for full time.
	WorkingTimePercent int

	// Working minutes of a full day. Zero falls back to the settings default.
	DailyMinutes int
}

// Contract is an employment interval. A nil End is open-ended.
type Contract struct {
	Begin generic.TimePoint
	End   *generic.TimePoint
}

// Period returns the contract interval clamped to DistantFuture when open.
func (c Contract) Period() generic.Period {
	end := generic.DistantFuture
	if c.End != nil {
		end = *c.End
	}
	return generic.Period{Start: c.Begin, End: end}
}

// Child is used by child age-band periods.
type Child struct {
	Name      string
	BirthDate generic.TimePoint
}

// ChildN returns the nth child (1-based) by birth order.
func (p *Person) ChildN(n int) (*Child, bool) {
	if n < 1 || n > len(p.Children) {
		return nil, false
	}
	sorted := append([]Child(nil), p.Children...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BirthDate.Before(sorted[j].BirthDate)
	})
	return &sorted[n-1], true
}

// ActiveContractDays counts the days of a bounded period covered by any
// contract. A person with no contract on record counts as fully covered.
func (p *Person) ActiveContractDays(period generic.Period) int {
	if period.Unbounded {
		return 0
	}
	if len(p.Contracts) == 0 {
		return period.DaysCount()
	}
	covered := 0
	for _, day := range period.Days() {
		for _, c := range p.Contracts {
			if c.Period().Contains(day) {
				covered++
				break
			}
		}
	}
	return covered
}

// =============================================================================
// REPOSITORIES - External collaborators
// =============================================================================

// PersonRepository loads people. Unknown ids return generic.ErrPersonNotFound.
type PersonRepository interface {
	Person(ctx context.Context, id string) (*Person, error)
}

// AbsenceRepository loads committed absences and persists accepted rows.
// Returned absences only need Type.Code set; the engine rehydrates types
// from the catalog.
type AbsenceRepository interface {
	AbsencesInRange(ctx context.Context, personID string, from, to generic.TimePoint) ([]absence.Absence, error)
	SaveAbsences(ctx context.Context, absences []absence.Absence) error
}

// InitializationGroupRepository returns (nil, nil) when no baseline exists.
type InitializationGroupRepository interface {
	Initialization(ctx context.Context, personID, group string) (*absence.InitializationGroup, error)
}

// DutyRoster answers on-call and shift questions. Optional.
type DutyRoster interface {
	OnCall(ctx context.Context, personID string, day generic.TimePoint) (bool, error)
	InShift(ctx context.Context, personID string, day generic.TimePoint) (bool, error)
}
