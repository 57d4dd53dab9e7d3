package engine

import (
	"fmt"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// PERIOD BUILDER
// =============================================================================

// GroupPeriod is one accounting window of a group. ChildIndex is the 1-based
// child number for child age-band periods and zero otherwise.
type GroupPeriod struct {
	Group      *absence.GroupAbsenceType
	Period     generic.Period
	ChildIndex int
	Child      *Child
	// Forced is set when an initialization narrowed the window.
	Forced bool
}

// Contains reports whether the day falls in the window.
func (gp GroupPeriod) Contains(day generic.TimePoint) bool { return gp.Period.Contains(day) }

func (gp GroupPeriod) key() string { return gp.Group.Name + "|" + gp.Period.String() }

// BuildPeriods returns the ordered accounting periods of a group around an
// anchor day. With an explicit range, year and month groups get one period
// per calendar unit the range touches. A child group whose child does not
// exist yields no period and no error.
func BuildPeriods(group *absence.GroupAbsenceType, person *Person, anchor generic.TimePoint, explicit *generic.Period) ([]GroupPeriod, error) {
	if group == nil {
		return nil, &generic.ImplementationError{Problem: string(absence.MissingTakableBehaviour), Detail: "no group to build periods for"}
	}

	wrap := func(periods ...generic.Period) []GroupPeriod {
		out := make([]GroupPeriod, 0, len(periods))
		for _, p := range periods {
			out = append(out, GroupPeriod{Group: group, Period: p})
		}
		return out
	}

	switch group.PeriodType.Kind {
	case absence.PeriodAlways:
		return wrap(generic.UnboundedPeriod()), nil

	case absence.PeriodYear:
		if explicit != nil && !explicit.Unbounded {
			return wrap(explicit.SplitByYear()...), nil
		}
		return wrap(generic.YearOf(anchor)), nil

	case absence.PeriodMonth:
		if explicit != nil && !explicit.Unbounded {
			return wrap(explicit.SplitByMonth()...), nil
		}
		return wrap(generic.MonthOf(anchor)), nil

	case absence.PeriodChild:
		if person == nil {
			return nil, nil
		}
		child, ok := person.ChildN(group.PeriodType.ChildNumber)
		if !ok {
			return nil, nil
		}
		start := child.BirthDate.AddYears(group.PeriodType.FromYears)
		end := child.BirthDate.AddYears(group.PeriodType.ToYears).AddDays(-1)
		return []GroupPeriod{{
			Group:      group,
			Period:     generic.Period{Start: start, End: end},
			ChildIndex: group.PeriodType.ChildNumber,
			Child:      child,
		}}, nil
	}

	return nil, &generic.ImplementationError{
		Problem: "UnknownPeriodType",
		Group:   group.Name,
		Detail:  fmt.Sprintf("period type %q", group.PeriodType.String()),
	}
}

// ForceBounds applies an initialization's forced begin/end to the periods
// containing its baseline date and marks them Forced. An unbounded period
// is only narrowed when both bounds are forced.
func ForceBounds(periods []GroupPeriod, init *absence.InitializationGroup) []GroupPeriod {
	if init == nil || (init.ForcedBegin == nil && init.ForcedEnd == nil) {
		return periods
	}
	out := make([]GroupPeriod, len(periods))
	copy(out, periods)
	for i, gp := range out {
		if !gp.Period.Contains(init.Date) {
			continue
		}
		if gp.Period.Unbounded {
			if init.ForcedBegin != nil && init.ForcedEnd != nil {
				out[i].Period = generic.Period{Start: *init.ForcedBegin, End: *init.ForcedEnd}
				out[i].Forced = true
			}
			continue
		}
		if init.ForcedBegin != nil {
			out[i].Period.Start = *init.ForcedBegin
		}
		if init.ForcedEnd != nil {
			out[i].Period.End = *init.ForcedEnd
		}
		out[i].Forced = true
	}
	return out
}

// periodFor picks the period containing day.
func periodFor(periods []GroupPeriod, day generic.TimePoint) (GroupPeriod, bool) {
	for _, gp := range periods {
		if gp.Contains(day) {
			return gp, true
		}
	}
	return GroupPeriod{}, false
}
