package engine

import (
	"sort"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/catalog"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// COMPLATION TRACKING
// =============================================================================

// ComplationState replays the complation codes of a period in date order.
// Each time the running amount crosses a multiple of the threshold, a
// replacing code falls due on that day. The state is a value: Step and
// Record return new snapshots.
type ComplationState struct {
	Behaviour *absence.ComplationBehaviour
	Replacing *absence.AbsenceType
	Threshold generic.Amount
	Running   generic.Amount

	cursor    *generic.TimePoint
	unmatched []generic.TimePoint
	orphans   []generic.TimePoint
}

// NewComplationState picks the first replacing code known to the catalog.
// The threshold is its replacingTime for minute pools (a working day when
// unset) and one unit for unit pools.
func NewComplationState(c *catalog.Catalog, b *absence.ComplationBehaviour, dailyMinutes int) (ComplationState, error) {
	var replacing *absence.AbsenceType
	for _, code := range b.ReplacingCodes {
		if t, ok := c.AbsenceTypeByCode(code); ok {
			replacing = t
			break
		}
	}
	if replacing == nil {
		return ComplationState{}, &generic.ImplementationError{
			Problem: string(absence.MissingTakableBehaviour),
			Detail:  "complation behaviour " + b.Name + " has no replacing code",
		}
	}

	unit := b.AmountType.Unit()
	threshold := generic.NewAmountFromInt(1, unit)
	if b.AmountType == absence.AmountMinutes {
		minutes := replacing.ReplacingTime
		if minutes <= 0 {
			minutes = dailyMinutes
		}
		threshold = generic.NewAmountFromInt(minutes, unit)
	}
	if !threshold.IsPositive() {
		return ComplationState{}, &generic.ImplementationError{
			Problem: string(absence.InconsistentLedger),
			Detail:  "complation behaviour " + b.Name + " has a zero threshold",
		}
	}

	return ComplationState{
		Behaviour: b,
		Replacing: replacing,
		Threshold: threshold,
		Running:   generic.ZeroAmount(unit),
	}, nil
}

func (s ComplationState) crossings(running generic.Amount) int64 {
	return running.Value.Div(s.Threshold.Value).Floor().IntPart()
}

func (s ComplationState) clone() ComplationState {
	next := s
	next.unmatched = append([]generic.TimePoint(nil), s.unmatched...)
	next.orphans = append([]generic.TimePoint(nil), s.orphans...)
	return next
}

// Step adds a day's complation amount and reports whether a replacing code
// falls due that day.
func (s ComplationState) Step(day generic.TimePoint, amount generic.Amount) (ComplationState, bool) {
	next := s.clone()
	before := s.crossings(s.Running)
	next.Running = s.Running.Add(amount)
	d := day
	next.cursor = &d
	return next, next.crossings(next.Running) > before
}

// Record stores the outcome of a day: a due replacing that is missing, or a
// replacing present with nothing due.
func (s ComplationState) Record(day generic.TimePoint, due, replaced bool) ComplationState {
	next := s.clone()
	switch {
	case due && !replaced:
		next.unmatched = append(next.unmatched, day)
	case replaced && !due:
		next.orphans = append(next.orphans, day)
	}
	return next
}

// CatchUp replays history days after the cursor and strictly before day.
func (s ComplationState) CatchUp(history []absence.Absence, day generic.TimePoint, dailyMinutes int) ComplationState {
	type dayTotals struct {
		date     generic.TimePoint
		amount   generic.Amount
		replaced bool
	}
	byDay := map[string]*dayTotals{}
	for i := range history {
		a := &history[i]
		if !a.Date.Before(day) || (s.cursor != nil && !a.Date.After(*s.cursor)) {
			continue
		}
		complation := s.Behaviour.IsComplation(a.Code())
		replacing := s.Behaviour.IsReplacing(a.Code())
		if !complation && !replacing {
			continue
		}
		key := a.Date.String()
		totals, ok := byDay[key]
		if !ok {
			totals = &dayTotals{date: a.Date, amount: s.Running.Zero()}
			byDay[key] = totals
		}
		if complation {
			totals.amount = totals.amount.Add(AmountOf(a, s.Behaviour.AmountType, dailyMinutes))
		}
		if replacing {
			totals.replaced = true
		}
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	state := s
	for _, k := range keys {
		totals := byDay[k]
		next, due := state.Step(totals.date, totals.amount)
		state = next.Record(totals.date, due, totals.replaced)
	}
	last := day.AddDays(-1)
	if state.cursor == nil || state.cursor.Before(last) {
		state = state.clone()
		state.cursor = &last
	}
	return state
}

// Compromised reports whether an earlier due replacing is missing.
func (s ComplationState) Compromised() bool { return len(s.unmatched) > 0 }

// Unmatched returns the days a replacing fell due without one.
func (s ComplationState) Unmatched() []generic.TimePoint {
	return append([]generic.TimePoint(nil), s.unmatched...)
}

// Orphans returns the days carrying a replacing with nothing due.
func (s ComplationState) Orphans() []generic.TimePoint {
	return append([]generic.TimePoint(nil), s.orphans...)
}
