/*
insert.go - Insertion pipeline

STATES:
  Requested -> GroupResolved -> PeriodsBuilt -> DayValidated (per day)
            -> Reported, then Simulated (no persistence) or Committed

PER-DAY VALIDATION (in order):
  1. begin > end is rejected for the whole request (caller error)
  2. type not valid on the day                    -> Expired
  3. same code already that day                   -> TwoSameCodeSameDay
     all-day absence already that day             -> AllDayAlreadyExists
  4. incompatible absence that day                -> IncompatibilyTypeSameDay
  5. minutes vs minimumTime/maximumTime           -> MinimumTimeViolated / MaximumTimeExceed
  6. governing group along the chain, ledger      -> LimitExceeded
     (plus NoChildExist, OutOfChildPeriod, OutOfForcedPeriod,
     BeforeInitialization)
  7. complation codes and replacing codes         -> CompromisedTwoComplation,
                                                     CompromisedTakableComplationGroup,
                                                     OrphanReplacing(Escalated)
  8. forceInsert downgrades hard problems         -> ForceInsert
  9. accept: add the row and advance the ledger snapshot

  Non-working days inside a multi-day range are skipped for codes not
  considered on week-ends; a single-day request on such a day gets
  NotOnHoliday. On-call and shift days add warnings.

FAILURE:
  Catalog misses are caller errors. Implementation problems (ambiguous
  chain, inconsistent ledger) abort the whole request; nothing is reported.

SEE ALSO:
  - ledger.go: consumption ledger
  - complation.go: replacing codes
*/
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// REQUEST & REPORT
// =============================================================================

// Mode distinguishes simulations from inserts meant to be committed.
type Mode string

const (
	ModeSimulate Mode = "simulate"
	ModeInsert   Mode = "insert"
)

// State is the pipeline state a report reached.
type State string

const (
	StateRequested     State = "requested"
	StateGroupResolved State = "group_resolved"
	StatePeriodsBuilt  State = "periods_built"
	StateDayValidated  State = "day_validated"
	StateReported      State = "reported"
	StateSimulated     State = "simulated"
	StateCommitted     State = "committed"
)

// Request is an already-authorized absence request.
type Request struct {
	PersonID string

	// Code may be empty when GroupName names an automatic group.
	Code      string
	GroupName string

	From generic.TimePoint
	To   generic.TimePoint

	// Empty picks the type's first permitted justified type.
	JustifiedType absence.JustifiedType
	Minutes       *int

	ForceInsert bool
}

// Validate checks the caller-level preconditions.
func (r Request) Validate(settings Settings) error {
	if r.PersonID == "" {
		return fmt.Errorf("%w: missing person", generic.ErrInvalidRequest)
	}
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("%w: missing dates", generic.ErrInvalidRequest)
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("%w: %s > %s", generic.ErrInvalidPeriod, r.From, r.To)
	}
	if r.Code == "" && r.GroupName == "" {
		return fmt.Errorf("%w: a code or a group is required", generic.ErrInvalidRequest)
	}
	if r.Minutes != nil && *r.Minutes < 0 {
		return fmt.Errorf("%w: negative minutes", generic.ErrInvalidRequest)
	}
	if settings.MaxRequestDays > 0 && generic.DaysBetween(r.From, r.To)+1 > settings.MaxRequestDays {
		return fmt.Errorf("%w: %d days max", generic.ErrRequestTooLong, settings.MaxRequestDays)
	}
	return nil
}

// TemplateRow is one day of the report.
type TemplateRow struct {
	Date          generic.TimePoint
	AbsenceType   *absence.AbsenceType
	JustifiedType absence.JustifiedType
	Minutes       *int

	// Consumption against the governing group's ledger.
	Amount generic.Amount
	Group  string

	Troubles      []absence.AbsenceTrouble
	Accepted      bool
	AutoReplacing bool
}

// Code is a nil-safe accessor for the row's absence code.
func (r TemplateRow) Code() string {
	if r.AbsenceType == nil {
		return ""
	}
	return r.AbsenceType.Code
}

// Problems lists the row's problems in detection order.
func (r TemplateRow) Problems() []absence.AbsenceProblem {
	out := make([]absence.AbsenceProblem, 0, len(r.Troubles))
	for _, t := range r.Troubles {
		out = append(out, t.Problem)
	}
	return out
}

// HasProblem reports whether the row carries problem p.
func (r TemplateRow) HasProblem(p absence.AbsenceProblem) bool {
	for _, t := range r.Troubles {
		if t.Problem == p {
			return true
		}
	}
	return false
}

// absence converts the row into the instance handed to persistence.
func (r TemplateRow) absence(personID, id string) absence.Absence {
	a := absence.Absence{
		ID:               id,
		PersonID:         personID,
		Date:             r.Date,
		Type:             r.AbsenceType,
		JustifiedType:    r.JustifiedType,
		JustifiedMinutes: r.Minutes,
	}
	for _, t := range r.Troubles {
		a.Troubles = append(a.Troubles, absence.AbsenceTrouble{Problem: t.Problem})
	}
	return a
}

// InsertReport is the outcome of a simulation or an insert.
type InsertReport struct {
	PersonID string
	Request  Request

	// Group is the group selected for the request; Chain is its chain,
	// first to last.
	Group *absence.GroupAbsenceType
	Chain []*absence.GroupAbsenceType

	Mode  Mode
	State State

	TemplateRows []TemplateRow
	Ledgers      []Ledger
	Skipped      []generic.TimePoint

	// True only when there is at least one row and every row was accepted.
	Accepted bool
}

// AcceptedRows returns the rows a commit would persist.
func (r *InsertReport) AcceptedRows() []TemplateRow {
	var out []TemplateRow
	for _, row := range r.TemplateRows {
		if row.Accepted {
			out = append(out, row)
		}
	}
	return out
}

// Ledger returns the final snapshot of the group's ledger covering day.
func (r *InsertReport) Ledger(group string, day generic.TimePoint) (Ledger, bool) {
	for _, l := range r.Ledgers {
		if l.Group == group && l.Period.Contains(day) {
			return l, true
		}
	}
	return Ledger{}, false
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Simulate runs the pipeline without persisting anything. Calling it twice
// with no commit in between yields identical reports.
func (e *Engine) Simulate(ctx context.Context, req Request) (*InsertReport, error) {
	report, err := e.run(ctx, req, ModeSimulate)
	if err != nil {
		return nil, err
	}
	report.State = StateSimulated
	return report, nil
}

// Insert runs the pipeline and returns a report the caller may Commit.
func (e *Engine) Insert(ctx context.Context, req Request) (*InsertReport, error) {
	return e.run(ctx, req, ModeInsert)
}

// Commit persists the accepted rows of an insert report and returns the
// stored absences.
func (e *Engine) Commit(ctx context.Context, report *InsertReport) ([]absence.Absence, error) {
	if report == nil {
		return nil, generic.ErrNothingToCommit
	}
	if report.Mode == ModeSimulate {
		return nil, generic.ErrSimulatedReport
	}
	if report.State == StateCommitted {
		return nil, generic.ErrAlreadyCommitted
	}
	rows := report.AcceptedRows()
	if len(rows) == 0 {
		return nil, generic.ErrNothingToCommit
	}

	absences := make([]absence.Absence, 0, len(rows))
	for _, row := range rows {
		absences = append(absences, row.absence(report.PersonID, uuid.NewString()))
	}
	if err := e.absences.SaveAbsences(ctx, absences); err != nil {
		return nil, fmt.Errorf("commit absences: %w", err)
	}

	report.State = StateCommitted
	e.logger.Info("absences committed",
		"person", report.PersonID,
		"group", report.Group.Name,
		"rows", len(absences),
	)
	return absences, nil
}

// =============================================================================
// PIPELINE
// =============================================================================

// insertion holds the per-request state. Nothing here outlives the request.
type insertion struct {
	e         *Engine
	settings  Settings
	projector *Projector
	person    *Person
	req       Request
	report    *InsertReport
	daily     int

	periods     map[string][]GroupPeriod
	ledgers     map[string]Ledger
	ledgerOrder []string
	complations map[string]ComplationState
	histories   map[string][]absence.Absence
	sameDay     map[string][]absence.Absence
}

// candidate is a (group, code) pair able to govern a day.
type candidate struct {
	group *absence.GroupAbsenceType
	typ   *absence.AbsenceType
}

// choice is the governing group picked for a day.
type choice struct {
	candidate
	jt        absence.JustifiedType
	gp        GroupPeriod
	ledger    Ledger
	hasLedger bool
	amount    generic.Amount
	problem   absence.AbsenceProblem
}

func (e *Engine) run(ctx context.Context, req Request, mode Mode) (*InsertReport, error) {
	settings := e.currentSettings()
	report := &InsertReport{PersonID: req.PersonID, Request: req, Mode: mode, State: StateRequested}

	if err := req.Validate(settings); err != nil {
		return nil, err
	}
	person, err := e.persons.Person(ctx, req.PersonID)
	if err != nil {
		return nil, err
	}

	in := &insertion{
		e:           e,
		settings:    settings,
		projector:   NewProjector(e.catalog, e.absences, e.inits, settings),
		person:      person,
		req:         req,
		report:      report,
		periods:     map[string][]GroupPeriod{},
		ledgers:     map[string]Ledger{},
		complations: map[string]ComplationState{},
		histories:   map[string][]absence.Absence{},
		sameDay:     map[string][]absence.Absence{},
	}
	in.daily = in.projector.dailyMinutes(person)

	typ, err := in.resolveType()
	if err != nil {
		return nil, err
	}
	if err := in.resolveGroup(typ); err != nil {
		return nil, err
	}
	if err := in.buildPeriods(ctx); err != nil {
		return nil, err
	}
	if err := in.loadSameDay(ctx); err != nil {
		return nil, err
	}

	single := req.From.Equal(req.To)
	for day := req.From; !day.After(req.To); day = day.AddDays(1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, skipped, err := in.validateDay(ctx, day, typ, single)
		if err != nil {
			return nil, err
		}
		if skipped {
			report.Skipped = append(report.Skipped, day)
			continue
		}
		report.TemplateRows = append(report.TemplateRows, rows...)
		report.State = StateDayValidated
	}

	for _, key := range in.ledgerOrder {
		report.Ledgers = append(report.Ledgers, in.ledgers[key])
	}
	report.Accepted = len(report.TemplateRows) > 0
	for _, row := range report.TemplateRows {
		if !row.Accepted {
			report.Accepted = false
			break
		}
	}
	report.State = StateReported

	e.logger.Info("absence request resolved",
		"person", req.PersonID,
		"code", req.Code,
		"group", report.Group.Name,
		"from", req.From.String(),
		"to", req.To.String(),
		"mode", string(mode),
		"rows", len(report.TemplateRows),
		"skipped", len(report.Skipped),
		"accepted", report.Accepted,
	)
	return report, nil
}

func (in *insertion) resolveType() (*absence.AbsenceType, error) {
	if in.req.Code == "" {
		return nil, nil
	}
	typ, ok := in.e.catalog.AbsenceTypeByCode(in.req.Code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrAbsenceTypeNotFound, in.req.Code)
	}
	if in.req.JustifiedType != "" {
		if !typ.Permits(in.req.JustifiedType) {
			return nil, fmt.Errorf("%w: %s for %s", generic.ErrJustifiedTypeNotPermitted, in.req.JustifiedType, typ.Code)
		}
		if in.req.JustifiedType.RequiresMinutes() && in.req.Minutes == nil {
			return nil, fmt.Errorf("%w: %s", generic.ErrMissingMinutes, in.req.JustifiedType)
		}
	} else if jt := defaultJustifiedType(typ, ""); jt.RequiresMinutes() && in.req.Minutes == nil {
		return nil, fmt.Errorf("%w: %s", generic.ErrMissingMinutes, jt)
	}
	return typ, nil
}

func (in *insertion) resolveGroup(typ *absence.AbsenceType) error {
	cat := in.e.catalog
	var group *absence.GroupAbsenceType

	switch {
	case in.req.GroupName != "":
		g, ok := cat.Group(in.req.GroupName)
		if !ok {
			return fmt.Errorf("%w: %s", generic.ErrGroupNotFound, in.req.GroupName)
		}
		if typ == nil && !g.Automatic {
			return fmt.Errorf("%w: group %s is not automatic, a code is required", generic.ErrInvalidRequest, g.Name)
		}
		group = g
	default:
		if g, ok := cat.DefaultTakableGroup(typ); ok {
			group = g
			break
		}
		for _, g := range in.e.resolver.CandidateGroups(typ, "") {
			if !cat.IsReserved(g) {
				group = g
				break
			}
		}
		if group == nil {
			return fmt.Errorf("%w: %s", generic.ErrNoGoverningGroup, typ.Code)
		}
	}

	chain, err := in.e.resolver.Chain(group.Name)
	if err != nil {
		return err
	}
	in.report.Group = group
	in.report.Chain = chain

	if typ != nil && len(in.candidates(typ)) == 0 {
		return fmt.Errorf("%w: %s in chain of %s", generic.ErrNoGoverningGroup, typ.Code, group.Name)
	}
	if typ == nil && len(in.candidates(nil)) == 0 {
		return &generic.ImplementationError{
			Problem: string(absence.MissingTakableBehaviour),
			Group:   group.Name,
			Detail:  "automatic chain has no takable codes",
		}
	}
	in.report.State = StateGroupResolved
	return nil
}

// candidates lists, in chain order, the groups able to govern typ. With no
// type (automatic group), every takable code of every chain group.
func (in *insertion) candidates(typ *absence.AbsenceType) []candidate {
	var out []candidate
	for _, g := range in.report.Chain {
		if typ != nil {
			if acceptsCode(g, typ.Code) {
				out = append(out, candidate{group: g, typ: typ})
			}
			continue
		}
		if g.Takable == nil {
			continue
		}
		for _, code := range g.Takable.TakableCodes {
			if t, ok := in.e.catalog.AbsenceTypeByCode(code); ok {
				out = append(out, candidate{group: g, typ: t})
			}
		}
	}
	return out
}

func acceptsCode(g *absence.GroupAbsenceType, code string) bool {
	if g.Takable != nil && g.Takable.Takable(code) {
		return true
	}
	return g.Complation != nil && (g.Complation.IsComplation(code) || g.Complation.IsReplacing(code))
}

func (in *insertion) buildPeriods(ctx context.Context) error {
	explicit := generic.Period{Start: in.req.From, End: in.req.To}
	for _, g := range in.report.Chain {
		periods, err := BuildPeriods(g, in.person, in.req.From, &explicit)
		if err != nil {
			return err
		}
		init, err := in.projector.initialization(ctx, in.person, g)
		if err != nil {
			return err
		}
		in.periods[g.Name] = ForceBounds(periods, init)
	}
	in.report.State = StatePeriodsBuilt
	return nil
}

func (in *insertion) loadSameDay(ctx context.Context) error {
	existing, err := in.e.absences.AbsencesInRange(ctx, in.person.ID, in.req.From, in.req.To)
	if err != nil {
		return fmt.Errorf("load absences: %w", err)
	}
	hydrate(in.e.catalog, existing)
	for _, a := range existing {
		key := a.Date.String()
		in.sameDay[key] = append(in.sameDay[key], a)
	}
	return nil
}

// ledger returns the current snapshot for a group period, projecting it
// from history the first time.
func (in *insertion) ledger(ctx context.Context, gp GroupPeriod) (Ledger, error) {
	key := gp.key()
	if l, ok := in.ledgers[key]; ok {
		return l, nil
	}
	l, err := in.projector.Project(ctx, in.person, gp)
	if err != nil {
		return Ledger{}, err
	}
	if l.Consumed.IsNegative() {
		return Ledger{}, &generic.ImplementationError{
			Problem: string(absence.InconsistentLedger),
			Group:   gp.Group.Name,
			Detail:  "negative consumption in " + gp.Period.String(),
		}
	}
	in.ledgers[key] = l
	in.ledgerOrder = append(in.ledgerOrder, key)
	return l, nil
}

// periodOf returns the group period covering day, or the problem explaining
// why there is none.
func (in *insertion) periodOf(g *absence.GroupAbsenceType, day generic.TimePoint) (GroupPeriod, absence.AbsenceProblem) {
	periods := in.periods[g.Name]
	if gp, ok := periodFor(periods, day); ok {
		return gp, ""
	}
	if g.PeriodType.IsChild() {
		if len(periods) == 0 {
			return GroupPeriod{}, absence.NoChildExist
		}
		return GroupPeriod{}, absence.OutOfChildPeriod
	}
	for _, gp := range periods {
		if gp.Forced {
			return GroupPeriod{}, absence.OutOfForcedPeriod
		}
	}
	return GroupPeriod{}, absence.InconsistentLedger
}

// govern walks the chain: the first group with allowance left wins, else
// the last one reached carries LimitExceeded.
func (in *insertion) govern(ctx context.Context, day generic.TimePoint, cands []candidate) (choice, error) {
	var exceeded *choice
	var periodProblem *choice

	for _, c := range cands {
		if in.req.Code == "" && !c.typ.IsValidOn(day) {
			continue
		}
		jt := defaultJustifiedType(c.typ, in.req.JustifiedType)
		if in.req.Code == "" && jt.RequiresMinutes() && in.req.Minutes == nil {
			continue
		}

		gp, problem := in.periodOf(c.group, day)
		if problem == absence.InconsistentLedger {
			return choice{}, &generic.ImplementationError{
				Problem: string(absence.InconsistentLedger),
				Group:   c.group.Name,
				Detail:  "no period covers " + day.String(),
			}
		}
		if problem != "" {
			if periodProblem == nil {
				periodProblem = &choice{candidate: c, jt: jt, problem: problem}
			}
			continue
		}

		l, err := in.ledger(ctx, gp)
		if err != nil {
			return choice{}, err
		}
		tentative := in.absenceFor(day, c.typ, jt)
		amount := AmountOf(&tentative, l.AmountType, in.daily)
		ch := choice{candidate: c, jt: jt, gp: gp, ledger: l, hasLedger: true, amount: amount}
		if !takes(c.group, c.typ.Code) || !l.WouldExceed(amount) {
			return ch, nil
		}
		ch.problem = absence.LimitExceeded
		exceeded = &ch
	}

	switch {
	case exceeded != nil:
		return *exceeded, nil
	case periodProblem != nil:
		return *periodProblem, nil
	}

	// Automatic request with no code valid on the day: report against the
	// first candidate so the row still shows up.
	c := cands[0]
	return choice{candidate: c, jt: defaultJustifiedType(c.typ, in.req.JustifiedType), problem: absence.Expired}, nil
}

func (in *insertion) absenceFor(day generic.TimePoint, typ *absence.AbsenceType, jt absence.JustifiedType) absence.Absence {
	a := absence.Absence{PersonID: in.person.ID, Date: day, Type: typ, JustifiedType: jt}
	if jt.RequiresMinutes() {
		a.JustifiedMinutes = in.req.Minutes
	}
	return a
}

// defaultJustifiedType is the requested type when permitted, else the
// type's first permitted one.
func defaultJustifiedType(typ *absence.AbsenceType, requested absence.JustifiedType) absence.JustifiedType {
	if requested != "" && typ.Permits(requested) {
		return requested
	}
	if len(typ.JustifiedTypes) == 0 {
		return absence.JustifiedNothing
	}
	return typ.JustifiedTypes[0]
}

// validateDay runs steps 2-9 for one day. It returns the day's rows (the
// requested row plus an auto replacing row when one falls due).
func (in *insertion) validateDay(ctx context.Context, day generic.TimePoint, typ *absence.AbsenceType, single bool) ([]TemplateRow, bool, error) {
	cands := in.candidates(typ)
	headType := cands[0].typ

	workday := generic.IsWorkday(day, in.e.holidays)
	if !workday && !headType.ConsideredWeekEnd && !single {
		in.e.logger.Debug("non-working day skipped", "person", in.person.ID, "date", day.String())
		return nil, true, nil
	}

	ch, err := in.govern(ctx, day, cands)
	if err != nil {
		return nil, false, err
	}
	cand := in.absenceFor(day, ch.typ, ch.jt)

	var troubles []absence.AbsenceTrouble
	add := func(p absence.AbsenceProblem, a *absence.Absence) {
		troubles = append(troubles, absence.AbsenceTrouble{Problem: p, Absence: a})
	}

	if !workday && !ch.typ.ConsideredWeekEnd {
		add(absence.NotOnHoliday, &cand)
	}

	// 2. validity
	if !ch.typ.IsValidOn(day) {
		add(absence.Expired, &cand)
	}

	// 3. same code / all day
	existing := in.sameDay[day.String()]
	for i := range existing {
		ex := &existing[i]
		switch {
		case ex.Code() == ch.typ.Code:
			add(absence.TwoSameCodeSameDay, ex)
		case ex.IsAllDay():
			add(absence.AllDayAlreadyExists, ex)
		}
	}

	// 4. incompatibility
	for i := range existing {
		ex := &existing[i]
		if ex.Code() == ch.typ.Code || ex.IsAllDay() {
			continue
		}
		if in.incompatible(&cand, ex, ch.group) {
			add(absence.IncompatibilyTypeSameDay, ex)
		}
	}

	// 5. minimum / maximum time
	if ch.jt.RequiresMinutes() || ch.jt == absence.JustifiedAbsenceTypeMinutes {
		minutes := cand.JustifiedTime()
		if b, ok := ch.typ.Behaviour(absence.BehaviourMinimumTime); ok && b.Data != nil && minutes < *b.Data {
			add(absence.MinimumTimeViolated, &cand)
		}
		if b, ok := ch.typ.Behaviour(absence.BehaviourMaximumTime); ok && b.Data != nil && minutes > *b.Data {
			add(absence.MaximumTimeExceed, &cand)
		}
	}

	// 6. governing group and ledger
	if ch.problem != "" {
		add(ch.problem, &cand)
	}
	if ch.hasLedger && ch.ledger.BeforeBaseline(day) {
		add(absence.BeforeInitialization, &cand)
	}

	// 7. complation
	var auto *TemplateRow
	var nextComplation *ComplationState
	if ch.group.Complation != nil && ch.hasLedger {
		state, err := in.complationState(ctx, ch.gp, day)
		if err != nil {
			return nil, false, err
		}
		next, autoRow, problems := in.complation(state, &cand, existing, ch)
		for _, p := range problems {
			add(p, &cand)
		}
		nextComplation = &next
		auto = autoRow
	}

	// warnings
	if cand.IsAllDay() {
		problem, err := in.dutyWarning(ctx, day)
		if err != nil {
			return nil, false, err
		}
		if problem != "" {
			add(problem, &cand)
		}
	}

	// 8. force
	accepted := !absence.HasBlocking(troubles)
	if !accepted && in.req.ForceInsert {
		add(absence.ForceInsert, &cand)
		accepted = true
	}

	// 9. accept
	row := TemplateRow{
		Date:          day,
		AbsenceType:   ch.typ,
		JustifiedType: ch.jt,
		Minutes:       cand.JustifiedMinutes,
		Amount:        ch.amount,
		Group:         ch.group.Name,
		Troubles:      troubles,
		Accepted:      accepted,
	}
	if !ch.hasLedger || !takes(ch.group, ch.typ.Code) {
		row.Amount = generic.ZeroAmount(ch.group.AmountType().Unit())
	}
	rows := []TemplateRow{row}

	if accepted {
		in.sameDay[day.String()] = append(in.sameDay[day.String()], cand)
		if ch.hasLedger {
			if takes(ch.group, ch.typ.Code) {
				in.advance(ch.gp, LedgerEntry{Date: day, Code: ch.typ.Code, JustifiedType: ch.jt, Amount: ch.amount, Requested: true})
			}
			if nextComplation != nil {
				in.complations[ch.gp.key()] = *nextComplation
			}
		}
		if auto != nil {
			replacing := in.absenceFor(day, auto.AbsenceType, auto.JustifiedType)
			in.sameDay[day.String()] = append(in.sameDay[day.String()], replacing)
			if takes(ch.group, auto.Code()) {
				auto.Amount = AmountOf(&replacing, ch.ledger.AmountType, in.daily)
				in.advance(ch.gp, LedgerEntry{Date: day, Code: auto.Code(), JustifiedType: auto.JustifiedType, Amount: auto.Amount, Requested: true})
			}
			rows = append(rows, *auto)
		}
	}

	in.e.logger.Debug("day validated",
		"person", in.person.ID,
		"date", day.String(),
		"code", ch.typ.Code,
		"group", ch.group.Name,
		"accepted", accepted,
		"troubles", len(troubles),
	)
	return rows, false, nil
}

func (in *insertion) advance(gp GroupPeriod, entry LedgerEntry) {
	key := gp.key()
	in.ledgers[key] = in.ledgers[key].Apply(entry)
}

// incompatible applies the catalog's incompatibility pairs, and forbids an
// all-day candidate next to an absence justifying part of the day. Codes of
// the governing group's complation behaviour are compatible with each other.
func (in *insertion) incompatible(cand, ex *absence.Absence, g *absence.GroupAbsenceType) bool {
	if cand.Type.IncompatibleWith(ex.Code()) || (ex.Type != nil && ex.Type.IncompatibleWith(cand.Type.Code)) {
		return true
	}
	if c := g.Complation; c != nil {
		inBehaviour := func(code string) bool { return c.IsComplation(code) || c.IsReplacing(code) }
		if inBehaviour(cand.Code()) && inBehaviour(ex.Code()) {
			return false
		}
	}
	return cand.IsAllDay() && !ex.NothingJustified()
}

func (in *insertion) complationState(ctx context.Context, gp GroupPeriod, day generic.TimePoint) (ComplationState, error) {
	key := gp.key()
	state, ok := in.complations[key]
	if !ok {
		var err error
		state, err = NewComplationState(in.e.catalog, gp.Group.Complation, in.daily)
		if err != nil {
			return ComplationState{}, err
		}
	}
	history, ok := in.histories[key]
	if !ok {
		from, to := gp.Period.Bounds()
		loaded, err := in.e.absences.AbsencesInRange(ctx, in.person.ID, from, to)
		if err != nil {
			return ComplationState{}, fmt.Errorf("load complation history: %w", err)
		}
		hydrate(in.e.catalog, loaded)
		history = loaded
		in.histories[key] = history
	}
	return state.CatchUp(history, day, in.daily), nil
}

// complation evaluates a complation or replacing candidate for its day.
func (in *insertion) complation(state ComplationState, cand *absence.Absence, existing []absence.Absence, ch choice) (ComplationState, *TemplateRow, []absence.AbsenceProblem) {
	b := state.Behaviour
	code := cand.Code()
	isComplation := b.IsComplation(code)
	isReplacing := b.IsReplacing(code)
	if !isComplation && !isReplacing {
		return state, nil, nil
	}

	var problems []absence.AbsenceProblem
	sameDayAmount := generic.ZeroAmount(b.AmountType.Unit())
	replaced := false
	for i := range existing {
		ex := &existing[i]
		if b.IsComplation(ex.Code()) {
			if isComplation {
				problems = append(problems, absence.CompromisedTwoComplation)
			}
			sameDayAmount = sameDayAmount.Add(AmountOf(ex, b.AmountType, in.daily))
		}
		if b.IsReplacing(ex.Code()) {
			replaced = true
		}
	}
	if state.Compromised() {
		problems = append(problems, absence.CompromisedTakableComplationGroup)
	}

	if isReplacing {
		next, due := state.Step(cand.Date, sameDayAmount)
		if !due {
			if in.settings.EscalateOrphanReplacing {
				problems = append(problems, absence.OrphanReplacingEscalated)
			} else {
				problems = append(problems, absence.OrphanReplacing)
			}
		}
		return next.Record(cand.Date, due, true), nil, problems
	}

	amount := sameDayAmount.Add(AmountOf(cand, b.AmountType, in.daily))
	next, due := state.Step(cand.Date, amount)
	next = next.Record(cand.Date, due, due || replaced)
	if !due || replaced {
		return next, nil, problems
	}

	replacing := state.Replacing
	jt := replacing.ReplacingType
	if jt == "" || !replacing.Permits(jt) {
		jt = defaultJustifiedType(replacing, "")
	}
	auto := &TemplateRow{
		Date:          cand.Date,
		AbsenceType:   replacing,
		JustifiedType: jt,
		Amount:        generic.ZeroAmount(ch.group.AmountType().Unit()),
		Group:         ch.group.Name,
		Accepted:      true,
		AutoReplacing: true,
	}
	return next, auto, problems
}

// dutyWarning flags all-day absences on on-call or shift days.
func (in *insertion) dutyWarning(ctx context.Context, day generic.TimePoint) (absence.AbsenceProblem, error) {
	if in.e.roster == nil {
		return "", nil
	}
	onCall, err := in.e.roster.OnCall(ctx, in.person.ID, day)
	if err != nil {
		return "", fmt.Errorf("duty roster: %w", err)
	}
	inShift, err := in.e.roster.InShift(ctx, in.person.ID, day)
	if err != nil {
		return "", fmt.Errorf("duty roster: %w", err)
	}
	switch {
	case onCall && inShift:
		return absence.InReperibilityOrShift, nil
	case onCall:
		return absence.InReperibility, nil
	case inShift:
		return absence.InShift, nil
	}
	return "", nil
}
