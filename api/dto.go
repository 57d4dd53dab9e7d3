/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Person:
    PersonDTO, ContractDTO, ChildDTO, InitializationRequest

  Absences:
    AbsenceRequest, ReportDTO, TemplateRowDTO, LedgerDTO, AbsenceDTO

  Views:
    FormDTO, RecapDTO

  Catalog:
    GroupDTO, AbsenceTypeDTO

DATES:
  Every date is a YYYY-MM-DD string. Amounts are numbers in the unit named
  next to them ("units" or "minutes").

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// PERSON
// =============================================================================

// PersonDTO is both the create body and the response for a person.
type PersonDTO struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	WorkingTimePercent int           `json:"working_time_percent"`
	DailyMinutes       int           `json:"daily_minutes,omitempty"`
	Contracts          []ContractDTO `json:"contracts,omitempty"`
	Children           []ChildDTO    `json:"children,omitempty"`
}

type ContractDTO struct {
	Begin string  `json:"begin"`
	End   *string `json:"end,omitempty"`
}

type ChildDTO struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
}

// InitializationRequest records a baseline for a person and group.
type InitializationRequest struct {
	Group       string  `json:"group"`
	Date        string  `json:"date"`
	ForcedBegin *string `json:"forced_begin,omitempty"`
	ForcedEnd   *string `json:"forced_end,omitempty"`

	UnitsInput   *decimal.Decimal `json:"units_input,omitempty"`
	HoursInput   *int             `json:"hours_input,omitempty"`
	MinutesInput *int             `json:"minutes_input,omitempty"`
	TakableTotal *decimal.Decimal `json:"takable_total,omitempty"`
	VacationYear *int             `json:"vacation_year,omitempty"`

	ResidualMinutesLastYear    *int `json:"residual_minutes_last_year,omitempty"`
	ResidualMinutesCurrentYear *int `json:"residual_minutes_current_year,omitempty"`
}

// HolidayRequest adds a holiday to the calendar.
type HolidayRequest struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// DutyRequest marks a person on call or in shift on a day.
type DutyRequest struct {
	Date   string `json:"date"`
	OnCall bool   `json:"on_call"`
}

// =============================================================================
// ABSENCES
// =============================================================================

// AbsenceRequest is the body of simulate and insert.
type AbsenceRequest struct {
	Code          string `json:"code,omitempty"`
	Group         string `json:"group,omitempty"`
	From          string `json:"from"`
	To            string `json:"to,omitempty"` // defaults to from
	JustifiedType string `json:"justified_type,omitempty"`
	Minutes       *int   `json:"minutes,omitempty"`
	ForceInsert   bool   `json:"force_insert,omitempty"`
}

// ReportDTO is an insert report.
type ReportDTO struct {
	PersonID string           `json:"person_id"`
	Group    string           `json:"group"`
	Chain    []string         `json:"chain"`
	Mode     string           `json:"mode"`
	State    string           `json:"state"`
	Accepted bool             `json:"accepted"`
	Rows     []TemplateRowDTO `json:"rows"`
	Ledgers  []LedgerDTO      `json:"ledgers"`
	Skipped  []string         `json:"skipped,omitempty"`
	Saved    []AbsenceDTO     `json:"saved,omitempty"`
}

type TemplateRowDTO struct {
	Date          string   `json:"date"`
	Code          string   `json:"code"`
	JustifiedType string   `json:"justified_type"`
	Minutes       *int     `json:"minutes,omitempty"`
	Amount        float64  `json:"amount"`
	Unit          string   `json:"unit"`
	Group         string   `json:"group,omitempty"`
	Accepted      bool     `json:"accepted"`
	AutoReplacing bool     `json:"auto_replacing,omitempty"`
	Problems      []string `json:"problems,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

type LedgerDTO struct {
	Group          string   `json:"group"`
	Period         string   `json:"period"`
	AmountType     string   `json:"amount_type"`
	Consumed       float64  `json:"consumed"`
	Limit          *float64 `json:"limit,omitempty"`
	Remaining      *float64 `json:"remaining,omitempty"`
	Initialization *string  `json:"initialization,omitempty"`
	Seeded         bool     `json:"seeded,omitempty"`
}

// AbsenceDTO is a committed absence.
type AbsenceDTO struct {
	ID            string   `json:"id"`
	Date          string   `json:"date"`
	Code          string   `json:"code"`
	JustifiedType string   `json:"justified_type"`
	Minutes       *int     `json:"minutes,omitempty"`
	Troubles      []string `json:"troubles,omitempty"`
}

// =============================================================================
// VIEWS
// =============================================================================

type FormDTO struct {
	PersonID         string              `json:"person_id"`
	Date             string              `json:"date"`
	Category         string              `json:"category,omitempty"`
	Group            string              `json:"group,omitempty"`
	CandidateGroups  []GroupDTO          `json:"candidate_groups"`
	GroupsByCategory map[string][]string `json:"groups_by_category"`
	AbsenceTypes     []AbsenceTypeDTO    `json:"absence_types"`
	JustifiedTypes   []string            `json:"justified_types"`
	Tabs             []string            `json:"tabs"`
}

type RecapDTO struct {
	PersonID   string           `json:"person_id"`
	Group      string           `json:"group"`
	From       string           `json:"from"`
	Periods    []RecapPeriodDTO `json:"periods"`
	Categories []string         `json:"categories,omitempty"`
}

type RecapPeriodDTO struct {
	Group  string           `json:"group"`
	Child  string           `json:"child,omitempty"`
	Ledger LedgerDTO        `json:"ledger"`
	Rows   []TemplateRowDTO `json:"rows"`
}

// =============================================================================
// CATALOG
// =============================================================================

type GroupDTO struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category"`
	Pattern       string   `json:"pattern"`
	PeriodType    string   `json:"period_type"`
	Next          string   `json:"next_group,omitempty"`
	Automatic     bool     `json:"automatic,omitempty"`
	Initializable bool     `json:"initializable,omitempty"`
	Reserved      bool     `json:"reserved,omitempty"`
	TakableCodes  []string `json:"takable_codes,omitempty"`
}

type AbsenceTypeDTO struct {
	Code              string   `json:"code"`
	Description       string   `json:"description,omitempty"`
	ValidFrom         *string  `json:"valid_from,omitempty"`
	ValidTo           *string  `json:"valid_to,omitempty"`
	JustifiedTypes    []string `json:"justified_types"`
	ConsideredWeekEnd bool     `json:"considered_week_end,omitempty"`
	IncompatibleCodes []string `json:"incompatible_codes,omitempty"`
	Groups            []string `json:"groups,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func (d PersonDTO) toDomain() (engine.Person, error) {
	p := engine.Person{
		ID:                 d.ID,
		Name:               d.Name,
		WorkingTimePercent: d.WorkingTimePercent,
		DailyMinutes:       d.DailyMinutes,
	}
	for _, c := range d.Contracts {
		begin, err := generic.ParseDate(c.Begin)
		if err != nil {
			return engine.Person{}, err
		}
		end, err := parseOptionalDate(c.End)
		if err != nil {
			return engine.Person{}, err
		}
		p.Contracts = append(p.Contracts, engine.Contract{Begin: begin, End: end})
	}
	for _, c := range d.Children {
		birth, err := generic.ParseDate(c.BirthDate)
		if err != nil {
			return engine.Person{}, err
		}
		p.Children = append(p.Children, engine.Child{Name: c.Name, BirthDate: birth})
	}
	return p, nil
}

func toPersonDTO(p *engine.Person) PersonDTO {
	dto := PersonDTO{
		ID:                 p.ID,
		Name:               p.Name,
		WorkingTimePercent: p.WorkingTimePercent,
		DailyMinutes:       p.DailyMinutes,
	}
	for _, c := range p.Contracts {
		dto.Contracts = append(dto.Contracts, ContractDTO{Begin: c.Begin.String(), End: formatOptionalDate(c.End)})
	}
	for _, c := range p.Children {
		dto.Children = append(dto.Children, ChildDTO{Name: c.Name, BirthDate: c.BirthDate.String()})
	}
	return dto
}

func (r InitializationRequest) toDomain(personID string) (absence.InitializationGroup, error) {
	date, err := generic.ParseDate(r.Date)
	if err != nil {
		return absence.InitializationGroup{}, err
	}
	begin, err := parseOptionalDate(r.ForcedBegin)
	if err != nil {
		return absence.InitializationGroup{}, err
	}
	end, err := parseOptionalDate(r.ForcedEnd)
	if err != nil {
		return absence.InitializationGroup{}, err
	}
	return absence.InitializationGroup{
		PersonID:                   personID,
		GroupName:                  r.Group,
		Date:                       date,
		ForcedBegin:                begin,
		ForcedEnd:                  end,
		UnitsInput:                 r.UnitsInput,
		HoursInput:                 r.HoursInput,
		MinutesInput:               r.MinutesInput,
		TakableTotal:               r.TakableTotal,
		VacationYear:               r.VacationYear,
		ResidualMinutesLastYear:    r.ResidualMinutesLastYear,
		ResidualMinutesCurrentYear: r.ResidualMinutesCurrentYear,
	}, nil
}

func (r AbsenceRequest) toDomain(personID string) (engine.Request, error) {
	from, err := generic.ParseDate(r.From)
	if err != nil {
		return engine.Request{}, fmt.Errorf("%w: from: %v", generic.ErrInvalidRequest, err)
	}
	to := from
	if r.To != "" {
		if to, err = generic.ParseDate(r.To); err != nil {
			return engine.Request{}, fmt.Errorf("%w: to: %v", generic.ErrInvalidRequest, err)
		}
	}
	var jt absence.JustifiedType
	if r.JustifiedType != "" {
		if jt, err = absence.ParseJustifiedType(r.JustifiedType); err != nil {
			return engine.Request{}, fmt.Errorf("%w: %v", generic.ErrInvalidRequest, err)
		}
	}
	return engine.Request{
		PersonID:      personID,
		Code:          r.Code,
		GroupName:     r.Group,
		From:          from,
		To:            to,
		JustifiedType: jt,
		Minutes:       r.Minutes,
		ForceInsert:   r.ForceInsert,
	}, nil
}

func toReportDTO(report *engine.InsertReport, saved []absence.Absence) ReportDTO {
	dto := ReportDTO{
		PersonID: report.PersonID,
		Mode:     string(report.Mode),
		State:    string(report.State),
		Accepted: report.Accepted,
		Chain:    []string{},
		Rows:     toRowDTOs(report.TemplateRows),
		Ledgers:  make([]LedgerDTO, 0, len(report.Ledgers)),
	}
	if report.Group != nil {
		dto.Group = report.Group.Name
	}
	for _, g := range report.Chain {
		dto.Chain = append(dto.Chain, g.Name)
	}
	for _, l := range report.Ledgers {
		dto.Ledgers = append(dto.Ledgers, toLedgerDTO(l))
	}
	for _, day := range report.Skipped {
		dto.Skipped = append(dto.Skipped, day.String())
	}
	for _, a := range saved {
		dto.Saved = append(dto.Saved, toAbsenceDTO(a))
	}
	return dto
}

func toRowDTOs(rows []engine.TemplateRow) []TemplateRowDTO {
	out := make([]TemplateRowDTO, 0, len(rows))
	for _, r := range rows {
		dto := TemplateRowDTO{
			Date:          r.Date.String(),
			Code:          r.Code(),
			JustifiedType: string(r.JustifiedType),
			Minutes:       r.Minutes,
			Amount:        r.Amount.Value.InexactFloat64(),
			Unit:          string(r.Amount.Unit),
			Group:         r.Group,
			Accepted:      r.Accepted,
			AutoReplacing: r.AutoReplacing,
		}
		for _, p := range r.Problems() {
			if p.IsWarning() {
				dto.Warnings = append(dto.Warnings, p.String())
			} else {
				dto.Problems = append(dto.Problems, p.String())
			}
		}
		out = append(out, dto)
	}
	return out
}

func toLedgerDTO(l engine.Ledger) LedgerDTO {
	dto := LedgerDTO{
		Group:      l.Group,
		Period:     l.Period.Period.String(),
		AmountType: string(l.AmountType),
		Consumed:   l.Consumed.Value.InexactFloat64(),
		Seeded:     l.Seeded,
	}
	if l.Limit != nil {
		limit := l.Limit.Value.InexactFloat64()
		dto.Limit = &limit
	}
	if remaining, ok := l.Remaining(); ok {
		v := remaining.Value.InexactFloat64()
		dto.Remaining = &v
	}
	dto.Initialization = formatOptionalDate(l.Initialization)
	return dto
}

func toAbsenceDTO(a absence.Absence) AbsenceDTO {
	dto := AbsenceDTO{
		ID:            a.ID,
		Date:          a.Date.String(),
		Code:          a.Code(),
		JustifiedType: string(a.JustifiedType),
		Minutes:       a.JustifiedMinutes,
	}
	for _, p := range a.Problems() {
		dto.Troubles = append(dto.Troubles, p.String())
	}
	return dto
}

func toFormDTO(f *engine.Form) FormDTO {
	dto := FormDTO{
		PersonID:         f.PersonID,
		Date:             f.Date.String(),
		CandidateGroups:  make([]GroupDTO, 0, len(f.CandidateGroups)),
		GroupsByCategory: map[string][]string{},
		AbsenceTypes:     make([]AbsenceTypeDTO, 0, len(f.AbsenceTypes)),
		JustifiedTypes:   make([]string, 0, len(f.JustifiedTypes)),
		Tabs:             make([]string, 0, len(f.Tabs)),
	}
	if f.Category != nil {
		dto.Category = f.Category.Name
	}
	if f.Group != nil {
		dto.Group = f.Group.Name
	}
	for _, g := range f.CandidateGroups {
		dto.CandidateGroups = append(dto.CandidateGroups, toGroupDTO(g, false))
	}
	for _, cg := range f.GroupsByCategory {
		dto.GroupsByCategory[cg.Category.Name] = groupNames(cg.Groups)
	}
	for _, t := range f.AbsenceTypes {
		dto.AbsenceTypes = append(dto.AbsenceTypes, toAbsenceTypeDTO(t, nil))
	}
	for _, jt := range f.JustifiedTypes {
		dto.JustifiedTypes = append(dto.JustifiedTypes, string(jt))
	}
	for _, tab := range f.Tabs {
		dto.Tabs = append(dto.Tabs, tab.Name)
	}
	return dto
}

func toRecapDTO(r *engine.Recap) RecapDTO {
	dto := RecapDTO{
		PersonID: r.PersonID,
		Group:    r.Group.Name,
		From:     r.From.String(),
		Periods:  make([]RecapPeriodDTO, 0, len(r.Periods)),
	}
	for _, p := range r.Periods {
		period := RecapPeriodDTO{
			Group:  p.Group.Name,
			Ledger: toLedgerDTO(p.Ledger),
			Rows:   toRowDTOs(p.TemplateRows),
		}
		if p.Period.Child != nil {
			period.Child = p.Period.Child.Name
		}
		dto.Periods = append(dto.Periods, period)
	}
	if r.CategorySwitcher != nil {
		for _, alt := range r.CategorySwitcher.Alternatives {
			dto.Categories = append(dto.Categories, alt.Category.Name)
		}
	}
	return dto
}

func toGroupDTO(g *absence.GroupAbsenceType, reserved bool) GroupDTO {
	dto := GroupDTO{
		Name:          g.Name,
		Description:   g.Description,
		Category:      g.Category,
		Pattern:       string(g.Pattern),
		PeriodType:    g.PeriodType.String(),
		Next:          g.NextGroupToCheck,
		Automatic:     g.Automatic,
		Initializable: g.Initializable,
		Reserved:      reserved,
	}
	if g.Takable != nil {
		dto.TakableCodes = g.Takable.TakableCodes
	}
	return dto
}

func toAbsenceTypeDTO(t *absence.AbsenceType, groups []*absence.GroupAbsenceType) AbsenceTypeDTO {
	dto := AbsenceTypeDTO{
		Code:              t.Code,
		Description:       t.Description,
		ValidFrom:         formatOptionalDate(t.ValidFrom),
		ValidTo:           formatOptionalDate(t.ValidTo),
		JustifiedTypes:    make([]string, 0, len(t.JustifiedTypes)),
		ConsideredWeekEnd: t.ConsideredWeekEnd,
		IncompatibleCodes: t.IncompatibleCodes,
		Groups:            groupNames(groups),
	}
	for _, jt := range t.JustifiedTypes {
		dto.JustifiedTypes = append(dto.JustifiedTypes, string(jt))
	}
	return dto
}

func groupNames(groups []*absence.GroupAbsenceType) []string {
	if len(groups) == 0 {
		return nil
	}
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Name)
	}
	return out
}

func parseOptionalDate(s *string) (*generic.TimePoint, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	tp, err := generic.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func formatOptionalDate(tp *generic.TimePoint) *string {
	if tp == nil {
		return nil
	}
	s := tp.String()
	return &s
}
