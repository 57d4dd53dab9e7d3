package engine

import (
	"context"
	"fmt"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/catalog"
	"github.com/warp/absence-engine/generic"
)

// Form is the read-only enumeration behind an absence entry form.
type Form struct {
	PersonID string
	Date     generic.TimePoint

	Category *absence.Category
	Group    *absence.GroupAbsenceType

	// Chain heads selectable in the form's category.
	CandidateGroups []*absence.GroupAbsenceType

	// Every category of the tab, with its selectable groups.
	GroupsByCategory []catalog.CategoryGroups

	// Codes of the selected group valid on Date, and the justified types
	// they permit, in first-seen order.
	AbsenceTypes   []*absence.AbsenceType
	JustifiedTypes []absence.JustifiedType

	Tabs []*absence.CategoryTab
}

// BuildForm enumerates the choices for a person on a date. Without a group
// the first candidate of the category is selected; without a category the
// group's own category, else the first tab's highest priority category.
func (e *Engine) BuildForm(ctx context.Context, personID, category, group string, date generic.TimePoint) (*Form, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("%w: missing date", generic.ErrInvalidRequest)
	}
	person, err := e.persons.Person(ctx, personID)
	if err != nil {
		return nil, err
	}

	form := &Form{PersonID: personID, Date: date, Tabs: e.catalog.Tabs()}

	var selected *absence.GroupAbsenceType
	if group != "" {
		g, ok := e.catalog.Group(group)
		if !ok {
			return nil, fmt.Errorf("%w: %s", generic.ErrGroupNotFound, group)
		}
		selected = g
		if category == "" {
			category = g.Category
		}
	}
	if category == "" {
		category = e.defaultCategory()
	}
	if category != "" {
		cat, ok := e.catalog.Category(category)
		if !ok {
			return nil, fmt.Errorf("%w: %s", generic.ErrCategoryNotFound, category)
		}
		form.Category = cat
	}

	visible := func(g *absence.GroupAbsenceType) bool {
		if !g.PeriodType.IsChild() {
			return true
		}
		_, ok := person.ChildN(g.PeriodType.ChildNumber)
		return ok
	}

	if form.Category != nil {
		for _, g := range e.catalog.GroupsForCategory(form.Category.Name) {
			if len(e.resolver.Previous(g.Name)) == 0 && visible(g) {
				form.CandidateGroups = append(form.CandidateGroups, g)
			}
		}
	}
	if selected == nil && len(form.CandidateGroups) > 0 {
		selected = form.CandidateGroups[0]
	}
	form.Group = selected

	if selected != nil {
		for _, alt := range e.resolver.CategorySwitcher(selected).Alternatives {
			var groups []*absence.GroupAbsenceType
			for _, g := range alt.Groups {
				if visible(g) {
					groups = append(groups, g)
				}
			}
			if len(groups) > 0 {
				form.GroupsByCategory = append(form.GroupsByCategory, catalog.CategoryGroups{Category: alt.Category, Groups: groups})
			}
		}

		chain, err := e.resolver.Chain(selected.Name)
		if err != nil {
			return nil, err
		}
		form.AbsenceTypes, form.JustifiedTypes = e.formTypes(chain, date)
	}

	return form, nil
}

func (e *Engine) defaultCategory() string {
	tabs := e.catalog.Tabs()
	for _, cat := range e.catalog.Categories() {
		if len(tabs) == 0 || cat.Tab == tabs[0].Name {
			return cat.Name
		}
	}
	return ""
}

// formTypes collects the codes selectable along a chain on a date.
func (e *Engine) formTypes(chain []*absence.GroupAbsenceType, date generic.TimePoint) ([]*absence.AbsenceType, []absence.JustifiedType) {
	var types []*absence.AbsenceType
	var jts []absence.JustifiedType
	seenCode := map[string]bool{}
	seenJT := map[absence.JustifiedType]bool{}

	add := func(code string) {
		if seenCode[code] {
			return
		}
		t, ok := e.catalog.AbsenceTypeByCode(code)
		if !ok || !t.IsValidOn(date) {
			return
		}
		seenCode[code] = true
		types = append(types, t)
		for _, jt := range t.JustifiedTypes {
			if !seenJT[jt] {
				seenJT[jt] = true
				jts = append(jts, jt)
			}
		}
	}

	for _, g := range chain {
		if g.Takable != nil {
			for _, code := range g.Takable.TakableCodes {
				add(code)
			}
		}
		if g.Complation != nil {
			for _, code := range g.Complation.ComplationCodes {
				add(code)
			}
		}
	}
	return types, jts
}
