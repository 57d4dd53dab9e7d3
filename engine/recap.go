package engine

import (
	"context"
	"fmt"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/catalog"
	"github.com/warp/absence-engine/generic"
)

// Recap is the read-only status of a group chain for a person.
type Recap struct {
	PersonID string
	Group    *absence.GroupAbsenceType
	From     generic.TimePoint

	Periods          []RecapPeriod
	CategorySwitcher *catalog.CategorySwitcher
}

// RecapPeriod is one chain group's period around From, with its ledger and
// the committed rows it consumed.
type RecapPeriod struct {
	Group        *absence.GroupAbsenceType
	Period       GroupPeriod
	Ledger       Ledger
	TemplateRows []TemplateRow
}

// Recap projects every group of the chain starting at group for the
// periods containing from. Child groups with no child contribute nothing.
func (e *Engine) Recap(ctx context.Context, personID, group string, from generic.TimePoint) (*Recap, error) {
	if from.IsZero() {
		return nil, fmt.Errorf("%w: missing date", generic.ErrInvalidRequest)
	}
	g, ok := e.catalog.Group(group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrGroupNotFound, group)
	}
	person, err := e.persons.Person(ctx, personID)
	if err != nil {
		return nil, err
	}
	chain, err := e.resolver.Chain(g.Name)
	if err != nil {
		return nil, err
	}

	settings := e.currentSettings()
	projector := NewProjector(e.catalog, e.absences, e.inits, settings)

	recap := &Recap{
		PersonID:         personID,
		Group:            g,
		From:             from,
		CategorySwitcher: e.resolver.CategorySwitcher(g),
	}

	for _, member := range chain {
		periods, err := BuildPeriods(member, person, from, nil)
		if err != nil {
			return nil, err
		}
		init, err := projector.initialization(ctx, person, member)
		if err != nil {
			return nil, err
		}
		for _, gp := range ForceBounds(periods, init) {
			ledger, err := projector.Project(ctx, person, gp)
			if err != nil {
				return nil, err
			}
			recap.Periods = append(recap.Periods, RecapPeriod{
				Group:        member,
				Period:       gp,
				Ledger:       ledger,
				TemplateRows: e.recapRows(member, ledger),
			})
		}
	}

	e.logger.Debug("recap built", "person", personID, "group", g.Name, "periods", len(recap.Periods))
	return recap, nil
}

func (e *Engine) recapRows(group *absence.GroupAbsenceType, ledger Ledger) []TemplateRow {
	rows := make([]TemplateRow, 0, len(ledger.Entries))
	for _, entry := range ledger.Entries {
		t, _ := e.catalog.AbsenceTypeByCode(entry.Code)
		rows = append(rows, TemplateRow{
			Date:          entry.Date,
			AbsenceType:   t,
			JustifiedType: entry.JustifiedType,
			Amount:        entry.Amount,
			Group:         group.Name,
			Accepted:      true,
		})
	}
	return rows
}
