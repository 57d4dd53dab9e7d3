package catalog

import (
	"fmt"
	"sort"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// GROUP RESOLVER
// =============================================================================

// Resolver walks the group graph of a catalog. It holds no state of its own,
// every answer is a pure function of the catalog.
type Resolver struct {
	catalog *Catalog
}

func NewResolver(c *Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Catalog returns the catalog the resolver walks.
func (r *Resolver) Catalog() *Catalog { return r.catalog }

// CandidateGroups lists the groups taking the code, optionally restricted to
// a category, ordered by priority then name.
func (r *Resolver) CandidateGroups(t *absence.AbsenceType, category string) []*absence.GroupAbsenceType {
	if t == nil {
		return nil
	}
	var out []*absence.GroupAbsenceType
	for _, g := range r.catalog.Groups() {
		if category != "" && g.Category != category {
			continue
		}
		if groupTakesCode(g, t.Code) {
			out = append(out, g)
		}
	}
	return out
}

func groupTakesCode(g *absence.GroupAbsenceType, code string) bool {
	if g.Takable != nil && g.Takable.Takable(code) {
		return true
	}
	if g.Complation != nil && (g.Complation.IsComplation(code) || g.Complation.IsReplacing(code)) {
		return true
	}
	return false
}

// Previous returns the predecessors of a group, sorted by name.
func (r *Resolver) Previous(name string) []string {
	return append([]string(nil), r.catalog.previous[name]...)
}

// Next returns the successor of a group, if any.
func (r *Resolver) Next(name string) (*absence.GroupAbsenceType, bool) {
	next, ok := r.catalog.next[name]
	if !ok {
		return nil, false
	}
	return r.catalog.Group(next)
}

// ResolveChain returns the first group of the chain containing name. Walking
// through a node with several predecessors fails with ErrAmbiguousChain.
func (r *Resolver) ResolveChain(name string) (*absence.GroupAbsenceType, error) {
	g, ok := r.catalog.Group(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrGroupNotFound, name)
	}
	for {
		preds := r.catalog.previous[g.Name]
		switch len(preds) {
		case 0:
			return g, nil
		case 1:
			g = r.catalog.groups[preds[0]]
		default:
			return nil, &generic.ImplementationError{
				Problem: string(absence.AmbiguousChain),
				Group:   g.Name,
				Detail:  fmt.Sprintf("previous groups %v", preds),
				Err:     generic.ErrAmbiguousChain,
			}
		}
	}
}

// Chain returns the groups of the chain containing name, first to last.
func (r *Resolver) Chain(name string) ([]*absence.GroupAbsenceType, error) {
	first, err := r.ResolveChain(name)
	if err != nil {
		return nil, err
	}
	chain := []*absence.GroupAbsenceType{first}
	for next, ok := r.Next(first.Name); ok; next, ok = r.Next(next.Name) {
		chain = append(chain, next)
	}
	return chain, nil
}

// =============================================================================
// CATEGORY SWITCHING
// =============================================================================

// SwitchCategory enumerates alternatives for a "switch group" action: the
// groups of the target category, or of every category sharing the current
// group's tab when target is empty.
func (r *Resolver) SwitchCategory(current *absence.GroupAbsenceType, target string) ([]*absence.GroupAbsenceType, error) {
	if target != "" {
		if _, ok := r.catalog.Category(target); !ok {
			return nil, fmt.Errorf("%w: %s", generic.ErrCategoryNotFound, target)
		}
		return r.catalog.GroupsForCategory(target), nil
	}
	if current == nil {
		return nil, nil
	}
	var out []*absence.GroupAbsenceType
	for _, cat := range r.tabCategories(current) {
		out = append(out, r.catalog.GroupsForCategory(cat.Name)...)
	}
	return out, nil
}

// CategoryGroups is one entry of a category switcher.
type CategoryGroups struct {
	Category *absence.Category
	Groups   []*absence.GroupAbsenceType
}

// CategorySwitcher lists, for the tab of a group, each category with the
// chain heads it offers.
type CategorySwitcher struct {
	Group        *absence.GroupAbsenceType
	Category     *absence.Category
	Tab          *absence.CategoryTab
	Alternatives []CategoryGroups
}

// CategorySwitcher builds the switcher for a group.
func (r *Resolver) CategorySwitcher(g *absence.GroupAbsenceType) *CategorySwitcher {
	sw := &CategorySwitcher{Group: g}
	if g == nil {
		return sw
	}
	if cat, ok := r.catalog.Category(g.Category); ok {
		sw.Category = cat
		if tab, ok := r.catalog.Tab(cat.Tab); ok {
			sw.Tab = tab
		}
	}
	for _, cat := range r.tabCategories(g) {
		var heads []*absence.GroupAbsenceType
		for _, candidate := range r.catalog.GroupsForCategory(cat.Name) {
			if len(r.catalog.previous[candidate.Name]) == 0 {
				heads = append(heads, candidate)
			}
		}
		if len(heads) > 0 {
			sw.Alternatives = append(sw.Alternatives, CategoryGroups{Category: cat, Groups: heads})
		}
	}
	return sw
}

// tabCategories returns the categories in the same tab as g, by priority.
// A group without a tabbed category only sees its own category.
func (r *Resolver) tabCategories(g *absence.GroupAbsenceType) []*absence.Category {
	own, ok := r.catalog.Category(g.Category)
	if !ok {
		return nil
	}
	if own.Tab == "" {
		return []*absence.Category{own}
	}
	var out []*absence.Category
	for _, cat := range r.catalog.Categories() {
		if cat.Tab == own.Tab {
			out = append(out, cat)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
