/*
Package catalog is the read-only rule catalog and group resolver.

PURPOSE:
  Validates the absence definitions once, freezes them, and answers lookups
  for the insertion pipeline and form builder. After New returns, a Catalog
  is immutable and safe to share across concurrent requests.

CHAIN GRAPH:
  Groups are chained by NextGroupToCheck. At load the catalog builds an
  explicit adjacency map:

    next[group]     -> successor
    previous[group] -> predecessors

  Each group has at most one successor, so the graph is a forest as long as
  there are no cycles. Cycles are rejected at load (ErrChainCycle). A group
  with several predecessors has no well-defined first of chain; resolution
  through it fails with ErrAmbiguousChain instead of picking one silently.

LOOKUPS:
  Lookups never fail: a miss returns (nil, false). Turning a miss into a
  caller error (ErrAbsenceTypeNotFound, ErrGroupNotFound) is the caller's job.

SEE ALSO:
  - resolver.go: candidate groups, chain resolution, category switching
  - factory/catalog.go: building a Catalog from YAML definitions
*/
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// DefaultReservedGroups are structural groups never auto-selected as a default.
var DefaultReservedGroups = []string{"vacations", "compensatory_rest", "off_site", "organizational"}

// Options tunes catalog construction.
type Options struct {
	// ReservedGroups overrides DefaultReservedGroups when non-nil.
	ReservedGroups []string
}

// Catalog is the validated, frozen set of absence definitions.
type Catalog struct {
	types      map[string]*absence.AbsenceType
	groups     map[string]*absence.GroupAbsenceType
	categories map[string]*absence.Category
	tabs       map[string]*absence.CategoryTab

	typeOrder     []string
	groupOrder    []string
	categoryOrder []string
	tabOrder      []string

	next     map[string]string
	previous map[string][]string
	reserved map[string]bool
}

// New validates the definitions and builds the chain adjacency map.
func New(
	types []absence.AbsenceType,
	groups []absence.GroupAbsenceType,
	categories []absence.Category,
	tabs []absence.CategoryTab,
	opts Options,
) (*Catalog, error) {
	c := &Catalog{
		types:      make(map[string]*absence.AbsenceType, len(types)),
		groups:     make(map[string]*absence.GroupAbsenceType, len(groups)),
		categories: make(map[string]*absence.Category, len(categories)),
		tabs:       make(map[string]*absence.CategoryTab, len(tabs)),
		next:       make(map[string]string),
		previous:   make(map[string][]string),
		reserved:   make(map[string]bool),
	}

	reserved := opts.ReservedGroups
	if reserved == nil {
		reserved = DefaultReservedGroups
	}
	for _, name := range reserved {
		c.reserved[name] = true
	}

	for i := range tabs {
		tab := tabs[i]
		if tab.Name == "" {
			return nil, &generic.DefinitionError{Kind: "tab", Name: tab.Name, Msg: "missing name"}
		}
		if _, dup := c.tabs[tab.Name]; dup {
			return nil, &generic.DefinitionError{Kind: "tab", Name: tab.Name, Msg: "duplicate name"}
		}
		c.tabs[tab.Name] = &tab
	}

	for i := range categories {
		cat := categories[i]
		if cat.Name == "" {
			return nil, &generic.DefinitionError{Kind: "category", Name: cat.Name, Msg: "missing name"}
		}
		if _, dup := c.categories[cat.Name]; dup {
			return nil, &generic.DefinitionError{Kind: "category", Name: cat.Name, Msg: "duplicate name"}
		}
		if cat.Tab != "" {
			if _, ok := c.tabs[cat.Tab]; !ok {
				return nil, &generic.DefinitionError{Kind: "category", Name: cat.Name, Msg: "unknown tab " + cat.Tab}
			}
		}
		c.categories[cat.Name] = &cat
	}

	for i := range types {
		t := types[i]
		if err := validateType(&t); err != nil {
			return nil, err
		}
		if _, dup := c.types[t.Code]; dup {
			return nil, &generic.DefinitionError{Kind: "absence_type", Name: t.Code, Msg: "duplicate code"}
		}
		c.types[t.Code] = &t
	}
	for _, t := range c.types {
		for _, code := range t.IncompatibleCodes {
			if _, ok := c.types[code]; !ok {
				return nil, &generic.DefinitionError{Kind: "absence_type", Name: t.Code, Msg: "unknown incompatible code " + code}
			}
		}
	}

	for i := range groups {
		g := groups[i]
		if err := c.validateGroup(&g); err != nil {
			return nil, err
		}
		if _, dup := c.groups[g.Name]; dup {
			return nil, &generic.DefinitionError{Kind: "group", Name: g.Name, Msg: "duplicate name"}
		}
		c.groups[g.Name] = &g
	}

	if err := c.buildChains(); err != nil {
		return nil, err
	}

	c.typeOrder = sortedKeys(c.types)
	c.groupOrder = sortedKeys(c.groups)
	sort.SliceStable(c.groupOrder, func(i, j int) bool {
		return groupLess(c.groups[c.groupOrder[i]], c.groups[c.groupOrder[j]])
	})
	c.categoryOrder = sortedKeys(c.categories)
	sort.SliceStable(c.categoryOrder, func(i, j int) bool {
		return c.categories[c.categoryOrder[i]].Priority < c.categories[c.categoryOrder[j]].Priority
	})
	c.tabOrder = sortedKeys(c.tabs)
	sort.SliceStable(c.tabOrder, func(i, j int) bool {
		return c.tabs[c.tabOrder[i]].Priority < c.tabs[c.tabOrder[j]].Priority
	})

	return c, nil
}

func validateType(t *absence.AbsenceType) error {
	if strings.TrimSpace(t.Code) == "" {
		return &generic.DefinitionError{Kind: "absence_type", Name: t.Code, Msg: "missing code"}
	}
	if len(t.JustifiedTypes) == 0 {
		return &generic.DefinitionError{Kind: "absence_type", Name: t.Code, Msg: "no justified types"}
	}
	for _, jt := range t.JustifiedTypes {
		if !jt.Valid() {
			return &generic.DefinitionError{Kind: "absence_type", Name: t.Code, Msg: "unknown justified type " + string(jt)}
		}
	}
	if t.ReplacingType != "" && !t.ReplacingType.Valid() {
		return &generic.DefinitionError{Kind: "absence_type", Name: t.Code, Msg: "unknown replacing type " + string(t.ReplacingType)}
	}
	for _, b := range t.Behaviours {
		if !b.Kind.Valid() {
			return &generic.DefinitionError{Kind: "absence_type", Name: t.Code, Msg: "unknown behaviour " + string(b.Kind)}
		}
	}
	if t.ValidFrom != nil && t.ValidTo != nil && !t.ValidFrom.Before(*t.ValidTo) {
		return &generic.DefinitionError{Kind: "absence_type", Name: t.Code, Msg: "empty validity interval"}
	}
	return nil
}

func (c *Catalog) validateGroup(g *absence.GroupAbsenceType) error {
	fail := func(msg string) error {
		return &generic.DefinitionError{Kind: "group", Name: g.Name, Msg: msg}
	}
	if g.Name == "" {
		return fail("missing name")
	}
	if !g.Pattern.Valid() {
		return fail("unknown pattern " + string(g.Pattern))
	}
	if g.Category != "" {
		if _, ok := c.categories[g.Category]; !ok {
			return fail("unknown category " + g.Category)
		}
	}
	if g.NextGroupToCheck == g.Name {
		return fmt.Errorf("%w: %s -> %s", generic.ErrChainCycle, g.Name, g.Name)
	}
	if g.Takable != nil {
		if !g.Takable.AmountType.Valid() {
			return fail("takable behaviour has unknown amount type " + string(g.Takable.AmountType))
		}
		if err := c.knownCodes(g, g.Takable.TakenCodes, g.Takable.TakableCodes); err != nil {
			return err
		}
	}
	if g.Complation != nil {
		if !g.Complation.AmountType.Valid() {
			return fail("complation behaviour has unknown amount type " + string(g.Complation.AmountType))
		}
		if err := c.knownCodes(g, g.Complation.ComplationCodes, g.Complation.ReplacingCodes); err != nil {
			return err
		}
	}
	if g.Takable == nil && g.Complation == nil {
		return fail("group has neither takable nor complation behaviour")
	}
	return nil
}

func (c *Catalog) knownCodes(g *absence.GroupAbsenceType, sets ...[]string) error {
	for _, set := range sets {
		for _, code := range set {
			if _, ok := c.types[code]; !ok {
				return &generic.DefinitionError{Kind: "group", Name: g.Name, Msg: "unknown absence type " + code}
			}
		}
	}
	return nil
}

// buildChains fills next/previous and rejects cycles.
func (c *Catalog) buildChains() error {
	for name, g := range c.groups {
		if !g.HasNext() {
			continue
		}
		if _, ok := c.groups[g.NextGroupToCheck]; !ok {
			return &generic.DefinitionError{Kind: "group", Name: name, Msg: "unknown next group " + g.NextGroupToCheck}
		}
		c.next[name] = g.NextGroupToCheck
		c.previous[g.NextGroupToCheck] = append(c.previous[g.NextGroupToCheck], name)
	}
	for _, preds := range c.previous {
		sort.Strings(preds)
	}

	for _, start := range sortedKeys(c.groups) {
		seen := map[string]bool{start: true}
		path := []string{start}
		for cur, ok := c.next[start]; ok; cur, ok = c.next[cur] {
			path = append(path, cur)
			if seen[cur] {
				return fmt.Errorf("%w: %s", generic.ErrChainCycle, strings.Join(path, " -> "))
			}
			seen[cur] = true
		}
	}
	return nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

func (c *Catalog) AbsenceTypeByCode(code string) (*absence.AbsenceType, bool) {
	t, ok := c.types[code]
	return t, ok
}

func (c *Catalog) Group(name string) (*absence.GroupAbsenceType, bool) {
	g, ok := c.groups[name]
	return g, ok
}

func (c *Catalog) Category(name string) (*absence.Category, bool) {
	cat, ok := c.categories[name]
	return cat, ok
}

func (c *Catalog) Tab(name string) (*absence.CategoryTab, bool) {
	t, ok := c.tabs[name]
	return t, ok
}

// AbsenceTypes returns every type ordered by code.
func (c *Catalog) AbsenceTypes() []*absence.AbsenceType {
	out := make([]*absence.AbsenceType, 0, len(c.typeOrder))
	for _, code := range c.typeOrder {
		out = append(out, c.types[code])
	}
	return out
}

// Groups returns every group ordered by priority then name.
func (c *Catalog) Groups() []*absence.GroupAbsenceType {
	out := make([]*absence.GroupAbsenceType, 0, len(c.groupOrder))
	for _, name := range c.groupOrder {
		out = append(out, c.groups[name])
	}
	return out
}

// Categories returns every category ordered by priority.
func (c *Catalog) Categories() []*absence.Category {
	out := make([]*absence.Category, 0, len(c.categoryOrder))
	for _, name := range c.categoryOrder {
		out = append(out, c.categories[name])
	}
	return out
}

// Tabs returns every tab ordered by priority.
func (c *Catalog) Tabs() []*absence.CategoryTab {
	out := make([]*absence.CategoryTab, 0, len(c.tabOrder))
	for _, name := range c.tabOrder {
		out = append(out, c.tabs[name])
	}
	return out
}

// GroupsForCategory returns the category's groups ordered by priority then name.
func (c *Catalog) GroupsForCategory(category string) []*absence.GroupAbsenceType {
	var out []*absence.GroupAbsenceType
	for _, name := range c.groupOrder {
		if g := c.groups[name]; g.Category == category {
			out = append(out, g)
		}
	}
	return out
}

// IsReserved reports whether the group may only be chosen by explicit name.
func (c *Catalog) IsReserved(g *absence.GroupAbsenceType) bool {
	return g.Pattern.Structural() || c.reserved[g.Name]
}

// ReservedGroups returns the configured reserved names, sorted.
func (c *Catalog) ReservedGroups() []string {
	return sortedKeys(c.reserved)
}

// DefaultTakableGroup is the lowest-priority non-reserved group listing the
// type among its takable codes.
func (c *Catalog) DefaultTakableGroup(t *absence.AbsenceType) (*absence.GroupAbsenceType, bool) {
	if t == nil {
		return nil, false
	}
	for _, name := range c.groupOrder {
		g := c.groups[name]
		if g.Takable == nil || !g.Takable.Takable(t.Code) || c.IsReserved(g) {
			continue
		}
		return g, true
	}
	return nil, false
}

func groupLess(a, b *absence.GroupAbsenceType) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Name < b.Name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
