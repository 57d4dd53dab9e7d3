/*
Package factory converts YAML catalog definitions into a catalog.Catalog.

PURPOSE:
  Absence codes, behaviours and group chains are configuration, not code.
  The factory parses a YAML document, validates its shape, resolves the
  behaviour references by name and hands the result to catalog.New, which
  performs the semantic checks (unknown codes, chain cycles).

YAML SCHEMA:
  tabs:
    - {name: main, priority: 1}
  categories:
    - {name: permits, tab: main, priority: 1}
  absence_types:
    - code: "18"
      justified_types: [all_day, specified_minutes]
      behaviours:
        - {kind: minimumTime, data: 60}
      valid_from: "2020-01-01"
  takable_behaviours:
    - name: t_18
      amount_type: units
      taken_codes: ["18"]
      takable_codes: ["18"]
      fixed_limit: 3
      adjustment: workingTimePercent
  complation_behaviours:
    - {name: c_09, amount_type: minutes, complation_codes: ["09M"], replacing_codes: ["09H7"]}
  groups:
    - name: g_18
      category: permits
      priority: 1
      pattern: simpleGrouping
      period_type: month
      takable_behaviour: t_18
      next_group: g_18_extra
  reserved_groups: [vacations, compensatory_rest]

USAGE:
  cat, err := factory.LoadCatalogFile("catalog.yaml", catalog.Options{})
  if errors.Is(err, generic.ErrInvalidDefinition) { ... }

SEE ALSO:
  - catalog/catalog.go: semantic validation and chain graph
  - testdata/catalog.yaml: sample catalog
*/
package factory

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/catalog"
	"github.com/warp/absence-engine/generic"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

// Document is the YAML representation of a catalog.
type Document struct {
	Tabs                 []TabYAML         `yaml:"tabs,omitempty"`
	Categories           []CategoryYAML    `yaml:"categories,omitempty"`
	AbsenceTypes         []AbsenceTypeYAML `yaml:"absence_types"`
	TakableBehaviours    []TakableYAML     `yaml:"takable_behaviours,omitempty"`
	ComplationBehaviours []ComplationYAML  `yaml:"complation_behaviours,omitempty"`
	Groups               []GroupYAML       `yaml:"groups"`
	ReservedGroups       []string          `yaml:"reserved_groups,omitempty"`
}

type TabYAML struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Priority    int    `yaml:"priority"`
}

type CategoryYAML struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Priority    int    `yaml:"priority"`
	Tab         string `yaml:"tab,omitempty"`
}

type BehaviourYAML struct {
	Kind string `yaml:"kind"`
	Data *int   `yaml:"data,omitempty"`
}

type AbsenceTypeYAML struct {
	Code              string          `yaml:"code"`
	Description       string          `yaml:"description,omitempty"`
	ValidFrom         string          `yaml:"valid_from,omitempty"`
	ValidTo           string          `yaml:"valid_to,omitempty"`
	JustifiedTime     int             `yaml:"justified_time,omitempty"`
	JustifiedTypes    []string        `yaml:"justified_types"`
	Behaviours        []BehaviourYAML `yaml:"behaviours,omitempty"`
	ReplacingType     string          `yaml:"replacing_type,omitempty"`
	ReplacingTime     int             `yaml:"replacing_time,omitempty"`
	ConsideredWeekEnd bool            `yaml:"considered_week_end,omitempty"`
	IncompatibleCodes []string        `yaml:"incompatible_codes,omitempty"`
}

type TakableYAML struct {
	Name         string   `yaml:"name"`
	AmountType   string   `yaml:"amount_type"`
	TakenCodes   []string `yaml:"taken_codes"`
	TakableCodes []string `yaml:"takable_codes"`
	FixedLimit   *float64 `yaml:"fixed_limit,omitempty"`
	Adjustment   string   `yaml:"adjustment,omitempty"`
}

type ComplationYAML struct {
	Name            string   `yaml:"name"`
	AmountType      string   `yaml:"amount_type"`
	ComplationCodes []string `yaml:"complation_codes"`
	ReplacingCodes  []string `yaml:"replacing_codes"`
}

type GroupYAML struct {
	Name                string `yaml:"name"`
	Description         string `yaml:"description,omitempty"`
	ChainDescription    string `yaml:"chain_description,omitempty"`
	Category            string `yaml:"category,omitempty"`
	Priority            int    `yaml:"priority"`
	Pattern             string `yaml:"pattern"`
	PeriodType          string `yaml:"period_type"`
	TakableBehaviour    string `yaml:"takable_behaviour,omitempty"`
	ComplationBehaviour string `yaml:"complation_behaviour,omitempty"`
	NextGroup           string `yaml:"next_group,omitempty"`
	Automatic           bool   `yaml:"automatic,omitempty"`
	Initializable       bool   `yaml:"initializable,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseCatalog parses YAML and builds a validated catalog. Reserved groups in
// opts win over the document's reserved_groups.
func ParseCatalog(data []byte, opts catalog.Options) (*catalog.Catalog, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid catalog yaml: %v", generic.ErrInvalidDefinition, err)
	}
	return doc.Build(opts)
}

// LoadCatalogFile reads and parses a YAML catalog file.
func LoadCatalogFile(path string, opts catalog.Options) (*catalog.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data, opts)
}

// Build converts the document into domain types and hands them to catalog.New.
func (d *Document) Build(opts catalog.Options) (*catalog.Catalog, error) {
	types := make([]absence.AbsenceType, 0, len(d.AbsenceTypes))
	for _, ty := range d.AbsenceTypes {
		t, err := ty.toDomain()
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	takables := make(map[string]*absence.TakableBehaviour, len(d.TakableBehaviours))
	for _, ty := range d.TakableBehaviours {
		b, err := ty.toDomain()
		if err != nil {
			return nil, err
		}
		if _, dup := takables[b.Name]; dup {
			return nil, &generic.DefinitionError{Kind: "takable_behaviour", Name: b.Name, Msg: "duplicate name"}
		}
		takables[b.Name] = b
	}

	complations := make(map[string]*absence.ComplationBehaviour, len(d.ComplationBehaviours))
	for _, cy := range d.ComplationBehaviours {
		b := &absence.ComplationBehaviour{
			Name:            cy.Name,
			AmountType:      absence.AmountType(cy.AmountType),
			ComplationCodes: cy.ComplationCodes,
			ReplacingCodes:  cy.ReplacingCodes,
		}
		if !b.AmountType.Valid() {
			return nil, &generic.DefinitionError{Kind: "complation_behaviour", Name: cy.Name, Msg: "unknown amount type " + cy.AmountType}
		}
		if _, dup := complations[b.Name]; dup {
			return nil, &generic.DefinitionError{Kind: "complation_behaviour", Name: b.Name, Msg: "duplicate name"}
		}
		complations[b.Name] = b
	}

	groups := make([]absence.GroupAbsenceType, 0, len(d.Groups))
	for _, gy := range d.Groups {
		g, err := gy.toDomain(takables, complations)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	tabs := make([]absence.CategoryTab, 0, len(d.Tabs))
	for _, t := range d.Tabs {
		tabs = append(tabs, absence.CategoryTab{Name: t.Name, Description: t.Description, Priority: t.Priority})
	}
	cats := make([]absence.Category, 0, len(d.Categories))
	for _, c := range d.Categories {
		cats = append(cats, absence.Category{Name: c.Name, Description: c.Description, Priority: c.Priority, Tab: c.Tab})
	}

	if opts.ReservedGroups == nil && d.ReservedGroups != nil {
		opts.ReservedGroups = d.ReservedGroups
	}
	return catalog.New(types, groups, cats, tabs, opts)
}

func (ty AbsenceTypeYAML) toDomain() (absence.AbsenceType, error) {
	fail := func(msg string) error {
		return &generic.DefinitionError{Kind: "absence_type", Name: ty.Code, Msg: msg}
	}
	t := absence.AbsenceType{
		Code:              ty.Code,
		Description:       ty.Description,
		JustifiedTime:     ty.JustifiedTime,
		ReplacingTime:     ty.ReplacingTime,
		ConsideredWeekEnd: ty.ConsideredWeekEnd,
		IncompatibleCodes: ty.IncompatibleCodes,
	}
	for _, s := range ty.JustifiedTypes {
		jt, err := absence.ParseJustifiedType(s)
		if err != nil {
			return t, fail(err.Error())
		}
		t.JustifiedTypes = append(t.JustifiedTypes, jt)
	}
	if ty.ReplacingType != "" {
		jt, err := absence.ParseJustifiedType(ty.ReplacingType)
		if err != nil {
			return t, fail(err.Error())
		}
		t.ReplacingType = jt
	}
	for _, b := range ty.Behaviours {
		t.Behaviours = append(t.Behaviours, absence.AbsenceTypeBehaviour{Kind: absence.BehaviourKind(b.Kind), Data: b.Data})
	}
	if ty.ValidFrom != "" {
		d, err := generic.ParseDate(ty.ValidFrom)
		if err != nil {
			return t, fail(err.Error())
		}
		t.ValidFrom = &d
	}
	if ty.ValidTo != "" {
		d, err := generic.ParseDate(ty.ValidTo)
		if err != nil {
			return t, fail(err.Error())
		}
		t.ValidTo = &d
	}
	return t, nil
}

func (ty TakableYAML) toDomain() (*absence.TakableBehaviour, error) {
	b := &absence.TakableBehaviour{
		Name:         ty.Name,
		AmountType:   absence.AmountType(ty.AmountType),
		TakenCodes:   ty.TakenCodes,
		TakableCodes: ty.TakableCodes,
	}
	if !b.AmountType.Valid() {
		return nil, &generic.DefinitionError{Kind: "takable_behaviour", Name: ty.Name, Msg: "unknown amount type " + ty.AmountType}
	}
	if ty.FixedLimit != nil {
		limit := decimal.NewFromFloat(*ty.FixedLimit)
		b.FixedLimit = &limit
	}
	if ty.Adjustment != "" {
		adj := absence.TakableAmountAdjustment(ty.Adjustment)
		switch adj {
		case absence.AdjustWorkingTimePercent, absence.AdjustWorkingPeriodPercent, absence.AdjustWorkingTimeAndPeriodPercent:
		default:
			return nil, &generic.DefinitionError{Kind: "takable_behaviour", Name: ty.Name, Msg: "unknown adjustment " + ty.Adjustment}
		}
		b.Adjustment = &adj
	}
	return b, nil
}

func (gy GroupYAML) toDomain(
	takables map[string]*absence.TakableBehaviour,
	complations map[string]*absence.ComplationBehaviour,
) (absence.GroupAbsenceType, error) {
	fail := func(msg string) error {
		return &generic.DefinitionError{Kind: "group", Name: gy.Name, Msg: msg}
	}
	g := absence.GroupAbsenceType{
		Name:             gy.Name,
		Description:      gy.Description,
		ChainDescription: gy.ChainDescription,
		Category:         gy.Category,
		Priority:         gy.Priority,
		Pattern:          absence.GroupPattern(gy.Pattern),
		NextGroupToCheck: gy.NextGroup,
		Automatic:        gy.Automatic,
		Initializable:    gy.Initializable,
	}
	pt, err := absence.ParsePeriodType(gy.PeriodType)
	if err != nil {
		return g, fail(err.Error())
	}
	g.PeriodType = pt
	if gy.TakableBehaviour != "" {
		b, ok := takables[gy.TakableBehaviour]
		if !ok {
			return g, fail("unknown takable behaviour " + gy.TakableBehaviour)
		}
		g.Takable = b
	}
	if gy.ComplationBehaviour != "" {
		b, ok := complations[gy.ComplationBehaviour]
		if !ok {
			return g, fail("unknown complation behaviour " + gy.ComplationBehaviour)
		}
		g.Complation = b
	}
	return g, nil
}

// =============================================================================
// EXPORT
// =============================================================================

// FromCatalog rebuilds a document from a loaded catalog.
func FromCatalog(c *catalog.Catalog) *Document {
	d := &Document{ReservedGroups: c.ReservedGroups()}
	for _, t := range c.Tabs() {
		d.Tabs = append(d.Tabs, TabYAML{Name: t.Name, Description: t.Description, Priority: t.Priority})
	}
	for _, cat := range c.Categories() {
		d.Categories = append(d.Categories, CategoryYAML{Name: cat.Name, Description: cat.Description, Priority: cat.Priority, Tab: cat.Tab})
	}
	for _, t := range c.AbsenceTypes() {
		d.AbsenceTypes = append(d.AbsenceTypes, absenceTypeYAML(t))
	}

	takables := map[string]*absence.TakableBehaviour{}
	complations := map[string]*absence.ComplationBehaviour{}
	for _, g := range c.Groups() {
		gy := GroupYAML{
			Name:             g.Name,
			Description:      g.Description,
			ChainDescription: g.ChainDescription,
			Category:         g.Category,
			Priority:         g.Priority,
			Pattern:          string(g.Pattern),
			PeriodType:       g.PeriodType.String(),
			NextGroup:        g.NextGroupToCheck,
			Automatic:        g.Automatic,
			Initializable:    g.Initializable,
		}
		if g.Takable != nil {
			gy.TakableBehaviour = g.Takable.Name
			takables[g.Takable.Name] = g.Takable
		}
		if g.Complation != nil {
			gy.ComplationBehaviour = g.Complation.Name
			complations[g.Complation.Name] = g.Complation
		}
		d.Groups = append(d.Groups, gy)
	}

	for _, name := range sortedNames(takables) {
		b := takables[name]
		ty := TakableYAML{
			Name:         b.Name,
			AmountType:   string(b.AmountType),
			TakenCodes:   b.TakenCodes,
			TakableCodes: b.TakableCodes,
		}
		if b.FixedLimit != nil {
			f := b.FixedLimit.InexactFloat64()
			ty.FixedLimit = &f
		}
		if b.Adjustment != nil {
			ty.Adjustment = string(*b.Adjustment)
		}
		d.TakableBehaviours = append(d.TakableBehaviours, ty)
	}
	for _, name := range sortedNames(complations) {
		b := complations[name]
		d.ComplationBehaviours = append(d.ComplationBehaviours, ComplationYAML{
			Name:            b.Name,
			AmountType:      string(b.AmountType),
			ComplationCodes: b.ComplationCodes,
			ReplacingCodes:  b.ReplacingCodes,
		})
	}
	return d
}

// ToYAML exports a loaded catalog.
func ToYAML(c *catalog.Catalog) ([]byte, error) {
	return yaml.Marshal(FromCatalog(c))
}

func absenceTypeYAML(t *absence.AbsenceType) AbsenceTypeYAML {
	ty := AbsenceTypeYAML{
		Code:              t.Code,
		Description:       t.Description,
		JustifiedTime:     t.JustifiedTime,
		ReplacingType:     string(t.ReplacingType),
		ReplacingTime:     t.ReplacingTime,
		ConsideredWeekEnd: t.ConsideredWeekEnd,
		IncompatibleCodes: t.IncompatibleCodes,
	}
	for _, jt := range t.JustifiedTypes {
		ty.JustifiedTypes = append(ty.JustifiedTypes, string(jt))
	}
	for _, b := range t.Behaviours {
		ty.Behaviours = append(ty.Behaviours, BehaviourYAML{Kind: string(b.Kind), Data: b.Data})
	}
	if t.ValidFrom != nil {
		ty.ValidFrom = t.ValidFrom.String()
	}
	if t.ValidTo != nil {
		ty.ValidTo = t.ValidTo.String()
	}
	return ty
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
