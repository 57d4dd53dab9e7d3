package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/catalog"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/generic"
)

func TestLoadCatalogFile_Sample(t *testing.T) {
	cat, err := factory.LoadCatalogFile("testdata/catalog.yaml", catalog.Options{})
	require.NoError(t, err)

	t18, ok := cat.AbsenceTypeByCode("18")
	require.True(t, ok)
	assert.True(t, t18.Permits(absence.JustifiedSpecifiedMinutes))
	minimum, ok := t18.Behaviour(absence.BehaviourMinimumTime)
	require.True(t, ok)
	assert.Equal(t, 60, *minimum.Data)

	g, ok := cat.Group("parental_1")
	require.True(t, ok)
	assert.True(t, g.Automatic)
	assert.Equal(t, absence.PeriodChild, g.PeriodType.Kind)
	assert.Equal(t, 12, g.PeriodType.ToYears)

	chain, err := catalog.NewResolver(cat).Chain("parental_1_reduced")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "parental_1", chain[0].Name)

	legacy, ok := cat.AbsenceTypeByCode("661")
	require.True(t, ok)
	require.NotNil(t, legacy.ValidTo)
	assert.Equal(t, "2020-01-01", legacy.ValidTo.String())

	assert.Equal(t, []string{"compensatory_rest", "off_site"}, cat.ReservedGroups())
}

func TestParseCatalog_OptionsOverrideReserved(t *testing.T) {
	data := []byte(`
absence_types:
  - {code: "31", justified_types: [all_day]}
takable_behaviours:
  - {name: t, amount_type: units, taken_codes: ["31"], takable_codes: ["31"]}
groups:
  - {name: vacations, pattern: simpleGrouping, period_type: year, takable_behaviour: t}
reserved_groups: [vacations]
`)

	fromDoc, err := factory.ParseCatalog(data, catalog.Options{})
	require.NoError(t, err)
	g, _ := fromDoc.Group("vacations")
	assert.True(t, fromDoc.IsReserved(g))

	overridden, err := factory.ParseCatalog(data, catalog.Options{ReservedGroups: []string{}})
	require.NoError(t, err)
	g, _ = overridden.Group("vacations")
	assert.False(t, overridden.IsReserved(g))
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "malformed yaml",
			yaml: "groups: [",
		},
		{
			name: "unknown justified type",
			yaml: `
absence_types:
  - {code: "31", justified_types: [all_week]}
groups: []
`,
		},
		{
			name: "unknown takable behaviour",
			yaml: `
absence_types:
  - {code: "31", justified_types: [all_day]}
groups:
  - {name: g, pattern: simpleGrouping, period_type: year, takable_behaviour: missing}
`,
		},
		{
			name: "bad period type",
			yaml: `
absence_types:
  - {code: "31", justified_types: [all_day]}
takable_behaviours:
  - {name: t, amount_type: units, taken_codes: ["31"], takable_codes: ["31"]}
groups:
  - {name: g, pattern: simpleGrouping, period_type: child5_0_3, takable_behaviour: t}
`,
		},
		{
			name: "unknown adjustment",
			yaml: `
absence_types:
  - {code: "31", justified_types: [all_day]}
takable_behaviours:
  - {name: t, amount_type: units, taken_codes: ["31"], takable_codes: ["31"], adjustment: sometimes}
groups: []
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParseCatalog([]byte(tt.yaml), catalog.Options{})
			assert.ErrorIs(t, err, generic.ErrInvalidDefinition)
		})
	}
}

func TestParseCatalog_ChainCycle(t *testing.T) {
	data := []byte(`
absence_types:
  - {code: "31", justified_types: [all_day]}
takable_behaviours:
  - {name: t, amount_type: units, taken_codes: ["31"], takable_codes: ["31"]}
groups:
  - {name: a, pattern: simpleGrouping, period_type: year, takable_behaviour: t, next_group: b}
  - {name: b, pattern: simpleGrouping, period_type: year, takable_behaviour: t, next_group: a}
`)

	_, err := factory.ParseCatalog(data, catalog.Options{})

	assert.ErrorIs(t, err, generic.ErrChainCycle)
}

func TestToYAML_Reloads(t *testing.T) {
	cat, err := factory.LoadCatalogFile("testdata/catalog.yaml", catalog.Options{})
	require.NoError(t, err)

	out, err := factory.ToYAML(cat)
	require.NoError(t, err)

	again, err := factory.ParseCatalog(out, catalog.Options{})
	require.NoError(t, err)
	assert.Len(t, again.Groups(), len(cat.Groups()))
	assert.Len(t, again.AbsenceTypes(), len(cat.AbsenceTypes()))
}
