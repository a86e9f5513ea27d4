package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/pubcredit/internal/model"
)

func TestDefault_Loads(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	assert.Greater(t, reg.Len(), 50)

	e, ok := reg.Lookup("ECCV (2)")
	require.True(t, ok)
	assert.Equal(t, "ECCV", e.Venue)
	assert.Equal(t, "eccv", e.Area)
	assert.Equal(t, "vision", e.Field)
	assert.Equal(t, "AI", e.ParentArea)

	info, ok := reg.Area("stoc")
	require.True(t, ok)
	assert.Equal(t, "Theory", info.ParentArea)

	info, ok = reg.Area("kdd")
	require.True(t, ok)
	assert.Equal(t, model.TierNext, info.Tier)

	rules := reg.Rules()
	assert.True(t, rules.IsSubVenueArea("pacmpl"))
	assert.True(t, rules.IsSubVenueArea("pacmse"))
	_, ok = rules.BundledFor("pacmmod")
	assert.True(t, ok)

	tog, ok := rules.Journal("ACM Trans. Graph.")
	require.True(t, ok)
	require.Len(t, tog.Tables, 2)
	assert.True(t, tog.Tables[0].Match(2020, "39", "4"))
	assert.False(t, tog.Tables[0].Match(2020, "39", "6"))
	assert.True(t, tog.Tables[1].Match(2020, "39", "6"))
}

func TestDefault_SubVenuesRegistered(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	for _, name := range []string{"POPL", "PLDI", "OOPSLA1", "OOPSLA2", "ICFP", "FSE", "ISSTA", "SIGMOD Conference", "PODS", "SIGGRAPH", "SIGGRAPH Asia", "EUROGRAPHICS", "VR"} {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, name)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	data, err := Marshal(reg)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, reg.Entries(), again.Entries())
	assert.Equal(t, reg.Rules(), again.Rules())
}

func TestParseCSV(t *testing.T) {
	in := `Conference,Area,ParentArea,NextTier
ABC,x,Systems,False
DEF,y,Theory,True
`
	entries, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.VenueEntry{Venue: "ABC", Area: "x", ParentArea: "Systems", Tier: model.TierMain}, entries[0])
	assert.Equal(t, model.TierNext, entries[1].Tier)
}

func TestParseCSV_Errors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Conference,Area\nABC,x\n"))
	assert.ErrorContains(t, err, "parentarea")

	_, err = ParseCSV(strings.NewReader("Conference,Area,ParentArea,NextTier\nABC,x,Systems,maybe\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestLoad_CSVInheritsRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conferences.csv")
	require.NoError(t, os.WriteFile(path, []byte("Conference,Area,ParentArea,NextTier\nABC,x,Systems,false\n"), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
	assert.True(t, reg.Rules().IsSubVenueArea("pacmpl"))
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	yml := `
venues:
  - venue: ABC
    area: x
    parent: Systems
  - venue: J
    area: j
    parent: Systems
    tier: next
rules:
  volume_tracked:
    - journal: J
      tables:
        - name: special
          venue: ABC
          years:
            2020: [1, 2]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)

	e, ok := reg.Lookup("J")
	require.True(t, ok)
	assert.Equal(t, model.TierNext, e.Tier)

	track, ok := reg.Rules().Journal("J")
	require.True(t, ok)
	assert.True(t, track.Tables[0].Match(2020, "1", "2"))
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	_, ok := reg.Lookup("POPL")
	assert.True(t, ok)
}

func TestNew_Conflicts(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.VenueEntry
		rules   RuleSet
		wantErr string
	}{
		{
			name:    "missing parent",
			entries: []model.VenueEntry{{Venue: "A", Area: "a"}},
			wantErr: "required",
		},
		{
			name: "name in two areas",
			entries: []model.VenueEntry{
				{Venue: "A", Area: "a", ParentArea: "P"},
				{Venue: "B", Aliases: []string{"A"}, Area: "b", ParentArea: "P"},
			},
			wantErr: "registered for areas",
		},
		{
			name: "area with two parents",
			entries: []model.VenueEntry{
				{Venue: "A", Area: "a", ParentArea: "P"},
				{Venue: "B", Area: "a", ParentArea: "Q"},
			},
			wantErr: "conflicting classification",
		},
		{
			name: "area with two tiers",
			entries: []model.VenueEntry{
				{Venue: "A", Area: "a", ParentArea: "P"},
				{Venue: "B", Area: "a", ParentArea: "P", Tier: model.TierNext},
			},
			wantErr: "tier",
		},
		{
			name:    "table without target",
			entries: []model.VenueEntry{{Venue: "A", Area: "a", ParentArea: "P"}},
			rules:   RuleSet{VolumeTracked: []VolumeTrack{{Journal: "A", Tables: []VolumeTable{{Name: "t"}}}}},
			wantErr: "venue or area",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries, tt.rules)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNew_DuplicateNameSameAreaAllowed(t *testing.T) {
	reg, err := New([]model.VenueEntry{
		{Venue: "A", Area: "a", ParentArea: "P"},
		{Venue: "A2", Aliases: []string{"A"}, Area: "a", ParentArea: "P"},
	}, RuleSet{})
	require.NoError(t, err)

	e, ok := reg.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "A", e.Venue, "first registration wins")
}
