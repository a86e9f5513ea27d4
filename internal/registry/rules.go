package registry

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet holds the static disambiguation tables. Every table is keyed
// loosely: a missing key is a non-match, never an error.
type RuleSet struct {
	// SubVenueAreas are proceedings-as-journal areas whose issue number
	// field names the real venue (PACMPL, PACMSE).
	SubVenueAreas []string `yaml:"sub_venue_areas,omitempty"`

	// Bundled are journal areas whose issues carry several conferences
	// and whose papers may belong to a different year than the issue.
	Bundled []BundledRule `yaml:"bundled,omitempty"`

	// VolumeTracked are journals whose special issues publish a flagship
	// event, identified by a year-indexed (volume, number) table.
	VolumeTracked []VolumeTrack `yaml:"volume_tracked,omitempty"`
}

// BundledRule maps (year, issue number) of one umbrella area to the
// venue the issue actually belongs to
type BundledRule struct {
	Area         string           `yaml:"area"`
	FallbackArea string           `yaml:"fallback_area,omitempty"` // used when no mapping matches; empty drops the record
	Mappings     []BundledMapping `yaml:"mappings"`
}

// BundledMapping is one row of a bundled-journal table
type BundledMapping struct {
	Year      int      `yaml:"year"`
	Numbers   []string `yaml:"numbers"`
	Venue     string   `yaml:"venue"`
	YearShift int      `yaml:"year_shift,omitempty"`
}

// Match returns the mapping for year and issue number
func (b BundledRule) Match(year int, number string) (BundledMapping, bool) {
	for _, m := range b.Mappings {
		if m.Year != year {
			continue
		}
		for _, n := range m.Numbers {
			if n == number {
				return m, true
			}
		}
	}
	return BundledMapping{}, false
}

// VolumeTrack groups the independent tables checked for one journal
type VolumeTrack struct {
	Journal string        `yaml:"journal"` // raw venue string as it appears in the dump
	Tables  []VolumeTable `yaml:"tables"`
}

// VolumeTable identifies one event published as a journal issue.
// Venue, Area or both may be set; an area-only table reclassifies the
// record while keeping the journal as its venue.
type VolumeTable struct {
	Name  string               `yaml:"name"`
	Venue string               `yaml:"venue,omitempty"`
	Area  string               `yaml:"area,omitempty"`
	Years map[int]VolumeNumber `yaml:"years"`
}

// Match reports whether (year, volume, number) is the table's issue
func (t VolumeTable) Match(year int, volume, number string) bool {
	want, ok := t.Years[year]
	if !ok {
		return false
	}
	return want.Volume == volume && want.Number == number
}

// VolumeNumber is the expected (volume, number) pair of an issue.
// In YAML it is written as a two-element list: [39, 4].
type VolumeNumber struct {
	Volume string
	Number string
}

// UnmarshalYAML accepts [volume, number]
func (v *VolumeNumber) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: expected [volume, number]", node.Line)
	}
	v.Volume = strings.TrimSpace(node.Content[0].Value)
	v.Number = strings.TrimSpace(node.Content[1].Value)
	return nil
}

// MarshalYAML writes [volume, number] using integers where possible
func (v VolumeNumber) MarshalYAML() (interface{}, error) {
	return []interface{}{numeric(v.Volume), numeric(v.Number)}, nil
}

func numeric(s string) interface{} {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}

// Journal returns the volume track for a raw venue string
func (rs RuleSet) Journal(venue string) (VolumeTrack, bool) {
	for _, vt := range rs.VolumeTracked {
		if vt.Journal == venue {
			return vt, true
		}
	}
	return VolumeTrack{}, false
}

// BundledFor returns the bundled rule of an area
func (rs RuleSet) BundledFor(area string) (BundledRule, bool) {
	for _, b := range rs.Bundled {
		if b.Area == area {
			return b, true
		}
	}
	return BundledRule{}, false
}

// IsSubVenueArea reports whether area re-resolves from the issue number
func (rs RuleSet) IsSubVenueArea(area string) bool {
	for _, a := range rs.SubVenueAreas {
		if a == area {
			return true
		}
	}
	return false
}

func (rs RuleSet) validate() error {
	for i, b := range rs.Bundled {
		if b.Area == "" {
			return fmt.Errorf("bundled rule %d: area is required", i)
		}
		for j, m := range b.Mappings {
			if m.Venue == "" || len(m.Numbers) == 0 {
				return fmt.Errorf("bundled rule %q mapping %d: venue and numbers are required", b.Area, j)
			}
		}
	}
	for _, vt := range rs.VolumeTracked {
		if vt.Journal == "" {
			return fmt.Errorf("volume track: journal is required")
		}
		for j, t := range vt.Tables {
			if t.Venue == "" && t.Area == "" {
				return fmt.Errorf("volume track %q table %d: venue or area is required", vt.Journal, j)
			}
		}
	}
	return nil
}
