package model

import (
	"fmt"
	"strings"
)

// Tier separates flagship venues from the next tier
type Tier int

const (
	TierMain Tier = iota // counted by default
	TierNext             // excluded unless explicitly included
)

func (t Tier) String() string {
	if t == TierNext {
		return "next"
	}
	return "main"
}

// ParseTier accepts "main"/"next" as well as the boolean NextTier
// column used by conferences.csv.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "main", "false", "0", "no":
		return TierMain, nil
	case "next", "next-tier", "nexttier", "true", "1", "yes":
		return TierNext, nil
	}
	return TierMain, fmt.Errorf("unknown tier %q", s)
}

// MarshalYAML writes the tier as its name
func (t Tier) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML reads "main" or "next"
func (t *Tier) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// VenueEntry is one registered venue. Entries are immutable once the
// registry is built.
type VenueEntry struct {
	Venue      string   `yaml:"venue"`             // canonical abbreviation, e.g. "SIGGRAPH"
	Aliases    []string `yaml:"aliases,omitempty"` // other raw dump spellings, e.g. "ECCV (1)"
	Area       string   `yaml:"area"`              // fine-grained area, e.g. "siggraph"
	Field      string   `yaml:"field,omitempty"`   // research field, e.g. "graph"; defaults to Area
	ParentArea string   `yaml:"parent"`            // coarse category, e.g. "Interdisciplinary Areas"
	Tier       Tier     `yaml:"tier"`
}

// AreaInfo is what the registry knows about an area independent of the
// venue that produced it.
type AreaInfo struct {
	Area       string
	Field      string
	ParentArea string
	Tier       Tier
}
