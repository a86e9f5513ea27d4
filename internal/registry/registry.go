// Package registry holds the static venue taxonomy: which raw venue
// strings are counted, which area and parent area they belong to, and
// the tables used to disambiguate umbrella journals.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/pubcredit/internal/model"
)

// Registry maps raw venue strings to entries. It is read-only after New
// returns and may be shared across goroutines without locking.
type Registry struct {
	entries []model.VenueEntry
	byName  map[string]int // canonical name or alias -> index into entries
	areas   map[string]model.AreaInfo
	rules   RuleSet
}

// New validates entries and rules and builds the lookup indexes
func New(entries []model.VenueEntry, rules RuleSet) (*Registry, error) {
	r := &Registry{
		entries: make([]model.VenueEntry, 0, len(entries)),
		byName:  make(map[string]int, len(entries)*2),
		areas:   make(map[string]model.AreaInfo),
		rules:   rules,
	}

	for i, e := range entries {
		e.Venue = strings.TrimSpace(e.Venue)
		e.Area = strings.TrimSpace(e.Area)
		e.ParentArea = strings.TrimSpace(e.ParentArea)
		e.Field = strings.TrimSpace(e.Field)
		if e.Field == "" {
			e.Field = e.Area
		}
		if e.Venue == "" || e.Area == "" || e.ParentArea == "" {
			return nil, fmt.Errorf("venue entry %d: venue, area and parent are required", i)
		}

		idx := len(r.entries)
		r.entries = append(r.entries, e)

		for _, name := range append([]string{e.Venue}, e.Aliases...) {
			if name == "" {
				continue
			}
			if prev, dup := r.byName[name]; dup {
				if r.entries[prev].Area != e.Area {
					return nil, fmt.Errorf("venue name %q registered for areas %q and %q", name, r.entries[prev].Area, e.Area)
				}
				continue
			}
			r.byName[name] = idx
		}

		info, seen := r.areas[e.Area]
		if !seen {
			r.areas[e.Area] = model.AreaInfo{Area: e.Area, Field: e.Field, ParentArea: e.ParentArea, Tier: e.Tier}
			continue
		}
		if info.ParentArea != e.ParentArea || info.Field != e.Field {
			return nil, fmt.Errorf("area %q: conflicting classification (%s/%s vs %s/%s)",
				e.Area, info.Field, info.ParentArea, e.Field, e.ParentArea)
		}
		if info.Tier != e.Tier {
			return nil, fmt.Errorf("area %q: venues disagree on tier", e.Area)
		}
	}

	if err := rules.validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// Lookup finds a venue by exact, case-sensitive name or alias
func (r *Registry) Lookup(name string) (model.VenueEntry, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return model.VenueEntry{}, false
	}
	return r.entries[idx], true
}

// Area returns the classification shared by all venues of an area
func (r *Registry) Area(area string) (model.AreaInfo, bool) {
	info, ok := r.areas[area]
	return info, ok
}

// Rules returns the disambiguation tables
func (r *Registry) Rules() RuleSet {
	return r.rules
}

// Entries returns a copy of all venue entries in registration order
func (r *Registry) Entries() []model.VenueEntry {
	out := make([]model.VenueEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Areas returns every known area sorted by name
func (r *Registry) Areas() []model.AreaInfo {
	out := make([]model.AreaInfo, 0, len(r.areas))
	for _, info := range r.areas {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Area < out[j].Area })
	return out
}

// Len returns the number of registered venues
func (r *Registry) Len() int {
	return len(r.entries)
}
