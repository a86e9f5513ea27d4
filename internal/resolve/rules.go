package resolve

import (
	"fmt"

	"github.com/ppiankov/pubcredit/internal/registry"
)

// registryMatch is the entry point: exact match of the raw venue
type registryMatch struct {
	reg *registry.Registry
}

func (r *registryMatch) Name() string { return "registry" }

func (r *registryMatch) Applies(Query, Resolution) bool { return true }

func (r *registryMatch) Apply(q Query, _ Resolution) (Resolution, Verdict, error) {
	e, ok := r.reg.Lookup(q.Venue)
	if !ok {
		return Resolution{}, Done, fmt.Errorf("%w: %q", ErrUnresolvable, q.Venue)
	}
	return fromEntry(r.reg, e, q.Year), Continue, nil
}

// umbrellaSubVenue handles proceedings-as-journal areas (PACMPL, PACMSE)
// whose issue number is the abbreviation of the real venue
type umbrellaSubVenue struct {
	reg *registry.Registry
}

func (r *umbrellaSubVenue) Name() string { return "umbrella" }

func (r *umbrellaSubVenue) Applies(_ Query, cur Resolution) bool {
	return r.reg.Rules().IsSubVenueArea(cur.Area)
}

func (r *umbrellaSubVenue) Apply(q Query, cur Resolution) (Resolution, Verdict, error) {
	e, ok := r.reg.Lookup(q.Number)
	if !ok {
		return Resolution{}, Done, fmt.Errorf("%w: %s sub-venue %q", ErrUnresolvable, cur.Venue, q.Number)
	}
	return fromEntry(r.reg, e, cur.Year), Done, nil
}

// bundledJournal handles journals whose issues bundle conferences that
// may be credited to a neighbouring year (PACMMOD)
type bundledJournal struct {
	reg *registry.Registry
}

func (r *bundledJournal) Name() string { return "bundled" }

func (r *bundledJournal) Applies(_ Query, cur Resolution) bool {
	_, ok := r.reg.Rules().BundledFor(cur.Area)
	return ok
}

func (r *bundledJournal) Apply(q Query, cur Resolution) (Resolution, Verdict, error) {
	rule, _ := r.reg.Rules().BundledFor(cur.Area)

	m, ok := rule.Match(cur.Year, q.Number)
	if !ok {
		if rule.FallbackArea != "" {
			if info, known := r.reg.Area(rule.FallbackArea); known {
				return withArea(cur, info), Done, nil
			}
		}
		return Resolution{}, Done, fmt.Errorf("%w: %s year %d number %q", ErrAmbiguous, cur.Venue, cur.Year, q.Number)
	}

	e, known := r.reg.Lookup(m.Venue)
	if !known {
		return Resolution{}, Done, fmt.Errorf("%w: %s maps to unregistered %q", ErrUnresolvable, cur.Venue, m.Venue)
	}
	return fromEntry(r.reg, e, cur.Year+m.YearShift), Done, nil
}

// volumeTracked checks every table of a journal (TOG, CGF, TVCG). The
// tables are independent: a later match overrides an earlier one and no
// match keeps the journal's own classification.
type volumeTracked struct {
	reg *registry.Registry
}

func (r *volumeTracked) Name() string { return "volume" }

func (r *volumeTracked) Applies(q Query, _ Resolution) bool {
	_, ok := r.reg.Rules().Journal(q.Venue)
	return ok
}

func (r *volumeTracked) Apply(q Query, cur Resolution) (Resolution, Verdict, error) {
	track, _ := r.reg.Rules().Journal(q.Venue)

	out := cur
	for _, t := range track.Tables {
		if !t.Match(cur.Year, q.Volume, q.Number) {
			continue
		}
		if t.Venue != "" {
			if e, ok := r.reg.Lookup(t.Venue); ok {
				out = fromEntry(r.reg, e, cur.Year)
				continue
			}
		}
		if t.Area != "" {
			if info, ok := r.reg.Area(t.Area); ok {
				out = withArea(out, info)
				if t.Venue != "" {
					out.Venue = t.Venue
				}
			}
		}
	}
	return out, Done, nil
}
