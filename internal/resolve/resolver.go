// Package resolve turns a raw (venue, year, volume, number) tuple into the
// venue, area and effective year a publication is credited to.
//
// Resolution is an ordered list of small, pure rules. The first rule
// matches the raw venue against the registry; each later rule may claim
// the record and finalize it. A rule that finds no table entry simply
// declines, so missing configuration never surfaces as an error.
package resolve

import (
	"errors"

	"github.com/ppiankov/pubcredit/internal/model"
	"github.com/ppiankov/pubcredit/internal/registry"
)

var (
	// ErrUnresolvable means the venue, or an umbrella sub-venue, is not registered
	ErrUnresolvable = errors.New("unresolvable venue")

	// ErrAmbiguous means an umbrella journal matched no mapping and has no fallback
	ErrAmbiguous = errors.New("ambiguous venue: no mapping matched")
)

// Query is the part of a record the rules look at
type Query struct {
	Venue  string
	Year   int
	Volume string
	Number string
}

// Resolution is the final classification of a record
type Resolution struct {
	Venue      string
	Area       string
	Field      string
	ParentArea string
	Tier       model.Tier
	Year       int
	Rule       string // name of the rule that finalized the result
}

// Verdict tells the resolver whether to keep going
type Verdict int

const (
	Continue Verdict = iota
	Done
)

// Rule is one disambiguation step
type Rule interface {
	Name() string
	// Applies is a pure predicate over the query and the result so far
	Applies(q Query, cur Resolution) bool
	// Apply transforms the result. An error drops the record.
	Apply(q Query, cur Resolution) (Resolution, Verdict, error)
}

// Resolver runs rules in priority order. It holds no mutable state and is
// safe for concurrent use.
type Resolver struct {
	rules []Rule
}

// New builds the standard rule chain over reg
func New(reg *registry.Registry) *Resolver {
	return NewWithRules(
		&registryMatch{reg: reg},
		&umbrellaSubVenue{reg: reg},
		&bundledJournal{reg: reg},
		&volumeTracked{reg: reg},
	)
}

// NewWithRules builds a resolver from an explicit chain
func NewWithRules(rules ...Rule) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve classifies q. It returns ErrUnresolvable or ErrAmbiguous
// (possibly wrapped) when the record must be dropped.
func (r *Resolver) Resolve(q Query) (Resolution, error) {
	cur := Resolution{Venue: q.Venue, Year: q.Year}
	for _, rule := range r.rules {
		if !rule.Applies(q, cur) {
			continue
		}
		next, verdict, err := rule.Apply(q, cur)
		if err != nil {
			return Resolution{}, err
		}
		cur = next
		cur.Rule = rule.Name()
		if verdict == Done {
			break
		}
	}
	if cur.Area == "" {
		// no rule classified the record; only possible with a custom chain
		return Resolution{}, ErrUnresolvable
	}
	return cur, nil
}

// fromEntry classifies by a registered venue, keeping the year
func fromEntry(reg *registry.Registry, e model.VenueEntry, year int) Resolution {
	res := Resolution{
		Venue:      e.Venue,
		Area:       e.Area,
		Field:      e.Field,
		ParentArea: e.ParentArea,
		Tier:       e.Tier,
		Year:       year,
	}
	if info, ok := reg.Area(e.Area); ok {
		res.Tier = info.Tier
	}
	return res
}

// withArea reclassifies cur into area, keeping venue and year
func withArea(cur Resolution, info model.AreaInfo) Resolution {
	cur.Area = info.Area
	cur.Field = info.Field
	cur.ParentArea = info.ParentArea
	cur.Tier = info.Tier
	return cur
}
