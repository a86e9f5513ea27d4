// Package engine attributes publication credit to tracked authors.
//
// An Engine consumes records one at a time (it is a stream.Handler),
// classifies each through the resolver, applies the configured filters
// and accumulates credit into a private ledger. Engines are not safe for
// concurrent use; parallel runs use one engine per worker and merge.
package engine

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ppiankov/pubcredit/internal/authors"
	"github.com/ppiankov/pubcredit/internal/ledger"
	"github.com/ppiankov/pubcredit/internal/model"
	"github.com/ppiankov/pubcredit/internal/resolve"
	"github.com/ppiankov/pubcredit/internal/stream"
)

// Options are the record filters and attribution policy
type Options struct {
	VenueSubstring    string
	StartYear         int
	EndYear           int
	IncludeNextTier   bool
	MinPages          int // 0 disables the page filter
	PageExemptVenues  []string
	TheoryParentAreas []string
}

// OptionsFromConfig extracts engine options from the application config
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		VenueSubstring:    cfg.Filter.VenueSubstring,
		StartYear:         cfg.Filter.StartYear,
		EndYear:           cfg.Filter.EndYear,
		IncludeNextTier:   cfg.Filter.IncludeNextTier,
		MinPages:          cfg.Filter.MinPages,
		PageExemptVenues:  cfg.Filter.PageExemptVenues,
		TheoryParentAreas: cfg.Registry.TheoryParentAreas,
	}
}

func (o Options) isTheory(parent string) bool {
	for _, t := range o.TheoryParentAreas {
		if strings.EqualFold(t, parent) {
			return true
		}
	}
	return false
}

func (o Options) pageExempt(venue string) bool {
	for _, v := range o.PageExemptVenues {
		if v == venue {
			return true
		}
	}
	return false
}

// Result is what an engine accumulated
type Result struct {
	Ledger *ledger.Ledger
	Areas  ledger.AreaTally
	Stats  Stats
}

// Engine accumulates credit for one stream (or one worker's share of it)
type Engine struct {
	resolver *resolve.Resolver
	tracked  *authors.Tracked
	opts     Options
	logger   *slog.Logger

	ledger *ledger.Ledger
	areas  ledger.AreaTally
	stats  Stats
}

// New creates an engine with an empty ledger. A nil tracked set credits
// every author.
func New(res *resolve.Resolver, tracked *authors.Tracked, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		resolver: res,
		tracked:  tracked,
		opts:     opts,
		logger:   logger,
		ledger:   ledger.New(),
		areas:    ledger.AreaTally{},
		stats:    NewStats(),
	}
}

// Handle processes one record. Per-record problems drop the record and
// are counted; Handle never fails, so it can be passed to Source.Each.
func (e *Engine) Handle(rec *model.PublicationRecord) error {
	e.stats.Seen++
	if reason, detail := e.handle(rec); reason != "" {
		e.stats.drop(reason)
		e.logger.Debug("record dropped", "key", rec.Key, "venue", rec.Venue, "reason", reason, "detail", detail)
	}
	return nil
}

// Malformed counts a record the stream could not decode
func (e *Engine) Malformed(m *stream.MalformedError) {
	e.stats.Seen++
	e.stats.drop(DropMalformed)
	e.logger.Debug("record dropped", "key", m.Key, "reason", DropMalformed, "detail", m.Reason)
}

// Result returns the accumulated state. The engine must not be used
// afterwards.
func (e *Engine) Result() Result {
	return Result{Ledger: e.ledger, Areas: e.areas, Stats: e.stats}
}

func (e *Engine) handle(rec *model.PublicationRecord) (DropReason, string) {
	names := authors.Normalize(rec.Authors)
	if len(names) == 0 {
		return DropMalformed, "no authors"
	}

	if rec.Venue == "" {
		return DropUnresolvable, "no venue"
	}
	if e.opts.VenueSubstring != "" && !strings.Contains(rec.Venue, e.opts.VenueSubstring) {
		return DropFiltered, "venue filter"
	}

	year, err := strconv.Atoi(strings.TrimSpace(rec.Year))
	if err != nil {
		return DropMalformed, "year " + strconv.Quote(rec.Year)
	}

	res, err := e.resolver.Resolve(resolve.Query{
		Venue:  rec.Venue,
		Year:   year,
		Volume: rec.Volume,
		Number: rec.Number,
	})
	switch {
	case errors.Is(err, resolve.ErrAmbiguous):
		return DropAmbiguous, err.Error()
	case err != nil:
		return DropUnresolvable, err.Error()
	}

	if res.Year < e.opts.StartYear || res.Year > e.opts.EndYear {
		return DropFiltered, "year " + strconv.Itoa(res.Year)
	}
	if res.Tier == model.TierNext && !e.opts.IncludeNextTier {
		return DropNextTier, res.Venue
	}
	if e.opts.MinPages > 0 && !e.opts.pageExempt(res.Venue) {
		n := PageCount(rec.Pages)
		if n < 0 {
			return DropInvalidPages, strconv.Quote(rec.Pages)
		}
		if n < e.opts.MinPages {
			return DropFiltered, "short paper"
		}
	}

	e.areas.Add(res.Area, res.Year)

	if !e.attribute(names, res) {
		return DropNoTracked, ""
	}
	e.stats.Accepted++
	return "", ""
}

// attribute applies the credit rules and reports whether any tracked
// author was credited
func (e *Engine) attribute(names []string, res resolve.Resolution) bool {
	share := ledger.Share(len(names))
	credited := false

	for i, name := range names {
		if !e.tracked.Contains(name) {
			continue
		}
		d := ledger.Delta{All: 1, Weighted: share}
		if i == 0 {
			if e.opts.isTheory(res.ParentArea) {
				// alphabetical author order carries no position signal
				d.First = share
			} else {
				d.First = ledger.One
			}
		}
		e.ledger.Accumulate(ledger.Key{Author: name, Area: res.Area, Year: res.Year}, d)
		credited = true
	}
	return credited
}

// PageCount returns the number of pages in a "start-end" range, or -1
// when the range cannot be read. Article-number prefixes such as
// "12:1-12:20" are ignored.
func PageCount(pages string) int {
	parts := strings.Split(strings.TrimSpace(pages), "-")
	if len(parts) != 2 {
		return -1
	}
	start, err1 := strconv.Atoi(afterColon(parts[0]))
	end, err2 := strconv.Atoi(afterColon(parts[1]))
	if err1 != nil || err2 != nil || end < start {
		return -1
	}
	return end - start + 1
}

func afterColon(s string) string {
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
