package engine

import (
	"log/slog"
	"strings"
)

// DropReason explains why a record earned no credit
type DropReason string

const (
	DropUnresolvable DropReason = "unresolvable_venue"
	DropMalformed    DropReason = "malformed_record"
	DropAmbiguous    DropReason = "ambiguous_venue"
	DropFiltered     DropReason = "filtered"
	DropNextTier     DropReason = "next_tier"
	DropInvalidPages DropReason = "invalid_pages"
	DropNoTracked    DropReason = "no_tracked_author"
)

// DropReasons lists every reason in report order
var DropReasons = []DropReason{
	DropUnresolvable,
	DropMalformed,
	DropAmbiguous,
	DropFiltered,
	DropNextTier,
	DropInvalidPages,
	DropNoTracked,
}

// Stats counts what happened to the records of a run
type Stats struct {
	Seen     int64
	Accepted int64
	Dropped  map[DropReason]int64
}

// NewStats returns zeroed stats
func NewStats() Stats {
	return Stats{Dropped: make(map[DropReason]int64)}
}

func (s *Stats) drop(r DropReason) {
	if s.Dropped == nil {
		s.Dropped = make(map[DropReason]int64)
	}
	s.Dropped[r]++
}

// Merge adds o into s
func (s *Stats) Merge(o Stats) {
	s.Seen += o.Seen
	s.Accepted += o.Accepted
	for r, n := range o.Dropped {
		if s.Dropped == nil {
			s.Dropped = make(map[DropReason]int64)
		}
		s.Dropped[r] += n
	}
}

// TotalDropped sums every drop reason
func (s Stats) TotalDropped() int64 {
	var n int64
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

const (
	counterSeen     = "seen"
	counterAccepted = "accepted"
	counterDropped  = "dropped."
)

// Counters flattens stats for storage in a ledger shard
func (s Stats) Counters() map[string]int64 {
	out := map[string]int64{counterSeen: s.Seen, counterAccepted: s.Accepted}
	for r, n := range s.Dropped {
		out[counterDropped+string(r)] = n
	}
	return out
}

// StatsFromCounters is the inverse of Counters
func StatsFromCounters(c map[string]int64) Stats {
	s := NewStats()
	for k, v := range c {
		switch {
		case k == counterSeen:
			s.Seen = v
		case k == counterAccepted:
			s.Accepted = v
		case strings.HasPrefix(k, counterDropped):
			s.Dropped[DropReason(strings.TrimPrefix(k, counterDropped))] = v
		}
	}
	return s
}

// LogValue renders stats as a slog group
func (s Stats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("seen", s.Seen),
		slog.Int64("accepted", s.Accepted),
		slog.Int64("dropped", s.TotalDropped()),
	}
	for _, r := range DropReasons {
		if n := s.Dropped[r]; n > 0 {
			attrs = append(attrs, slog.Int64(string(r), n))
		}
	}
	return slog.GroupValue(attrs...)
}
