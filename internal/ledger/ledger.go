// Package ledger holds the per-(author, area, year) credit table.
//
// Fractional credit is kept exactly: every increment is a fraction 1/N
// (or 1/1), and a Credit sums numerators per denominator. Addition is
// integer addition, so the final state does not depend on the order
// records arrive in, nor on how shards are merged. Conversion to float
// happens once, in ascending denominator order, when a snapshot is taken.
package ledger

import (
	"fmt"
	"sort"
)

// Key identifies one ledger cell
type Key struct {
	Author string `cbor:"1,keyasint"`
	Area   string `cbor:"2,keyasint"`
	Year   int    `cbor:"3,keyasint"`
}

// Less orders keys by author, area, then year. Strings compare bytewise.
func (k Key) Less(o Key) bool {
	if k.Author != o.Author {
		return k.Author < o.Author
	}
	if k.Area != o.Area {
		return k.Area < o.Area
	}
	return k.Year < o.Year
}

// Frac is a single increment n/d with d > 0
type Frac struct {
	Num int64
	Den int64
}

// One is the whole unit
var One = Frac{Num: 1, Den: 1}

// Share returns 1/n
func Share(n int) Frac {
	return Frac{Num: 1, Den: int64(n)}
}

// IsZero reports whether f adds nothing
func (f Frac) IsZero() bool { return f.Num == 0 }

// Credit is an exact sum of fractions, stored as numerator sums keyed by
// denominator. The zero value is an empty sum.
type Credit map[int64]int64

// Add adds f to c in place. c must be non-nil.
func (c Credit) Add(f Frac) {
	if f.Num == 0 {
		return
	}
	if f.Den <= 0 {
		panic(fmt.Sprintf("ledger: invalid denominator %d", f.Den))
	}
	c[f.Den] += f.Num
}

// AddCredit adds every term of o to c in place
func (c Credit) AddCredit(o Credit) {
	for d, n := range o {
		c[d] += n
	}
}

// Float converts the sum. Terms are added in ascending denominator order
// so equal credits always produce the same float.
func (c Credit) Float() float64 {
	if len(c) == 0 {
		return 0
	}
	dens := make([]int64, 0, len(c))
	for d := range c {
		dens = append(dens, d)
	}
	sort.Slice(dens, func(i, j int) bool { return dens[i] < dens[j] })

	var sum float64
	for _, d := range dens {
		sum += float64(c[d]) / float64(d)
	}
	return sum
}

func (c Credit) clone() Credit {
	out := make(Credit, len(c))
	for d, n := range c {
		out[d] = n
	}
	return out
}

// Cell is the exact state of one key
type Cell struct {
	First    Credit `cbor:"1,keyasint,omitempty"`
	All      int64  `cbor:"2,keyasint,omitempty"`
	Weighted Credit `cbor:"3,keyasint,omitempty"`
}

func newCell() *Cell {
	return &Cell{First: Credit{}, Weighted: Credit{}}
}

func (c *Cell) add(d Delta) {
	c.First.Add(d.First)
	c.All += d.All
	c.Weighted.Add(d.Weighted)
}

func (c *Cell) merge(o *Cell) {
	c.First.AddCredit(o.First)
	c.All += o.All
	c.Weighted.AddCredit(o.Weighted)
}

// Delta is one record's contribution to one cell
type Delta struct {
	First    Frac
	All      int64
	Weighted Frac
}

// Ledger is the mutable credit table. It is not safe for concurrent use;
// parallel runs give each worker its own ledger and Merge at the end.
type Ledger struct {
	cells map[Key]*Cell
}

// New returns an empty ledger
func New() *Ledger {
	return &Ledger{cells: make(map[Key]*Cell)}
}

// Accumulate adds d to the cell at k
func (l *Ledger) Accumulate(k Key, d Delta) {
	c, ok := l.cells[k]
	if !ok {
		c = newCell()
		l.cells[k] = c
	}
	c.add(d)
}

// Merge adds every cell of other into l. other is left unchanged.
func (l *Ledger) Merge(other *Ledger) {
	for k, oc := range other.cells {
		c, ok := l.cells[k]
		if !ok {
			c = newCell()
			l.cells[k] = c
		}
		c.merge(oc)
	}
}

// Len returns the number of cells
func (l *Ledger) Len() int { return len(l.cells) }

// Cell returns a copy of the exact cell at k
func (l *Ledger) Cell(k Key) (Cell, bool) {
	c, ok := l.cells[k]
	if !ok {
		return Cell{}, false
	}
	return Cell{First: c.First.clone(), All: c.All, Weighted: c.Weighted.clone()}, true
}

// Equal reports whether both ledgers hold exactly the same credit
func (l *Ledger) Equal(o *Ledger) bool {
	if len(l.cells) != len(o.cells) {
		return false
	}
	for k, c := range l.cells {
		oc, ok := o.cells[k]
		if !ok || c.All != oc.All || !creditEqual(c.First, oc.First) || !creditEqual(c.Weighted, oc.Weighted) {
			return false
		}
	}
	return true
}

func creditEqual(a, b Credit) bool {
	if len(a) != len(b) {
		return false
	}
	for d, n := range a {
		if b[d] != n {
			return false
		}
	}
	return true
}

// Row is one emitted line of a snapshot
type Row struct {
	Key
	First    float64
	All      int64
	Weighted float64
}

// Snapshot is an immutable, sorted view of a ledger
type Snapshot struct {
	Rows []Row
}

// Snapshot converts every cell and sorts rows by key
func (l *Ledger) Snapshot() Snapshot {
	rows := make([]Row, 0, len(l.cells))
	for k, c := range l.cells {
		rows = append(rows, Row{Key: k, First: c.First.Float(), All: c.All, Weighted: c.Weighted.Float()})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key.Less(rows[j].Key) })
	return Snapshot{Rows: rows}
}

// AreaYear keys the publication tally
type AreaYear struct {
	Area string `cbor:"1,keyasint"`
	Year int    `cbor:"2,keyasint"`
}

// AreaTally counts accepted publications per (area, year)
type AreaTally map[AreaYear]int64

// Add counts one publication
func (t AreaTally) Add(area string, year int) {
	t[AreaYear{Area: area, Year: year}]++
}

// Merge adds o into t
func (t AreaTally) Merge(o AreaTally) {
	for k, n := range o {
		t[k] += n
	}
}

// AreaRow is one emitted tally line
type AreaRow struct {
	AreaYear
	Count int64
}

// Rows returns the tally sorted by area, then year
func (t AreaTally) Rows() []AreaRow {
	rows := make([]AreaRow, 0, len(t))
	for k, n := range t {
		rows = append(rows, AreaRow{AreaYear: k, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Area != rows[j].Area {
			return rows[i].Area < rows[j].Area
		}
		return rows[i].Year < rows[j].Year
	})
	return rows
}
