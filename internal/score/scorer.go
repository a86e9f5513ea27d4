// Package score turns an emitted ledger into per-author totals.
//
// Each ledger row is weighted by the coefficient of its field, theory
// rows use weighted credit for first-author points, and an author's
// credit can be diluted by the number of distinct fields they publish
// in. The dominant parent area is the one holding most of the author's
// records.
package score

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/pubcredit/internal/authors"
	"github.com/ppiankov/pubcredit/internal/ledger"
	"github.com/ppiankov/pubcredit/internal/model"
	"github.com/ppiankov/pubcredit/internal/registry"
)

// Coefficients map a field to its credit multiplier. A nil map weights
// every field 1.0; otherwise unlisted fields score zero.
type Coefficients map[string]float64

// Of returns the multiplier of field
func (c Coefficients) Of(field string) float64 {
	if c == nil {
		return 1
	}
	return c[strings.ToLower(field)]
}

// Options control scoring
type Options struct {
	IncludeNextTier   bool
	Dilute            bool
	TheoryParentAreas []string
	Coefficients      Coefficients
}

// AuthorScore is one line of the per-author view
type AuthorScore struct {
	Name               string
	First              float64
	All                float64
	Weighted           float64
	Fields             int // distinct fields in the footprint
	StartYear          int // 0 when the author has no rows
	DominantParentArea string
}

// Scorer computes per-author totals against a registry
type Scorer struct {
	reg  *registry.Registry
	opts Options
}

// NewScorer creates a scorer
func NewScorer(reg *registry.Registry, opts Options) *Scorer {
	return &Scorer{reg: reg, opts: opts}
}

type footprint struct {
	rows    []classified
	fields  map[string]struct{}
	parents map[string]int64
	start   int
}

type classified struct {
	row  ledger.Row
	info model.AreaInfo
}

// Calculate scores rows. Rows whose area is unknown to the registry are
// skipped, as are next-tier rows unless included. Every tracked name
// appears in the result, with zeros when it has no rows; a nil tracked
// set reports only authors with rows. Results are sorted by name.
func (s *Scorer) Calculate(rows []ledger.Row, tracked *authors.Tracked) []AuthorScore {
	byAuthor := s.collect(rows, tracked)

	names := make(map[string]struct{}, len(byAuthor))
	for name := range byAuthor {
		names[name] = struct{}{}
	}
	for _, name := range tracked.Names() {
		names[name] = struct{}{}
	}

	out := make([]AuthorScore, 0, len(names))
	for name := range names {
		fp, ok := byAuthor[name]
		if !ok {
			out = append(out, AuthorScore{Name: name})
			continue
		}
		out = append(out, s.calculateAuthor(name, fp))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scorer) collect(rows []ledger.Row, tracked *authors.Tracked) map[string]*footprint {
	byAuthor := make(map[string]*footprint)
	for _, r := range rows {
		if !tracked.Contains(r.Author) {
			continue
		}
		info, ok := s.reg.Area(r.Area)
		if !ok {
			continue
		}
		if info.Tier == model.TierNext && !s.opts.IncludeNextTier {
			continue
		}

		fp, ok := byAuthor[r.Author]
		if !ok {
			fp = &footprint{fields: map[string]struct{}{}, parents: map[string]int64{}, start: r.Year}
			byAuthor[r.Author] = fp
		}
		fp.rows = append(fp.rows, classified{row: r, info: info})
		fp.fields[info.Field] = struct{}{}
		fp.parents[info.ParentArea] += r.All
		if r.Year < fp.start {
			fp.start = r.Year
		}
	}
	return byAuthor
}

func (s *Scorer) calculateAuthor(name string, fp *footprint) AuthorScore {
	// the dilution factor covers the whole footprint and is fixed per author
	dilution := 1.0
	if s.opts.Dilute && len(fp.fields) > 0 {
		dilution = float64(len(fp.fields))
	}

	res := AuthorScore{
		Name:               name,
		Fields:             len(fp.fields),
		StartYear:          fp.start,
		DominantParentArea: dominant(fp.parents),
	}
	for _, c := range fp.rows {
		coef := s.opts.Coefficients.Of(c.info.Field)
		if coef == 0 {
			continue
		}
		first := c.row.First
		if s.isTheory(c.info.ParentArea) {
			first = c.row.Weighted
		}
		res.First += first * coef / dilution
		res.All += float64(c.row.All) * coef / dilution
		res.Weighted += c.row.Weighted * coef / dilution
	}
	return res
}

func (s *Scorer) isTheory(parent string) bool {
	for _, t := range s.opts.TheoryParentAreas {
		if strings.EqualFold(t, parent) {
			return true
		}
	}
	return false
}

// dominant picks the parent area with the largest count; ties go to the
// lexicographically smallest name
func dominant(counts map[string]int64) string {
	best := ""
	var bestN int64 = -1
	for parent, n := range counts {
		if n > bestN || (n == bestN && parent < best) {
			best, bestN = parent, n
		}
	}
	return best
}

// ReadCoefficients parses a CSV with an area column (Area, Field or
// ParentArea) and a points column (Points, ICLR Points or ICLRPoint).
// Area names are lower-cased; rows with unparseable points are skipped.
func ReadCoefficients(r io.Reader) (Coefficients, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	areaCol := findColumn(header, "area", "field", "parentarea")
	pointsCol := findColumn(header, "points", "iclr points", "iclrpoint")
	if areaCol < 0 || pointsCol < 0 {
		return nil, errors.New("coefficients need an area column and a points column")
	}

	coef := Coefficients{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return coef, nil
		}
		if err != nil {
			return nil, err
		}
		if areaCol >= len(rec) || pointsCol >= len(rec) {
			continue
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(rec[pointsCol]), 64)
		if err != nil {
			continue
		}
		coef[strings.ToLower(strings.TrimSpace(rec[areaCol]))] = p
	}
}

// LoadCoefficients reads a coefficients file; an empty path returns nil
func LoadCoefficients(path string) (Coefficients, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open coefficients: %w", err)
	}
	defer func() { _ = f.Close() }()

	c, err := ReadCoefficients(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func findColumn(header []string, names ...string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

// SummaryHeader is the column layout of WriteCSV
var SummaryHeader = []string{
	"name",
	"first_author_points",
	"all_author_points",
	"weighted_points",
	"num_fields",
	"start_year",
	"dominant_parent_area",
}

// WriteCSV writes scores with fixed precision
func WriteCSV(w io.Writer, scores []AuthorScore, precision int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, s := range scores {
		start := ""
		if s.StartYear != 0 {
			start = strconv.Itoa(s.StartYear)
		}
		rec := []string{
			s.Name,
			strconv.FormatFloat(s.First, 'f', precision, 64),
			strconv.FormatFloat(s.All, 'f', precision, 64),
			strconv.FormatFloat(s.Weighted, 'f', precision, 64),
			strconv.Itoa(s.Fields),
			start,
			s.DominantParentArea,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
