package score

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/pubcredit/internal/ledger"
	"github.com/ppiankov/pubcredit/internal/model"
	"github.com/ppiankov/pubcredit/internal/registry"
)

// FieldHeader is the column layout of WriteFieldCSV
var FieldHeader = []string{"ParentArea", "Year", "PublicationCount"}

// FieldRow is a per-field publication count
type FieldRow struct {
	Field string
	Year  int
	Count int64
}

// AggregateFields rolls an area tally up to fields. Next-tier areas are
// skipped unless included and areas unknown to the registry are dropped.
// Rows are sorted by field, then year.
func AggregateFields(rows []ledger.AreaRow, reg *registry.Registry, includeNextTier bool) []FieldRow {
	type key struct {
		field string
		year  int
	}
	sums := make(map[key]int64)
	for _, r := range rows {
		info, ok := reg.Area(r.Area)
		if !ok {
			continue
		}
		if info.Tier == model.TierNext && !includeNextTier {
			continue
		}
		sums[key{info.Field, r.Year}] += r.Count
	}

	out := make([]FieldRow, 0, len(sums))
	for k, n := range sums {
		out = append(out, FieldRow{Field: k.field, Year: k.year, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// WriteFieldCSV writes aggregated field counts
func WriteFieldCSV(w io.Writer, rows []FieldRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FieldHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Field, strconv.Itoa(r.Year), strconv.FormatInt(r.Count, 10)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadAreaCSV parses an emitted area tally
func ReadAreaCSV(r io.Reader) ([]ledger.AreaRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != len(ledger.AreaHeader) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(h), ledger.AreaHeader[i]) {
			return nil, fmt.Errorf("unexpected header %v", header)
		}
	}

	var rows []ledger.AreaRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		year, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: year: %w", line, err)
		}
		n, err := strconv.ParseInt(rec[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: count: %w", line, err)
		}
		rows = append(rows, ledger.AreaRow{AreaYear: ledger.AreaYear{Area: rec[0], Year: year}, Count: n})
	}
}
