// Package authors turns the raw author field of a record into an ordered
// list of names and holds the set of tracked authors.
package authors

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/pubcredit/internal/model"
)

// Normalize returns the author names of f in order. Names are trimmed;
// empty names are skipped. Absent authors yield nil.
func Normalize(f model.AuthorField) []string {
	switch f.Kind {
	case model.AuthorsSingle:
		return appendName(nil, f.Name)
	case model.AuthorsSingleStructured:
		if f.Node == nil {
			return nil
		}
		return appendName(nil, f.Node.Text)
	case model.AuthorsSequence:
		names := make([]string, 0, len(f.Items))
		for _, item := range f.Items {
			if item.Node != nil {
				names = appendName(names, item.Node.Text)
				continue
			}
			names = appendName(names, item.Name)
		}
		if len(names) == 0 {
			return nil
		}
		return names
	default:
		return nil
	}
}

func appendName(names []string, raw string) []string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return names
	}
	return append(names, name)
}

// Tracked is the set of authors credit is recorded for. A nil *Tracked
// tracks everyone.
type Tracked struct {
	names map[string]struct{}
}

// NewTracked builds a set from exact name strings
func NewTracked(names ...string) *Tracked {
	t := &Tracked{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			t.names[n] = struct{}{}
		}
	}
	return t
}

// Contains reports whether name is tracked
func (t *Tracked) Contains(name string) bool {
	if t == nil {
		return true
	}
	_, ok := t.names[name]
	return ok
}

// Names returns the tracked names in no particular order
func (t *Tracked) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.names))
	for n := range t.names {
		out = append(out, n)
	}
	return out
}

// Len returns the number of tracked names; -1 for the nil set
func (t *Tracked) Len() int {
	if t == nil {
		return -1
	}
	return len(t.names)
}

// LoadTracked reads a CSV file with a "name" column (faculty-affiliations
// layout). Other columns are ignored.
func LoadTracked(path string) (*Tracked, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tracked authors: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := ReadTracked(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadTracked reads the tracked-author CSV layout from r
func ReadTracked(r io.Reader) (*Tracked, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "name") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, errors.New(`missing column "name"`)
	}

	var names []string
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if col < len(row) {
			names = append(names, row[col])
		}
	}
	return NewTracked(names...), nil
}
