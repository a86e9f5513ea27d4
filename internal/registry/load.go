package registry

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/pubcredit/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRegistry []byte

// File is the on-disk YAML layout of a registry
type File struct {
	Venues []model.VenueEntry `yaml:"venues"`
	Rules  RuleSet            `yaml:"rules"`
}

// Default returns the embedded CSRankings-style taxonomy
func Default() (*Registry, error) {
	reg, err := Parse(defaultRegistry)
	if err != nil {
		return nil, fmt.Errorf("embedded registry: %w", err)
	}
	return reg, nil
}

// DefaultRules returns the disambiguation tables of the embedded taxonomy
func DefaultRules() (RuleSet, error) {
	var f File
	if err := yaml.Unmarshal(defaultRegistry, &f); err != nil {
		return RuleSet{}, fmt.Errorf("embedded registry: %w", err)
	}
	return f.Rules, nil
}

// Load reads a registry from path. An empty path selects the embedded
// taxonomy. CSV files carry venues only and inherit the embedded rules.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		entries, err := ParseCSV(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rules, err := DefaultRules()
		if err != nil {
			return nil, err
		}
		return New(entries, rules)
	default:
		reg, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return reg, nil
	}
}

// Parse builds a registry from YAML
func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if len(f.Venues) == 0 {
		return nil, errors.New("registry has no venues")
	}
	return New(f.Venues, f.Rules)
}

// ParseCSV reads the conferences.csv layout:
// Conference,Area,ParentArea,NextTier with an optional Field column.
// Header names are matched case-insensitively.
func ParseCSV(r io.Reader) ([]model.VenueEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"conference", "area", "parentarea"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []model.VenueEntry
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		tier, err := model.ParseTier(get(row, "nexttier"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		entries = append(entries, model.VenueEntry{
			Venue:      get(row, "conference"),
			Area:       get(row, "area"),
			Field:      get(row, "field"),
			ParentArea: get(row, "parentarea"),
			Tier:       tier,
		})
	}

	return entries, nil
}

// Marshal renders a registry back to its YAML layout
func Marshal(r *Registry) ([]byte, error) {
	return yaml.Marshal(File{Venues: r.Entries(), Rules: r.Rules()})
}
