package score

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/ppiankov/pubcredit/internal/authors"
	"github.com/ppiankov/pubcredit/internal/ledger"
	"github.com/ppiankov/pubcredit/internal/model"
	"github.com/ppiankov/pubcredit/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]model.VenueEntry{
		{Venue: "ABC", Area: "x", Field: "sys", ParentArea: "Systems"},
		{Venue: "DEF", Area: "y", Field: "ai", ParentArea: "AI"},
		{Venue: "STOC", Area: "stoc", Field: "act", ParentArea: "Theory"},
		{Venue: "NXT", Area: "nxt", Field: "sys", ParentArea: "Systems", Tier: model.TierNext},
	}, registry.RuleSet{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func row(author, area string, year int, first float64, all int64, weighted float64) ledger.Row {
	return ledger.Row{
		Key:      ledger.Key{Author: author, Area: area, Year: year},
		First:    first,
		All:      all,
		Weighted: weighted,
	}
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func find(t *testing.T, scores []AuthorScore, name string) AuthorScore {
	t.Helper()
	for _, s := range scores {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no score for %s", name)
	return AuthorScore{}
}

func TestScorer_Calculate_Basic(t *testing.T) {
	rows := []ledger.Row{
		row("Alice", "x", 2019, 1, 2, 0.5),
		row("Alice", "x", 2020, 0, 1, 0.25),
		row("Alice", "y", 2018, 1, 1, 1),
	}
	scores := NewScorer(testRegistry(t), Options{}).Calculate(rows, nil)

	if len(scores) != 1 {
		t.Fatalf("Expected 1 score, got %d", len(scores))
	}
	a := scores[0]
	if !almost(a.First, 2) || !almost(a.All, 4) || !almost(a.Weighted, 1.75) {
		t.Errorf("Unexpected totals %+v", a)
	}
	if a.Fields != 2 {
		t.Errorf("Expected 2 fields, got %d", a.Fields)
	}
	if a.StartYear != 2018 {
		t.Errorf("Expected start year 2018, got %d", a.StartYear)
	}
	if a.DominantParentArea != "Systems" {
		t.Errorf("Expected Systems, got %s", a.DominantParentArea)
	}
}

func TestScorer_Calculate_Coefficients(t *testing.T) {
	rows := []ledger.Row{
		row("Alice", "x", 2020, 1, 1, 1),
		row("Alice", "y", 2020, 1, 1, 0.5),
	}
	opts := Options{Coefficients: Coefficients{"sys": 2, "ai": 0.5}}
	a := NewScorer(testRegistry(t), opts).Calculate(rows, nil)[0]

	if !almost(a.First, 2.5) {
		t.Errorf("Expected first 2.5, got %f", a.First)
	}
	if !almost(a.All, 2.5) {
		t.Errorf("Expected all 2.5, got %f", a.All)
	}
	if !almost(a.Weighted, 2.25) {
		t.Errorf("Expected weighted 2.25, got %f", a.Weighted)
	}
}

func TestScorer_Calculate_UnlistedFieldScoresZero(t *testing.T) {
	rows := []ledger.Row{row("Alice", "y", 2020, 1, 1, 1)}
	a := NewScorer(testRegistry(t), Options{Coefficients: Coefficients{"sys": 1}}).Calculate(rows, nil)[0]

	if a.First != 0 || a.All != 0 || a.Weighted != 0 {
		t.Errorf("Expected zeros, got %+v", a)
	}
	// the footprint still counts the field
	if a.Fields != 1 || a.DominantParentArea != "AI" {
		t.Errorf("Unexpected footprint %+v", a)
	}
}

func TestScorer_Calculate_TheoryUsesWeighted(t *testing.T) {
	rows := []ledger.Row{row("Alice", "stoc", 2020, 1.0/3, 1, 1.0/3)}

	withTheory := NewScorer(testRegistry(t), Options{TheoryParentAreas: []string{"theory"}}).Calculate(rows, nil)[0]
	if !almost(withTheory.First, 1.0/3) {
		t.Errorf("Expected first 1/3, got %f", withTheory.First)
	}

	// a theory row stored with positional credit is still scored by weight
	rows[0].First = 1
	again := NewScorer(testRegistry(t), Options{TheoryParentAreas: []string{"Theory"}}).Calculate(rows, nil)[0]
	if !almost(again.First, 1.0/3) {
		t.Errorf("Expected first 1/3, got %f", again.First)
	}

	plain := NewScorer(testRegistry(t), Options{}).Calculate(rows, nil)[0]
	if !almost(plain.First, 1) {
		t.Errorf("Expected first 1 without theory areas, got %f", plain.First)
	}
}

func TestScorer_Calculate_Dilution(t *testing.T) {
	rows := []ledger.Row{
		row("Alice", "x", 2020, 1, 1, 1),
		row("Alice", "y", 2020, 1, 1, 1),
		row("Alice", "x", 2021, 1, 1, 1),
		row("Bob", "x", 2020, 1, 1, 1),
	}
	scores := NewScorer(testRegistry(t), Options{Dilute: true}).Calculate(rows, nil)

	alice := find(t, scores, "Alice")
	if !almost(alice.All, 1.5) {
		t.Errorf("Expected Alice all 1.5 (3 rows / 2 fields), got %f", alice.All)
	}
	bob := find(t, scores, "Bob")
	if !almost(bob.All, 1) {
		t.Errorf("Expected Bob all 1, got %f", bob.All)
	}
}

func TestScorer_Calculate_NextTier(t *testing.T) {
	rows := []ledger.Row{
		row("Alice", "nxt", 2020, 1, 1, 1),
		row("Alice", "x", 2020, 1, 1, 1),
	}

	excluded := NewScorer(testRegistry(t), Options{}).Calculate(rows, nil)[0]
	if !almost(excluded.All, 1) {
		t.Errorf("Expected next tier excluded, got all %f", excluded.All)
	}

	included := NewScorer(testRegistry(t), Options{IncludeNextTier: true}).Calculate(rows, nil)[0]
	if !almost(included.All, 2) {
		t.Errorf("Expected next tier included, got all %f", included.All)
	}
}

func TestScorer_Calculate_UnknownAreaSkipped(t *testing.T) {
	rows := []ledger.Row{row("Alice", "nowhere", 2020, 1, 1, 1)}
	scores := NewScorer(testRegistry(t), Options{}).Calculate(rows, nil)
	if len(scores) != 0 {
		t.Errorf("Expected no scores, got %+v", scores)
	}
}

func TestScorer_Calculate_DominantTieBreak(t *testing.T) {
	rows := []ledger.Row{
		row("Alice", "x", 2020, 0, 2, 1),
		row("Alice", "y", 2020, 0, 2, 1),
	}
	a := NewScorer(testRegistry(t), Options{}).Calculate(rows, nil)[0]
	if a.DominantParentArea != "AI" {
		t.Errorf("Expected tie to go to AI, got %s", a.DominantParentArea)
	}
}

func TestScorer_Calculate_TrackedZeroFilled(t *testing.T) {
	rows := []ledger.Row{
		row("Carol", "x", 2020, 1, 1, 1),
		row("Mallory", "x", 2020, 1, 1, 1),
	}
	tracked := authors.NewTracked("Carol", "Alice")
	scores := NewScorer(testRegistry(t), Options{}).Calculate(rows, tracked)

	if len(scores) != 2 {
		t.Fatalf("Expected 2 scores, got %+v", scores)
	}
	if scores[0].Name != "Alice" || scores[1].Name != "Carol" {
		t.Errorf("Expected sorted Alice, Carol; got %s, %s", scores[0].Name, scores[1].Name)
	}
	if scores[0].All != 0 || scores[0].DominantParentArea != "" {
		t.Errorf("Expected zero-filled Alice, got %+v", scores[0])
	}
}

func TestReadCoefficients(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Coefficients
	}{
		{"plain", "Area,Points\nsys,2\nAI,0.5\n", Coefficients{"sys": 2, "ai": 0.5}},
		{"points table", "ParentArea,ICLR Points,Other\nsys,3.25,x\n", Coefficients{"sys": 3.25}},
		{"bad value skipped", "Field,Points\nsys,n/a\nai,1\n", Coefficients{"ai": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCoefficients(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadCoefficients: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: expected %f, got %f", k, v, got[k])
				}
			}
		})
	}
}

func TestReadCoefficients_MissingColumns(t *testing.T) {
	if _, err := ReadCoefficients(strings.NewReader("Area,Weight\nsys,1\n")); err == nil {
		t.Error("Expected error for missing points column")
	}
}

func TestLoadCoefficients_EmptyPath(t *testing.T) {
	c, err := LoadCoefficients("")
	if err != nil || c != nil {
		t.Fatalf("Expected nil coefficients, got %v, %v", c, err)
	}
	if c.Of("anything") != 1 {
		t.Error("Expected nil coefficients to weight 1.0")
	}
}

func TestWriteCSV(t *testing.T) {
	scores := []AuthorScore{
		{Name: "Alice", First: 1.0 / 3, All: 2, Weighted: 0.5, Fields: 1, StartYear: 2019, DominantParentArea: "Theory"},
		{Name: "Bob"},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, scores, 3); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	want := "name,first_author_points,all_author_points,weighted_points,num_fields,start_year,dominant_parent_area\n" +
		"Alice,0.333,2.000,0.500,1,2019,Theory\n" +
		"Bob,0.000,0.000,0.000,0,,\n"
	if buf.String() != want {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}
}
