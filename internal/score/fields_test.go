package score

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ppiankov/pubcredit/internal/ledger"
)

func TestAggregateFields(t *testing.T) {
	tally := ledger.AreaTally{}
	tally.Add("x", 2020)
	tally.Add("x", 2020)
	tally.Add("nxt", 2020)
	tally.Add("y", 2019)
	tally.Add("unknown", 2019)

	rows := AggregateFields(tally.Rows(), testRegistry(t), false)
	want := []FieldRow{{"ai", 2019, 1}, {"sys", 2020, 2}}
	if len(rows) != len(want) {
		t.Fatalf("Expected %v, got %v", want, rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d: expected %v, got %v", i, want[i], rows[i])
		}
	}

	withNext := AggregateFields(tally.Rows(), testRegistry(t), true)
	if withNext[1].Count != 3 {
		t.Errorf("Expected sys 2020 count 3 with next tier, got %d", withNext[1].Count)
	}
}

func TestAreaCSV_RoundTrip(t *testing.T) {
	tally := ledger.AreaTally{}
	tally.Add("x", 2020)
	tally.Add("y", 2019)

	var buf bytes.Buffer
	if err := ledger.WriteAreaCSV(&buf, tally); err != nil {
		t.Fatalf("WriteAreaCSV: %v", err)
	}
	rows, err := ReadAreaCSV(&buf)
	if err != nil {
		t.Fatalf("ReadAreaCSV: %v", err)
	}
	if len(rows) != 2 || rows[0].Area != "x" || rows[1].Year != 2019 {
		t.Errorf("Unexpected rows %+v", rows)
	}

	var out bytes.Buffer
	if err := WriteFieldCSV(&out, AggregateFields(rows, testRegistry(t), false)); err != nil {
		t.Fatalf("WriteFieldCSV: %v", err)
	}
	want := "ParentArea,Year,PublicationCount\nai,2019,1\nsys,2020,1\n"
	if out.String() != want {
		t.Errorf("Unexpected output:\n%s", out.String())
	}
}

func TestReadAreaCSV_BadHeader(t *testing.T) {
	if _, err := ReadAreaCSV(strings.NewReader("a,b,c\n")); err == nil {
		t.Error("Expected header error")
	}
}
