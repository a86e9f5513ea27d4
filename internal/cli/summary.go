package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pubcredit/internal/ledger"
	"github.com/ppiankov/pubcredit/internal/registry"
	"github.com/ppiankov/pubcredit/internal/score"
)

var (
	summaryTracked string
	summaryCoef    string
	summaryOut     string
	summaryDilute  bool
	summaryAreas   string
	summaryFields  string
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary <ledger.csv>",
	Short: "Score an emitted ledger per author",
	Long: `Summary reads a ledger CSV and writes one line per author: points
weighted by per-field coefficients, the number of fields, the first year
and the dominant parent area.

With --area-in, the area tally of the same run is also rolled up to
fields and written to --field-out.

Example:
  pubcredit summary ledger.csv --tracked faculty.csv --coefficients points.csv -o summary.csv
  pubcredit summary ledger.csv --dilute --area-in areas.csv --field-out fields.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	f := summaryCmd.Flags()
	f.StringVar(&summaryTracked, "tracked", "", "CSV with a name column; only these authors, zero-filled")
	f.StringVar(&summaryCoef, "coefficients", "", "per-field coefficient CSV (default: 1.0 for every field)")
	f.StringVarP(&summaryOut, "output", "o", "-", "summary CSV path (\"-\" for stdout)")
	f.BoolVar(&summaryDilute, "dilute", false, "divide credit by each author's number of fields")
	f.StringVar(&summaryAreas, "area-in", "", "area tally CSV written by count --area-out")
	f.StringVar(&summaryFields, "field-out", "", "per-field tally CSV (requires --area-in)")
	f.String("registry", "", "venue registry (YAML or CSV; default: embedded)")
	f.Bool("include-next-tier", false, "score next-tier areas")
	f.Int("precision", 0, "decimals in point columns")
	f.Bool("digest", false, "write a blake3 digest next to each output")
}

func runSummary(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"registry":          "registry.path",
		"include-next-tier": "filter.include_next_tier",
		"precision":         "output.precision",
		"digest":            "output.digest",
	}); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if (summaryAreas == "") != (summaryFields == "") {
		return fmt.Errorf("--area-in and --field-out go together")
	}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	tracked, err := loadTracked(summaryTracked)
	if err != nil {
		return err
	}
	coef, err := score.LoadCoefficients(summaryCoef)
	if err != nil {
		return err
	}

	rows, err := readLedger(args[0])
	if err != nil {
		return err
	}

	var fields []score.FieldRow
	if summaryAreas != "" {
		areas, err := readAreas(summaryAreas)
		if err != nil {
			return err
		}
		fields = score.AggregateFields(areas, reg, cfg.Filter.IncludeNextTier)
	}

	scorer := score.NewScorer(reg, score.Options{
		IncludeNextTier:   cfg.Filter.IncludeNextTier,
		Dilute:            summaryDilute,
		TheoryParentAreas: cfg.Registry.TheoryParentAreas,
		Coefficients:      coef,
	})
	scores := scorer.Calculate(rows, tracked)

	if err := publish(summaryOut, cfg.Output.Digest, func(w io.Writer) error {
		return score.WriteCSV(w, scores, cfg.Output.Precision)
	}); err != nil {
		return err
	}
	if summaryFields != "" {
		return publish(summaryFields, cfg.Output.Digest, func(w io.Writer) error {
			return score.WriteFieldCSV(w, fields)
		})
	}
	return nil
}

func readLedger(path string) ([]ledger.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := ledger.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func readAreas(path string) ([]ledger.AreaRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open area tally: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := score.ReadAreaCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}
