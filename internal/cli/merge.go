package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pubcredit/internal/engine"
	"github.com/ppiankov/pubcredit/internal/ledger"
	"github.com/ppiankov/pubcredit/internal/registry"
)

var (
	mergeTracked string
	mergeOut     outputs
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge <shard>...",
	Short: "Merge ledger shards written by count --shard-out",
	Long: `Merge reduces CBOR ledger shards into one ledger. Shards keep exact
credit, so merging shards equals counting all their dumps in one run.

Example:
  pubcredit merge 2019.cbor 2020.cbor -o ledger.csv --area-out areas.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	f := mergeCmd.Flags()
	f.StringVar(&mergeTracked, "tracked", "", "CSV with a name column; zero-fill these authors in the summary")
	f.StringVarP(&mergeOut.ledger, "output", "o", "-", "ledger CSV path (\"-\" for stdout)")
	f.StringVar(&mergeOut.areas, "area-out", "", "per-area publication tally CSV")
	f.StringVar(&mergeOut.fields, "field-out", "", "per-field publication tally CSV")
	f.StringVar(&mergeOut.summary, "summary-out", "", "per-author summary CSV")
	f.StringVar(&mergeOut.shard, "shard-out", "", "merged CBOR shard")
	f.StringVar(&mergeOut.coefficients, "coefficients", "", "per-field coefficient CSV for the summary")
	f.BoolVar(&mergeOut.dilute, "dilute", false, "divide summary credit by each author's number of fields")
	f.String("registry", "", "venue registry (YAML or CSV; default: embedded)")
	f.Int("precision", 0, "decimals in fractional columns")
	f.Bool("digest", false, "write a blake3 digest next to each output")
}

func runMerge(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"registry":  "registry.path",
		"precision": "output.precision",
		"digest":    "output.digest",
	}); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	tracked, err := loadTracked(mergeTracked)
	if err != nil {
		return err
	}

	shards := make([]ledger.Shard, 0, len(args))
	for _, path := range args {
		s, err := ledger.ReadShard(path)
		if err != nil {
			return err
		}
		shards = append(shards, s)
	}
	merged := ledger.MergeShards(shards...)

	slog.Info("shards merged",
		"shards", len(shards),
		"sources", len(merged.Sources),
		"cells", merged.Ledger.Len(),
		"stats", engine.StatsFromCounters(merged.Counters))

	return emit(cfg, reg, tracked, merged, mergeOut)
}
