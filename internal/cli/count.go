package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pubcredit/internal/engine"
	"github.com/ppiankov/pubcredit/internal/ledger"
	"github.com/ppiankov/pubcredit/internal/registry"
	"github.com/ppiankov/pubcredit/internal/resolve"
	"github.com/ppiankov/pubcredit/internal/worker"
)

var (
	inputsFrom  string
	trackedPath string
	countOut    outputs
)

// countCmd represents the count command
var countCmd = &cobra.Command{
	Use:   "count [dump...]",
	Short: "Build a credit ledger from one or more dumps",
	Long: `Count streams DBLP dumps (plain, gzip, zstd or lz4; "-" reads stdin),
resolves every venue through the registry and writes the credit ledger.

One dump is processed in order, or fanned out to --workers engines.
Several dumps are independent shards processed on a worker pool and
merged in argument order; the ledger is identical either way.

Nothing is written when a dump is truncated or unreadable.

Example:
  pubcredit count dblp.xml.gz -o ledger.csv
  pubcredit count dblp.xml.gz --tracked faculty.csv -o ledger.csv --summary-out summary.csv
  pubcredit count --inputs-from shards.txt --workers 8 --shard-out run.cbor -o ledger.csv
  pubcredit count dblp.xml.gz --start-year 2010 --end-year 2020 --include-next-tier -o -`,
	RunE: runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)

	f := countCmd.Flags()
	f.StringVar(&inputsFrom, "inputs-from", "", "file listing dump paths, one per line")
	f.StringVar(&trackedPath, "tracked", "", "CSV with a name column; credit only these authors (default: everyone)")

	f.StringVarP(&countOut.ledger, "output", "o", "", "ledger CSV path (\"-\" for stdout)")
	f.StringVar(&countOut.areas, "area-out", "", "per-area publication tally CSV")
	f.StringVar(&countOut.fields, "field-out", "", "per-field publication tally CSV")
	f.StringVar(&countOut.summary, "summary-out", "", "per-author summary CSV")
	f.StringVar(&countOut.shard, "shard-out", "", "CBOR ledger shard for a later merge")
	f.StringVar(&countOut.coefficients, "coefficients", "", "per-field coefficient CSV for the summary")
	f.BoolVar(&countOut.dilute, "dilute", false, "divide summary credit by each author's number of fields")

	f.String("registry", "", "venue registry (YAML or CSV; default: embedded)")
	f.String("venue", "", "only count venues containing this substring")
	f.Int("start-year", 0, "first year counted")
	f.Int("end-year", 0, "last year counted")
	f.Bool("include-next-tier", false, "count next-tier venues")
	f.Int("min-pages", 0, "drop papers shorter than this (0 disables)")
	f.Int("workers", 1, "parallel engines for one dump, pool size for several")
	f.Int("precision", 0, "decimals in fractional columns")
	f.Bool("digest", false, "write a blake3 digest next to each output")
}

var countFlagKeys = map[string]string{
	"registry":          "registry.path",
	"venue":             "filter.venue_substring",
	"start-year":        "filter.start_year",
	"end-year":          "filter.end_year",
	"include-next-tier": "filter.include_next_tier",
	"min-pages":         "filter.min_pages",
	"workers":           "engine.workers",
	"precision":         "output.precision",
	"digest":            "output.digest",
}

func runCount(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, countFlagKeys); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if countOut.ledger == "" && countOut.shard == "" && countOut.summary == "" {
		return errors.New("nothing to write: set --output, --shard-out or --summary-out")
	}

	inputs := append([]string(nil), args...)
	if inputsFrom != "" {
		more, err := worker.ReadPathsFromFile(inputsFrom)
		if err != nil {
			return fmt.Errorf("read inputs: %w", err)
		}
		inputs = append(inputs, more...)
	}
	if len(inputs) == 0 {
		return errors.New("no input: pass dump paths or --inputs-from")
	}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	tracked, err := loadTracked(trackedPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("counting",
		"inputs", len(inputs),
		"workers", cfg.Engine.Workers,
		"venues", reg.Len(),
		"years", fmt.Sprintf("%d-%d", cfg.Filter.StartYear, cfg.Filter.EndYear),
		"next_tier", cfg.Filter.IncludeNextTier)

	res, err := engine.Run(ctx, inputs, engine.RunConfig{
		Resolver: resolve.New(reg),
		Tracked:  tracked,
		Options:  engine.OptionsFromConfig(cfg),
		Workers:  cfg.Engine.Workers,
		Progress: cfg.Engine.ProgressInterval,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}
	slog.Info("run complete", "stats", res.Stats, "cells", res.Ledger.Len())

	shard := ledger.Shard{
		Ledger:   res.Ledger,
		Areas:    res.Areas,
		Sources:  inputs,
		Counters: res.Stats.Counters(),
	}
	return emit(cfg, reg, tracked, shard, countOut)
}
