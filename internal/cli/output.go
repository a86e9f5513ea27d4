package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ppiankov/pubcredit/internal/authors"
	"github.com/ppiankov/pubcredit/internal/ledger"
	"github.com/ppiankov/pubcredit/internal/model"
	"github.com/ppiankov/pubcredit/internal/registry"
	"github.com/ppiankov/pubcredit/internal/score"
)

// outputs names every artifact a run may publish; empty paths are skipped
type outputs struct {
	ledger       string
	areas        string
	fields       string
	summary      string
	shard        string
	coefficients string
	dilute       bool
}

// publish writes path atomically; "-" writes to stdout
func publish(path string, digest bool, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}
	p, err := ledger.Publish(path, write)
	if err != nil {
		return err
	}
	slog.Info("published", "path", p.Path, "bytes", p.Bytes, "blake3", p.Digest)
	if digest {
		if err := ledger.WriteDigest(p); err != nil {
			return fmt.Errorf("write digest: %w", err)
		}
	}
	return nil
}

// emit publishes the artifacts of a finished run. The summary
// coefficients are read before anything is written, so a bad
// coefficient file publishes nothing.
func emit(cfg *model.Config, reg *registry.Registry, tracked *authors.Tracked, shard ledger.Shard, out outputs) error {
	var coef score.Coefficients
	if out.summary != "" {
		var err error
		if coef, err = score.LoadCoefficients(out.coefficients); err != nil {
			return err
		}
	}

	snap := shard.Ledger.Snapshot()
	precision := cfg.Output.Precision

	if out.ledger != "" {
		if err := publish(out.ledger, cfg.Output.Digest, func(w io.Writer) error {
			return ledger.WriteCSV(w, snap, precision)
		}); err != nil {
			return err
		}
	}

	if out.areas != "" {
		if err := publish(out.areas, cfg.Output.Digest, func(w io.Writer) error {
			return ledger.WriteAreaCSV(w, shard.Areas)
		}); err != nil {
			return err
		}
	}

	if out.fields != "" {
		rows := score.AggregateFields(shard.Areas.Rows(), reg, cfg.Filter.IncludeNextTier)
		if err := publish(out.fields, cfg.Output.Digest, func(w io.Writer) error {
			return score.WriteFieldCSV(w, rows)
		}); err != nil {
			return err
		}
	}

	if out.summary != "" {
		scorer := score.NewScorer(reg, score.Options{
			IncludeNextTier:   cfg.Filter.IncludeNextTier,
			Dilute:            out.dilute,
			TheoryParentAreas: cfg.Registry.TheoryParentAreas,
			Coefficients:      coef,
		})
		scores := scorer.Calculate(snap.Rows, tracked)
		if err := publish(out.summary, cfg.Output.Digest, func(w io.Writer) error {
			return score.WriteCSV(w, scores, precision)
		}); err != nil {
			return err
		}
	}

	if out.shard != "" {
		if err := publish(out.shard, false, func(w io.Writer) error {
			return ledger.EncodeShard(w, shard)
		}); err != nil {
			return err
		}
	}
	return nil
}

func loadTracked(path string) (*authors.Tracked, error) {
	if path == "" {
		return nil, nil
	}
	t, err := authors.LoadTracked(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("tracked authors loaded", "path", path, "count", t.Len())
	return t, nil
}
