package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/pubcredit/internal/authors"
	"github.com/ppiankov/pubcredit/internal/ledger"
	"github.com/ppiankov/pubcredit/internal/model"
	"github.com/ppiankov/pubcredit/internal/resolve"
	"github.com/ppiankov/pubcredit/internal/stream"
	"github.com/ppiankov/pubcredit/internal/worker"
)

// RunConfig wires a run
type RunConfig struct {
	Resolver *resolve.Resolver
	Tracked  *authors.Tracked
	Options  Options
	Workers  int
	Progress time.Duration
	Logger   *slog.Logger
}

func (rc RunConfig) logger() *slog.Logger {
	if rc.Logger == nil {
		return slog.Default()
	}
	return rc.Logger
}

func (rc RunConfig) newEngine() *Engine {
	return New(rc.Resolver, rc.Tracked, rc.Options, rc.logger())
}

// Run processes every input and returns the merged result. A single
// input runs synchronously, or fans records out to Workers private
// engines. Several inputs are independent shards run on a worker pool
// and reduced in input order. Any error means no result.
func Run(ctx context.Context, inputs []string, rc RunConfig) (Result, error) {
	if len(inputs) == 0 {
		return Result{}, errors.New("no input")
	}
	if rc.Resolver == nil {
		return Result{}, errors.New("no resolver")
	}

	switch {
	case len(inputs) > 1:
		return runShards(ctx, inputs, rc)
	case rc.Workers > 1:
		return runFanOut(ctx, inputs[0], rc)
	default:
		return runSequential(ctx, inputs[0], rc)
	}
}

// RunSource drives one engine over an already-open source. Malformed
// records reported by src are not seen here; open it with
// stream.WithMalformed(eng.Malformed) to count them.
func RunSource(ctx context.Context, src *stream.Source, eng *Engine) (Result, error) {
	if err := src.Each(ctx, eng.Handle); err != nil {
		return Result{}, err
	}
	return eng.Result(), nil
}

func (rc RunConfig) open(path string, eng *Engine) (*stream.Source, error) {
	return stream.Open(path,
		stream.WithMalformed(eng.Malformed),
		stream.WithProgress(rc.Progress),
		stream.WithLogger(rc.logger()))
}

func runSequential(ctx context.Context, path string, rc RunConfig) (Result, error) {
	eng := rc.newEngine()
	src, err := rc.open(path, eng)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = src.Close() }()

	rc.logger().Debug("processing input", "path", path, "codec", src.Codec())
	return RunSource(ctx, src, eng)
}

// runFanOut reads one stream and hands records to private engines.
// Accumulation is order-independent, so the merged ledger equals the
// sequential one.
func runFanOut(ctx context.Context, path string, rc RunConfig) (Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	records := make(chan *model.PublicationRecord, rc.Workers*64)

	// counts stream-level malformed records
	reader := rc.newEngine()

	g.Go(func() error {
		defer close(records)

		src, err := rc.open(path, reader)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		return src.Each(gctx, func(rec *model.PublicationRecord) error {
			select {
			case records <- rec:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	engines := make([]*Engine, rc.Workers)
	for i := range engines {
		eng := rc.newEngine()
		engines[i] = eng
		g.Go(func() error {
			for rec := range records {
				_ = eng.Handle(rec)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	out := reader.Result()
	for _, eng := range engines {
		mergeInto(&out, eng.Result())
	}
	return out, nil
}

type shardJob struct {
	path string
	rc   RunConfig
}

type shardResult struct {
	result Result
	err    error
}

func (r *shardResult) GetError() error { return r.err }

func (j *shardJob) Execute(ctx context.Context) worker.Result {
	res, err := runSequential(ctx, j.path, j.rc)
	if err != nil {
		return &shardResult{err: fmt.Errorf("%s: %w", j.path, err)}
	}
	return &shardResult{result: res}
}

func runShards(ctx context.Context, inputs []string, rc RunConfig) (Result, error) {
	workers := rc.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make([]worker.Job, len(inputs))
	for i, path := range inputs {
		jobs[i] = &shardJob{path: path, rc: rc}
	}

	results := worker.RunAll(ctx, workers, jobs)
	if err := worker.FirstError(results); err != nil {
		return Result{}, err
	}

	out := Result{Ledger: ledger.New(), Areas: ledger.AreaTally{}, Stats: NewStats()}
	for _, r := range results {
		mergeInto(&out, r.(*shardResult).result)
	}
	return out, nil
}

func mergeInto(dst *Result, src Result) {
	dst.Ledger.Merge(src.Ledger)
	dst.Areas.Merge(src.Areas)
	dst.Stats.Merge(src.Stats)
}
