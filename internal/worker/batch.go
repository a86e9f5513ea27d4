package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotRun marks a job the pool never executed because it was cancelled
var ErrNotRun = errors.New("job not run")

// RunAll executes jobs on a pool of at most workers goroutines and
// returns their results in job order. A slot whose job never ran holds
// a Result reporting ErrNotRun, so callers can index safely.
func RunAll(ctx context.Context, workers int, jobs []Job) []Result {
	if len(jobs) == 0 {
		return []Result{}
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	pool := NewPool(ctx, workers)
	pool.Start()

	for _, job := range jobs {
		if !pool.Submit(job) {
			break
		}
	}

	results := pool.Wait()
	out := make([]Result, len(jobs))
	for i := range out {
		if i < len(results) && results[i] != nil {
			out[i] = results[i]
			continue
		}
		out[i] = notRun{}
	}
	return out
}

// FirstError returns the first error in result order
func FirstError(results []Result) error {
	for _, r := range results {
		if err := r.GetError(); err != nil {
			return err
		}
	}
	return nil
}

type notRun struct{}

func (notRun) GetError() error { return ErrNotRun }

// ReadPathsFromFile reads input paths from a file, one per line. Blank
// lines and lines starting with '#' are skipped; duplicates are dropped
// keeping the first occurrence.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
