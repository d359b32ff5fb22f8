// Package corpus replays a directory of saved fuzz inputs through the
// deterministic driver and aggregates the verdicts. Whole invocations run in
// parallel; each run keeps its own choice source, engine and step counter, so
// nothing is shared between them.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/gamefuzz/internal/config"
	"github.com/lox/gamefuzz/internal/driver"
	"github.com/lox/gamefuzz/internal/engine"
	"github.com/lox/gamefuzz/internal/stepper"
)

// Verdict classifies the outcome of replaying one input.
type Verdict int

const (
	// Pass means the game completed normally.
	Pass Verdict = iota

	// Skip means the input was too short to derive a decision sequence.
	Skip

	// Fail means the run ended with a classified failure.
	Fail
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Result is the outcome of one replayed input.
type Result struct {
	Path    string
	Verdict Verdict
	Err     error
}

// Summary aggregates a whole corpus replay.
type Summary struct {
	Results []Result
	Passed  int
	Skipped int
	Failed  int
	Elapsed time.Duration
}

// Config holds configuration for a corpus replay.
type Config struct {
	// Logger is the human-facing progress logger.
	Logger *log.Logger

	// DriverLogger is handed to each driver run for structured step logs and
	// crash dumps.
	DriverLogger zerolog.Logger

	// Clock supplies time; tests inject a mock.
	Clock quartz.Clock

	// Driver is the per-run stepper configuration. Snapshot paths are
	// derived per input so parallel runs never race on one artifact.
	Driver config.DriverConfig

	// NewEngine builds a fresh rules engine per input, since engines may
	// carry per-run interpreter state.
	NewEngine func() (engine.Engine, error)

	// Parallel bounds concurrent runs. Zero means sequential.
	Parallel int
}

// Runner replays corpora.
type Runner struct {
	cfg Config
}

// NewRunner creates a runner. Missing clock or parallelism fall back to the
// real clock and sequential execution.
func NewRunner(cfg Config) *Runner {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Runner{cfg: cfg}
}

// Run replays every regular file in dir and returns the aggregated summary.
// Inputs are processed in directory order; results keep that order regardless
// of which run finishes first.
func (r *Runner) Run(ctx context.Context, dir string) (*Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no inputs in %s", dir)
	}

	start := r.cfg.Clock.Now()
	results := make([]Result, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallel)
	for i, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, name)
			results[i] = r.replay(path)
			r.cfg.Logger.Info("Replayed input", "input", name, "verdict", results[i].Verdict.String())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		Results: results,
		Elapsed: r.cfg.Clock.Now().Sub(start),
	}
	for _, res := range results {
		switch res.Verdict {
		case Pass:
			summary.Passed++
		case Skip:
			summary.Skipped++
		case Fail:
			summary.Failed++
		}
	}
	return summary, nil
}

func (r *Runner) replay(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Path: path, Verdict: Fail, Err: fmt.Errorf("read input: %w", err)}
	}

	eng, err := r.cfg.NewEngine()
	if err != nil {
		return Result{Path: path, Verdict: Fail, Err: fmt.Errorf("build engine: %w", err)}
	}
	if closer, ok := eng.(io.Closer); ok {
		defer closer.Close()
	}

	runCfg := r.cfg.Driver
	runCfg.SnapshotPath = path + ".state.json"

	logger := r.cfg.DriverLogger.With().Str("input", filepath.Base(path)).Logger()
	err = driver.Run(logger, eng, runCfg, data)
	switch {
	case err == nil:
		return Result{Path: path, Verdict: Pass}
	case errors.Is(err, stepper.ErrInsufficientInput):
		return Result{Path: path, Verdict: Skip}
	default:
		return Result{Path: path, Verdict: Fail, Err: err}
	}
}
