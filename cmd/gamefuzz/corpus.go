package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/lox/gamefuzz/cmd/gamefuzz/shared"
	"github.com/lox/gamefuzz/internal/corpus"
	"github.com/lox/gamefuzz/internal/engine"
)

// CorpusCmd replays every saved input in a directory.
type CorpusCmd struct {
	Dir            string `kong:"arg,help='Directory of saved fuzz inputs'"`
	Config         string `kong:"default='gamefuzz.hcl',help='Campaign config file'"`
	Parallel       int    `kong:"default='4',help='Concurrent replays'"`
	Debug          bool   `kong:"help='Enable debug logging'"`
	JSON           bool   `kong:"help='Structured JSON log output'"`
	MaxSteps       int    `kong:"help='Override maximum steps per run'"`
	SuppressUndo   bool   `kong:"help='Remove the undo action from every view'"`
	SuppressResign bool   `kong:"help='Never inject the synthetic resign action'"`
}

func (c *CorpusCmd) Run() error {
	logger := shared.SetupLogger(c.Debug, c.JSON)

	cfg, err := loadConfig(c.Config, c.MaxSteps, c.SuppressUndo, c.SuppressResign)
	if err != nil {
		return err
	}

	// Lua interpreters carry per-run state and remote engines need strictly
	// sequential framing, so every replay gets a fresh engine.
	newEngine := func() (engine.Engine, error) {
		return buildEngine(logger, cfg)
	}

	progress := log.NewWithOptions(os.Stderr, log.Options{Prefix: "corpus"})
	runner := corpus.NewRunner(corpus.Config{
		Logger:       progress,
		DriverLogger: logger,
		Driver:       cfg.Driver,
		NewEngine:    newEngine,
		Parallel:     c.Parallel,
	})

	ctx := shared.SetupSignalHandler(logger)
	summary, err := runner.Run(ctx, c.Dir)
	if err != nil {
		return err
	}

	styles := newVerdictStyles()
	for _, res := range summary.Results {
		line := fmt.Sprintf("%s  %s", styles.Render(res.Verdict), filepath.Base(res.Path))
		if res.Err != nil {
			line += "  " + res.Err.Error()
		}
		fmt.Println(line)
	}
	fmt.Printf("\n%d inputs: %d pass, %d skip, %d fail (%.2fs)\n",
		len(summary.Results), summary.Passed, summary.Skipped, summary.Failed,
		summary.Elapsed.Seconds())

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", summary.Failed, len(summary.Results))
	}
	return nil
}
