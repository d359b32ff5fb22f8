package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/lox/gamefuzz/cmd/gamefuzz/shared"
	"github.com/lox/gamefuzz/internal/driver"
	"github.com/lox/gamefuzz/internal/stepper"
)

// RunCmd replays one saved fuzz input deterministically.
type RunCmd struct {
	Input          string `kong:"arg,help='Saved fuzz input file'"`
	Config         string `kong:"default='gamefuzz.hcl',help='Campaign config file'"`
	Debug          bool   `kong:"help='Enable debug logging'"`
	JSON           bool   `kong:"help='Structured JSON log output'"`
	MaxSteps       int    `kong:"help='Override maximum steps per run'"`
	SuppressUndo   bool   `kong:"help='Remove the undo action from every view'"`
	SuppressResign bool   `kong:"help='Never inject the synthetic resign action'"`
}

func (c *RunCmd) Run() error {
	logger := shared.SetupLogger(c.Debug, c.JSON)

	cfg, err := loadConfig(c.Config, c.MaxSteps, c.SuppressUndo, c.SuppressResign)
	if err != nil {
		return err
	}

	eng, err := buildEngine(logger, cfg)
	if err != nil {
		return err
	}
	defer closeEngine(logger, eng)

	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	logger.Info().
		Str("input", c.Input).
		Int("bytes", len(data)).
		Int("max_steps", cfg.Driver.MaxSteps).
		Msg("Replaying fuzz input")

	err = driver.Run(logger, eng, cfg.Driver, data)
	switch {
	case err == nil:
		logger.Info().Msg("Game completed normally")
		return nil
	case errors.Is(err, stepper.ErrInsufficientInput):
		logger.Info().Msg("Input too short to derive a decision sequence")
		return nil
	default:
		if f, ok := stepper.AsFailure(err); ok {
			logger.Error().
				Str("kind", f.Kind.String()).
				Int("step", f.Step).
				Str("snapshot", cfg.Driver.SnapshotPath).
				Msg("Run failed")
		}
		return err
	}
}
