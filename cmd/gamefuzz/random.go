package main

import (
	"time"

	"github.com/lox/gamefuzz/cmd/gamefuzz/shared"
	"github.com/lox/gamefuzz/internal/driver"
)

// RandomCmd runs one exploratory game with the non-deterministic backend.
type RandomCmd struct {
	Config         string `kong:"default='gamefuzz.hcl',help='Campaign config file'"`
	Seed           *int64 `kong:"help='Deterministic seed for the random backend (optional)'"`
	Debug          bool   `kong:"help='Enable debug logging'"`
	JSON           bool   `kong:"help='Structured JSON log output'"`
	MaxSteps       int    `kong:"help='Override maximum steps per run'"`
	SuppressUndo   bool   `kong:"help='Remove the undo action from every view'"`
	SuppressResign bool   `kong:"help='Never inject the synthetic resign action'"`
}

func (c *RandomCmd) Run() error {
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

	var seed int64
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info().Int64("seed", seed).Msg("Using deterministic seed")
	} else {
		seed = time.Now().UnixNano()
		logger.Info().Int64("seed", seed).Msg("Using random seed")
	}

	if err := driver.RunRandom(logger, eng, cfg.Driver, seed); err != nil {
		return err
	}
	logger.Info().Msg("Game completed normally")
	return nil
}
