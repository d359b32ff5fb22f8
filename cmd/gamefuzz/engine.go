package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/lox/gamefuzz/internal/config"
	"github.com/lox/gamefuzz/internal/engine"
	"github.com/lox/gamefuzz/internal/engine/luaengine"
	"github.com/lox/gamefuzz/internal/engine/remote"
)

// buildEngine constructs the configured rules engine.
func buildEngine(logger zerolog.Logger, cfg *config.Config) (engine.Engine, error) {
	if cfg.Engine.Module == "" {
		return nil, fmt.Errorf("no rules module configured (set engine.module or GAMEFUZZ_ENGINE_MODULE)")
	}
	switch cfg.Engine.Kind {
	case config.EngineLua:
		return luaengine.Load(logger, cfg.Engine.Module)
	case config.EngineRemote:
		return remote.Dial(logger, cfg.Engine.Module)
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}
}

// closeEngine releases engines that hold a connection, such as the WebSocket
// transport.
func closeEngine(logger zerolog.Logger, eng engine.Engine) {
	closer, ok := eng.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close engine")
	}
}

// loadConfig reads the campaign config file and applies command-line
// overrides that were explicitly set.
func loadConfig(path string, maxSteps int, suppressUndo, suppressResign bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if maxSteps > 0 {
		cfg.Driver.MaxSteps = maxSteps
	}
	if suppressUndo {
		cfg.Driver.SuppressUndo = true
	}
	if suppressResign {
		cfg.Driver.SuppressResign = true
	}
	return cfg, nil
}
