// Package config loads the fuzzing campaign configuration: an optional HCL
// file, overridden by GAMEFUZZ_* environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/gamefuzz/internal/report"
	"github.com/lox/gamefuzz/internal/stepper"
)

// Engine kinds recognized by the driver.
const (
	EngineLua    = "lua"
	EngineRemote = "ws"
)

// Config is the complete campaign configuration.
type Config struct {
	Driver DriverConfig `hcl:"driver,block"`
	Engine EngineConfig `hcl:"engine,block"`
}

// DriverConfig controls the turn stepper and artifact locations.
type DriverConfig struct {
	MaxSteps       int    `hcl:"max_steps,optional" env:"GAMEFUZZ_MAX_STEPS"`
	SuppressUndo   bool   `hcl:"suppress_undo,optional" env:"GAMEFUZZ_SUPPRESS_UNDO"`
	SuppressResign bool   `hcl:"suppress_resign,optional" env:"GAMEFUZZ_SUPPRESS_RESIGN"`
	RandomMode     bool   `hcl:"random_mode,optional" env:"GAMEFUZZ_RANDOM_MODE"`
	SnapshotPath   string `hcl:"snapshot_path,optional" env:"GAMEFUZZ_SNAPSHOT"`
}

// EngineConfig locates the rules engine under test.
type EngineConfig struct {
	// Kind selects the engine transport: "lua" loads Module as a script,
	// "ws" dials Module as a WebSocket URL.
	Kind string `hcl:"kind,optional" env:"GAMEFUZZ_ENGINE_KIND"`

	// Module is the rules-module location: a script path or an engine URL.
	Module string `hcl:"module,optional" env:"GAMEFUZZ_ENGINE_MODULE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Driver: DriverConfig{
			MaxSteps:     stepper.DefaultMaxSteps,
			SnapshotPath: report.DefaultSnapshotPath,
		},
		Engine: EngineConfig{
			Kind: EngineLua,
		},
	}
}

// Load reads configuration from an HCL file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(filename string) (*Config, error) {
	config := Default()

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			parser := hclparse.NewParser()
			file, diags := parser.ParseHCLFile(filename)
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
			}
			var parsed Config
			diags = gohcl.DecodeBody(file.Body, nil, &parsed)
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
			}
			*config = parsed
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Apply defaults for missing values
	if config.Driver.MaxSteps == 0 {
		config.Driver.MaxSteps = stepper.DefaultMaxSteps
	}
	if config.Driver.SnapshotPath == "" {
		config.Driver.SnapshotPath = report.DefaultSnapshotPath
	}
	if config.Engine.Kind == "" {
		config.Engine.Kind = EngineLua
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate validates the campaign configuration.
func (c *Config) Validate() error {
	if c.Driver.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be positive, got %d", c.Driver.MaxSteps)
	}
	switch c.Engine.Kind {
	case EngineLua, EngineRemote:
	default:
		return fmt.Errorf("invalid engine kind: %s", c.Engine.Kind)
	}
	return nil
}

// Stepper converts the driver settings into a stepper configuration.
func (d DriverConfig) Stepper() stepper.Config {
	return stepper.Config{
		MaxSteps:       d.MaxSteps,
		SuppressUndo:   d.SuppressUndo,
		SuppressResign: d.SuppressResign,
	}
}
