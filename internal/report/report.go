// Package report captures failure evidence for reproducibility: a diagnostic
// dump of the failing step and a persisted game-state snapshot that a later
// run can load without re-deriving it from the fuzz byte stream.
package report

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	"github.com/lox/gamefuzz/internal/engine"
	"github.com/lox/gamefuzz/internal/fileutil"
)

// DefaultSnapshotPath is the well-known artifact location when none is
// configured.
const DefaultSnapshotPath = "gamefuzz-state.json"

// Snapshot is the serialized form of a crash artifact.
type Snapshot struct {
	Setup engine.Setup `json:"setup"`
	Step  int          `json:"step"`
	Role  string       `json:"role"`
	State engine.State `json:"state"`
}

// Reporter writes crash evidence. Dump never propagates its own errors:
// reporting must not mask the classified failure that follows it.
type Reporter struct {
	logger zerolog.Logger
	path   string
}

// New creates a reporter writing snapshots to path, or DefaultSnapshotPath
// when path is empty.
func New(logger zerolog.Logger, path string) *Reporter {
	if path == "" {
		path = DefaultSnapshotPath
	}
	return &Reporter{
		logger: logger.With().Str("component", "report").Logger(),
		path:   path,
	}
}

// Path returns the snapshot artifact location.
func (r *Reporter) Path() string {
	return r.path
}

// Dump prints the view and a one-line step summary to the diagnostic stream
// and persists the full game state, overwriting any prior snapshot.
func (r *Reporter) Dump(setup engine.Setup, state engine.State, view engine.View, step int, role, action string, arg any) {
	evt := r.logger.Error().
		Int("step", step).
		Str("role", role).
		Int64("seed", setup.Seed).
		Str("scenario", setup.Scenario).
		Interface("view", view)
	if action != "" {
		evt = evt.Str("action", action).Interface("arg", arg)
	}
	evt.Msg("Dumping failing step")

	data, err := json.MarshalIndent(Snapshot{
		Setup: setup,
		Step:  step,
		Role:  role,
		State: state,
	}, "", "  ")
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to serialize state snapshot")
		return
	}
	if err := fileutil.WriteFileAtomic(r.path, data, 0o644); err != nil {
		r.logger.Error().Err(err).Str("path", r.path).Msg("Failed to persist state snapshot")
		return
	}
	r.logger.Info().Str("path", r.path).Msg("State snapshot written")
}

// Load reads a previously persisted snapshot, for resuming an investigation.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
