// Package stepper owns the fuzzing game loop: it resolves who acts, filters
// the advertised actions down to the actually-choosable set, draws the next
// move from the choice source, and applies it through the rules engine until
// the game ends or a classified failure stops the run.
package stepper

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lox/gamefuzz/internal/choice"
	"github.com/lox/gamefuzz/internal/engine"
)

// ResignAction is the synthetic action injected when the engine supports
// resignation and resign suppression is off.
const ResignAction = "_resign"

// DefaultMaxSteps bounds turns per run when no maximum is configured.
const DefaultMaxSteps = 2048

// Reporter persists failure evidence. It is invoked immediately before every
// failure terminal and never on the success path.
type Reporter interface {
	Dump(setup engine.Setup, state engine.State, view engine.View, step int, role, action string, arg any)
}

// Config controls a single stepper run.
type Config struct {
	// MaxSteps is the upper bound on accepted actions; exceeding it raises
	// BoundExceeded. Zero means DefaultMaxSteps.
	MaxSteps int

	// SuppressUndo removes the "undo" action from every view, used to surface
	// true dead-end states.
	SuppressUndo bool

	// SuppressResign disables injection of the synthetic resign action.
	SuppressResign bool
}

// Stepper drives one game to termination. Single-owner, single-threaded: one
// active step sequence per fuzz invocation.
type Stepper struct {
	eng    engine.Engine
	src    choice.Source
	rep    Reporter
	logger zerolog.Logger
	cfg    Config
}

// New creates a stepper for one run.
func New(logger zerolog.Logger, eng engine.Engine, src choice.Source, rep Reporter, cfg Config) *Stepper {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Stepper{
		eng:    eng,
		src:    src,
		rep:    rep,
		logger: logger.With().Str("component", "stepper").Logger(),
		cfg:    cfg,
	}
}

// Run steps the game from the given initial state until game over, input
// exhaustion, or a classified failure. The returned state is the last one the
// engine produced; on game over it is returned with a nil error.
func (s *Stepper) Run(setup engine.Setup, state engine.State) (engine.State, error) {
	step := 0
	for {
		if s.src.Remaining() < choice.MinBytes {
			s.logger.Debug().Int("step", step).Msg("Fuzz input exhausted")
			return state, ErrInsufficientInput
		}

		role := state.Active()
		if engine.MultiRole(role) {
			roles := s.eng.Roles()
			if len(roles) == 0 {
				return state, fmt.Errorf("engine declares no roles")
			}
			role = roles[s.src.Pick(len(roles))]
		}

		view, err := s.eng.View(state, role)
		if err != nil {
			s.rep.Dump(setup, state, engine.View{}, step, role, "", nil)
			return state, &Failure{Kind: EngineFailure, Step: step, Role: role, Err: fmt.Errorf("view: %w", err)}
		}

		if step > s.cfg.MaxSteps {
			s.rep.Dump(setup, state, view, step, role, "", nil)
			return state, &Failure{Kind: BoundExceeded, Step: step, Role: role}
		}

		if state.Terminal() {
			s.logger.Debug().Int("steps", step).Msg("Game over")
			return state, nil
		}

		if !view.HasActions {
			s.rep.Dump(setup, state, view, step, role, "", nil)
			return state, &Failure{Kind: NoActions, Step: step, Role: role}
		}

		names, actions := s.normalize(view)
		if len(names) == 0 {
			s.rep.Dump(setup, state, view, step, role, "", nil)
			return state, &Failure{Kind: NoActions, Step: step, Role: role}
		}

		name := names[s.src.Pick(len(names))]
		desc := actions[name]

		var arg any
		if desc.Kind == engine.Pool {
			if i := engine.InvalidArg(desc.Args); i >= 0 {
				s.rep.Dump(setup, state, view, step, role, name, desc.Args[i])
				return state, &Failure{
					Kind:   InvalidArgument,
					Step:   step,
					Role:   role,
					Action: name,
					Err:    fmt.Errorf("argument pool entry %d is NaN", i),
				}
			}
			arg = desc.Args[s.src.Pick(len(desc.Args))]
		}

		if fl, ok := s.eng.(engine.FuzzLogger); ok {
			fl.FuzzLog(engine.LogContext{
				State:   state,
				View:    view,
				Actions: names,
				Action:  name,
				Raw:     desc,
				Arg:     arg,
			})
		}

		s.logger.Debug().
			Int("step", step).
			Str("role", role).
			Str("action", name).
			Interface("arg", arg).
			Strs("choosable", names).
			Msg("Applying action")

		var next engine.State
		if name == ResignAction {
			next, err = s.eng.(engine.Resigner).Resign(state, role)
		} else {
			next, err = s.eng.Apply(state, role, name, arg)
		}
		if err != nil {
			s.rep.Dump(setup, state, view, step, role, name, arg)
			return state, &Failure{
				Kind:   EngineFailure,
				Step:   step,
				Role:   role,
				Action: name,
				Err:    err,
			}
		}

		state = next
		step++
	}
}

// normalize assembles the choosable action set fresh from three sources: the
// view's enabled actions, the undo filter, and resign injection. The view's
// raw mapping is never aliased or mutated. Names come back sorted so pick
// indices are deterministic.
func (s *Stepper) normalize(view engine.View) ([]string, map[string]engine.Descriptor) {
	actions := make(map[string]engine.Descriptor, len(view.Actions)+1)
	for name, d := range view.Actions {
		// The resign name is driver-owned: a raw view entry with that name is
		// dropped so it can never route into Resign on an engine that does
		// not support it, or sidestep resign suppression on one that does.
		if name == ResignAction {
			continue
		}
		if s.cfg.SuppressUndo && name == "undo" {
			continue
		}
		if d.Kind == engine.Disabled {
			continue
		}
		actions[name] = d
	}
	if _, ok := s.eng.(engine.Resigner); ok && !s.cfg.SuppressResign {
		actions[ResignAction] = engine.Descriptor{Kind: engine.Flag}
	}

	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, actions
}
