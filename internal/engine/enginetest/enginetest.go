// Package enginetest provides scripted rules engines for driver tests.
package enginetest

import (
	"github.com/lox/gamefuzz/internal/engine"
)

// Engine is a scripted rules engine. Unset functions fall back to a trivial
// one-action game that never ends, so tests only script the behaviour they
// exercise.
type Engine struct {
	RoleList     []string
	ScenarioList []string

	SetupFn func(seed int64, scenario string, options map[string]any) (engine.State, error)
	ViewFn  func(state engine.State, role string) (engine.View, error)
	ApplyFn func(state engine.State, role, action string, arg any) (engine.State, error)

	// Applied records every action name passed to Apply, in order.
	Applied []string
}

func (e *Engine) Roles() []string {
	if e.RoleList == nil {
		return []string{"P1", "P2"}
	}
	return e.RoleList
}

func (e *Engine) Scenarios() []string {
	if e.ScenarioList == nil {
		return []string{"default"}
	}
	return e.ScenarioList
}

func (e *Engine) Setup(seed int64, scenario string, options map[string]any) (engine.State, error) {
	if e.SetupFn != nil {
		return e.SetupFn(seed, scenario, options)
	}
	return engine.State{"state": "play", "active": e.Roles()[0]}, nil
}

func (e *Engine) View(state engine.State, role string) (engine.View, error) {
	if e.ViewFn != nil {
		return e.ViewFn(state, role)
	}
	return engine.NewView(map[string]any{
		"state":   state.Phase(),
		"active":  role,
		"actions": map[string]any{"move": true},
	}), nil
}

func (e *Engine) Apply(state engine.State, role, action string, arg any) (engine.State, error) {
	e.Applied = append(e.Applied, action)
	if e.ApplyFn != nil {
		return e.ApplyFn(state, role, action, arg)
	}
	return state, nil
}

// WithResign wraps an Engine so it satisfies engine.Resigner.
type WithResign struct {
	*Engine
	ResignFn func(state engine.State, role string) (engine.State, error)
	Resigns  int
}

func (w *WithResign) Resign(state engine.State, role string) (engine.State, error) {
	w.Resigns++
	if w.ResignFn != nil {
		return w.ResignFn(state, role)
	}
	next := engine.State{"state": engine.Terminal, "active": role}
	return next, nil
}

// WithLog wraps an Engine so it satisfies engine.FuzzLogger, recording every
// observed context.
type WithLog struct {
	*Engine
	Logged []engine.LogContext
}

func (l *WithLog) FuzzLog(ctx engine.LogContext) {
	l.Logged = append(l.Logged, ctx)
}

// Counting returns a scripted two-role counting game: "add" advances a
// counter by a pooled amount, "pass" does nothing, and the game ends once the
// counter reaches limit.
func Counting(limit int) *Engine {
	e := &Engine{
		RoleList:     []string{"Left", "Right"},
		ScenarioList: []string{"short", "long"},
	}
	e.SetupFn = func(seed int64, scenario string, options map[string]any) (engine.State, error) {
		return engine.State{"state": "play", "active": "Left", "count": 0.0}, nil
	}
	e.ViewFn = func(state engine.State, role string) (engine.View, error) {
		if state.Terminal() {
			return engine.NewView(map[string]any{"state": state.Phase(), "active": role}), nil
		}
		return engine.NewView(map[string]any{
			"state":  state.Phase(),
			"active": role,
			"actions": map[string]any{
				"add":  []any{1.0, 2.0},
				"pass": true,
			},
		}), nil
	}
	e.ApplyFn = func(state engine.State, role, action string, arg any) (engine.State, error) {
		count := state["count"].(float64)
		if action == "add" {
			count += arg.(float64)
		}
		phase := "play"
		if count >= float64(limit) {
			phase = engine.Terminal
		}
		next := "Left"
		if role == "Left" {
			next = "Right"
		}
		return engine.State{"state": phase, "active": next, "count": count}, nil
	}
	return e
}
