package stepper

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/gamefuzz/internal/choice"
	"github.com/lox/gamefuzz/internal/engine"
	"github.com/lox/gamefuzz/internal/engine/enginetest"
)

type dumpCall struct {
	setup  engine.Setup
	state  engine.State
	view   engine.View
	step   int
	role   string
	action string
	arg    any
}

type recordReporter struct {
	dumps []dumpCall
}

func (r *recordReporter) Dump(setup engine.Setup, state engine.State, view engine.View, step int, role, action string, arg any) {
	r.dumps = append(r.dumps, dumpCall{setup, state, view, step, role, action, arg})
}

// zeros returns a buffer that makes every draw resolve to the minimum, so
// picks always select the first sorted candidate.
func zeros(n int) *choice.ByteSource {
	return choice.NewByteSource(make([]byte, n))
}

var testSetup = engine.Setup{Seed: 1, Scenario: "default"}

func newStepper(eng engine.Engine, src choice.Source, rep Reporter, cfg Config) *Stepper {
	return New(zerolog.Nop(), eng, src, rep, cfg)
}

func TestImmediateGameOver(t *testing.T) {
	t.Parallel()

	eng := &enginetest.Engine{}
	eng.SetupFn = func(seed int64, scenario string, options map[string]any) (engine.State, error) {
		return engine.State{"state": engine.Terminal, "active": "P1"}, nil
	}
	rep := &recordReporter{}

	state, _ := eng.Setup(1, "default", nil)
	final, err := newStepper(eng, zeros(64), rep, Config{}).Run(testSetup, state)

	require.NoError(t, err)
	assert.True(t, final.Terminal())
	assert.Empty(t, eng.Applied, "no action may be consumed on a finished game")
	assert.Empty(t, rep.dumps, "success paths never dump")
}

func TestViewWithoutActionsIsNoActions(t *testing.T) {
	t.Parallel()

	eng := &enginetest.Engine{}
	eng.ViewFn = func(state engine.State, role string) (engine.View, error) {
		return engine.NewView(map[string]any{"state": "play", "active": role}), nil
	}
	rep := &recordReporter{}

	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(64), rep, Config{}).Run(testSetup, state)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, NoActions, f.Kind)
	assert.Equal(t, 0, f.Step)
	require.Len(t, rep.dumps, 1)
	assert.Equal(t, 0, rep.dumps[0].step)
	assert.Equal(t, "play", rep.dumps[0].state.Phase())
}

func TestDisabledActionsNeverChosen(t *testing.T) {
	t.Parallel()

	eng := &enginetest.Engine{}
	eng.ViewFn = func(state engine.State, role string) (engine.View, error) {
		if state.Terminal() {
			return engine.NewView(map[string]any{"state": state.Phase(), "active": role}), nil
		}
		return engine.NewView(map[string]any{
			"state":  "play",
			"active": role,
			"actions": map[string]any{
				"aaa_disabled": false,
				"abc_zero":     0,
				"abd_empty":    []any{},
				"zzz_enabled":  true,
			},
		}), nil
	}
	eng.ApplyFn = func(state engine.State, role, action string, arg any) (engine.State, error) {
		return engine.State{"state": engine.Terminal, "active": role}, nil
	}
	rep := &recordReporter{}

	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(64), rep, Config{}).Run(testSetup, state)

	require.NoError(t, err)
	// A zero buffer picks the first sorted name; everything before
	// zzz_enabled was filtered out.
	require.Equal(t, []string{"zzz_enabled"}, eng.Applied)
}

func TestAllActionsDisabledIsNoActions(t *testing.T) {
	t.Parallel()

	eng := &enginetest.Engine{}
	eng.ViewFn = func(state engine.State, role string) (engine.View, error) {
		return engine.NewView(map[string]any{
			"state":   "play",
			"active":  role,
			"actions": map[string]any{"move": false},
		}), nil
	}
	rep := &recordReporter{}

	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(64), rep, Config{}).Run(testSetup, state)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, NoActions, f.Kind)
	require.Len(t, rep.dumps, 1)
}

func TestUndoSuppression(t *testing.T) {
	t.Parallel()

	newEng := func() *enginetest.Engine {
		eng := &enginetest.Engine{}
		eng.ViewFn = func(state engine.State, role string) (engine.View, error) {
			return engine.NewView(map[string]any{
				"state":  "play",
				"active": role,
				"actions": map[string]any{
					"undo": true,
					"zzz":  true,
				},
			}), nil
		}
		eng.ApplyFn = func(state engine.State, role, action string, arg any) (engine.State, error) {
			return engine.State{"state": engine.Terminal, "active": role}, nil
		}
		return eng
	}

	// Without suppression a zero buffer picks "undo" (first sorted).
	eng := newEng()
	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(64), &recordReporter{}, Config{}).Run(testSetup, state)
	require.NoError(t, err)
	assert.Equal(t, []string{"undo"}, eng.Applied)

	// With suppression undo is gone and the same buffer picks "zzz".
	eng = newEng()
	state, _ = eng.Setup(1, "default", nil)
	_, err = newStepper(eng, zeros(64), &recordReporter{}, Config{SuppressUndo: true}).Run(testSetup, state)
	require.NoError(t, err)
	assert.Equal(t, []string{"zzz"}, eng.Applied)
}

func TestResignInjection(t *testing.T) {
	t.Parallel()

	base := &enginetest.Engine{}
	eng := &enginetest.WithResign{Engine: base}

	state, _ := eng.Setup(1, "default", nil)
	// Sorted choosable set is [_resign move]; zeros pick _resign.
	_, err := newStepper(eng, zeros(64), &recordReporter{}, Config{}).Run(testSetup, state)

	require.NoError(t, err)
	assert.Equal(t, 1, eng.Resigns)
	assert.Empty(t, base.Applied)
}

func TestResignSuppression(t *testing.T) {
	t.Parallel()

	base := &enginetest.Engine{}
	base.ApplyFn = func(state engine.State, role, action string, arg any) (engine.State, error) {
		return engine.State{"state": engine.Terminal, "active": role}, nil
	}
	eng := &enginetest.WithResign{Engine: base}

	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(64), &recordReporter{}, Config{SuppressResign: true}).Run(testSetup, state)

	require.NoError(t, err)
	assert.Equal(t, 0, eng.Resigns)
	assert.Equal(t, []string{"move"}, base.Applied)
}

func TestRawResignEntryIgnoredWithoutResigner(t *testing.T) {
	t.Parallel()

	eng := &enginetest.Engine{}
	eng.ViewFn = func(state engine.State, role string) (engine.View, error) {
		if state.Terminal() {
			return engine.NewView(map[string]any{"state": state.Phase(), "active": role}), nil
		}
		return engine.NewView(map[string]any{
			"state":  "play",
			"active": role,
			"actions": map[string]any{
				ResignAction: true,
				"zzz_move":   true,
			},
		}), nil
	}
	eng.ApplyFn = func(state engine.State, role, action string, arg any) (engine.State, error) {
		return engine.State{"state": engine.Terminal, "active": role}, nil
	}

	state, _ := eng.Setup(1, "default", nil)
	var final engine.State
	var err error
	require.NotPanics(t, func() {
		final, err = newStepper(eng, zeros(64), &recordReporter{}, Config{}).Run(testSetup, state)
	})

	require.NoError(t, err)
	assert.True(t, final.Terminal())
	// The advertised resign name is dropped, so the zero buffer lands on the
	// engine's own action.
	assert.Equal(t, []string{"zzz_move"}, eng.Applied)
}

func TestRawResignOnlyViewIsNoActions(t *testing.T) {
	t.Parallel()

	eng := &enginetest.Engine{}
	eng.ViewFn = func(state engine.State, role string) (engine.View, error) {
		return engine.NewView(map[string]any{
			"state":   "play",
			"active":  role,
			"actions": map[string]any{ResignAction: true},
		}), nil
	}
	rep := &recordReporter{}

	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(64), rep, Config{}).Run(testSetup, state)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, NoActions, f.Kind)
	assert.Empty(t, eng.Applied)
}

func TestRawResignEntryCannotBypassSuppression(t *testing.T) {
	t.Parallel()

	base := &enginetest.Engine{}
	base.ViewFn = func(state engine.State, role string) (engine.View, error) {
		if state.Terminal() {
			return engine.NewView(map[string]any{"state": state.Phase(), "active": role}), nil
		}
		return engine.NewView(map[string]any{
			"state":  "play",
			"active": role,
			"actions": map[string]any{
				ResignAction: true,
				"zzz_move":   true,
			},
		}), nil
	}
	base.ApplyFn = func(state engine.State, role, action string, arg any) (engine.State, error) {
		return engine.State{"state": engine.Terminal, "active": role}, nil
	}
	eng := &enginetest.WithResign{Engine: base}

	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(64), &recordReporter{}, Config{SuppressResign: true}).Run(testSetup, state)

	require.NoError(t, err)
	assert.Equal(t, 0, eng.Resigns, "suppression holds even when the view advertises the resign name")
	assert.Equal(t, []string{"zzz_move"}, base.Applied)
}

func TestNaNPoolIsInvalidArgument(t *testing.T) {
	t.Parallel()

	eng := &enginetest.Engine{}
	eng.ViewFn = func(state engine.State, role string) (engine.View, error) {
		return engine.NewView(map[string]any{
			"state":  "play",
			"active": role,
			"actions": map[string]any{
				"place": []any{1.0, math.NaN(), 3.0},
			},
		}), nil
	}
	rep := &recordReporter{}

	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(64), rep, Config{}).Run(testSetup, state)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, InvalidArgument, f.Kind)
	assert.Equal(t, "place", f.Action)
	assert.Empty(t, eng.Applied, "the action must fail before any argument is chosen")
	require.Len(t, rep.dumps, 1)
	assert.Equal(t, "place", rep.dumps[0].action)
}

func TestBoundExceeded(t *testing.T) {
	t.Parallel()

	eng := &enginetest.Engine{} // default game never ends
	rep := &recordReporter{}

	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(1024), rep, Config{MaxSteps: 5}).Run(testSetup, state)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, BoundExceeded, f.Kind)
	assert.Equal(t, 6, f.Step, "the loop halts once the counter exceeds the maximum")
	assert.Len(t, eng.Applied, 6)
	require.Len(t, rep.dumps, 1)
}

func TestEngineFailureOnThirdAction(t *testing.T) {
	t.Parallel()

	boom := errors.New("illegal move")
	eng := &enginetest.Engine{}
	eng.ApplyFn = func(state engine.State, role, action string, arg any) (engine.State, error) {
		if len(eng.Applied) == 3 {
			return nil, boom
		}
		return state, nil
	}
	rep := &recordReporter{}

	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(1024), rep, Config{}).Run(testSetup, state)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, EngineFailure, f.Kind)
	assert.True(t, errors.Is(err, boom), "the engine error must stay unwrappable")
	assert.Equal(t, 2, f.Step, "counter frozen at the last accepted action")
	require.Len(t, rep.dumps, 1)
	assert.Equal(t, 2, rep.dumps[0].step)
	assert.Equal(t, "play", rep.dumps[0].state.Phase(), "the dump holds the pre-failure state")
}

func TestMultiRoleResolution(t *testing.T) {
	t.Parallel()

	var viewRoles []string
	eng := &enginetest.Engine{RoleList: []string{"North", "South"}}
	eng.SetupFn = func(seed int64, scenario string, options map[string]any) (engine.State, error) {
		return engine.State{"state": "play", "active": "Both"}, nil
	}
	eng.ViewFn = func(state engine.State, role string) (engine.View, error) {
		viewRoles = append(viewRoles, role)
		return engine.NewView(map[string]any{
			"state":   state.Phase(),
			"active":  role,
			"actions": map[string]any{"move": true},
		}), nil
	}
	eng.ApplyFn = func(state engine.State, role, action string, arg any) (engine.State, error) {
		return engine.State{"state": engine.Terminal, "active": role}, nil
	}

	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(64), &recordReporter{}, Config{}).Run(testSetup, state)

	require.NoError(t, err)
	require.NotEmpty(t, viewRoles)
	assert.Equal(t, "North", viewRoles[0], "zero buffer resolves the sentinel to the first role")
}

func TestInputExhaustionMidRun(t *testing.T) {
	t.Parallel()

	eng := &enginetest.Engine{}
	rep := &recordReporter{}

	// Enough for the guard plus one step worth of draws, then exhaustion.
	state, _ := eng.Setup(1, "default", nil)
	_, err := newStepper(eng, zeros(17), rep, Config{}).Run(testSetup, state)

	require.ErrorIs(t, err, ErrInsufficientInput)
	assert.Empty(t, rep.dumps, "insufficient input is not a crash")
}

func TestDeterministicReplay(t *testing.T) {
	t.Parallel()

	buf := []byte("\x03\x1f\x00\x42\x17\x88\x01\x01\xfe\x00\x33\x44\x55\x66\x77\x88" +
		"\x99\xaa\xbb\xcc\xdd\xee\xff\x10\x20\x30\x40\x50\x60\x70\x80\x90" +
		"\x0a\x0b\x0c\x0d\x0e\x0f\x11\x22\x13\x24\x35\x46\x57\x68\x79\x8a")

	run := func() ([]string, error) {
		eng := enginetest.Counting(1000)
		state, err := eng.Setup(1, "short", nil)
		if err != nil {
			return nil, err
		}
		_, err = newStepper(eng, choice.NewByteSource(buf), &recordReporter{}, Config{}).Run(testSetup, state)
		return eng.Applied, err
	}

	first, err1 := run()
	second, err2 := run()

	require.Equal(t, fmt.Sprint(err1), fmt.Sprint(err2))
	assert.Equal(t, first, second, "identical buffers must replay identical decisions")
	assert.NotEmpty(t, first)
}
