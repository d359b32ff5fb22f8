// Package luaengine loads a rules engine authored as a Lua script. The
// script returns a module table with roles, scenarios and the contract
// functions, so any engine written as a script can be fuzzed without
// recompiling the driver:
//
//	return {
//	  roles = { "White", "Black" },
//	  scenarios = { "standard" },
//	  setup = function(seed, scenario, options) ... return state end,
//	  view = function(state, role) ... return view end,
//	  action = function(state, role, action, arg) ... return state end,
//	  resign = function(state, role) ... return state end, -- optional
//	  fuzz_log = function(ctx) ... end,                     -- optional
//	}
package luaengine

import (
	"fmt"
	"strconv"

	"github.com/Shopify/go-lua"
	"github.com/rs/zerolog"

	"github.com/lox/gamefuzz/internal/engine"
)

const moduleKey = "gamefuzz.rules"

// Engine adapts a loaded Lua rules module to the driver contract. Not safe
// for concurrent use; the driver is single-threaded per run.
type Engine struct {
	l         *lua.State
	logger    zerolog.Logger
	roles     []string
	scenarios []string
	hasLog    bool
}

// resignEngine is returned when the script defines a resign function, so the
// driver's Resigner type assertion reflects actual script capability.
type resignEngine struct {
	*Engine
}

// Load runs the script at path and returns the engine it defines.
func Load(logger zerolog.Logger, path string) (engine.Engine, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)

	if err := lua.LoadFile(l, path, ""); err != nil {
		return nil, fmt.Errorf("load rules module: %w", err)
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run rules module: %w", err)
	}
	if l.TypeOf(-1) != lua.TypeTable {
		l.Pop(1)
		return nil, fmt.Errorf("rules module must return a table")
	}
	l.SetField(lua.RegistryIndex, moduleKey)

	e := &Engine{
		l:      l,
		logger: logger.With().Str("component", "luaengine").Str("module", path).Logger(),
	}

	var err error
	if e.roles, err = e.stringList("roles"); err != nil {
		return nil, err
	}
	if e.scenarios, err = e.stringList("scenarios"); err != nil {
		return nil, err
	}
	for _, fn := range []string{"setup", "view", "action"} {
		if !e.hasFunction(fn) {
			return nil, fmt.Errorf("rules module has no %s function", fn)
		}
	}
	e.hasLog = e.hasFunction("fuzz_log")

	if e.hasFunction("resign") {
		return &resignEngine{e}, nil
	}
	return e, nil
}

// Roles returns the ordered role identifiers declared by the script.
func (e *Engine) Roles() []string {
	return e.roles
}

// Scenarios returns the ordered scenario identifiers declared by the script.
func (e *Engine) Scenarios() []string {
	return e.scenarios
}

// Setup builds the initial game state.
func (e *Engine) Setup(seed int64, scenario string, options map[string]any) (engine.State, error) {
	v, err := e.call("setup", float64(seed), scenario, options)
	if err != nil {
		return nil, err
	}
	return toState(v, "setup")
}

// View returns the per-role projection of state.
func (e *Engine) View(state engine.State, role string) (engine.View, error) {
	v, err := e.call("view", map[string]any(state), role)
	if err != nil {
		return engine.View{}, err
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return engine.View{}, fmt.Errorf("view returned %T, want table", v)
	}
	return engine.NewView(raw), nil
}

// Apply performs an action and returns the replacement state.
func (e *Engine) Apply(state engine.State, role, action string, arg any) (engine.State, error) {
	v, err := e.call("action", map[string]any(state), role, action, arg)
	if err != nil {
		return nil, err
	}
	return toState(v, "action")
}

// Resign performs resignation for role.
func (e *resignEngine) Resign(state engine.State, role string) (engine.State, error) {
	v, err := e.call("resign", map[string]any(state), role)
	if err != nil {
		return nil, err
	}
	return toState(v, "resign")
}

// FuzzLog forwards the full pre-apply context to the script's fuzz_log
// function when it defines one: state, view, choosable action names, the
// chosen action, its raw descriptor and the chosen argument. Hook errors are
// logged and ignored; observation must not steer control flow.
func (e *Engine) FuzzLog(ctx engine.LogContext) {
	if !e.hasLog {
		return
	}
	_, err := e.call("fuzz_log", map[string]any{
		"state":      map[string]any(ctx.State),
		"view":       viewToMap(ctx.View),
		"actions":    toAnySlice(ctx.Actions),
		"action":     ctx.Action,
		"descriptor": descriptorToMap(ctx.Raw),
		"arg":        ctx.Arg,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("fuzz_log hook failed")
	}
}

func viewToMap(v engine.View) map[string]any {
	m := map[string]any{"state": v.State, "active": v.Active}
	if v.HasActions {
		actions := make(map[string]any, len(v.Actions))
		for name, d := range v.Actions {
			actions[name] = descriptorToMap(d)
		}
		m["actions"] = actions
	}
	return m
}

func descriptorToMap(d engine.Descriptor) map[string]any {
	m := map[string]any{"kind": d.Kind.String()}
	if d.Kind == engine.Pool {
		m["args"] = d.Args
	}
	return m
}

// call invokes a module function with args and returns its single result.
// The Lua stack is restored on every exit path.
func (e *Engine) call(fn string, args ...any) (any, error) {
	base := e.l.Top()
	defer e.l.SetTop(base)

	e.l.Field(lua.RegistryIndex, moduleKey)
	e.l.Field(-1, fn)
	if e.l.TypeOf(-1) != lua.TypeFunction {
		return nil, fmt.Errorf("rules module has no %s function", fn)
	}
	for _, a := range args {
		e.push(a)
	}
	if err := e.l.ProtectedCall(len(args), 1, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return e.toGo(-1), nil
}

func (e *Engine) hasFunction(name string) bool {
	e.l.Field(lua.RegistryIndex, moduleKey)
	e.l.Field(-1, name)
	ok := e.l.TypeOf(-1) == lua.TypeFunction
	e.l.Pop(2)
	return ok
}

func (e *Engine) stringList(name string) ([]string, error) {
	e.l.Field(lua.RegistryIndex, moduleKey)
	e.l.Field(-1, name)
	v := e.toGo(-1)
	e.l.Pop(2)

	seq, ok := v.([]any)
	if !ok || len(seq) == 0 {
		return nil, fmt.Errorf("rules module must declare a non-empty %s list", name)
	}
	out := make([]string, len(seq))
	for i, item := range seq {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is %T, want string", name, i+1, item)
		}
		out[i] = s
	}
	return out, nil
}

// push converts a Go value onto the Lua stack.
func (e *Engine) push(v any) {
	switch x := v.(type) {
	case nil:
		e.l.PushNil()
	case bool:
		e.l.PushBoolean(x)
	case int:
		e.l.PushNumber(float64(x))
	case int64:
		e.l.PushNumber(float64(x))
	case float64:
		e.l.PushNumber(x)
	case string:
		e.l.PushString(x)
	case []any:
		e.l.NewTable()
		for i, item := range x {
			e.push(item)
			e.l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		e.l.NewTable()
		for key, item := range x {
			e.push(item)
			e.l.SetField(-2, key)
		}
	case engine.State:
		e.push(map[string]any(x))
	default:
		e.l.PushString(fmt.Sprint(x))
	}
}

// toGo converts the Lua value at idx to a Go value. Tables with a [1] entry
// become slices, everything else a string-keyed map.
func (e *Engine) toGo(idx int) any {
	switch e.l.TypeOf(idx) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return e.l.ToBoolean(idx)
	case lua.TypeNumber:
		n, _ := e.l.ToNumber(idx)
		return n
	case lua.TypeString:
		s, _ := e.l.ToString(idx)
		return s
	case lua.TypeTable:
		return e.tableToGo(idx)
	default:
		return nil
	}
}

func (e *Engine) tableToGo(idx int) any {
	idx = e.l.AbsIndex(idx)

	e.l.RawGetInt(idx, 1)
	isSequence := e.l.TypeOf(-1) != lua.TypeNil
	e.l.Pop(1)

	if isSequence {
		var out []any
		for i := 1; ; i++ {
			e.l.RawGetInt(idx, i)
			if e.l.TypeOf(-1) == lua.TypeNil {
				e.l.Pop(1)
				return out
			}
			out = append(out, e.toGo(-1))
			e.l.Pop(1)
		}
	}

	out := make(map[string]any)
	e.l.PushNil()
	for e.l.Next(idx) {
		var key string
		switch e.l.TypeOf(-2) {
		case lua.TypeString:
			key, _ = e.l.ToString(-2)
		case lua.TypeNumber:
			n, _ := e.l.ToNumber(-2)
			key = strconv.FormatFloat(n, 'g', -1, 64)
		default:
			e.l.Pop(1)
			continue
		}
		out[key] = e.toGo(-1)
		e.l.Pop(1)
	}
	return out
}

func toState(v any, fn string) (engine.State, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want table", fn, v)
	}
	return engine.State(m), nil
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
