// Package engine defines the contract between the fuzzing driver and an
// externally supplied rules engine. The driver never inspects game semantics;
// it only reads the `state` and `active` fields the contract requires and the
// per-role action view.
package engine

// Terminal is the value of the state field that marks a finished game.
const Terminal = "game_over"

// State is the opaque game state owned and mutated exclusively by the rules
// engine. The driver holds a reference and replaces it wholesale after each
// accepted action.
type State map[string]any

// Active returns the role identifier permitted to act, or a multi-role
// sentinel ("Both"/"All").
func (s State) Active() string {
	v, _ := s["active"].(string)
	return v
}

// Phase returns the value of the state field, Terminal when the game is over.
func (s State) Phase() string {
	v, _ := s["state"].(string)
	return v
}

// Terminal reports whether the game has ended.
func (s State) Terminal() bool {
	return s.Phase() == Terminal
}

// MultiRole reports whether active names more than one role and must be
// resolved to a concrete role before stepping.
func MultiRole(active string) bool {
	return active == "Both" || active == "All"
}

// Setup is the immutable record of how a run's game was constructed. It is
// created once at run start from the first decisions drawn and carried into
// every diagnostic dump.
type Setup struct {
	Seed     int64          `json:"seed"`
	Scenario string         `json:"scenario"`
	Options  map[string]any `json:"options,omitempty"`
}

// LogContext is the full pre-apply context handed to an engine's optional
// observational hook.
type LogContext struct {
	State   State
	View    View
	Actions []string
	Action  string
	Raw     Descriptor
	Arg     any
}

// Engine is the rules-engine contract the driver consumes. All game logic,
// legality and scoring live behind it.
type Engine interface {
	// Roles returns the ordered role identifiers.
	Roles() []string

	// Scenarios returns the ordered selectable scenario identifiers.
	Scenarios() []string

	// Setup builds the initial game state.
	Setup(seed int64, scenario string, options map[string]any) (State, error)

	// View returns the per-role projection of state.
	View(state State, role string) (View, error)

	// Apply performs an action and returns the replacement state.
	Apply(state State, role, action string, arg any) (State, error)
}

// Resigner is implemented by engines that support resignation. Its presence
// gates whether the synthetic resign action is offered.
type Resigner interface {
	Resign(state State, role string) (State, error)
}

// FuzzLogger is implemented by engines that want to observe each step before
// it is applied. The hook is side-effecting but non-mutating and has no
// bearing on control flow.
type FuzzLogger interface {
	FuzzLog(ctx LogContext)
}
