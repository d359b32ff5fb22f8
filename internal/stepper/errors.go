package stepper

import (
	"errors"
	"fmt"
)

// ErrInsufficientInput signals that the fuzz buffer was exhausted before a
// meaningful decision sequence could be derived. It is not a failure: the run
// ends quietly, no crash artifact is written, and the fuzzing engine should
// not record it as a finding.
var ErrInsufficientInput = errors.New("insufficient fuzz input")

// FailureKind is the closed enumeration of run-terminal failure
// classifications.
type FailureKind int

const (
	// BoundExceeded means the step count passed the configured maximum,
	// signalling a likely non-terminating rule interaction.
	BoundExceeded FailureKind = iota

	// NoActions means the view offered no legal, enabled actions while the
	// game was not over.
	NoActions

	// InvalidArgument means an action's argument pool contained a NaN entry.
	InvalidArgument

	// EngineFailure means the rules engine raised an error while applying an
	// action or resignation; the underlying error is wrapped for triage.
	EngineFailure
)

func (k FailureKind) String() string {
	switch k {
	case BoundExceeded:
		return "bound_exceeded"
	case NoActions:
		return "no_actions"
	case InvalidArgument:
		return "invalid_argument"
	case EngineFailure:
		return "engine_failure"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Failure carries a failure classification plus the step context at the
// moment it was raised. Failures are constructed once, dumped, and propagated
// unmodified to the caller; the driver never retries or suppresses them.
type Failure struct {
	Kind   FailureKind
	Step   int
	Role   string
	Action string
	Err    error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s at step %d", f.Kind, f.Step)
	if f.Action != "" {
		msg += fmt.Sprintf(" (role %s, action %s)", f.Role, f.Action)
	} else if f.Role != "" {
		msg += fmt.Sprintf(" (role %s)", f.Role)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure unwraps err into a *Failure if it carries one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
