package engine

import (
	"fmt"
	"math"
	"sort"
)

// DescriptorKind classifies the raw action-descriptor value an engine
// advertises. The same raw field can mean "visible but disabled", "takes no
// argument", or "pick an argument from this pool"; the classification happens
// once per view so use sites never re-inspect types.
type DescriptorKind int

const (
	// Disabled marks an action that is visible but not currently selectable
	// (raw value exactly false, numeric zero, or an empty sequence).
	Disabled DescriptorKind = iota

	// Flag marks an action that takes no chosen argument (raw value nil,
	// true, or a non-zero number; such values are metadata, not pools).
	Flag

	// Pool marks an action whose argument is picked from a candidate set.
	Pool
)

func (k DescriptorKind) String() string {
	switch k {
	case Disabled:
		return "disabled"
	case Flag:
		return "flag"
	case Pool:
		return "pool"
	default:
		return fmt.Sprintf("DescriptorKind(%d)", int(k))
	}
}

// Descriptor is the tagged form of a raw action descriptor. Args is populated
// only for Pool.
type Descriptor struct {
	Kind DescriptorKind
	Args []any
}

// View is a derived, per-role projection of game state, recomputed every step
// and discarded afterwards except in crash dumps.
type View struct {
	State   string                `json:"state"`
	Active  string                `json:"active"`
	Actions map[string]Descriptor `json:"actions,omitempty"`

	// HasActions distinguishes a view with an empty actions mapping from one
	// that exposes no actions field at all.
	HasActions bool `json:"-"`
}

// NewView classifies a raw view mapping into the driver's tagged form.
func NewView(raw map[string]any) View {
	v := View{}
	if s, ok := raw["state"].(string); ok {
		v.State = s
	}
	if a, ok := raw["active"].(string); ok {
		v.Active = a
	}
	if actions, ok := raw["actions"].(map[string]any); ok {
		v.HasActions = true
		v.Actions = make(map[string]Descriptor, len(actions))
		for name, d := range actions {
			v.Actions[name] = Classify(d)
		}
	}
	return v
}

// Classify maps a raw descriptor value into its tagged variant.
func Classify(raw any) Descriptor {
	switch d := raw.(type) {
	case nil:
		return Descriptor{Kind: Flag}
	case bool:
		if !d {
			return Descriptor{Kind: Disabled}
		}
		return Descriptor{Kind: Flag}
	case int:
		if d == 0 {
			return Descriptor{Kind: Disabled}
		}
		return Descriptor{Kind: Flag}
	case int64:
		if d == 0 {
			return Descriptor{Kind: Disabled}
		}
		return Descriptor{Kind: Flag}
	case float64:
		if d == 0 {
			return Descriptor{Kind: Disabled}
		}
		return Descriptor{Kind: Flag}
	case string:
		if d == "" {
			return Descriptor{Kind: Disabled}
		}
		return Descriptor{Kind: Pool, Args: []any{d}}
	case []any:
		if len(d) == 0 {
			return Descriptor{Kind: Disabled}
		}
		return Descriptor{Kind: Pool, Args: d}
	case map[string]any:
		if len(d) == 0 {
			return Descriptor{Kind: Disabled}
		}
		// Iterate keyed pools in sorted key order so picks stay deterministic.
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = d[k]
		}
		return Descriptor{Kind: Pool, Args: args}
	default:
		return Descriptor{Kind: Pool, Args: []any{raw}}
	}
}

// InvalidArg returns the first NaN-valued entry index in a pool, or -1 when
// every entry is a valid argument. Values are validated, not positions.
func InvalidArg(args []any) int {
	for i, a := range args {
		if f, ok := a.(float64); ok && math.IsNaN(f) {
			return i
		}
	}
	return -1
}
