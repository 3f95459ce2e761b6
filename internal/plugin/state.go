package plugin

// State is the lifecycle state of a package descriptor.
type State int

// Package states.
const (
	// StateUnresolved - manifest parsed, no module attached.
	StateUnresolved State = iota

	// StateLoaded - module attached, not yet initialized.
	StateLoaded

	// StatePending - loaded, waiting for dependencies.
	StatePending

	// StateInitializing - entry point invoked, completion outstanding.
	StateInitializing

	// StateInitialized - entry point invoked and its completion delivered.
	StateInitialized

	// StateFailed - the package could not be loaded (or, when registration
	// waits for completion, its initialization failed).
	StateFailed

	// StateUnresolvable - still pending when loading ended.
	StateUnresolvable
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateLoaded:
		return "loaded"
	case StatePending:
		return "pending"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateFailed:
		return "failed"
	case StateUnresolvable:
		return "unresolvable"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateInitialized || s == StateFailed || s == StateUnresolvable
}

// transitions lists the legal successors of each state.
var transitions = map[State][]State{
	StateUnresolved:   {StateLoaded, StateFailed},
	StateLoaded:       {StatePending, StateInitializing, StateFailed},
	StatePending:      {StateInitializing, StateUnresolvable},
	StateInitializing: {StateInitialized, StateFailed},
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
