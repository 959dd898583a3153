package pipeline

import "fmt"

// State is a position in the linear run lifecycle:
//
//	Idle -> SchemaReady -> SourceLoaded -> Transformed -> Loaded -> Validated -> Closed
//
// Any failure jumps straight to Closed.
type State int

const (
	Idle State = iota
	SchemaReady
	SourceLoaded
	Transformed
	Loaded
	Validated
	Closed
)

var stateNames = [...]string{
	Idle:         "idle",
	SchemaReady:  "schema_ready",
	SourceLoaded: "source_loaded",
	Transformed:  "transformed",
	Loaded:       "loaded",
	Validated:    "validated",
	Closed:       "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// StageError is returned by Runner.Run for every fatal failure. State is the
// last state reached before the failing stage.
type StageError struct {
	Stage string
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (after %s): %v", e.Stage, e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
