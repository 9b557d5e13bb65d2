package agent

import "fmt"

// State is a run's position in the plan, dispatch, evaluate cycle.
type State string

// State constants.
const (
	StatePlanning    State = "planning"
	StateDispatching State = "dispatching"
	StateEvaluating  State = "evaluating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var allowedTransitions = map[State]map[State]struct{}{
	StatePlanning: {
		StateDispatching: {},
		StateDone:        {},
		StateFailed:      {},
	},
	StateDispatching: {
		StateEvaluating: {},
		StateFailed:     {},
	},
	StateEvaluating: {
		StatePlanning: {},
		StateDone:     {},
		StateFailed:   {},
	},
	StateDone:   {},
	StateFailed: {},
}

func validateTransition(from, to State) error {
	next, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("agent: unknown state %q", from)
	}
	if _, ok := next[to]; !ok {
		return fmt.Errorf("agent: invalid state transition %s -> %s", from, to)
	}
	return nil
}
