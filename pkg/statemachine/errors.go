package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTransition = errors.New("statemachine: duplicate transition")
	ErrEmptyTable          = errors.New("statemachine: transition table is empty")
	ErrFinalState          = errors.New("statemachine: machine is in a final state")
)

// NoTransitionError reports an event fired from a state that has no
// transition for it.
type NoTransitionError struct {
	From  string
	Event string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("statemachine: no transition from %q on %q", e.From, e.Event)
}

func IsNoTransition(err error) bool {
	var e *NoTransitionError
	return errors.As(err, &e)
}
