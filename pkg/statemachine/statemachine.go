// Package statemachine provides a small finite state machine driven by a
// fixed transition table. Tables are built once and shared; each Machine
// tracks the state of one run and is not safe for concurrent use.
package statemachine

import (
	"fmt"
	"slices"
)

// Transition moves the machine from From to To when Event fires.
type Transition[S, E ~string] struct {
	From  S
	Event E
	To    S
}

// Table is an immutable set of transitions indexed by [from][event].
type Table[S, E ~string] struct {
	initial S
	next    map[S]map[E]S
	final   []S
}

// NewTable validates and indexes transitions. States listed in final accept
// no further events.
func NewTable[S, E ~string](initial S, transitions []Transition[S, E], final ...S) (*Table[S, E], error) {
	if len(transitions) == 0 {
		return nil, ErrEmptyTable
	}
	next := make(map[S]map[E]S)
	for _, t := range transitions {
		if next[t.From] == nil {
			next[t.From] = make(map[E]S)
		}
		if _, dup := next[t.From][t.Event]; dup {
			return nil, fmt.Errorf("%w: %s on %s", ErrDuplicateTransition, t.From, t.Event)
		}
		next[t.From][t.Event] = t.To
	}
	return &Table[S, E]{initial: initial, next: next, final: slices.Clone(final)}, nil
}

// MustTable is NewTable that panics on an invalid table.
func MustTable[S, E ~string](initial S, transitions []Transition[S, E], final ...S) *Table[S, E] {
	t, err := NewTable(initial, transitions, final...)
	if err != nil {
		panic(err)
	}
	return t
}

// Allowed reports whether event is legal from state.
func (t *Table[S, E]) Allowed(from S, event E) bool {
	_, ok := t.next[from][event]
	return ok
}

// IsFinal reports whether s accepts no further events.
func (t *Table[S, E]) IsFinal(s S) bool {
	return slices.Contains(t.final, s)
}

// Hook observes every successful transition.
type Hook[S, E ~string] func(from, to S, event E)

// Machine is one run over a Table.
type Machine[S, E ~string] struct {
	table   *Table[S, E]
	current S
	path    []S
	hooks   []Hook[S, E]
}

// Start begins a run in the table's initial state.
func (t *Table[S, E]) Start(hooks ...Hook[S, E]) *Machine[S, E] {
	return &Machine[S, E]{
		table:   t,
		current: t.initial,
		path:    []S{t.initial},
		hooks:   hooks,
	}
}

func (m *Machine[S, E]) Current() S { return m.current }

// Path returns every state visited, starting with the initial one.
func (m *Machine[S, E]) Path() []S { return slices.Clone(m.path) }

// Done reports whether the machine reached a final state.
func (m *Machine[S, E]) Done() bool { return m.table.IsFinal(m.current) }

// Fire applies event. Illegal events leave the state unchanged and return
// a *NoTransitionError.
func (m *Machine[S, E]) Fire(event E) error {
	if m.Done() {
		return fmt.Errorf("%w: %s", ErrFinalState, m.current)
	}
	to, ok := m.table.next[m.current][event]
	if !ok {
		return &NoTransitionError{From: string(m.current), Event: string(event)}
	}
	from := m.current
	m.current = to
	m.path = append(m.path, to)
	for _, h := range m.hooks {
		h(from, to, event)
	}
	return nil
}

// MustFire is Fire for callers whose table makes the event legal by
// construction. An error here is a programming error.
func (m *Machine[S, E]) MustFire(event E) {
	if err := m.Fire(event); err != nil {
		panic(err)
	}
}
