// Package statemachine holds closed transition tables of the form
// {from, action} -> to. Every status change in the engine is validated here.
package statemachine

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when no transition exists for {from, action}.
var ErrIllegalTransition = errors.New("illegal transition")

// Transition is one row of a transition table.
type Transition[S ~string, A ~string] struct {
	From   S
	Action A
	To     S
}

// TransitionError describes a rejected transition.
type TransitionError[S ~string, A ~string] struct {
	Machine string
	From    S
	Action  A
}

func (e *TransitionError[S, A]) Error() string {
	return fmt.Sprintf("%s: action %q not allowed from %q", e.Machine, e.Action, e.From)
}

func (e *TransitionError[S, A]) Unwrap() error { return ErrIllegalTransition }

type key[S ~string, A ~string] struct {
	from   S
	action A
}

// Machine is an immutable transition table.
type Machine[S ~string, A ~string] struct {
	name    string
	table   map[key[S, A]]S
	actions map[S][]A
}

// New builds a machine from its transitions. Duplicate {from, action} pairs panic.
func New[S ~string, A ~string](name string, transitions ...Transition[S, A]) *Machine[S, A] {
	m := &Machine[S, A]{
		name:    name,
		table:   make(map[key[S, A]]S, len(transitions)),
		actions: make(map[S][]A),
	}
	for _, t := range transitions {
		k := key[S, A]{t.From, t.Action}
		if _, dup := m.table[k]; dup {
			panic(fmt.Sprintf("statemachine %s: duplicate transition %s/%s", name, t.From, t.Action))
		}
		m.table[k] = t.To
		m.actions[t.From] = append(m.actions[t.From], t.Action)
	}
	return m
}

// Name returns the machine name used in errors.
func (m *Machine[S, A]) Name() string { return m.name }

// Next returns the state reached by applying action in from.
func (m *Machine[S, A]) Next(from S, action A) (S, error) {
	to, ok := m.table[key[S, A]{from, action}]
	if !ok {
		var zero S
		return zero, &TransitionError[S, A]{Machine: m.name, From: from, Action: action}
	}
	return to, nil
}

// Can reports whether action is allowed in from.
func (m *Machine[S, A]) Can(from S, action A) bool {
	_, ok := m.table[key[S, A]{from, action}]
	return ok
}

// Actions lists the actions allowed in from, in declaration order.
func (m *Machine[S, A]) Actions(from S) []A {
	out := make([]A, len(m.actions[from]))
	copy(out, m.actions[from])
	return out
}
