// Package workflow holds the status enums of every stateful entity and the
// transition tables that govern how those statuses may change.
//
// Services validate a move with Machine.Transition before writing. An
// unknown target is a validation error (400); a known but illegal target is a
// *TransitionError, which surfaces as a 409 conflict.
package workflow

import (
	"fmt"
	"slices"

	"interior_portal_backend/platform/apperr"
)

// TransitionError reports an illegal move between two known statuses.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %q to %q", e.Entity, e.From, e.To)
}

// AppError converts the transition error to a conflict for the HTTP layer.
func (e *TransitionError) AppError() *apperr.Error {
	return apperr.Wrap(apperr.KindConflict, "invalid status transition", e).WithDetails(map[string]string{
		"entity": e.Entity,
		"from":   e.From,
		"to":     e.To,
	})
}

// As lets errors.As find an *apperr.Error in a chain holding a TransitionError.
func (e *TransitionError) As(target any) bool {
	t, ok := target.(**apperr.Error)
	if !ok {
		return false
	}
	*t = e.AppError()
	return true
}

// Machine is a finite state machine over a string-backed status type.
type Machine[S ~string] struct {
	entity string
	order  []S
	next   map[S][]S
	free   bool
}

// NewMachine builds a machine from an ordered status list and a table of
// allowed next statuses. Statuses absent from the table are terminal.
func NewMachine[S ~string](entity string, order []S, table map[S][]S) *Machine[S] {
	next := make(map[S][]S, len(table))
	for from, targets := range table {
		if !slices.Contains(order, from) {
			panic(fmt.Sprintf("workflow: %s table references unknown status %q", entity, from))
		}
		for _, to := range targets {
			if !slices.Contains(order, to) {
				panic(fmt.Sprintf("workflow: %s table references unknown status %q", entity, to))
			}
		}
		next[from] = slices.Clone(targets)
	}
	return &Machine[S]{entity: entity, order: slices.Clone(order), next: next}
}

// NewEnum builds a machine that only enforces membership: any status may
// move to any other.
func NewEnum[S ~string](entity string, order ...S) *Machine[S] {
	return &Machine[S]{entity: entity, order: slices.Clone(order), free: true}
}

// Entity returns the entity name used in errors.
func (m *Machine[S]) Entity() string { return m.entity }

// States returns every status in declaration order.
func (m *Machine[S]) States() []S { return slices.Clone(m.order) }

// Valid reports enum membership.
func (m *Machine[S]) Valid(s S) bool { return slices.Contains(m.order, s) }

// Parse converts raw input to a status, failing with a validation error.
func (m *Machine[S]) Parse(raw string) (S, error) {
	s := S(raw)
	if !m.Valid(s) {
		return "", m.invalid(raw)
	}
	return s, nil
}

// Next lists the statuses reachable from s in one step.
func (m *Machine[S]) Next(s S) []S {
	if m.free {
		if !m.Valid(s) {
			return nil
		}
		out := make([]S, 0, len(m.order)-1)
		for _, o := range m.order {
			if o != s {
				out = append(out, o)
			}
		}
		return out
	}
	return slices.Clone(m.next[s])
}

// Terminal reports whether s has no outgoing transitions.
func (m *Machine[S]) Terminal(s S) bool {
	return !m.free && m.Valid(s) && len(m.next[s]) == 0
}

// CanTransition reports whether from -> to is allowed. Staying in the same
// valid status is always allowed.
func (m *Machine[S]) CanTransition(from, to S) bool {
	if !m.Valid(from) || !m.Valid(to) {
		return false
	}
	if from == to || m.free {
		return true
	}
	return slices.Contains(m.next[from], to)
}

// Transition returns nil when from -> to is allowed, a validation error when
// to is not a known status, and a *TransitionError otherwise.
func (m *Machine[S]) Transition(from, to S) error {
	if !m.Valid(to) {
		return m.invalid(string(to))
	}
	if m.CanTransition(from, to) {
		return nil
	}
	return &TransitionError{Entity: m.entity, From: string(from), To: string(to)}
}

func (m *Machine[S]) invalid(raw string) error {
	allowed := make([]string, len(m.order))
	for i, s := range m.order {
		allowed[i] = string(s)
	}
	return apperr.Validation(fmt.Sprintf("invalid %s status", m.entity)).WithDetails(map[string]any{
		"status":  raw,
		"allowed": allowed,
	})
}
