// Package status implements the order status transition rules.
package status

import (
	ordererrors "github.com/ordertrack/ordertrack/internal/errors"
	"github.com/ordertrack/ordertrack/internal/order"
)

// Engine validates status transitions. The default (permissive) engine
// accepts any recognized status from any other; a strict engine only
// allows forward movement along the lifecycle sequence, with cancellation
// reachable from any non-terminal state.
type Engine struct {
	strict bool
}

// NewEngine returns an Engine. strict opts into forward-only enforcement.
func NewEngine(strict bool) *Engine {
	return &Engine{strict: strict}
}

// Parse converts a raw string into a Status.
// Returns ErrInvalidStatus for unrecognized values.
func Parse(raw string) (order.Status, error) {
	s := order.Status(raw)
	if !s.Valid() {
		return "", ordererrors.ErrInvalidStatus
	}
	return s, nil
}

// Validate checks whether the transition from -> to is acceptable.
// A same-status transition is always acceptable; callers treat it as a
// no-op (no history entry, no broadcast).
func (e *Engine) Validate(from, to order.Status) error {
	if !to.Valid() {
		return ordererrors.ErrInvalidStatus
	}
	if !e.strict || from == to {
		return nil
	}
	if from.Terminal() {
		return ordererrors.ErrTransitionNotAllowed
	}
	if to == order.StatusCancelled {
		return nil
	}
	if to.Rank() <= from.Rank() {
		return ordererrors.ErrTransitionNotAllowed
	}
	return nil
}
