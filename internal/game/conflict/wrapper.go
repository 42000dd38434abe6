// Package conflict detects contention between actions submitted in the same
// tick and either settles it with a check or escalates it to a moderator.
package conflict

import (
	"github.com/cory-johannsen/arbiter/internal/game/action"
)

// Status is the resolution state of a submitted action.
//
// Invariant: transitions are monotonic. An action starts Pending, moves to
// exactly one of the resolution states, and only a proceeding state may be
// marked Executed afterwards. A status never regresses.
type Status int

const (
	// StatusPending is the initial state of every submitted action.
	StatusPending Status = iota
	// StatusPendingManual marks an action caught in a moderator-escalated conflict.
	StatusPendingManual
	// StatusAutoFailed marks an action that lost an automatically settled conflict.
	StatusAutoFailed
	// StatusAutoProceed marks an action that won an automatically settled conflict.
	StatusAutoProceed
	// StatusReady marks an action untouched by any conflict.
	StatusReady
	// StatusExecuted marks an action the tick driver has carried out.
	StatusExecuted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPendingManual:
		return "pending_manual_resolution"
	case StatusAutoFailed:
		return "auto_resolved_failed_conflict"
	case StatusAutoProceed:
		return "auto_resolved_proceed"
	case StatusReady:
		return "ready_to_execute"
	case StatusExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// executable reports whether an action in this state may be carried out.
func (s Status) executable() bool {
	return s == StatusAutoProceed || s == StatusReady
}

// Wrapper is one submitted action moving through conflict resolution. The
// tick driver owns the wrapper; the resolver only advances its Status.
type Wrapper struct {
	ID      string
	ActorID string
	Action  action.Action
	Status  Status
}

// transition advances the wrapper's status, enforcing monotonicity: only a
// Pending wrapper may enter a resolution state, and only an executable
// wrapper may be marked Executed. Illegal transitions are ignored.
func (w *Wrapper) transition(next Status) bool {
	switch {
	case w.Status == StatusPending && next != StatusPending && next != StatusExecuted:
		w.Status = next
		return true
	case next == StatusExecuted && w.Status.executable():
		w.Status = next
		return true
	default:
		return false
	}
}

// MarkExecuted records that the tick driver carried the action out.
//
// Postcondition: Returns true iff the wrapper was in an executable state.
func (w *Wrapper) MarkExecuted() bool {
	return w.transition(StatusExecuted)
}
