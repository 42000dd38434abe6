// Package action defines the closed set of player/NPC intents and the action
// payload passed between the conflict resolver, combat engine, and effects
// pipeline. Intent dispatch is a tagged union so matching logic is
// exhaustively checked by the compiler, with an explicit unrecognized variant.
package action

import (
	"github.com/cory-johannsen/arbiter/internal/game/stats"
)

// Intent identifies what an actor is trying to do this tick.
// The zero value (IntentUnknown) is the explicit "unrecognized intent" variant.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentAttack
	IntentDefend
	IntentMove
	IntentPickup
	IntentUse
	IntentPass
)

// String returns the canonical intent tag used in rule files and logs.
func (i Intent) String() string {
	switch i {
	case IntentAttack:
		return "attack"
	case IntentDefend:
		return "defend"
	case IntentMove:
		return "move"
	case IntentPickup:
		return "pickup"
	case IntentUse:
		return "use"
	case IntentPass:
		return "pass"
	default:
		return "unknown"
	}
}

// ParseIntent maps a canonical tag to its Intent.
//
// Postcondition: Unrecognized tags return IntentUnknown, never an error;
// the conflict resolver and effects pipeline treat IntentUnknown explicitly.
func ParseIntent(tag string) Intent {
	switch tag {
	case "attack":
		return IntentAttack
	case "defend":
		return IntentDefend
	case "move":
		return IntentMove
	case "pickup":
		return IntentPickup
	case "use":
		return IntentUse
	case "pass":
		return IntentPass
	default:
		return IntentUnknown
	}
}

// Action is one submitted action payload. Every field the resolution core
// reads is declared here; which fields are meaningful depends on the Intent.
type Action struct {
	// ID uniquely identifies this submission.
	ID string
	// ActorID and ActorKind identify the submitting entity.
	ActorID   string
	ActorKind stats.EntityKind
	// Intent is the parsed intent; Raw preserves the original intent tag.
	Intent Intent
	Raw    string
	// TargetID/TargetKind name the entity acted upon (attack, use-on).
	TargetID   string
	TargetKind stats.EntityKind
	// ItemID names the item involved (pickup, use).
	ItemID string
	// DestinationID names the movement destination (move).
	DestinationID string
}

// ContestedResource derives the resource key this action contends for, used
// by conflict grouping: the item for pickup/use intents, the target entity
// for attacks, the destination for moves. Intents with no contestable
// resource return "".
func (a Action) ContestedResource() string {
	switch a.Intent {
	case IntentPickup, IntentUse:
		return a.ItemID
	case IntentAttack:
		return a.TargetID
	case IntentMove:
		return a.DestinationID
	case IntentDefend, IntentPass, IntentUnknown:
		return ""
	default:
		return ""
	}
}
