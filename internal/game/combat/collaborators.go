package combat

import (
	"context"

	"github.com/cory-johannsen/arbiter/internal/game/action"
)

// ActionOutcome is what the rules-effects collaborator computes for one
// resolved combat action: narration plus HP adjustments keyed by entity ID
// (negative for damage, positive for healing).
type ActionOutcome struct {
	LogLines []string
	HPDeltas map[string]int
}

// RulesEffects computes the numeric outcome of combat actions and decides
// when a combat is over. The engine owns turn progression and HP application;
// the collaborator owns the math.
type RulesEffects interface {
	// ApplyActionEffects resolves act inside cbt and returns the outcome to
	// apply. The engine treats any error as a failed action: outcome side
	// effects are discarded, the failure is logged, and the turn still
	// advances.
	ApplyActionEffects(ctx context.Context, tenant string, cbt *Combat, act action.Action) (ActionOutcome, error)

	// CheckEndConditions reports whether cbt has ended and, if so, the
	// winning entity IDs.
	CheckEndConditions(ctx context.Context, tenant string, cbt *Combat) (ended bool, winners []string)
}

// Persistence is the combat storage collaborator. The engine accumulates
// dirty combats and hands them over on Flush, not on every mutation.
type Persistence interface {
	SaveCombat(ctx context.Context, tenant string, cbt *Combat) error
	LoadActive(ctx context.Context, tenant string) ([]*Combat, error)
	DeleteCombat(ctx context.Context, tenant, combatID string) error
}

// Rewards grants experience and loot outside this core's scope.
type Rewards interface {
	GrantXP(ctx context.Context, tenant, entityID string, amount int) error
	GrantItem(ctx context.Context, tenant, entityID, itemTemplate string, qty int) error
}

// Notifier delivers best-effort player-facing messages. Failures are logged
// by the engine and never fatal.
type Notifier interface {
	Notify(ctx context.Context, tenant, channelRef, message string) error
}

// NPCController chooses an action for an NPC-controlled participant whose
// turn has come up.
type NPCController interface {
	ChooseAction(ctx context.Context, tenant string, cbt *Combat, actorID string) (action.Action, error)
}
