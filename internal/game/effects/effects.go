// Package effects is the default rules-effects pipeline: it turns resolved
// combat actions into HP deltas and narration, decides when a combat is
// over, and arbitrates auto-mode action conflicts with checks.
package effects

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arbiter/internal/game/action"
	"github.com/cory-johannsen/arbiter/internal/game/check"
	"github.com/cory-johannsen/arbiter/internal/game/combat"
	"github.com/cory-johannsen/arbiter/internal/game/dice"
	"github.com/cory-johannsen/arbiter/internal/game/rules"
	"github.com/cory-johannsen/arbiter/internal/game/stats"
)

// attackCheckType is the catalog check backing combat attacks.
const attackCheckType = "attack"

// damageStat contributes its ability modifier to weapon damage.
const damageStat = "strength"

// Hooks receives an advisory callback after each resolved action, letting
// tenant scripts observe and annotate outcomes. Hook failures are logged and
// never affect resolution.
type Hooks interface {
	OnActionResolved(ctx context.Context, tenant string, act action.Action, outcome *combat.ActionOutcome) error
}

// Pipeline implements combat.RulesEffects and conflict.Arbiter on top of the
// check resolver and the rules catalog.
type Pipeline struct {
	provider   stats.Provider
	catalog    *rules.Catalog
	checker    *check.Resolver
	roller     *dice.Roller
	damageDice string
	hooks      Hooks
	logger     *zap.Logger
}

// NewPipeline creates the default rules-effects pipeline.
//
// Precondition: provider, catalog, checker, roller, and logger must be
// non-nil; damageDice must be a valid dice expression. hooks may be nil.
func NewPipeline(
	provider stats.Provider,
	catalog *rules.Catalog,
	checker *check.Resolver,
	roller *dice.Roller,
	damageDice string,
	hooks Hooks,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		provider:   provider,
		catalog:    catalog,
		checker:    checker,
		roller:     roller,
		damageDice: damageDice,
		hooks:      hooks,
		logger:     logger,
	}
}

// ApplyActionEffects computes the outcome of one combat action.
//
// Attacks run an opposed attack check against the target; a hit rolls the
// configured damage dice plus the actor's strength modifier (minimum 1).
// Non-attack intents resolve to narration only. An unrecognized intent or a
// targetless attack is an error, which the engine treats as a failed action.
func (p *Pipeline) ApplyActionEffects(ctx context.Context, tenant string, cbt *combat.Combat, act action.Action) (combat.ActionOutcome, error) {
	actor, listed := cbt.Participant(act.ActorID)
	if !listed {
		return combat.ActionOutcome{}, fmt.Errorf("actor %q is not in combat %q", act.ActorID, cbt.ID)
	}

	var outcome combat.ActionOutcome
	var err error
	switch act.Intent {
	case action.IntentAttack:
		outcome, err = p.resolveAttack(ctx, tenant, cbt, actor, act)
	case action.IntentDefend:
		outcome.LogLines = []string{fmt.Sprintf("%s takes a defensive stance.", actor.Name)}
	case action.IntentMove:
		outcome.LogLines = []string{fmt.Sprintf("%s repositions.", actor.Name)}
	case action.IntentPickup:
		outcome.LogLines = []string{fmt.Sprintf("%s grabs for %s.", actor.Name, act.ItemID)}
	case action.IntentUse:
		outcome.LogLines = []string{fmt.Sprintf("%s uses %s.", actor.Name, act.ItemID)}
	case action.IntentPass:
		outcome.LogLines = []string{fmt.Sprintf("%s holds their action.", actor.Name)}
	default:
		return combat.ActionOutcome{}, fmt.Errorf("unrecognized intent %q from %q", act.Raw, act.ActorID)
	}
	if err != nil {
		return combat.ActionOutcome{}, err
	}

	if p.hooks != nil {
		if hookErr := p.hooks.OnActionResolved(ctx, tenant, act, &outcome); hookErr != nil {
			p.logger.Warn("action hook failed",
				zap.String("tenant", tenant),
				zap.String("actor", act.ActorID),
				zap.String("intent", act.Intent.String()),
				zap.Error(hookErr),
			)
		}
	}
	return outcome, nil
}

func (p *Pipeline) resolveAttack(ctx context.Context, tenant string, cbt *combat.Combat, actor *combat.Participant, act action.Action) (combat.ActionOutcome, error) {
	if act.TargetID == "" {
		return combat.ActionOutcome{}, fmt.Errorf("attack from %q names no target", act.ActorID)
	}
	target, listed := cbt.Participant(act.TargetID)
	if !listed {
		return combat.ActionOutcome{}, fmt.Errorf("attack target %q is not in combat %q", act.TargetID, cbt.ID)
	}

	result, err := p.checker.Resolve(ctx, check.Request{
		Tenant:     tenant,
		CheckType:  attackCheckType,
		ActorID:    act.ActorID,
		ActorKind:  actor.Kind,
		TargetID:   act.TargetID,
		TargetKind: target.Kind,
	})
	if err != nil {
		return combat.ActionOutcome{}, fmt.Errorf("resolving attack: %w", err)
	}

	outcome := combat.ActionOutcome{LogLines: []string{result.Trace}}
	if !result.Succeeded {
		outcome.LogLines = append(outcome.LogLines, fmt.Sprintf("%s misses %s.", actor.Name, target.Name))
		return outcome, nil
	}

	damage, err := p.rollDamage(ctx, tenant, act)
	if err != nil {
		return combat.ActionOutcome{}, err
	}
	outcome.HPDeltas = map[string]int{act.TargetID: -damage}
	outcome.LogLines = append(outcome.LogLines, fmt.Sprintf("%s hits %s for %d damage.", actor.Name, target.Name, damage))
	return outcome, nil
}

// rollDamage rolls the configured damage dice plus the actor's strength
// modifier, floored at 1: a landed hit always costs something.
func (p *Pipeline) rollDamage(ctx context.Context, tenant string, act action.Action) (int, error) {
	roll, err := p.roller.RollExpr(p.damageDice)
	if err != nil {
		return 0, fmt.Errorf("rolling damage: %w", err)
	}
	damage := roll.Total()

	snap, err := p.provider.BaseStats(ctx, tenant, act.ActorID, act.ActorKind)
	if err != nil {
		return 0, fmt.Errorf("rolling damage: looking up actor %q: %w", act.ActorID, err)
	}
	es := stats.Resolve(snap, p.catalog)
	if str, ok := es.Value(damageStat); ok {
		damage += stats.AbilityMod(str)
	}
	if damage < 1 {
		damage = 1
	}
	return damage, nil
}

// CheckEndConditions reports the combat over when at most one side still has
// standing participants. The surviving side's standing entity IDs win; a
// mutual wipe ends with zero winners.
func (p *Pipeline) CheckEndConditions(_ context.Context, _ string, cbt *combat.Combat) (bool, []string) {
	charactersStand := cbt.HasStanding(stats.KindCharacter)
	npcsStand := cbt.HasStanding(stats.KindNPC)
	if charactersStand && npcsStand {
		return false, nil
	}
	return true, cbt.Standing()
}

// ResolveActionConflict settles an auto-mode conflict group: each contender
// runs a simple check of the configured type, and the single highest
// successful total wins. A tie for the top total yields zero winners.
// Contenders whose check errors are dropped from contention with a warning.
func (p *Pipeline) ResolveActionConflict(ctx context.Context, tenant, conflictType, checkType string, actions []action.Action) ([]string, []string, error) {
	type contender struct {
		actorID string
		total   int
	}
	var ranked []contender
	var losers []string

	for _, act := range actions {
		result, err := p.checker.Resolve(ctx, check.Request{
			Tenant:    tenant,
			CheckType: checkType,
			ActorID:   act.ActorID,
			ActorKind: act.ActorKind,
		})
		if err != nil {
			p.logger.Warn("conflict contender check failed",
				zap.String("tenant", tenant),
				zap.String("conflict_type", conflictType),
				zap.String("actor", act.ActorID),
				zap.Error(err),
			)
			losers = append(losers, act.ActorID)
			continue
		}
		if !result.Succeeded {
			losers = append(losers, act.ActorID)
			continue
		}
		ranked = append(ranked, contender{actorID: act.ActorID, total: result.Total})
	}

	if len(ranked) == 0 {
		return nil, losers, nil
	}

	best := ranked[0]
	tied := false
	for _, c := range ranked[1:] {
		switch {
		case c.total > best.total:
			best = c
			tied = false
		case c.total == best.total:
			tied = true
		}
	}

	var winners []string
	for _, c := range ranked {
		if tied || c.actorID != best.actorID {
			losers = append(losers, c.actorID)
		} else {
			winners = append(winners, c.actorID)
		}
	}
	p.logger.Debug("action conflict arbitrated",
		zap.String("tenant", tenant),
		zap.String("conflict_type", conflictType),
		zap.String("check_type", checkType),
		zap.Strings("winners", winners),
		zap.Strings("losers", losers),
	)
	return winners, losers, nil
}
