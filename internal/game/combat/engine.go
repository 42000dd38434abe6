package combat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arbiter/internal/game/action"
	"github.com/cory-johannsen/arbiter/internal/game/dice"
	"github.com/cory-johannsen/arbiter/internal/game/rules"
	"github.com/cory-johannsen/arbiter/internal/game/stats"
)

// ErrNoValidParticipants is returned by StartCombat when every candidate
// participant failed to resolve through the entity-data provider.
var ErrNoValidParticipants = errors.New("no valid participants")

// ParticipantRef names one candidate participant for a new combat.
type ParticipantRef struct {
	EntityID string
	Kind     stats.EntityKind
}

// Engine manages all active Combat encounters, keyed by tenant then combat ID.
//
// The mutex guards the collection maps (active combats, insertion order,
// dirty set). Combat contents are mutated only through the documented
// operations, and the tick driver processes one tenant's tick to completion
// at a time, so combats of distinct tenants never share mutable state.
type Engine struct {
	mu      sync.Mutex
	combats map[string]map[string]*Combat
	order   map[string][]string
	dirty   map[string]map[string]struct{}

	provider stats.Provider
	effects  RulesEffects
	store    Persistence
	rewards  Rewards
	notifier Notifier
	npcs     NPCController
	catalog  *rules.Catalog
	roller   *dice.Roller
	logger   *zap.Logger
}

// NewEngine creates a combat Engine.
//
// Precondition: provider, effects, catalog, roller, and logger must be
// non-nil. store, rewards, notifier, and npcs may be nil: persistence,
// reward grants, notifications, and NPC turns are skipped when absent.
// Postcondition: Returns a non-nil Engine with empty per-tenant collections.
func NewEngine(
	provider stats.Provider,
	effects RulesEffects,
	store Persistence,
	rewards Rewards,
	notifier Notifier,
	npcs NPCController,
	catalog *rules.Catalog,
	roller *dice.Roller,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		combats:  make(map[string]map[string]*Combat),
		order:    make(map[string][]string),
		dirty:    make(map[string]map[string]struct{}),
		provider: provider,
		effects:  effects,
		store:    store,
		rewards:  rewards,
		notifier: notifier,
		npcs:     npcs,
		catalog:  catalog,
		roller:   roller,
		logger:   logger,
	}
}

// StartCombat begins a new encounter for tenant at locationID.
//
// Each candidate is resolved through the entity-data provider; candidates
// that fail to resolve are skipped with a warning. Initiative is
// 1d20 + dexterity modifier; participants are ordered descending by
// (initiative, MaxHP).
//
// Postcondition: Returns a registered, dirty, Active Combat with Round == 1
// and TurnIndex == 0, or ErrNoValidParticipants when nothing resolved.
func (e *Engine) StartCombat(ctx context.Context, tenant, locationID, channelRef string, candidates []ParticipantRef) (*Combat, error) {
	var parts []*Participant
	for _, cand := range candidates {
		snap, err := e.provider.BaseStats(ctx, tenant, cand.EntityID, cand.Kind)
		if err != nil {
			e.logger.Warn("skipping unresolvable combat candidate",
				zap.String("tenant", tenant),
				zap.String("entity", cand.EntityID),
				zap.Error(err),
			)
			continue
		}

		es := stats.Resolve(snap, e.catalog)
		dex, _ := es.Value(initiativeStat)

		maxHP := snap.MaxHP
		if maxHP < 1 {
			maxHP = 1
		}
		hp := snap.HP
		if hp <= 0 || hp > maxHP {
			hp = maxHP
		}

		parts = append(parts, &Participant{
			EntityID:   snap.ID,
			Kind:       cand.Kind,
			Name:       snap.Name,
			Template:   snap.Template,
			HP:         hp,
			MaxHP:      maxHP,
			Initiative: rollInitiative(e.roller, dex),
		})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("starting combat in %q: %w", locationID, ErrNoValidParticipants)
	}

	sortByInitiative(parts)
	order := make([]string, len(parts))
	for i, p := range parts {
		order[i] = p.EntityID
	}

	cbt := &Combat{
		ID:           uuid.New().String(),
		Tenant:       tenant,
		Active:       true,
		LocationID:   locationID,
		ChannelRef:   channelRef,
		Round:        1,
		Participants: parts,
		TurnOrder:    order,
		TurnIndex:    0,
		State:        make(map[string]string),
	}
	cbt.AppendLogf("Combat begins: %s acts first.", parts[0].Name)

	e.mu.Lock()
	if e.combats[tenant] == nil {
		e.combats[tenant] = make(map[string]*Combat)
	}
	e.combats[tenant][cbt.ID] = cbt
	e.order[tenant] = append(e.order[tenant], cbt.ID)
	e.markDirtyLocked(tenant, cbt.ID)
	e.mu.Unlock()

	e.notify(ctx, tenant, channelRef, fmt.Sprintf("Combat begins! %s acts first.", parts[0].Name))
	e.logger.Info("combat started",
		zap.String("tenant", tenant),
		zap.String("combat", cbt.ID),
		zap.String("location", locationID),
		zap.Int("participants", len(parts)),
	)
	return cbt, nil
}

// Combat returns the active combat with the given ID.
//
// Postcondition: Returns (combat, true) if active, or (nil, false).
func (e *Engine) Combat(tenant, combatID string) (*Combat, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cbt, ok := e.combats[tenant][combatID]
	return cbt, ok
}

// ActiveCombats returns the tenant's active combats in insertion order, so
// per-tick processing is deterministic given identical inputs.
func (e *Engine) ActiveCombats(tenant string) []*Combat {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Combat, 0, len(e.order[tenant]))
	for _, id := range e.order[tenant] {
		if cbt, ok := e.combats[tenant][id]; ok {
			out = append(out, cbt)
		}
	}
	return out
}

// ProcessTick advances one scheduling tick for a combat.
//
// A missing or inactive combat reports finished so the caller stops
// scheduling it. When the current actor is NPC-controlled, the NPC
// controller chooses its action and the action is routed through
// HandleActionComplete. End conditions are then evaluated; if met, the
// engine ends the combat and reports finished.
//
// Postcondition: Returns true iff the combat no longer needs ticks.
func (e *Engine) ProcessTick(ctx context.Context, tenant, combatID string, elapsed time.Duration) bool {
	cbt, ok := e.Combat(tenant, combatID)
	if !ok || !cbt.Active {
		return true
	}

	if actorID, ok := cbt.CurrentActorID(); ok {
		if p, listed := cbt.Participant(actorID); listed && p.Kind == stats.KindNPC && e.npcs != nil {
			act, err := e.npcs.ChooseAction(ctx, tenant, cbt, actorID)
			if err != nil {
				e.logger.Warn("npc controller failed to choose an action",
					zap.String("tenant", tenant),
					zap.String("combat", combatID),
					zap.String("actor", actorID),
					zap.Error(err),
				)
				// An undecided NPC still consumes its turn.
				cbt.AppendLogf("%s hesitates.", p.Name)
				cbt.AdvanceTurn()
			} else {
				e.HandleActionComplete(ctx, tenant, combatID, act)
			}
		}
	}

	ended, winners := e.effects.CheckEndConditions(ctx, tenant, cbt)
	e.markDirty(tenant, combatID)
	e.logger.Debug("combat tick processed",
		zap.String("tenant", tenant),
		zap.String("combat", combatID),
		zap.Duration("elapsed", elapsed),
		zap.Bool("ended", ended),
	)
	if ended {
		e.EndCombat(ctx, tenant, combatID, winners)
		return true
	}
	return false
}

// HandleActionComplete resolves one completed action inside a combat.
//
// Unknown combats and unlisted actors are ignored with a warning; a player
// mistake must never corrupt combat state. Outcome math is delegated to the
// rules-effects collaborator; its side effects are applied all-or-nothing (a
// collaborator error or a delta naming an unlisted participant discards the
// whole outcome and logs a failure line). The turn pointer advances
// unconditionally afterwards, even when the outcome was discarded: a failed
// attempt still consumes the actor's turn.
func (e *Engine) HandleActionComplete(ctx context.Context, tenant, combatID string, act action.Action) {
	cbt, ok := e.Combat(tenant, combatID)
	if !ok || !cbt.Active {
		e.logger.Warn("action for missing or ended combat",
			zap.String("tenant", tenant),
			zap.String("combat", combatID),
			zap.String("actor", act.ActorID),
		)
		return
	}
	actor, listed := cbt.Participant(act.ActorID)
	if !listed {
		e.logger.Warn("action from entity not in combat",
			zap.String("tenant", tenant),
			zap.String("combat", combatID),
			zap.String("actor", act.ActorID),
		)
		return
	}

	outcome, err := e.effects.ApplyActionEffects(ctx, tenant, cbt, act)
	if err == nil {
		// Validate before applying anything: an outcome naming an unlisted
		// participant is rejected whole, which is the rollback scope for
		// outcome side effects.
		for id := range outcome.HPDeltas {
			if _, ok := cbt.Participant(id); !ok {
				err = fmt.Errorf("outcome names entity %q not in combat", id)
				break
			}
		}
	}

	if err != nil {
		e.logger.Warn("action outcome discarded",
			zap.String("tenant", tenant),
			zap.String("combat", combatID),
			zap.String("actor", act.ActorID),
			zap.String("intent", act.Intent.String()),
			zap.Error(err),
		)
		cbt.AppendLogf("%s's %s fails to resolve.", actor.Name, act.Intent)
	} else {
		// Apply deltas in participant order for deterministic logs.
		for _, p := range cbt.Participants {
			if delta, ok := outcome.HPDeltas[p.EntityID]; ok {
				p.ApplyDelta(delta)
			}
		}
		cbt.Log = append(cbt.Log, outcome.LogLines...)
	}

	actor.Acted = true
	cbt.AdvanceTurn()
	e.markDirty(tenant, combatID)
}

// EndCombat marks the combat ended, grants rewards, and retires the record.
//
// Missing or already-ended combats are a logged no-op, so calling EndCombat
// twice for the same ID never duplicates XP or loot grants. Winners each
// receive the catalog XP award; each defeated non-winner's loot table is
// rolled and the items are handed to the rewards collaborator, distributed
// round-robin across the winners.
func (e *Engine) EndCombat(ctx context.Context, tenant, combatID string, winners []string) {
	e.mu.Lock()
	cbt, ok := e.combats[tenant][combatID]
	if !ok || !cbt.Active {
		e.mu.Unlock()
		e.logger.Warn("end requested for missing or already ended combat",
			zap.String("tenant", tenant),
			zap.String("combat", combatID),
		)
		return
	}
	cbt.Active = false
	delete(e.combats[tenant], combatID)
	e.removeOrderLocked(tenant, combatID)
	if e.dirty[tenant] != nil {
		delete(e.dirty[tenant], combatID)
	}
	e.mu.Unlock()

	if len(winners) > 0 {
		cbt.AppendLogf("Combat ends. Victors: %s.", strings.Join(winners, ", "))
	} else {
		cbt.AppendLog("Combat ends with no victor.")
	}

	winnerSet := make(map[string]struct{}, len(winners))
	for _, w := range winners {
		winnerSet[w] = struct{}{}
	}
	var defeated []*Participant
	for _, p := range cbt.Participants {
		if _, isWinner := winnerSet[p.EntityID]; !isWinner && p.Defeated() {
			defeated = append(defeated, p)
		}
	}

	if e.rewards != nil {
		amount := e.catalog.XP().Award(len(defeated))
		for _, w := range winners {
			if err := e.rewards.GrantXP(ctx, tenant, w, amount); err != nil {
				e.logger.Warn("granting xp failed",
					zap.String("tenant", tenant),
					zap.String("entity", w),
					zap.Error(err),
				)
			}
		}
		for i, d := range defeated {
			if len(winners) == 0 {
				break
			}
			lt, ok := e.catalog.Loot(d.Template)
			if !ok {
				continue
			}
			recipient := winners[i%len(winners)]
			loot := rules.GenerateLoot(lt, e.roller.Source())
			for _, item := range loot.Items {
				if err := e.rewards.GrantItem(ctx, tenant, recipient, item.ItemDefID, item.Quantity); err != nil {
					e.logger.Warn("granting loot failed",
						zap.String("tenant", tenant),
						zap.String("entity", recipient),
						zap.String("item", item.ItemDefID),
						zap.Error(err),
					)
				}
			}
			if loot.Currency > 0 {
				if err := e.rewards.GrantItem(ctx, tenant, recipient, "currency", loot.Currency); err != nil {
					e.logger.Warn("granting currency failed",
						zap.String("tenant", tenant),
						zap.String("entity", recipient),
						zap.Error(err),
					)
				}
			}
		}
	}

	if e.store != nil {
		if err := e.store.DeleteCombat(ctx, tenant, combatID); err != nil {
			e.logger.Warn("deleting ended combat failed",
				zap.String("tenant", tenant),
				zap.String("combat", combatID),
				zap.Error(err),
			)
		}
	}

	e.notify(ctx, tenant, cbt.ChannelRef, "The fight is over.")
	e.logger.Info("combat ended",
		zap.String("tenant", tenant),
		zap.String("combat", combatID),
		zap.Strings("winners", winners),
	)
}

// RemoveParticipant handles an external entity-lifecycle event (death or
// disconnect outside the action pipeline) by removing the entity from the
// combat, then re-evaluating end conditions.
//
// Postcondition: the turn-index invariant holds; the combat is ended if the
// removal satisfied the end conditions.
func (e *Engine) RemoveParticipant(ctx context.Context, tenant, combatID, entityID string, kind stats.EntityKind) {
	cbt, ok := e.Combat(tenant, combatID)
	if !ok || !cbt.Active {
		e.logger.Warn("participant removal for missing or ended combat",
			zap.String("tenant", tenant),
			zap.String("combat", combatID),
			zap.String("entity", entityID),
		)
		return
	}
	p, listed := cbt.Participant(entityID)
	if !listed {
		e.logger.Warn("participant removal for entity not in combat",
			zap.String("tenant", tenant),
			zap.String("combat", combatID),
			zap.String("entity", entityID),
		)
		return
	}

	cbt.RemoveFromOrder(entityID)
	cbt.AppendLogf("%s is out of the fight.", p.Name)
	e.markDirty(tenant, combatID)
	e.logger.Info("participant removed",
		zap.String("tenant", tenant),
		zap.String("combat", combatID),
		zap.String("entity", entityID),
		zap.String("kind", string(kind)),
	)

	if ended, winners := e.effects.CheckEndConditions(ctx, tenant, cbt); ended {
		e.EndCombat(ctx, tenant, combatID, winners)
	}
}

// Flush hands every dirty combat of the tenant to the persistence
// collaborator and clears the dirty set. Combats that fail to save are
// re-marked dirty for the next flush.
//
// Postcondition: Returns the joined save errors, or nil when every dirty
// combat was saved (or no store is configured).
func (e *Engine) Flush(ctx context.Context, tenant string) error {
	if e.store == nil {
		return nil
	}

	e.mu.Lock()
	var pending []*Combat
	for _, id := range e.order[tenant] {
		if _, isDirty := e.dirty[tenant][id]; !isDirty {
			continue
		}
		if cbt, ok := e.combats[tenant][id]; ok {
			pending = append(pending, cbt)
		}
	}
	delete(e.dirty, tenant)
	e.mu.Unlock()

	var errs []error
	for _, cbt := range pending {
		if err := e.store.SaveCombat(ctx, tenant, cbt); err != nil {
			errs = append(errs, fmt.Errorf("saving combat %q: %w", cbt.ID, err))
			e.markDirty(tenant, cbt.ID)
		}
	}
	return errors.Join(errs...)
}

// Restore loads the tenant's active combats from the persistence
// collaborator and registers them, replacing any in-memory state for that
// tenant. Loaded combats are clean (not dirty).
func (e *Engine) Restore(ctx context.Context, tenant string) error {
	if e.store == nil {
		return nil
	}
	loaded, err := e.store.LoadActive(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading active combats for tenant %q: %w", tenant, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.combats[tenant] = make(map[string]*Combat)
	e.order[tenant] = nil
	delete(e.dirty, tenant)
	for _, cbt := range loaded {
		if !cbt.Active {
			continue
		}
		e.combats[tenant][cbt.ID] = cbt
		e.order[tenant] = append(e.order[tenant], cbt.ID)
	}
	return nil
}

func (e *Engine) markDirty(tenant, combatID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markDirtyLocked(tenant, combatID)
}

func (e *Engine) markDirtyLocked(tenant, combatID string) {
	if e.dirty[tenant] == nil {
		e.dirty[tenant] = make(map[string]struct{})
	}
	e.dirty[tenant][combatID] = struct{}{}
}

func (e *Engine) removeOrderLocked(tenant, combatID string) {
	ids := e.order[tenant]
	for i, id := range ids {
		if id == combatID {
			e.order[tenant] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// notify sends a best-effort message; failures are logged, never fatal.
func (e *Engine) notify(ctx context.Context, tenant, channelRef, message string) {
	if e.notifier == nil || channelRef == "" {
		return
	}
	if err := e.notifier.Notify(ctx, tenant, channelRef, message); err != nil {
		e.logger.Warn("notification failed",
			zap.String("tenant", tenant),
			zap.String("channel", channelRef),
			zap.Error(err),
		)
	}
}
