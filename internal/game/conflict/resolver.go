package conflict

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arbiter/internal/game/action"
	"github.com/cory-johannsen/arbiter/internal/game/rules"
)

// ErrConflictNotFound is returned by ResolvePending when the conflict ID does
// not name a pending conflict for the tenant (already resolved, or never
// existed). No state is mutated in that case.
var ErrConflictNotFound = errors.New("pending conflict not found")

// Arbiter settles an auto-mode conflict group by running the configured
// check for each contender and picking winners. Zero winners is a valid
// outcome (ties, or every contender failed).
type Arbiter interface {
	ResolveActionConflict(ctx context.Context, tenant, conflictType, checkType string, actions []action.Action) (winners, losers []string, err error)
}

// Party is one actor's involvement snapshot inside a PendingConflict.
type Party struct {
	ActorID  string
	ActionID string
	Intent   action.Intent
	Resource string
}

// PendingConflict is a conflict awaiting a moderator decision. It exists in
// the resolver's tenant map only until ResolvePending removes it.
type PendingConflict struct {
	ID        string
	Tenant    string
	Type      string
	Parties   []Party
	Options   []string
	Message   string
	CreatedAt time.Time
}

// AutoOutcome records how one auto-mode conflict group was settled, for audit.
type AutoOutcome struct {
	Type     string
	Resource string
	Winners  []string
	Losers   []string
}

// Result is what one Analyze pass produced.
type Result struct {
	// RequiresManual reports whether any group was escalated to a moderator.
	RequiresManual bool
	// Pending lists the conflicts escalated by this pass.
	Pending []*PendingConflict
	// AutoOutcomes lists the automatically settled groups.
	AutoOutcomes []AutoOutcome
	// Execute is the filtered set of actions safe to carry out this tick, in
	// deterministic actor order with each actor's submission order preserved.
	Execute []*Wrapper
}

// ResolutionResult is a moderator's decision handed back to the caller. The
// resolver never applies game-world effects of the decision itself.
type ResolutionResult struct {
	Conflict *PendingConflict
	Outcome  string
	Params   map[string]string
}

// Resolver detects contested resources among a tick's submitted actions.
// Pending conflicts are keyed by tenant then conflict ID; the mutex guards
// that map only — wrappers stay owned by the tick driver.
type Resolver struct {
	mu      sync.Mutex
	pending map[string]map[string]*PendingConflict

	catalog *rules.Catalog
	arbiter Arbiter
	logger  *zap.Logger
	now     func() time.Time
}

// NewResolver creates a conflict Resolver.
//
// Precondition: catalog, arbiter, and logger must be non-nil.
func NewResolver(catalog *rules.Catalog, arbiter Arbiter, logger *zap.Logger) *Resolver {
	return &Resolver{
		pending: make(map[string]map[string]*PendingConflict),
		catalog: catalog,
		arbiter: arbiter,
		logger:  logger,
		now:     time.Now,
	}
}

// Analyze filters one tick's submissions for the tenant.
//
// Conflict definitions are matched in catalog order. For each definition,
// actions with a matching intent are grouped by contested-resource key;
// groups spanning at least two distinct actors are conflicts. An action
// claimed by an earlier definition is never grouped again. Manual-mode
// groups become PendingConflicts and their actions are withheld from this
// tick; auto-mode groups are settled by the arbiter. Everything unclaimed
// becomes ready to execute.
//
// Postcondition: every wrapper left StatusPending on entry leaves in exactly
// one resolution state, and Execute contains exactly the executable wrappers
// in deterministic order.
func (r *Resolver) Analyze(ctx context.Context, tenant string, submissions map[string][]*Wrapper) Result {
	actors := make([]string, 0, len(submissions))
	for actor := range submissions {
		actors = append(actors, actor)
	}
	sort.Strings(actors)

	var result Result
	claimed := make(map[string]struct{})

	for _, def := range r.catalog.Conflicts() {
		groups := r.group(def, actors, submissions, claimed)

		keys := make([]string, 0, len(groups))
		for key := range groups {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			members := groups[key]
			for _, w := range members {
				claimed[w.ID] = struct{}{}
			}
			switch def.Mode {
			case rules.ConflictManual:
				result.Pending = append(result.Pending, r.escalate(tenant, def, key, members))
			case rules.ConflictAuto:
				result.AutoOutcomes = append(result.AutoOutcomes, r.settle(ctx, tenant, def, key, members))
			}
		}
	}

	result.RequiresManual = len(result.Pending) > 0

	for _, actor := range actors {
		for _, w := range submissions[actor] {
			w.transition(StatusReady)
			if w.Status.executable() {
				result.Execute = append(result.Execute, w)
			}
		}
	}
	return result
}

// group collects the definition's conflict groups: unclaimed actions with a
// matching intent and a non-empty resource key, keyed by resource, kept only
// when at least two distinct actors contend.
func (r *Resolver) group(def *rules.ConflictDef, actors []string, submissions map[string][]*Wrapper, claimed map[string]struct{}) map[string][]*Wrapper {
	intents := make(map[action.Intent]struct{}, len(def.Intents))
	for _, tag := range def.Intents {
		intents[action.ParseIntent(tag)] = struct{}{}
	}

	byResource := make(map[string][]*Wrapper)
	actorsPer := make(map[string]map[string]struct{})
	for _, actor := range actors {
		for _, w := range submissions[actor] {
			if w.Status != StatusPending {
				continue
			}
			if _, taken := claimed[w.ID]; taken {
				continue
			}
			if _, matches := intents[w.Action.Intent]; !matches {
				continue
			}
			key := w.Action.ContestedResource()
			if key == "" {
				continue
			}
			byResource[key] = append(byResource[key], w)
			if actorsPer[key] == nil {
				actorsPer[key] = make(map[string]struct{})
			}
			actorsPer[key][w.ActorID] = struct{}{}
		}
	}
	for key := range byResource {
		if len(actorsPer[key]) < 2 {
			delete(byResource, key)
		}
	}
	return byResource
}

// escalate creates and stores a PendingConflict for a manual-mode group and
// moves every member to pending-manual.
func (r *Resolver) escalate(tenant string, def *rules.ConflictDef, resource string, members []*Wrapper) *PendingConflict {
	pc := &PendingConflict{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		Type:      def.Type,
		Options:   def.ManualOptions,
		CreatedAt: r.now(),
	}
	names := make([]string, 0, len(members))
	for _, w := range members {
		w.transition(StatusPendingManual)
		pc.Parties = append(pc.Parties, Party{
			ActorID:  w.ActorID,
			ActionID: w.ID,
			Intent:   w.Action.Intent,
			Resource: resource,
		})
		names = append(names, w.ActorID)
	}
	pc.Message = fmt.Sprintf("%s conflict over %q between %s requires moderation", def.Type, resource, strings.Join(names, ", "))

	r.mu.Lock()
	if r.pending[tenant] == nil {
		r.pending[tenant] = make(map[string]*PendingConflict)
	}
	r.pending[tenant][pc.ID] = pc
	r.mu.Unlock()

	r.logger.Info("conflict escalated to moderator",
		zap.String("tenant", tenant),
		zap.String("conflict", pc.ID),
		zap.String("type", def.Type),
		zap.String("resource", resource),
		zap.Strings("actors", names),
	)
	return pc
}

// settle delegates an auto-mode group to the arbiter. Winners proceed,
// everyone else in the group has failed the contention; an arbiter error
// fails the whole group.
func (r *Resolver) settle(ctx context.Context, tenant string, def *rules.ConflictDef, resource string, members []*Wrapper) AutoOutcome {
	outcome := AutoOutcome{Type: def.Type, Resource: resource}

	acts := make([]action.Action, 0, len(members))
	for _, w := range members {
		acts = append(acts, w.Action)
	}
	winners, _, err := r.arbiter.ResolveActionConflict(ctx, tenant, def.Type, def.AutoCheck, acts)
	if err != nil {
		r.logger.Warn("conflict arbitration failed, failing whole group",
			zap.String("tenant", tenant),
			zap.String("type", def.Type),
			zap.String("resource", resource),
			zap.Error(err),
		)
		winners = nil
	}

	winnerSet := make(map[string]struct{}, len(winners))
	for _, id := range winners {
		winnerSet[id] = struct{}{}
	}
	for _, w := range members {
		if _, won := winnerSet[w.ActorID]; won {
			w.transition(StatusAutoProceed)
			outcome.Winners = append(outcome.Winners, w.ActorID)
		} else {
			w.transition(StatusAutoFailed)
			outcome.Losers = append(outcome.Losers, w.ActorID)
		}
	}
	r.logger.Debug("conflict auto-resolved",
		zap.String("tenant", tenant),
		zap.String("type", def.Type),
		zap.String("resource", resource),
		zap.Strings("winners", outcome.Winners),
		zap.Strings("losers", outcome.Losers),
	)
	return outcome
}

// Pending returns the tenant's pending conflicts ordered by creation time
// then ID, for moderation listings.
func (r *Resolver) Pending(tenant string) []*PendingConflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PendingConflict, 0, len(r.pending[tenant]))
	for _, pc := range r.pending[tenant] {
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ResolvePending applies a moderator decision: the conflict is removed from
// the pending map and the chosen outcome is handed back for the caller's
// action-effect pipeline to apply.
//
// Postcondition: Returns ErrConflictNotFound (and mutates nothing) when the
// ID is stale or unknown; otherwise the conflict no longer exists in the map.
func (r *Resolver) ResolvePending(tenant, conflictID, chosenOutcome string, params map[string]string) (ResolutionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pc, ok := r.pending[tenant][conflictID]
	if !ok {
		return ResolutionResult{}, fmt.Errorf("resolving conflict %q for tenant %q: %w", conflictID, tenant, ErrConflictNotFound)
	}
	delete(r.pending[tenant], conflictID)

	r.logger.Info("pending conflict resolved by moderator",
		zap.String("tenant", tenant),
		zap.String("conflict", conflictID),
		zap.String("outcome", chosenOutcome),
	)
	return ResolutionResult{Conflict: pc, Outcome: chosenOutcome, Params: params}, nil
}
