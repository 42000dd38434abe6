package check

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arbiter/internal/game/dice"
	"github.com/cory-johannsen/arbiter/internal/game/rules"
	"github.com/cory-johannsen/arbiter/internal/game/stats"
)

// passiveBase is the baseline a passive opposed defense is built on:
// opposed value = passiveBase + opposing stat modifier.
const passiveBase = 10

// Resolver turns check requests into Results using the dice roller, the
// effective-stats resolver, and the rules catalog.
type Resolver struct {
	provider    stats.Provider
	catalog     *rules.Catalog
	roller      *dice.Roller
	defaultStat string
	defaultDice string
	logger      *zap.Logger
}

// NewResolver creates a check Resolver.
//
// Precondition: provider, catalog, roller, and logger must be non-nil;
// defaultStat must name a catalog stat; defaultDice must be a valid dice
// expression (e.g. "1d20").
func NewResolver(
	provider stats.Provider,
	catalog *rules.Catalog,
	roller *dice.Roller,
	defaultStat string,
	defaultDice string,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		provider:    provider,
		catalog:     catalog,
		roller:      roller,
		defaultStat: defaultStat,
		defaultDice: defaultDice,
		logger:      logger,
	}
}

// backingStat resolves which stat backs checkType, falling back to the
// configured default (with a warning) when the catalog has no entry.
func (r *Resolver) backingStat(checkType string) (*rules.CheckDef, string) {
	def, ok := r.catalog.Check(checkType)
	if !ok {
		r.logger.Warn("check type not declared in catalog, using default stat",
			zap.String("check_type", checkType),
			zap.String("default_stat", r.defaultStat),
		)
		return nil, r.defaultStat
	}
	return def, def.Stat
}

// statModifier computes the contribution of statID for an entity snapshot:
// floor((value-10)/2) for ability stats, the raw value for flat skills.
// Stats absent from the catalog are treated as abilities.
func (r *Resolver) statModifier(snap stats.EntitySnapshot, statID string) int {
	es := stats.Resolve(snap, r.catalog)
	value, _ := es.Value(statID)
	if def, ok := r.catalog.Stat(statID); ok && def.Kind == rules.StatSkill {
		return value
	}
	return stats.AbilityMod(value)
}

// Resolve performs one simple or opposed check.
//
// A missing actor aborts with an error wrapping stats.ErrEntityNotFound.
// An opposed check whose target cannot be found, or whose check type has no
// opposition rule, automatically fails with an explanatory trace; neither is
// an error. Dice expression problems surface immediately as ErrInvalidSpec.
//
// Postcondition: On success, Result.Succeeded == (Result.Total >= Result.Threshold)
// unless the check auto-failed, and the breakdown names every modifier source.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	actor, err := r.provider.BaseStats(ctx, req.Tenant, req.ActorID, req.ActorKind)
	if err != nil {
		return Result{}, fmt.Errorf("check %q: looking up actor %q: %w", req.CheckType, req.ActorID, err)
	}

	def, statID := r.backingStat(req.CheckType)

	breakdown := []NamedModifier{{Source: statID, Value: r.statModifier(actor, statID)}}
	breakdown = append(breakdown, req.Extra...)
	modTotal := 0
	for _, m := range breakdown {
		modTotal += m.Value
	}

	expr := req.Dice
	if expr == "" {
		expr = r.defaultDice
	}
	roll, err := r.roller.RollExpr(expr)
	if err != nil {
		return Result{}, fmt.Errorf("check %q: %w", req.CheckType, err)
	}

	result := Result{
		CheckType:     req.CheckType,
		ActorID:       req.ActorID,
		TargetID:      req.TargetID,
		Roll:          roll,
		Breakdown:     breakdown,
		ModifierTotal: modTotal,
		Total:         roll.Total() + modTotal,
	}

	if req.TargetID == "" {
		dc := 0
		if req.DC != nil {
			dc = *req.DC
		}
		result.Threshold = dc
		result.Succeeded = result.Total >= dc
		result.Trace = trace(result, "")
		r.logResult(req, result)
		return result, nil
	}

	// Opposed check: the target defends with a passive value derived from
	// the opposing stat declared for this check type.
	result.Opposed = true

	if def == nil || def.Opposed == "" {
		result.Succeeded = false
		result.Trace = trace(result, fmt.Sprintf("automatic failure (no opposition rule for %q)", req.CheckType))
		r.logResult(req, result)
		return result, nil
	}

	target, err := r.provider.BaseStats(ctx, req.Tenant, req.TargetID, req.TargetKind)
	if err != nil {
		result.Succeeded = false
		result.Trace = trace(result, fmt.Sprintf("automatic failure (target %q not found)", req.TargetID))
		r.logResult(req, result)
		return result, nil
	}

	result.Threshold = passiveBase + r.statModifier(target, def.Opposed)
	result.Succeeded = result.Total >= result.Threshold
	result.Trace = trace(result, "")
	r.logResult(req, result)
	return result, nil
}

func (r *Resolver) logResult(req Request, result Result) {
	r.logger.Debug("check resolved",
		zap.String("tenant", req.Tenant),
		zap.String("check_type", result.CheckType),
		zap.String("actor", result.ActorID),
		zap.String("target", result.TargetID),
		zap.Int("total", result.Total),
		zap.Int("threshold", result.Threshold),
		zap.Bool("opposed", result.Opposed),
		zap.Bool("succeeded", result.Succeeded),
	)
}
