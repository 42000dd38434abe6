// Package stats computes effective entity stats by layering equipment and
// status-effect modifiers onto base attributes. Resolution is a pure function
// over a snapshot and the rules catalog; nothing here mutates the entity and
// nothing is ever persisted.
package stats

import (
	"math"

	"github.com/cory-johannsen/arbiter/internal/game/rules"
)

// EffectiveStats is a computed-on-demand snapshot of an entity's final stats.
// Values are recomputed from source data on every Resolve call.
type EffectiveStats struct {
	// Values maps stat ID to its final clamped value.
	Values map[string]int
	// Grants lists every ability/skill granted by equipped items and active
	// status effects, concatenated without deduplication.
	Grants []string
}

// Value returns the effective value for stat, or (0, false) when the stat is
// neither in the catalog nor carried by the snapshot.
func (e EffectiveStats) Value(stat string) (int, bool) {
	v, ok := e.Values[stat]
	return v, ok
}

// AbilityMod computes the standard ability modifier using floor division:
// floor((score - 10) / 2).
//
// Postcondition: Returns floor((score - 10) / 2).
func AbilityMod(score int) int {
	diff := score - 10
	if diff < 0 {
		return (diff - 1) / 2
	}
	return diff / 2
}

// Resolve computes the entity's effective stats from snap and cat:
//
//  1. Every stat named in the catalog is seeded from the snapshot (stats,
//     then skills), falling back to the catalog default. Snapshot stats with
//     no catalog entry are carried too.
//  2. Flat modifiers from equipped items and active status effects are
//     summed per stat.
//  3. Multiplier modifiers are applied sequentially in deterministic order:
//     equipped items in snapshot order, then status effects in snapshot
//     order, each definition's modifiers in declared order.
//  4. final = roundHalfUp((base + Σflat) × Πmult), clamped to the catalog
//     [min, max]; stats with no catalog entry pass through unclamped.
//  5. Grants from items and statuses are concatenated without deduplication.
//
// Unknown item or status IDs in the snapshot contribute nothing.
//
// Precondition: cat must be non-nil.
// Postcondition: Every catalog stat appears in Values within its [min, max].
func Resolve(snap EntitySnapshot, cat *rules.Catalog) EffectiveStats {
	base := make(map[string]int)
	var order []string

	for _, def := range cat.Stats() {
		v := def.Default
		if sv, ok := snap.Stats[def.ID]; ok {
			v = sv
		} else if sk, ok := snap.Skills[def.ID]; ok {
			v = sk
		}
		base[def.ID] = v
		order = append(order, def.ID)
	}
	// Snapshot stats outside the catalog pass through (unclamped).
	for _, id := range snap.statOrder() {
		if _, ok := base[id]; !ok {
			base[id] = snap.Stats[id]
			order = append(order, id)
		}
	}

	flats := make(map[string]float64)
	mults := make(map[string][]float64)
	var grants []string

	collect := func(modifiers []rules.Modifier, granted []string) {
		for _, m := range modifiers {
			switch m.Kind {
			case rules.ModFlat:
				flats[m.Stat] += m.Value
			case rules.ModMultiplier:
				mults[m.Stat] = append(mults[m.Stat], m.Value)
			}
		}
		grants = append(grants, granted...)
	}

	for _, id := range snap.EquippedItems {
		if def, ok := cat.Item(id); ok {
			collect(def.Modifiers, def.Grants)
		}
	}
	for _, id := range snap.StatusEffects {
		if def, ok := cat.Status(id); ok {
			collect(def.Modifiers, def.Grants)
		}
	}

	values := make(map[string]int, len(order))
	for _, id := range order {
		v := float64(base[id]) + flats[id]
		for _, m := range mults[id] {
			v *= m
		}
		final := roundHalfUp(v)
		if def, ok := cat.Stat(id); ok {
			final = clamp(final, def.Min, def.Max)
		}
		values[id] = final
	}

	return EffectiveStats{Values: values, Grants: grants}
}

// roundHalfUp rounds to the nearest integer, halves away from the floor
// (2.5 → 3, -2.5 → -2).
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
