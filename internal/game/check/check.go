// Package check resolves single and opposed skill/ability checks: dice plus
// stat-derived modifiers against a difficulty class or a target's passive
// defense.
package check

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/arbiter/internal/game/dice"
	"github.com/cory-johannsen/arbiter/internal/game/stats"
)

// NamedModifier is one named contribution to a check total, kept separate so
// callers can display the full audit breakdown.
type NamedModifier struct {
	Source string
	Value  int
}

// Request describes a single check to resolve.
type Request struct {
	Tenant    string
	CheckType string
	ActorID   string
	ActorKind stats.EntityKind
	// TargetID is empty for a simple check; non-empty makes the check opposed.
	TargetID   string
	TargetKind stats.EntityKind
	// DC is the difficulty class for a simple check; nil means no threshold
	// (the check succeeds on any total >= 0).
	DC *int
	// Extra lists situational modifiers supplied by the caller.
	Extra []NamedModifier
	Notes string
	// Dice overrides the resolver's default check expression when non-empty.
	Dice string
}

// Result is the immutable outcome of one resolved check.
type Result struct {
	CheckType string
	ActorID   string
	TargetID  string
	Roll      dice.RollResult
	// Breakdown lists every modifier source individually, stat first.
	Breakdown     []NamedModifier
	ModifierTotal int
	// Total is Roll.Total() + ModifierTotal.
	Total int
	// Threshold is the value Total was compared against: the DC for a simple
	// check, or the opposed value for a contested one.
	Threshold int
	Opposed   bool
	Succeeded bool
	// Trace is a human-readable account of the resolution for audit/UI.
	Trace string
}

// trace renders the audit line, e.g.
//
//	"athletics: 1d20 → [12] +0 = 12, +3 (strength) = 15 vs DC 15: success"
func trace(r Result, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", r.CheckType, r.Roll.String())
	for _, m := range r.Breakdown {
		fmt.Fprintf(&b, ", %+d (%s)", m.Value, m.Source)
	}
	label := "DC"
	if r.Opposed {
		label = "opposed"
	}
	fmt.Fprintf(&b, " = %d vs %s %d: ", r.Total, label, r.Threshold)
	if reason != "" {
		b.WriteString(reason)
	} else if r.Succeeded {
		b.WriteString("success")
	} else {
		b.WriteString("failure")
	}
	return b.String()
}
