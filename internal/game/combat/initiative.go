package combat

import (
	"sort"

	"github.com/cory-johannsen/arbiter/internal/game/dice"
	"github.com/cory-johannsen/arbiter/internal/game/stats"
)

// initiativeStat is the effective stat whose ability modifier is added to the
// initiative roll.
const initiativeStat = "dexterity"

var initiativeDice = dice.MustParse("1d20")

// rollInitiative computes a participant's initiative: 1d20 + the ability
// modifier of the effective initiative stat.
//
// Precondition: roller must be non-nil.
func rollInitiative(roller *dice.Roller, dexValue int) int {
	return roller.Roll(initiativeDice).Total() + stats.AbilityMod(dexValue)
}

// sortByInitiative orders participants for the encounter: descending by
// initiative, ties broken by descending MaxHP. The sort is stable so equal
// participants keep candidate order.
func sortByInitiative(parts []*Participant) {
	sort.SliceStable(parts, func(i, j int) bool {
		if parts[i].Initiative != parts[j].Initiative {
			return parts[i].Initiative > parts[j].Initiative
		}
		return parts[i].MaxHP > parts[j].MaxHP
	})
}
