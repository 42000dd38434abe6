// Package combat implements the initiative-ordered combat state machine:
// per-tenant collections of active encounters, round/turn advancement, and
// the combat lifecycle from start to end.
package combat

import (
	"fmt"

	"github.com/cory-johannsen/arbiter/internal/game/stats"
)

// Participant represents one combatant inside a Combat.
//
// Invariant: 0 <= HP <= MaxHP. HP == 0 marks the participant defeated, but it
// stays in the list until explicitly removed.
type Participant struct {
	EntityID string           `json:"entity_id"`
	Kind     stats.EntityKind `json:"kind"`
	Name     string           `json:"name"`
	// Template is the content-template ID used for loot lookups on defeat.
	Template   string `json:"template,omitempty"`
	HP         int    `json:"hp"`
	MaxHP      int    `json:"max_hp"`
	Initiative int    `json:"initiative"`
	// Acted reports whether this participant has acted in the current round.
	Acted bool `json:"acted"`
}

// Defeated reports whether this participant is at zero hit points.
func (p *Participant) Defeated() bool { return p.HP <= 0 }

// ApplyDelta adjusts HP by delta (negative for damage), clamping to [0, MaxHP].
//
// Postcondition: 0 <= HP <= MaxHP.
func (p *Participant) ApplyDelta(delta int) {
	p.HP += delta
	if p.HP < 0 {
		p.HP = 0
	}
	if p.HP > p.MaxHP {
		p.HP = p.MaxHP
	}
}

// Combat holds the live state of a single encounter.
//
// Invariant: whenever TurnOrder is non-empty, 0 <= TurnIndex < len(TurnOrder).
// Active == false is terminal; an ended Combat is removed from the engine's
// active collection and never reactivated.
type Combat struct {
	ID         string `json:"id"`
	Tenant     string `json:"tenant"`
	Active     bool   `json:"active"`
	LocationID string `json:"location_id"`
	// ChannelRef addresses the notification channel for this encounter.
	ChannelRef string `json:"channel_ref"`
	// Round starts at 1 and increments each time the turn pointer wraps.
	Round        int            `json:"round"`
	Participants []*Participant `json:"participants"`
	// TurnOrder is the initiative-sorted sequence of participant entity IDs.
	TurnOrder []string `json:"turn_order"`
	TurnIndex int      `json:"turn_index"`
	// Log is the append-only combat narration.
	Log []string `json:"log"`
	// State is free-form per-encounter state shared with the effects pipeline.
	State map[string]string `json:"state,omitempty"`
}

// Participant returns the participant with the given entity ID.
//
// Postcondition: Returns (participant, true) if listed, or (nil, false).
func (c *Combat) Participant(entityID string) (*Participant, bool) {
	for _, p := range c.Participants {
		if p.EntityID == entityID {
			return p, true
		}
	}
	return nil, false
}

// CurrentActorID returns the entity whose turn it is.
//
// Postcondition: Returns ("", false) when TurnOrder is empty.
func (c *Combat) CurrentActorID() (string, bool) {
	if len(c.TurnOrder) == 0 {
		return "", false
	}
	return c.TurnOrder[c.TurnIndex], true
}

// AdvanceTurn moves the turn pointer to the next entry in TurnOrder,
// incrementing Round when the pointer wraps to 0 and clearing the per-round
// acted flags.
//
// Postcondition: the turn-index invariant holds; Round is monotonic.
func (c *Combat) AdvanceTurn() {
	if len(c.TurnOrder) == 0 {
		c.TurnIndex = 0
		return
	}
	c.TurnIndex = (c.TurnIndex + 1) % len(c.TurnOrder)
	if c.TurnIndex == 0 {
		c.Round++
		for _, p := range c.Participants {
			p.Acted = false
		}
	}
}

// RemoveFromOrder removes entityID from Participants and TurnOrder, adjusting
// TurnIndex: removal at or before the current index pulls the index back one;
// an emptied order resets to 0; the result is clamped into [0, len(TurnOrder)).
//
// Postcondition: the turn-index invariant holds.
func (c *Combat) RemoveFromOrder(entityID string) {
	for i, p := range c.Participants {
		if p.EntityID == entityID {
			c.Participants = append(c.Participants[:i], c.Participants[i+1:]...)
			break
		}
	}
	for i, id := range c.TurnOrder {
		if id == entityID {
			c.TurnOrder = append(c.TurnOrder[:i], c.TurnOrder[i+1:]...)
			if i <= c.TurnIndex {
				c.TurnIndex--
			}
			break
		}
	}
	if len(c.TurnOrder) == 0 {
		c.TurnIndex = 0
		return
	}
	if c.TurnIndex < 0 {
		c.TurnIndex = 0
	}
	if c.TurnIndex >= len(c.TurnOrder) {
		c.TurnIndex = len(c.TurnOrder) - 1
	}
}

// HasStanding reports whether any participant of the given kind has HP > 0.
func (c *Combat) HasStanding(kind stats.EntityKind) bool {
	for _, p := range c.Participants {
		if p.Kind == kind && !p.Defeated() {
			return true
		}
	}
	return false
}

// Standing returns the entity IDs of all participants with HP > 0, in
// participant order.
func (c *Combat) Standing() []string {
	var ids []string
	for _, p := range c.Participants {
		if !p.Defeated() {
			ids = append(ids, p.EntityID)
		}
	}
	return ids
}

// AppendLog appends a line to the combat narration.
func (c *Combat) AppendLog(line string) {
	c.Log = append(c.Log, line)
}

// AppendLogf appends a formatted line to the combat narration.
func (c *Combat) AppendLogf(format string, args ...any) {
	c.Log = append(c.Log, fmt.Sprintf(format, args...))
}
