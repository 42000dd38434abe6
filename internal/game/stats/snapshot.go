package stats

import (
	"context"
	"errors"
	"sort"
)

// EntityKind distinguishes player characters from NPCs.
type EntityKind string

const (
	KindCharacter EntityKind = "character"
	KindNPC       EntityKind = "npc"
)

// EntitySnapshot is the typed view of an entity handed to the resolution
// core by the entity-data provider. Every field the core reads is declared
// here; nothing is discovered at runtime.
type EntitySnapshot struct {
	ID   string
	Kind EntityKind
	Name string
	// Template is the content-template ID, used for loot table lookups.
	Template string
	HP       int
	MaxHP    int
	Level    int
	// Stats holds persisted base stat values keyed by stat ID.
	Stats map[string]int
	// Skills holds flat skill values keyed by skill ID.
	Skills map[string]int
	// EquippedItems lists currently-equipped item IDs in equip order.
	EquippedItems []string
	// StatusEffects lists currently-active status-effect IDs in application order.
	StatusEffects []string
}

// statOrder returns the snapshot's stat IDs in sorted order, so resolution
// output is deterministic regardless of map iteration.
func (s EntitySnapshot) statOrder() []string {
	ids := make([]string, 0, len(s.Stats))
	for id := range s.Stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ErrEntityNotFound is returned by Provider implementations when the
// requested entity does not exist in the given tenant.
var ErrEntityNotFound = errors.New("entity not found")

// Provider is the entity-data collaborator. Implementations are expected to
// be I/O-bound and must honor ctx cancellation.
type Provider interface {
	// BaseStats returns the entity's current snapshot, or an error wrapping
	// ErrEntityNotFound when the entity does not exist.
	BaseStats(ctx context.Context, tenant, entityID string, kind EntityKind) (EntitySnapshot, error)
}
