// Package rules holds the read-only rules catalog: stat definitions, item and
// status-effect modifier tables, check mappings, conflict definitions, XP and
// loot rules. The catalog is loaded once at startup and never mutated by the
// resolution core.
package rules

import "fmt"

// StatKind distinguishes ability scores (which contribute floor((v-10)/2))
// from flat skills (which contribute their value directly).
type StatKind string

const (
	StatAbility StatKind = "ability"
	StatSkill   StatKind = "skill"
)

// StatDef defines one base stat: its default value and clamping bounds.
type StatDef struct {
	ID      string   `yaml:"id"`
	Kind    StatKind `yaml:"kind"`
	Default int      `yaml:"default"`
	Min     int      `yaml:"min"`
	Max     int      `yaml:"max"`
}

// Validate checks the stat definition invariants.
//
// Postcondition: Returns nil iff ID is non-empty, Kind is known, and Min <= Default <= Max.
func (s *StatDef) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("stat definition must have a non-empty id")
	}
	if s.Kind != StatAbility && s.Kind != StatSkill {
		return fmt.Errorf("stat %q: kind must be %q or %q, got %q", s.ID, StatAbility, StatSkill, s.Kind)
	}
	if s.Min > s.Max {
		return fmt.Errorf("stat %q: min (%d) must be <= max (%d)", s.ID, s.Min, s.Max)
	}
	if s.Default < s.Min || s.Default > s.Max {
		return fmt.Errorf("stat %q: default (%d) must be within [%d, %d]", s.ID, s.Default, s.Min, s.Max)
	}
	return nil
}

// ModifierKind distinguishes additive from multiplicative stat modifiers.
type ModifierKind string

const (
	ModFlat       ModifierKind = "flat"
	ModMultiplier ModifierKind = "multiplier"
)

// Modifier is one stat adjustment declared by an item or status effect.
type Modifier struct {
	Stat  string       `yaml:"stat"`
	Kind  ModifierKind `yaml:"kind"`
	Value float64      `yaml:"value"`
}

// ItemDef declares the stat modifiers and granted abilities of an equippable item.
type ItemDef struct {
	ID        string     `yaml:"id"`
	Name      string     `yaml:"name"`
	Modifiers []Modifier `yaml:"modifiers"`
	Grants    []string   `yaml:"grants"`
}

// StatusDef declares the stat modifiers and granted abilities of a status effect.
type StatusDef struct {
	ID        string     `yaml:"id"`
	Name      string     `yaml:"name"`
	Modifiers []Modifier `yaml:"modifiers"`
	Grants    []string   `yaml:"grants"`
}

// CheckDef maps a check type to its backing stat and, for contested checks,
// the stat the target defends with. An empty Opposed means no opposition rule
// is declared; opposed checks against such a type automatically fail.
type CheckDef struct {
	ID      string `yaml:"id"`
	Stat    string `yaml:"stat"`
	Opposed string `yaml:"opposed"`
}

// ConflictMode selects how a detected action conflict is settled.
type ConflictMode string

const (
	// ConflictManual defers the group to a human moderator.
	ConflictManual ConflictMode = "manual"
	// ConflictAuto settles the group with a check.
	ConflictAuto ConflictMode = "auto"
)

// ConflictDef describes one conflict type: which intents contend, how the
// contention is settled, and (for auto mode) which check decides it.
// Definitions are matched in catalog order.
type ConflictDef struct {
	Type          string       `yaml:"type"`
	Intents       []string     `yaml:"intents"`
	Mode          ConflictMode `yaml:"mode"`
	AutoCheck     string       `yaml:"auto_check"`
	ManualOptions []string     `yaml:"manual_options"`
}

// Validate checks the conflict definition invariants.
//
// Postcondition: Returns nil iff Type and Intents are non-empty, Mode is known,
// and auto mode names a check.
func (c *ConflictDef) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("conflict definition must have a non-empty type")
	}
	if len(c.Intents) == 0 {
		return fmt.Errorf("conflict %q: must match at least one intent", c.Type)
	}
	switch c.Mode {
	case ConflictManual:
	case ConflictAuto:
		if c.AutoCheck == "" {
			return fmt.Errorf("conflict %q: auto mode requires auto_check", c.Type)
		}
	default:
		return fmt.Errorf("conflict %q: mode must be %q or %q, got %q", c.Type, ConflictManual, ConflictAuto, c.Mode)
	}
	return nil
}

// XPRule defines experience granted when a combat ends.
// Each winner receives Victory plus PerDefeated for every defeated non-winner.
type XPRule struct {
	Victory     int `yaml:"victory"`
	PerDefeated int `yaml:"per_defeated"`
}

// Award computes the XP granted to a single winner.
//
// Postcondition: Returns >= 0 for non-negative rule values.
func (x XPRule) Award(defeated int) int {
	return x.Victory + x.PerDefeated*defeated
}

// Catalog is the aggregated read-only rules configuration.
// Stat and conflict definitions preserve load order; lookups are by ID.
type Catalog struct {
	stats     []*StatDef
	statIndex map[string]*StatDef
	items     map[string]*ItemDef
	statuses  map[string]*StatusDef
	checks    map[string]*CheckDef
	conflicts []*ConflictDef
	loot      map[string]*LootTable
	xp        XPRule
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		statIndex: make(map[string]*StatDef),
		items:     make(map[string]*ItemDef),
		statuses:  make(map[string]*StatusDef),
		checks:    make(map[string]*CheckDef),
		loot:      make(map[string]*LootTable),
	}
}

// RegisterStat appends def to the ordered stat list, replacing any earlier
// definition with the same ID in place.
// Precondition: def must not be nil and def.ID must not be empty.
func (c *Catalog) RegisterStat(def *StatDef) {
	if old, ok := c.statIndex[def.ID]; ok {
		for i, s := range c.stats {
			if s == old {
				c.stats[i] = def
				break
			}
		}
	} else {
		c.stats = append(c.stats, def)
	}
	c.statIndex[def.ID] = def
}

// RegisterItem adds def, overwriting any existing entry with the same ID.
func (c *Catalog) RegisterItem(def *ItemDef) { c.items[def.ID] = def }

// RegisterStatus adds def, overwriting any existing entry with the same ID.
func (c *Catalog) RegisterStatus(def *StatusDef) { c.statuses[def.ID] = def }

// RegisterCheck adds def, overwriting any existing entry with the same ID.
func (c *Catalog) RegisterCheck(def *CheckDef) { c.checks[def.ID] = def }

// RegisterConflict appends def to the ordered conflict list.
func (c *Catalog) RegisterConflict(def *ConflictDef) { c.conflicts = append(c.conflicts, def) }

// RegisterLoot adds the loot table for a template ID.
func (c *Catalog) RegisterLoot(template string, lt *LootTable) { c.loot[template] = lt }

// SetXP installs the experience rule.
func (c *Catalog) SetXP(rule XPRule) { c.xp = rule }

// Stats returns the stat definitions in catalog iteration order.
func (c *Catalog) Stats() []*StatDef { return c.stats }

// Stat returns the StatDef for id, or (nil, false) if not found.
func (c *Catalog) Stat(id string) (*StatDef, bool) {
	d, ok := c.statIndex[id]
	return d, ok
}

// Item returns the ItemDef for id, or (nil, false) if not found.
func (c *Catalog) Item(id string) (*ItemDef, bool) {
	d, ok := c.items[id]
	return d, ok
}

// Status returns the StatusDef for id, or (nil, false) if not found.
func (c *Catalog) Status(id string) (*StatusDef, bool) {
	d, ok := c.statuses[id]
	return d, ok
}

// Check returns the CheckDef for id, or (nil, false) if not found.
func (c *Catalog) Check(id string) (*CheckDef, bool) {
	d, ok := c.checks[id]
	return d, ok
}

// Conflicts returns the conflict definitions in catalog iteration order.
func (c *Catalog) Conflicts() []*ConflictDef { return c.conflicts }

// Loot returns the loot table for template, or (nil, false) if not found.
func (c *Catalog) Loot(template string) (*LootTable, bool) {
	lt, ok := c.loot[template]
	return lt, ok
}

// XP returns the experience rule.
func (c *Catalog) XP() XPRule { return c.xp }
