package check_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arbiter/internal/game/check"
	"github.com/cory-johannsen/arbiter/internal/game/dice"
	"github.com/cory-johannsen/arbiter/internal/game/rules"
	"github.com/cory-johannsen/arbiter/internal/game/stats"
)

// scriptedSource returns pre-planned values, cycling when exhausted.
type scriptedSource struct {
	values []int
	next   int
}

func (s *scriptedSource) Intn(n int) int {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v % n
}

// fakeProvider serves fixed snapshots keyed by entity ID.
type fakeProvider struct {
	entities map[string]stats.EntitySnapshot
}

func (p *fakeProvider) BaseStats(_ context.Context, _ string, entityID string, _ stats.EntityKind) (stats.EntitySnapshot, error) {
	snap, ok := p.entities[entityID]
	if !ok {
		return stats.EntitySnapshot{}, fmt.Errorf("entity %q: %w", entityID, stats.ErrEntityNotFound)
	}
	return snap, nil
}

func checkCatalog() *rules.Catalog {
	cat := rules.NewCatalog()
	cat.RegisterStat(&rules.StatDef{ID: "strength", Kind: rules.StatAbility, Default: 10, Min: 1, Max: 30})
	cat.RegisterStat(&rules.StatDef{ID: "dexterity", Kind: rules.StatAbility, Default: 10, Min: 1, Max: 30})
	cat.RegisterStat(&rules.StatDef{ID: "stealth", Kind: rules.StatSkill, Default: 0, Min: 0, Max: 20})
	cat.RegisterCheck(&rules.CheckDef{ID: "athletics", Stat: "strength"})
	cat.RegisterCheck(&rules.CheckDef{ID: "grapple", Stat: "strength", Opposed: "dexterity"})
	cat.RegisterCheck(&rules.CheckDef{ID: "sneak", Stat: "stealth"})
	return cat
}

func newResolver(t *testing.T, src dice.Source, entities map[string]stats.EntitySnapshot) *check.Resolver {
	t.Helper()
	roller := dice.NewLoggedRoller(src, zap.NewNop())
	return check.NewResolver(&fakeProvider{entities: entities}, checkCatalog(), roller, "strength", "1d20", zap.NewNop())
}

func intPtr(v int) *int { return &v }

// TestResolve_SimpleCheck verifies the worked example: stat 16 (modifier +3),
// roll 12, DC 15 gives total 15 and success.
func TestResolve_SimpleCheck(t *testing.T) {
	r := newResolver(t, &scriptedSource{values: []int{11}}, map[string]stats.EntitySnapshot{
		"hero": {ID: "hero", Stats: map[string]int{"strength": 16}},
	})

	result, err := r.Resolve(context.Background(), check.Request{
		Tenant:    "guild-1",
		CheckType: "athletics",
		ActorID:   "hero",
		ActorKind: stats.KindCharacter,
		DC:        intPtr(15),
	})
	require.NoError(t, err)

	assert.Equal(t, 12, result.Roll.Total())
	assert.Equal(t, 3, result.ModifierTotal)
	assert.Equal(t, 15, result.Total)
	assert.Equal(t, 15, result.Threshold)
	assert.True(t, result.Succeeded, "total 15 meets DC 15")
	assert.False(t, result.Opposed)
	require.Len(t, result.Breakdown, 1)
	assert.Equal(t, "strength", result.Breakdown[0].Source)
	assert.Equal(t, 3, result.Breakdown[0].Value)
	assert.Contains(t, result.Trace, "success")
}

// TestResolve_SimpleCheck_Failure verifies succeeded == (total >= dc) on the
// failing side of the threshold.
func TestResolve_SimpleCheck_Failure(t *testing.T) {
	r := newResolver(t, &scriptedSource{values: []int{10}}, map[string]stats.EntitySnapshot{
		"hero": {ID: "hero", Stats: map[string]int{"strength": 16}},
	})

	result, err := r.Resolve(context.Background(), check.Request{
		CheckType: "athletics",
		ActorID:   "hero",
		ActorKind: stats.KindCharacter,
		DC:        intPtr(15),
	})
	require.NoError(t, err)
	assert.Equal(t, 14, result.Total)
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Trace, "failure")
}

// TestResolve_SkillCheck verifies flat skills contribute their value directly
// instead of an ability modifier.
func TestResolve_SkillCheck(t *testing.T) {
	r := newResolver(t, &scriptedSource{values: []int{9}}, map[string]stats.EntitySnapshot{
		"rogue": {ID: "rogue", Skills: map[string]int{"stealth": 5}},
	})

	result, err := r.Resolve(context.Background(), check.Request{
		CheckType: "sneak",
		ActorID:   "rogue",
		ActorKind: stats.KindCharacter,
		DC:        intPtr(14),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.ModifierTotal, "skill value used directly")
	assert.Equal(t, 15, result.Total)
	assert.True(t, result.Succeeded)
}

// TestResolve_OpposedCheck verifies opposed value = 10 + opposing modifier.
func TestResolve_OpposedCheck(t *testing.T) {
	r := newResolver(t, &scriptedSource{values: []int{9}}, map[string]stats.EntitySnapshot{
		"hero":   {ID: "hero", Stats: map[string]int{"strength": 16}},
		"bandit": {ID: "bandit", Stats: map[string]int{"dexterity": 14}},
	})

	result, err := r.Resolve(context.Background(), check.Request{
		CheckType:  "grapple",
		ActorID:    "hero",
		ActorKind:  stats.KindCharacter,
		TargetID:   "bandit",
		TargetKind: stats.KindNPC,
	})
	require.NoError(t, err)
	assert.True(t, result.Opposed)
	assert.Equal(t, 12, result.Threshold, "10 + dexterity modifier (+2)")
	assert.Equal(t, 13, result.Total, "roll 10 + strength modifier (+3)")
	assert.True(t, result.Succeeded)
}

// TestResolve_OpposedCheck_UndefinedOpposition verifies that an opposed check
// against a type with no opposition rule auto-fails without error.
func TestResolve_OpposedCheck_UndefinedOpposition(t *testing.T) {
	r := newResolver(t, &scriptedSource{values: []int{19}}, map[string]stats.EntitySnapshot{
		"hero":   {ID: "hero", Stats: map[string]int{"strength": 16}},
		"bandit": {ID: "bandit"},
	})

	result, err := r.Resolve(context.Background(), check.Request{
		CheckType:  "athletics", // declared, but no opposed stat
		ActorID:    "hero",
		ActorKind:  stats.KindCharacter,
		TargetID:   "bandit",
		TargetKind: stats.KindNPC,
	})
	require.NoError(t, err, "undefined opposition is an auto-fail, not an error")
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Trace, "no opposition rule")
}

// TestResolve_OpposedCheck_TargetMissing verifies a missing target auto-fails
// the check instead of raising an error.
func TestResolve_OpposedCheck_TargetMissing(t *testing.T) {
	r := newResolver(t, &scriptedSource{values: []int{19}}, map[string]stats.EntitySnapshot{
		"hero": {ID: "hero", Stats: map[string]int{"strength": 16}},
	})

	result, err := r.Resolve(context.Background(), check.Request{
		CheckType:  "grapple",
		ActorID:    "hero",
		ActorKind:  stats.KindCharacter,
		TargetID:   "ghost",
		TargetKind: stats.KindNPC,
	})
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Trace, "not found")
}

// TestResolve_ActorMissing verifies a missing actor is a hard error wrapping
// stats.ErrEntityNotFound.
func TestResolve_ActorMissing(t *testing.T) {
	r := newResolver(t, &scriptedSource{values: []int{10}}, map[string]stats.EntitySnapshot{})

	_, err := r.Resolve(context.Background(), check.Request{
		CheckType: "athletics",
		ActorID:   "nobody",
		ActorKind: stats.KindCharacter,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stats.ErrEntityNotFound))
}

// TestResolve_UndeclaredCheckType verifies the fall-back to the configured
// default stat when the catalog has no entry for the check type.
func TestResolve_UndeclaredCheckType(t *testing.T) {
	r := newResolver(t, &scriptedSource{values: []int{9}}, map[string]stats.EntitySnapshot{
		"hero": {ID: "hero", Stats: map[string]int{"strength": 14}},
	})

	result, err := r.Resolve(context.Background(), check.Request{
		CheckType: "basket-weaving",
		ActorID:   "hero",
		ActorKind: stats.KindCharacter,
		DC:        intPtr(10),
	})
	require.NoError(t, err)
	require.Len(t, result.Breakdown, 1)
	assert.Equal(t, "strength", result.Breakdown[0].Source, "default stat backs undeclared checks")
	assert.Equal(t, 2, result.ModifierTotal)
}

// TestResolve_ExtraModifiers verifies situational modifiers appear in the
// breakdown individually and sum into the total.
func TestResolve_ExtraModifiers(t *testing.T) {
	r := newResolver(t, &scriptedSource{values: []int{9}}, map[string]stats.EntitySnapshot{
		"hero": {ID: "hero", Stats: map[string]int{"strength": 16}},
	})

	result, err := r.Resolve(context.Background(), check.Request{
		CheckType: "athletics",
		ActorID:   "hero",
		ActorKind: stats.KindCharacter,
		DC:        intPtr(10),
		Extra: []check.NamedModifier{
			{Source: "high ground", Value: 2},
			{Source: "exhausted", Value: -1},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Breakdown, 3)
	assert.Equal(t, 4, result.ModifierTotal, "+3 stat +2 -1")
	assert.Equal(t, 14, result.Total)
	assert.Contains(t, result.Trace, "high ground")
	assert.Contains(t, result.Trace, "exhausted")
}

// TestResolve_InvalidDice verifies dice validation errors surface immediately.
func TestResolve_InvalidDice(t *testing.T) {
	r := newResolver(t, &scriptedSource{values: []int{9}}, map[string]stats.EntitySnapshot{
		"hero": {ID: "hero"},
	})

	_, err := r.Resolve(context.Background(), check.Request{
		CheckType: "athletics",
		ActorID:   "hero",
		ActorKind: stats.KindCharacter,
		Dice:      "2x6",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dice.ErrInvalidSpec))
}
