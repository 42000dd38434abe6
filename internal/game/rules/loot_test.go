package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	values []int
	next   int
}

func (s *scriptedSource) Intn(n int) int {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v % n
}

func TestGenerateLootDeterministic(t *testing.T) {
	lt := &LootTable{
		Template: "goblin",
		Currency: &CurrencyDrop{Min: 5, Max: 10},
		Items: []ItemDrop{
			{ItemID: "rusty-dagger", Chance: 0.5, MinQty: 1, MaxQty: 3},
			{ItemID: "gem", Chance: 0.01, MinQty: 1, MaxQty: 1},
		},
	}
	require.NoError(t, lt.Validate())

	// Currency: 5 + Intn(6)=3 → 8. Dagger: chance roll 4999 < 5000 passes,
	// qty 1 + Intn(3)=2 → 3. Gem: chance roll 9999 >= 100 fails.
	src := &scriptedSource{values: []int{3, 4999, 2, 9999}}
	result := GenerateLoot(lt, src)

	assert.Equal(t, 8, result.Currency)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "rusty-dagger", result.Items[0].ItemDefID)
	assert.Equal(t, 3, result.Items[0].Quantity)
	assert.NotEmpty(t, result.Items[0].InstanceID)
}

func TestGenerateLootFixedQuantitySkipsRoll(t *testing.T) {
	lt := &LootTable{
		Template: "rat",
		Items:    []ItemDrop{{ItemID: "tail", Chance: 1.0, MinQty: 1, MaxQty: 1}},
	}
	require.NoError(t, lt.Validate())

	src := &scriptedSource{values: []int{0}}
	result := GenerateLoot(lt, src)

	require.Len(t, result.Items, 1)
	assert.Equal(t, 1, result.Items[0].Quantity)
	assert.Equal(t, 1, src.next, "only the chance roll consumes randomness")
}

func TestGenerateLootEmptyTable(t *testing.T) {
	lt := &LootTable{Template: "wisp"}
	require.NoError(t, lt.Validate())

	result := GenerateLoot(lt, &scriptedSource{values: []int{0}})
	assert.Zero(t, result.Currency)
	assert.Empty(t, result.Items)
}

func TestLootTableValidate(t *testing.T) {
	tests := []struct {
		name    string
		lt      LootTable
		wantErr bool
	}{
		{"valid", LootTable{Template: "g", Items: []ItemDrop{{ItemID: "d", Chance: 0.5, MinQty: 1, MaxQty: 2}}}, false},
		{"zero chance", LootTable{Template: "g", Items: []ItemDrop{{ItemID: "d", Chance: 0, MinQty: 1, MaxQty: 1}}}, true},
		{"min over max qty", LootTable{Template: "g", Items: []ItemDrop{{ItemID: "d", Chance: 0.5, MinQty: 3, MaxQty: 1}}}, true},
		{"negative currency", LootTable{Template: "g", Currency: &CurrencyDrop{Min: -1, Max: 5}}, true},
		{"currency min over max", LootTable{Template: "g", Currency: &CurrencyDrop{Min: 6, Max: 5}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lt.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestXPRuleAward(t *testing.T) {
	rule := XPRule{Victory: 50, PerDefeated: 25}
	assert.Equal(t, 50, rule.Award(0))
	assert.Equal(t, 125, rule.Award(3))
}
