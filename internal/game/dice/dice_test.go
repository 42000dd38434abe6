package dice_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/arbiter/internal/game/dice"
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

// TestRollResult_Total verifies the postcondition: Total() == sum(Dice) + Modifier.
func TestRollResult_Total(t *testing.T) {
	r := dice.RollResult{
		Expression: "2d6+3",
		Dice:       []int{4, 5},
		Modifier:   3,
	}
	assert.Equal(t, 12, r.Total(), "Total() must equal sum(Dice)+Modifier")
}

// TestRollResult_String verifies the audit string contains expression, dice, and total.
func TestRollResult_String(t *testing.T) {
	r := dice.RollResult{
		Expression: "2d6+3",
		Dice:       []int{4, 5},
		Modifier:   3,
	}
	s := r.String()
	require.Contains(t, s, "2d6+3", "String() must contain the expression")
	require.Contains(t, s, "[4 5]", "String() must contain the dice results")
	require.Contains(t, s, "12", "String() must contain the total")
}

// TestRollResult_Total_Property uses property-based testing to verify the
// postcondition Total() == sum(Dice) + Modifier for arbitrary inputs.
func TestRollResult_Total_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dice_ := rapid.SliceOf(rapid.IntRange(1, 20)).Draw(rt, "dice")
		modifier := rapid.Int().Draw(rt, "modifier")

		r := dice.RollResult{
			Expression: "Nd6+M",
			Dice:       dice_,
			Modifier:   modifier,
		}

		expected := modifier
		for _, d := range dice_ {
			expected += d
		}

		assert.Equal(rt, expected, r.Total(),
			"Total() postcondition: must equal sum(Dice)+Modifier")
	})
}

// TestParse_Valid exercises the accepted notation forms.
func TestParse_Valid(t *testing.T) {
	tests := []struct {
		expr     string
		count    int
		sides    int
		modifier int
	}{
		{"d20", 1, 20, 0},
		{"1d20", 1, 20, 0},
		{"2d6", 2, 6, 0},
		{"2d6+3", 2, 6, 3},
		{"4d8-2", 4, 8, -2},
		{"2D6+3", 2, 6, 3},
		{"1000d6", 1000, 6, 0},
		{"100d1", 100, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := dice.Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.count, e.Count)
			assert.Equal(t, tt.sides, e.Sides)
			assert.Equal(t, tt.modifier, e.Modifier)
			assert.Equal(t, tt.expr, e.Raw)
		})
	}
}

// TestParse_Invalid verifies every rejection wraps ErrInvalidSpec.
func TestParse_Invalid(t *testing.T) {
	exprs := []string{
		"",
		"20",
		"d",
		"2d",
		"0d6",
		"2d0",
		"1001d6",
		"101d1",
		"2d6+",
		"2d6++3",
		"2.5d6",
		"-1d6",
		"2d6*3",
	}
	for _, expr := range exprs {
		t.Run(fmt.Sprintf("%q", expr), func(t *testing.T) {
			_, err := dice.Parse(expr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, dice.ErrInvalidSpec),
				"parse errors must wrap ErrInvalidSpec, got %v", err)
		})
	}
}

// TestRoll_ScriptedScenario verifies the worked example: "2d6+3" rolling
// [4 5] totals 12.
func TestRoll_ScriptedScenario(t *testing.T) {
	src := &scriptedSource{values: []int{3, 4}}
	r, err := dice.RollExpr("2d6+3", src)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, r.Dice)
	assert.Equal(t, 12, r.Total())
}

// TestRoll_Property verifies len(Dice) == Count, every die in [1, Sides],
// and Total() == sum + modifier for arbitrary valid expressions.
func TestRoll_Property(t *testing.T) {
	src := dice.NewCryptoSource()
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 50).Draw(rt, "count")
		sides := rapid.IntRange(1, 100).Draw(rt, "sides")
		modifier := rapid.IntRange(-20, 20).Draw(rt, "modifier")

		expr := fmt.Sprintf("%dd%d%+d", count, sides, modifier)
		r, err := dice.RollExpr(expr, src)
		require.NoError(rt, err)

		assert.Len(rt, r.Dice, count)
		sum := 0
		for _, d := range r.Dice {
			assert.GreaterOrEqual(rt, d, 1)
			assert.LessOrEqual(rt, d, sides)
			sum += d
		}
		assert.Equal(rt, sum+modifier, r.Total())
	})
}

// TestMustParse_PanicsOnInvalid verifies MustParse enforces its precondition.
func TestMustParse_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { dice.MustParse("not-dice") })
	assert.NotPanics(t, func() { dice.MustParse("3d4+1") })
}

// TestCryptoSource_Intn_InRange verifies the postcondition:
// every value returned by Intn(6) is in [0, 6).
func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

// TestCryptoSource_Intn_PanicsOnZero verifies the precondition:
// Intn panics when called with n <= 0.
func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}

// TestLoggedRoller_RollExpr verifies the logged wrapper preserves roll semantics
// and rejects malformed expressions.
func TestLoggedRoller_RollExpr(t *testing.T) {
	roller := dice.NewLoggedRoller(&scriptedSource{values: []int{3, 4}}, zap.NewNop())

	r, err := roller.RollExpr("2d6+3")
	require.NoError(t, err)
	assert.Equal(t, 12, r.Total())

	_, err = roller.RollExpr("bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dice.ErrInvalidSpec))
	assert.True(t, strings.Contains(err.Error(), "bogus"))
}
