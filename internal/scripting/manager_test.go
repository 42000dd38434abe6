package scripting

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/arbiter/internal/game/action"
	"github.com/cory-johannsen/arbiter/internal/game/combat"
	"github.com/cory-johannsen/arbiter/internal/game/dice"
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

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func newTestManager(t *testing.T, values ...int) *Manager {
	t.Helper()
	if len(values) == 0 {
		values = []int{0}
	}
	logger := zaptest.NewLogger(t)
	roller := dice.NewLoggedRoller(&scriptedSource{values: values}, logger)
	m := NewManager(roller, logger)
	t.Cleanup(m.Close)
	return m
}

func TestSandboxStripsDangerousGlobals(t *testing.T) {
	L, cancel := NewSandboxedState(0)
	defer cancel()
	defer L.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), name)
	}
}

func TestSandboxInstructionLimit(t *testing.T) {
	L, cancel := NewSandboxedState(1000)
	defer cancel()
	defer L.Close()

	err := L.DoString(`while true do end`)
	require.Error(t, err, "an unbounded loop must be terminated")
}

func TestLoadTenantAndCallHook(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "hooks.lua", `
		function greet(name)
			return "hello " .. name
		end
	`)

	m := newTestManager(t)
	require.NoError(t, m.LoadTenant("guild-a", dir, 0))

	ret, err := m.CallHook("guild-a", "greet", lua.LString("moderator"))
	require.NoError(t, err)
	assert.Equal(t, lua.LString("hello moderator"), ret)
}

func TestCallHookFallsBackToShared(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "shared.lua", `
		function shared_hook()
			return 42
		end
	`)

	m := newTestManager(t)
	require.NoError(t, m.LoadShared(dir, 0))

	ret, err := m.CallHook("guild-without-scripts", "shared_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(42), ret)
}

func TestCallHookUndefinedIsNil(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t)
	require.NoError(t, m.LoadTenant("guild-a", dir, 0))

	ret, err := m.CallHook("guild-a", "never_defined")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestCallHookRuntimeErrorSwallowed(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "bad.lua", `
		function explode()
			error("boom")
		end
	`)

	m := newTestManager(t)
	require.NoError(t, m.LoadTenant("guild-a", dir, 0))

	ret, err := m.CallHook("guild-a", "explode")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestOnActionResolvedAnnotatesOutcome(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "hooks.lua", `
		function on_action_resolved(act, outcome)
			if act.intent == "attack" and outcome.hp_deltas[act.target_id] then
				return act.actor_id .. " draws blood!"
			end
		end
	`)

	m := newTestManager(t)
	require.NoError(t, m.LoadTenant("guild-a", dir, 0))

	outcome := combat.ActionOutcome{
		LogLines: []string{"player1 hits npc1 for 4 damage."},
		HPDeltas: map[string]int{"npc1": -4},
	}
	err := m.OnActionResolved(context.Background(), "guild-a", action.Action{
		ActorID: "player1", Intent: action.IntentAttack, TargetID: "npc1",
	}, &outcome)
	require.NoError(t, err)
	assert.Contains(t, outcome.LogLines, "player1 draws blood!")
}

func TestOnActionResolvedNoVMIsNoop(t *testing.T) {
	m := newTestManager(t)

	outcome := combat.ActionOutcome{LogLines: []string{"a line"}}
	err := m.OnActionResolved(context.Background(), "guild-a", action.Action{ActorID: "player1"}, &outcome)
	require.NoError(t, err)
	assert.Equal(t, []string{"a line"}, outcome.LogLines)
}

func TestEngineRollModule(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "roll.lua", `
		function roll_damage()
			return engine.roll("2d6+1")
		end
		function roll_bad()
			local total, err = engine.roll("not dice")
			return err
		end
	`)

	// Intn values 2 and 4 give dice [3,5]; +1 modifier = 9.
	m := newTestManager(t, 2, 4)
	require.NoError(t, m.LoadTenant("guild-a", dir, 0))

	ret, err := m.CallHook("guild-a", "roll_damage")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(9), ret)

	ret, err = m.CallHook("guild-a", "roll_bad")
	require.NoError(t, err)
	assert.NotEqual(t, lua.LNil, ret)
}

func TestReloadReplacesVM(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "v.lua", `function version() return 1 end`)

	m := newTestManager(t)
	require.NoError(t, m.LoadTenant("guild-a", dir, 0))

	writeScript(t, dir, "v.lua", `function version() return 2 end`)
	require.NoError(t, m.LoadTenant("guild-a", dir, 0))

	ret, err := m.CallHook("guild-a", "version")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(2), ret)
}
