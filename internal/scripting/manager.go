package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arbiter/internal/game/action"
	"github.com/cory-johannsen/arbiter/internal/game/combat"
	"github.com/cory-johannsen/arbiter/internal/game/dice"
)

// sharedTenantID is the reserved key for shared scripts loaded via LoadShared.
// CallHook falls back to this VM when no tenant VM is found.
const sharedTenantID = "__shared__"

// onActionResolvedHook is the Lua global invoked after each resolved action.
const onActionResolvedHook = "on_action_resolved"

// Manager owns one sandboxed LState per tenant and exposes hook dispatch.
//
// Manager is safe for concurrent CallHook after all LoadTenant calls
// complete. Each tenant's LState is single-threaded; per-tenant ticks are
// processed sequentially, so a tenant's VM is never entered concurrently.
type Manager struct {
	mu      sync.RWMutex
	states  map[string]*lua.LState
	cancels map[string]func()
	roller  *dice.Roller
	logger  *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with an empty tenant map.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	return &Manager{
		states:  make(map[string]*lua.LState),
		cancels: make(map[string]func()),
		roller:  roller,
		logger:  logger,
	}
}

// LoadTenant creates a sandboxed VM for the tenant, registers the engine.*
// modules, then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: tenant must be non-empty; scriptDir must be a readable directory.
// Postcondition: Tenant VM is registered; returns error on Lua load failure.
func (m *Manager) LoadTenant(tenant, scriptDir string, instLimit int) error {
	return m.loadInto(tenant, scriptDir, instLimit)
}

// LoadShared creates the "__shared__" VM accessible as a CallHook fallback
// from any tenant.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Shared VM is registered; returns error on Lua load failure.
func (m *Manager) LoadShared(scriptDir string, instLimit int) error {
	return m.loadInto(sharedTenantID, scriptDir, instLimit)
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.states[key]; ok {
		if oldCancel := m.cancels[key]; oldCancel != nil {
			oldCancel()
		}
		old.Close()
	}
	m.states[key] = L
	m.cancels[key] = cancel
	m.mu.Unlock()
	return nil
}

// Close tears down every loaded VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, L := range m.states {
		if cancel := m.cancels[key]; cancel != nil {
			cancel()
		}
		L.Close()
	}
	m.states = make(map[string]*lua.LState)
	m.cancels = make(map[string]func())
}

// CallHook calls the named Lua global function in the tenant's VM. If the
// tenant has no VM, the __shared__ VM is tried as a fallback. Returns
// (LNil, nil) if the hook is not defined or no VM exists. Lua runtime errors
// are logged at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(tenant, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	L, ok := m.states[tenant]
	if !ok {
		L = m.states[sharedTenantID]
	}
	m.mu.RUnlock()

	if L == nil {
		m.logger.Info("scripting: no VM for tenant",
			zap.String("tenant", tenant),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("tenant", tenant),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// OnActionResolved dispatches the on_action_resolved hook with a snapshot of
// the action and its outcome. A string return from the hook is appended to
// the outcome's log lines, letting tenant scripts annotate narration.
//
// Precondition: outcome must be non-nil.
func (m *Manager) OnActionResolved(_ context.Context, tenant string, act action.Action, outcome *combat.ActionOutcome) error {
	m.mu.RLock()
	L, ok := m.states[tenant]
	if !ok {
		L = m.states[sharedTenantID]
	}
	m.mu.RUnlock()
	if L == nil {
		return nil
	}

	actTable := L.NewTable()
	actTable.RawSetString("actor_id", lua.LString(act.ActorID))
	actTable.RawSetString("intent", lua.LString(act.Intent.String()))
	actTable.RawSetString("target_id", lua.LString(act.TargetID))
	actTable.RawSetString("item_id", lua.LString(act.ItemID))
	actTable.RawSetString("destination_id", lua.LString(act.DestinationID))

	outTable := L.NewTable()
	lines := L.NewTable()
	for _, line := range outcome.LogLines {
		lines.Append(lua.LString(line))
	}
	outTable.RawSetString("log_lines", lines)
	deltas := L.NewTable()
	for id, delta := range outcome.HPDeltas {
		deltas.RawSetString(id, lua.LNumber(delta))
	}
	outTable.RawSetString("hp_deltas", deltas)

	ret, err := m.CallHook(tenant, onActionResolvedHook, actTable, outTable)
	if err != nil {
		return err
	}
	if s, isString := ret.(lua.LString); isString && s != "" {
		outcome.LogLines = append(outcome.LogLines, string(s))
	}
	return nil
}
