package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the engine.* Lua table into L:
//
//	engine.roll(expr)  -> total, or nil + error message on a bad expression
//	engine.log(msg)    -> logs msg at info level through the manager's logger
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()

	L.SetField(engine, "roll", L.NewFunction(func(ls *lua.LState) int {
		expr := ls.CheckString(1)
		result, err := m.roller.RollExpr(expr)
		if err != nil {
			ls.Push(lua.LNil)
			ls.Push(lua.LString(err.Error()))
			return 2
		}
		ls.Push(lua.LNumber(result.Total()))
		return 1
	}))

	L.SetField(engine, "log", L.NewFunction(func(ls *lua.LState) int {
		msg := ls.CheckString(1)
		m.logger.Info("script log", zap.String("message", msg))
		return 0
	}))

	L.SetGlobal("engine", engine)
}
