package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers all engine.* Lua tables into L:
//
//	engine.log.{debug,info,warn,error}(msg)
//	engine.dice.roll(expr)            -> {total, dice, modifier} | nil
//	engine.entity.get(id)             -> {id, name, stack, alive, current, values} | nil
//	engine.entity.alive(id)           -> bool | nil
//	engine.health.damage(id, amount [, ignore_modifiers]) -> removed | nil
//	engine.health.heal(id, amount)    -> added | nil
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetGlobal("engine", engine)

	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "dice", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"roll": m.luaRoll,
	}))
	L.SetField(engine, "entity", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"get":   m.luaEntityGet,
		"alive": m.luaEntityAlive,
	}))
	L.SetField(engine, "health", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"damage": m.luaDamage,
		"heal":   m.luaHeal,
	}))
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	level := func(log func(string, ...zap.Field)) lua.LGFunction {
		return func(L *lua.LState) int {
			log(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}
	}
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"debug": level(m.logger.Debug),
		"info":  level(m.logger.Info),
		"warn":  level(m.logger.Warn),
		"error": level(m.logger.Error),
	})
}

func (m *Manager) luaRoll(L *lua.LState) int {
	res, err := m.roller.RollString(L.CheckString(1))
	if err != nil {
		m.logger.Warn("scripting: bad dice expression", zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}
	sum := 0
	for _, d := range res.Dice {
		sum += d
	}
	t := L.NewTable()
	L.SetField(t, "total", lua.LNumber(res.Total()))
	L.SetField(t, "dice", lua.LNumber(sum))
	L.SetField(t, "modifier", lua.LNumber(res.Modifier))
	L.Push(t)
	return 1
}

func (m *Manager) entity(L *lua.LState) *EntityInfo {
	id := L.CheckString(1)
	if m.GetEntity == nil {
		return nil
	}
	return m.GetEntity(id)
}

func (m *Manager) luaEntityGet(L *lua.LState) int {
	info := m.entity(L)
	if info == nil {
		L.Push(lua.LNil)
		return 1
	}
	values := L.NewTable()
	for _, v := range info.Values {
		values.Append(lua.LNumber(v))
	}
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(info.ID))
	L.SetField(t, "name", lua.LString(info.Name))
	L.SetField(t, "stack", lua.LString(info.StackID))
	L.SetField(t, "alive", lua.LBool(info.Alive))
	// Lua arrays are 1-based.
	L.SetField(t, "current", lua.LNumber(info.Current+1))
	L.SetField(t, "values", values)
	L.Push(t)
	return 1
}

func (m *Manager) luaEntityAlive(L *lua.LState) int {
	info := m.entity(L)
	if info == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LBool(info.Alive))
	return 1
}

func (m *Manager) luaDamage(L *lua.LState) int {
	id := L.CheckString(1)
	amount := float64(L.CheckNumber(2))
	ignore := L.OptBool(3, false)
	if m.ApplyDamage == nil {
		L.Push(lua.LNil)
		return 1
	}
	removed, err := m.ApplyDamage(id, amount, ignore)
	if err != nil {
		m.logger.Warn("scripting: damage failed", zap.String("entity", id), zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(removed))
	return 1
}

func (m *Manager) luaHeal(L *lua.LState) int {
	id := L.CheckString(1)
	amount := float64(L.CheckNumber(2))
	if m.ApplyHealing == nil {
		L.Push(lua.LNil)
		return 1
	}
	added, err := m.ApplyHealing(id, amount)
	if err != nil {
		m.logger.Warn("scripting: heal failed", zap.String("entity", id), zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(added))
	return 1
}
