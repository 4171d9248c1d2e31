package simulation

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/healthstack/internal/game/entity"
	"github.com/cory-johannsen/healthstack/internal/scripting"
)

// ScriptHooks forwards driver events to Lua hooks, looked up in the VM of the
// entity's stack definition:
//
//	on_damage(id, name, amount)
//	on_heal(id, name, amount)
//	on_death(id, name, stack)
type ScriptHooks struct {
	scripts *scripting.Manager
}

// NewScriptHooks creates Hooks backed by mgr.
//
// Precondition: mgr must be non-nil.
func NewScriptHooks(mgr *scripting.Manager) *ScriptHooks {
	return &ScriptHooks{scripts: mgr}
}

// Damaged calls on_damage.
func (h *ScriptHooks) Damaged(st entity.Status, amount float64) {
	h.scripts.CallHook(st.StackID, scripting.HookDamage, //nolint:errcheck
		lua.LString(st.ID), lua.LString(st.Name), lua.LNumber(amount))
}

// Healed calls on_heal.
func (h *ScriptHooks) Healed(st entity.Status, amount float64) {
	h.scripts.CallHook(st.StackID, scripting.HookHeal, //nolint:errcheck
		lua.LString(st.ID), lua.LString(st.Name), lua.LNumber(amount))
}

// Died calls on_death.
func (h *ScriptHooks) Died(st entity.Status) {
	h.scripts.CallHook(st.StackID, scripting.HookDeath, //nolint:errcheck
		lua.LString(st.ID), lua.LString(st.Name), lua.LString(st.StackID))
}

// BindScripts injects the entity callbacks scripts use to inspect and
// mutate stacks. Script-initiated damage goes straight to the manager, so it
// raises deaths but not further on_damage hooks.
func BindScripts(mgr *scripting.Manager, m *entity.Manager) {
	mgr.GetEntity = func(id string) *scripting.EntityInfo {
		st, ok := m.Status(id)
		if !ok {
			return nil
		}
		return &scripting.EntityInfo{
			ID:      st.ID,
			Name:    st.Name,
			StackID: st.StackID,
			Alive:   st.Active,
			Values:  st.Values,
			Current: st.Current,
		}
	}
	mgr.ApplyDamage = func(id string, amount float64, ignoreModifiers bool) (float64, error) {
		return m.Damage(id, entity.DamageRequest{Amount: amount, IgnoreModifiers: ignoreModifiers})
	}
	mgr.ApplyHealing = func(id string, amount float64) (float64, error) {
		return m.Heal(id, entity.HealRequest{Amount: amount})
	}
}
