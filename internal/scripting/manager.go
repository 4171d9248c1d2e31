package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/healthstack/internal/game/dice"
)

// GlobalStack is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no stack-specific VM is found.
const GlobalStack = "__global__"

// Hook names dispatched by the simulator.
const (
	HookDamage = "on_damage"
	HookHeal   = "on_heal"
	HookDeath  = "on_death"
)

// EntityInfo is a snapshot of an entity passed to Lua callbacks.
type EntityInfo struct {
	ID      string
	Name    string
	StackID string
	Alive   bool
	Values  []float64
	// Current is the index of the segment taking the next hit, or -1.
	Current int
}

// vm is one sandboxed state. Each LState is single-threaded; mu serializes calls.
type vm struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
}

// Manager owns one sandboxed LState per stack definition plus an optional
// global VM, and exposes hook dispatch.
//
// Manager is safe for concurrent CallHook. Calls into the same VM are
// serialized while different VMs run concurrently.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*vm
	roller *dice.Roller
	logger *zap.Logger

	// Injected after construction. nil = no-op in engine.* modules.
	GetEntity    func(id string) *EntityInfo
	ApplyDamage  func(id string, amount float64, ignoreModifiers bool) (float64, error)
	ApplyHealing func(id string, amount float64) (float64, error)
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no VMs loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		states: make(map[string]*vm),
		roller: roller,
		logger: logger,
	}
}

// LoadStack creates a sandboxed VM for stackID, registers all engine.*
// modules, then executes every *.lua file in scriptDir in lexicographic order.
// A VM already loaded for stackID is replaced.
//
// Precondition: stackID must be non-empty; scriptDir must be a readable directory.
// Postcondition: VM is registered; returns error on Lua load failure.
func (m *Manager) LoadStack(stackID, scriptDir string, instLimit int) error {
	if stackID == "" {
		return errors.New("scripting: stack id must not be empty")
	}
	return m.loadInto(stackID, scriptDir, instLimit)
}

// LoadGlobal creates the global VM used as the CallHook fallback for any stack.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(GlobalStack, scriptDir, instLimit)
}

// LoadTree loads scriptDir's own *.lua files into the global VM and each
// immediate subdirectory into the VM of the stack it is named after.
//
// Postcondition: Returns the stack IDs that received a dedicated VM.
func (m *Manager) LoadTree(scriptDir string, instLimit int) ([]string, error) {
	if err := m.LoadGlobal(scriptDir, instLimit); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}
	var stacks []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadStack(e.Name(), filepath.Join(scriptDir, e.Name()), instLimit); err != nil {
			return stacks, err
		}
		stacks = append(stacks, e.Name())
	}
	return stacks, nil
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
	cancel()
	L.RemoveContext()

	m.mu.Lock()
	if old, ok := m.states[key]; ok {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.states[key] = &vm{L: L, limit: instLimit}
	m.mu.Unlock()

	m.logger.Debug("scripts loaded",
		zap.String("stack", key),
		zap.String("dir", scriptDir),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// Loaded reports whether any VM is available for stackID, including the global fallback.
func (m *Manager) Loaded(stackID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[stackID]
	_, global := m.states[GlobalStack]
	return ok || global
}

// CallHook calls the named Lua global function in stackID's VM. If the stack
// has no VM, the global VM is tried as a fallback. Returns (LNil, nil) if the
// hook is not defined or no VM exists. Lua runtime errors, including an
// exhausted instruction budget, are logged at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(stackID, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	v, ok := m.states[stackID]
	if !ok {
		v = m.states[GlobalStack]
	}
	m.mu.RUnlock()

	if v == nil {
		m.logger.Debug("scripting: no VM for stack",
			zap.String("stack", stackID),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	cancel := limit(v.L, v.limit)
	defer func() {
		cancel()
		v.L.RemoveContext()
	}()

	if err := v.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("stack", stackID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Close releases every VM. Subsequent CallHook calls return LNil.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range m.states {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
		delete(m.states, key)
	}
}
