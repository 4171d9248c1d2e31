// Package entity tracks live entities and their health stacks. It is the
// collaborator that decides what death means: a dead entity is deactivated,
// logged, and reported to registered listeners.
package entity

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/healthstack/internal/game/health"
)

// Entity is a live object owning one health stack.
type Entity struct {
	// ID is the entity handle passed to death notifications.
	ID string
	// StackID is the definition the stack was built from.
	StackID string
	// Name is a display label.
	Name string
	// Active is false once the entity has died.
	Active bool
	// Seq orders entities by spawn time.
	Seq uint64

	health *health.Controller
}

// Status is a point-in-time view of an entity.
type Status struct {
	ID       string
	Name     string
	StackID  string
	Active   bool
	Values   []float64
	Segments []health.Segment
	// Current is the index of the segment that takes the next hit, or -1.
	Current int
}

// Manager tracks all live entities. All methods are safe for concurrent use;
// ticks and events are serialized so each stack sees a single driver.
type Manager struct {
	mu        sync.Mutex
	entities  map[string]*Entity
	seq       uint64
	defaults  health.Policy
	logger    *zap.Logger
	listeners []func(Status)
	// pending holds deaths raised during the current locked call.
	pending []string
	newID   func() string
}

// NewManager creates an empty Manager. defaults fills policy flags a stack
// definition leaves unset. A nil logger is replaced by a no-op logger.
func NewManager(defaults health.Policy, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		entities: make(map[string]*Entity),
		defaults: defaults,
		logger:   logger,
		newID:    func() string { return uuid.New().String() },
	}
}

// OnDeath registers fn to be called with the entity's final status when it dies.
// Listeners run after the manager's lock is released and may call back into it.
func (m *Manager) OnDeath(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Spawn builds an entity from def. An empty name defaults to the definition's name.
//
// Precondition: def must be non-nil.
// Postcondition: Returns an active Entity with a fresh uuid, or an error when
// the stack cannot be built.
func (m *Manager) Spawn(def *health.StackDef, name string) (*Entity, error) {
	if def == nil {
		return nil, fmt.Errorf("entity.Manager.Spawn: def must not be nil")
	}
	if name == "" {
		name = def.Name
	}
	if name == "" {
		name = def.ID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	ctrl, err := def.NewController(m.defaults,
		health.WithHandle(id),
		health.WithLogger(m.logger.With(zap.String("stack", def.ID))),
		health.WithDeathHandler(m.markDead),
	)
	if err != nil {
		return nil, fmt.Errorf("spawning %q: %w", def.ID, err)
	}
	m.seq++
	e := &Entity{ID: id, StackID: def.ID, Name: name, Active: true, Seq: m.seq, health: ctrl}
	m.entities[id] = e

	m.logger.Info("entity spawned",
		zap.String("entity", id),
		zap.String("name", name),
		zap.String("stack", def.ID),
		zap.Int("segments", ctrl.NumSegments()),
	)
	return e, nil
}

// Remove deletes an entity by ID.
//
// Postcondition: Returns an error if the entity is not found.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		return fmt.Errorf("entity %q not found", id)
	}
	delete(m.entities, id)
	return nil
}

// Status returns the current view of an entity.
func (m *Manager) Status(id string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return Status{}, false
	}
	return statusOf(e), true
}

// All returns the status of every entity in spawn order.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) All() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	ents := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		ents = append(ents, e)
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].Seq < ents[j].Seq })
	out := make([]Status, len(ents))
	for i, e := range ents {
		out[i] = statusOf(e)
	}
	return out
}

// Resolve finds an entity by exact ID, then by unique ID prefix, then by
// exact name among active entities.
func (m *Manager) Resolve(ref string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[ref]; ok {
		return ref, true
	}
	var found []string
	for id := range m.entities {
		if len(ref) >= 4 && len(id) >= len(ref) && id[:len(ref)] == ref {
			found = append(found, id)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	for id, e := range m.entities {
		if e.Active && e.Name == ref {
			return id, true
		}
	}
	return "", false
}

// TickAll advances every active entity by dt seconds and returns how many were ticked.
func (m *Manager) TickAll(dt float64) int {
	m.mu.Lock()
	n := 0
	for _, e := range m.entities {
		if !e.Active {
			continue
		}
		e.health.Tick(dt)
		n++
	}
	deaths := m.drain()
	m.mu.Unlock()
	m.notify(deaths)
	return n
}

// Damage applies req to the entity with id.
//
// Postcondition: Returns the health removed, or an error when id is unknown.
// Damage to an inactive entity removes nothing.
func (m *Manager) Damage(id string, req DamageRequest) (float64, error) {
	return m.apply(id, req.Apply)
}

// Heal applies req to the entity with id.
//
// Postcondition: Returns the health added, or an error when id is unknown.
func (m *Manager) Heal(id string, req HealRequest) (float64, error) {
	return m.apply(id, req.Apply)
}

func (m *Manager) apply(id string, fn func(*health.Controller) float64) (float64, error) {
	m.mu.Lock()
	e, ok := m.entities[id]
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("entity %q not found", id)
	}
	amount := fn(e.health)
	deaths := m.drain()
	m.mu.Unlock()
	m.notify(deaths)
	return amount, nil
}

// markDead is the stacks' DeathHandler. It runs under m.mu.
func (m *Manager) markDead(id string) {
	e, ok := m.entities[id]
	if !ok || !e.Active {
		return
	}
	e.Active = false
	m.logger.Info("entity died",
		zap.String("entity", id),
		zap.String("name", e.Name),
		zap.String("stack", e.StackID),
	)
	m.pending = append(m.pending, id)
}

// drain collects statuses for deaths raised under the lock. Caller holds m.mu.
func (m *Manager) drain() []Status {
	if len(m.pending) == 0 {
		return nil
	}
	out := make([]Status, 0, len(m.pending))
	for _, id := range m.pending {
		if e, ok := m.entities[id]; ok {
			out = append(out, statusOf(e))
		}
	}
	m.pending = m.pending[:0]
	return out
}

func (m *Manager) notify(deaths []Status) {
	if len(deaths) == 0 {
		return
	}
	m.mu.Lock()
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()
	for _, d := range deaths {
		for _, fn := range listeners {
			fn(d)
		}
	}
}

func statusOf(e *Entity) Status {
	return Status{
		ID:       e.ID,
		Name:     e.Name,
		StackID:  e.StackID,
		Active:   e.Active,
		Values:   e.health.AllHealthValues(),
		Segments: e.health.Segments(),
		Current:  e.health.CurrentSegmentIndex(),
	}
}
