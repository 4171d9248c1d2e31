// Package simulation drives entity health stacks forward in time: a
// fixed-timestep tick loop, damage and heal events, and scenario playback.
package simulation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/healthstack/internal/game/entity"
)

// Hooks receives entity events after the driver has applied them.
// Implementations may call back into the entity manager.
type Hooks interface {
	Damaged(st entity.Status, amount float64)
	Healed(st entity.Status, amount float64)
	Died(st entity.Status)
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithHooks sets the hooks notified of damage, healing, and deaths.
func WithHooks(h Hooks) Option {
	return func(d *Driver) { d.hooks = h }
}

// WithMaxTicks stops Run after n ticks. 0 runs until the context is cancelled.
func WithMaxTicks(n int) Option {
	return func(d *Driver) { d.maxTicks = n }
}

// Driver is the single external driver of every stack in a Manager. Ticks,
// damage, and heals are serialized by the Manager; hooks run outside its lock.
type Driver struct {
	manager  *entity.Manager
	tickRate int
	maxTicks int
	hooks    Hooks
	logger   *zap.Logger

	mu     sync.Mutex
	ticks  int
	deaths []entity.Status
	// flushing guards against re-entrant death dispatch from hooks.
	flushing bool
}

// NewDriver creates a Driver for m ticking tickRate times per simulated second.
//
// Precondition: m must be non-nil; tickRate must be > 0.
func NewDriver(m *entity.Manager, tickRate int, opts ...Option) (*Driver, error) {
	if m == nil {
		return nil, fmt.Errorf("simulation.NewDriver: manager must not be nil")
	}
	if tickRate <= 0 {
		return nil, fmt.Errorf("simulation.NewDriver: tick rate must be > 0, got %d", tickRate)
	}
	d := &Driver{manager: m, tickRate: tickRate, logger: zap.NewNop()}
	for _, o := range opts {
		o(d)
	}
	m.OnDeath(d.queueDeath)
	return d, nil
}

// Manager returns the driven entity manager.
func (d *Driver) Manager() *entity.Manager { return d.manager }

// Dt returns the simulated length of one tick in seconds.
func (d *Driver) Dt() float64 { return 1 / float64(d.tickRate) }

// Ticks returns the number of ticks advanced so far.
func (d *Driver) Ticks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

// Elapsed returns the simulated time in seconds.
func (d *Driver) Elapsed() float64 {
	return float64(d.Ticks()) * d.Dt()
}

// Step advances n fixed ticks and returns the simulated time afterwards.
// A non-positive n does nothing.
func (d *Driver) Step(n int) float64 {
	dt := d.Dt()
	for i := 0; i < n; i++ {
		d.manager.TickAll(dt)
		d.mu.Lock()
		d.ticks++
		d.mu.Unlock()
		d.flush()
	}
	return d.Elapsed()
}

// MaxAdvanceTicks caps the ticks a single Advance may step.
const MaxAdvanceTicks = 10_000_000

// Advance steps enough ticks to cover seconds of simulated time, rounding up
// and stepping at most MaxAdvanceTicks. Non-positive or non-finite seconds do
// nothing.
func (d *Driver) Advance(seconds float64) float64 {
	if !(seconds > 0) || math.IsInf(seconds, 1) {
		return d.Elapsed()
	}
	ticks := math.Ceil(seconds*float64(d.tickRate) - 1e-9)
	if ticks > MaxAdvanceTicks {
		ticks = MaxAdvanceTicks
	}
	return d.Step(int(ticks))
}

// Run ticks in real time at the configured rate until ctx is cancelled or
// the tick limit is reached.
//
// Postcondition: Returns nil when the tick limit stops the loop, or ctx.Err().
func (d *Driver) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(d.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	d.logger.Info("simulation running",
		zap.Int("tick_rate", d.tickRate),
		zap.Int("max_ticks", d.maxTicks),
	)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("simulation stopped", zap.Int("ticks", d.Ticks()))
			return ctx.Err()
		case <-ticker.C:
			d.Step(1)
			if d.maxTicks > 0 && d.Ticks() >= d.maxTicks {
				d.logger.Info("simulation reached tick limit", zap.Int("ticks", d.Ticks()))
				return nil
			}
		}
	}
}

// Damage applies req to entity id and notifies hooks.
func (d *Driver) Damage(id string, req entity.DamageRequest) (float64, error) {
	removed, err := d.manager.Damage(id, req)
	if err != nil {
		return 0, err
	}
	if d.hooks != nil && removed > 0 {
		if st, ok := d.manager.Status(id); ok {
			d.hooks.Damaged(st, removed)
		}
	}
	d.flush()
	return removed, nil
}

// Heal applies req to entity id and notifies hooks.
func (d *Driver) Heal(id string, req entity.HealRequest) (float64, error) {
	added, err := d.manager.Heal(id, req)
	if err != nil {
		return 0, err
	}
	if d.hooks != nil && added > 0 {
		if st, ok := d.manager.Status(id); ok {
			d.hooks.Healed(st, added)
		}
	}
	d.flush()
	return added, nil
}

func (d *Driver) queueDeath(st entity.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deaths = append(d.deaths, st)
}

// flush dispatches queued deaths until none remain. Deaths raised by a hook
// are picked up by the outermost flush.
func (d *Driver) flush() {
	d.mu.Lock()
	if d.flushing {
		d.mu.Unlock()
		return
	}
	d.flushing = true
	for len(d.deaths) > 0 {
		batch := d.deaths
		d.deaths = nil
		d.mu.Unlock()
		for _, st := range batch {
			d.logger.Info("death dispatched",
				zap.String("entity", st.ID),
				zap.String("name", st.Name),
				zap.Int("tick", d.Ticks()),
			)
			if d.hooks != nil {
				d.hooks.Died(st)
			}
		}
		d.mu.Lock()
	}
	d.flushing = false
	d.mu.Unlock()
}
