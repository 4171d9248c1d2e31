package health

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// DeathHandler is notified once when a stack's base segment is emptied.
// handle identifies the owning entity.
type DeathHandler func(handle string)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the Controller's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHandle sets the entity handle passed to the DeathHandler.
func WithHandle(handle string) Option {
	return func(c *Controller) { c.handle = handle }
}

// WithDeathHandler sets the function called on death.
func WithDeathHandler(fn DeathHandler) Option {
	return func(c *Controller) { c.onDeath = fn }
}

// Controller is the entry point to a health stack. It routes damage from the
// outermost segment inward, healing from the base outward, drives recharge,
// and reports death.
//
// A Controller is not safe for concurrent use. One driver calls Tick and the
// damage and healing methods from a single goroutine.
//
// Invariant: once dead, every mutating method is a no-op.
type Controller struct {
	handle   string
	store    *Store
	damage   *DamageEngine
	healing  HealingEngine
	recharge *RechargeScheduler
	onDeath  DeathHandler
	logger   *zap.Logger
	dead     bool
}

// NewController builds and initializes a stack from segs.
//
// Precondition: len(segs) >= 1.
// Postcondition: Returns an initialized Controller, or an error wrapping
// ErrNoSegments.
func NewController(segs []Segment, policy Policy, opts ...Option) (*Controller, error) {
	store, err := NewStore(segs)
	if err != nil {
		return nil, fmt.Errorf("building health stack: %w", err)
	}
	c := &Controller{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	store.Initialize()
	c.damage = NewDamageEngine(c.logger)
	c.recharge = NewRechargeScheduler(store, policy)
	return c, nil
}

// Handle returns the entity handle given by WithHandle.
func (c *Controller) Handle() string { return c.handle }

// Policy returns the stack's recharge policy.
func (c *Controller) Policy() Policy { return c.recharge.Policy() }

// Alive reports whether the stack has not died.
func (c *Controller) Alive() bool { return !c.dead }

// Tick advances recharge by dt seconds.
func (c *Controller) Tick(dt float64) {
	if c.dead {
		return
	}
	c.recharge.Tick(dt)
}

// ApplyDamage routes damage through every segment from the highest index
// down. Modifiers are skipped when ignoreModifiers is set.
//
// Postcondition: Returns the total health removed from all segments.
func (c *Controller) ApplyDamage(damage float64, ignoreModifiers bool) float64 {
	return c.damageDown(damage, ignoreModifiers, matchAll)
}

// ApplyDamageToType routes damage only through segments of type t; other
// segments are passed over and overflow carries between matching segments.
// When onlyIfTopMatches is set the call does nothing unless the current top
// segment is of type t.
func (c *Controller) ApplyDamageToType(damage float64, ignoreModifiers bool, t SegmentType, onlyIfTopMatches bool) float64 {
	if onlyIfTopMatches {
		top, ok := c.topIndex()
		if !ok || c.store.All()[top].Type != t {
			return 0
		}
	}
	return c.damageDown(damage, ignoreModifiers, func(seg *Segment) bool {
		return seg.Type == t
	})
}

// ApplyDamageToTags routes damage only through segments carrying at least one
// of tags. A call with no tags does nothing.
func (c *Controller) ApplyDamageToTags(damage float64, ignoreModifiers bool, tags ...string) float64 {
	if len(tags) == 0 {
		return 0
	}
	return c.damageDown(damage, ignoreModifiers, func(seg *Segment) bool {
		return seg.HasAnyTag(tags)
	})
}

// ApplyDamageToIndex damages exactly one segment. Overflow is discarded.
// An out-of-range index or a disabled segment makes the call a no-op.
func (c *Controller) ApplyDamageToIndex(damage float64, ignoreModifiers bool, index int) float64 {
	if !c.accepts(damage) {
		return 0
	}
	var absorbed float64
	c.store.Mutate(index, func(seg *Segment) {
		if !seg.Disabled {
			absorbed = c.hit(index, seg, damage, ignoreModifiers)
		}
	})
	if absorbed > 0 {
		c.checkDeath()
	}
	return absorbed
}

// ApplyBonusDamage adds bonus to base when the current top segment is of
// type t, then applies the result like ApplyDamage.
func (c *Controller) ApplyBonusDamage(base, bonus float64, t SegmentType, ignoreModifiers bool) float64 {
	amount := base
	if top, ok := c.topIndex(); ok && c.store.All()[top].Type == t {
		amount += bonus
	}
	return c.ApplyDamage(amount, ignoreModifiers)
}

// ApplyBonusDamageForTags adds bonus to base when the current top segment
// carries any of tags, then applies the result like ApplyDamage.
func (c *Controller) ApplyBonusDamageForTags(base, bonus float64, ignoreModifiers bool, tags ...string) float64 {
	amount := base
	if top, ok := c.topIndex(); ok && c.store.All()[top].HasAnyTag(tags) {
		amount += bonus
	}
	return c.ApplyDamage(amount, ignoreModifiers)
}

// ApplyHealth routes healing through every segment from index 0 up.
//
// Postcondition: Returns the total health added to all segments.
func (c *Controller) ApplyHealth(amount float64) float64 {
	return c.healUp(amount, matchAll)
}

// ApplyHealthToType heals only segments of type t.
func (c *Controller) ApplyHealthToType(amount float64, t SegmentType) float64 {
	return c.healUp(amount, func(seg *Segment) bool { return seg.Type == t })
}

// ApplyHealthToTags heals only segments carrying at least one of tags.
func (c *Controller) ApplyHealthToTags(amount float64, tags ...string) float64 {
	if len(tags) == 0 {
		return 0
	}
	return c.healUp(amount, func(seg *Segment) bool { return seg.HasAnyTag(tags) })
}

// ApplyHealthToIndex heals exactly one segment. Overflow is discarded.
func (c *Controller) ApplyHealthToIndex(amount float64, index int) float64 {
	if !c.accepts(amount) {
		return 0
	}
	var added float64
	c.store.Mutate(index, func(seg *Segment) {
		if seg.Disabled {
			return
		}
		before := seg.CurrentHealth
		c.healing.ApplyToSegment(amount, seg)
		added = seg.CurrentHealth - before
	})
	return added
}

// AllHealthValues returns the current health of each segment in index order.
func (c *Controller) AllHealthValues() []float64 {
	segs := c.store.All()
	out := make([]float64, len(segs))
	for i := range segs {
		out[i] = segs[i].CurrentHealth
	}
	return out
}

// CurrentSegment returns a copy of the segment that would take the next hit:
// the highest-index enabled segment with health left.
func (c *Controller) CurrentSegment() (Segment, bool) {
	top, ok := c.topIndex()
	if !ok {
		return Segment{}, false
	}
	return c.store.Snapshot()[top], true
}

// CurrentSegmentIndex returns the index CurrentSegment reports, or -1.
func (c *Controller) CurrentSegmentIndex() int {
	top, ok := c.topIndex()
	if !ok {
		return -1
	}
	return top
}

// Segment returns a copy of the segment at index.
func (c *Controller) Segment(index int) (Segment, bool) {
	if _, ok := c.store.Get(index); !ok {
		return Segment{}, false
	}
	return c.store.Snapshot()[index], true
}

// Segments returns a copy of every segment in index order.
func (c *Controller) Segments() []Segment {
	return c.store.Snapshot()
}

// NumSegments returns the number of segments, disabled ones included.
func (c *Controller) NumSegments() int {
	return c.store.Count()
}

func matchAll(*Segment) bool { return true }

func (c *Controller) accepts(amount float64) bool {
	return !c.dead && amount > 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}

func (c *Controller) damageDown(damage float64, ignoreModifiers bool, match func(*Segment) bool) float64 {
	if !c.accepts(damage) {
		return 0
	}
	segs := c.store.All()
	remaining := damage
	var absorbed float64
	for i := len(segs) - 1; i >= 0 && remaining > 0; i-- {
		seg := &segs[i]
		if seg.Disabled || seg.Depleted() || !match(seg) {
			continue
		}
		dealt := remaining
		if !ignoreModifiers {
			dealt = c.damage.ModifiedDamage(remaining, seg)
		}
		if dealt <= 0 {
			break
		}
		before := seg.CurrentHealth
		remaining = c.damage.ApplyToSegment(dealt, seg)
		absorbed += before - seg.CurrentHealth
		c.recharge.OnDamageTaken(i)
		c.logger.Debug("segment damaged",
			zap.String("entity", c.handle),
			zap.String("segment", seg.label(i)),
			zap.Float64("damage", dealt),
			zap.Float64("health", seg.CurrentHealth),
			zap.Float64("overflow", remaining),
		)
	}
	if absorbed > 0 {
		c.checkDeath()
	}
	return absorbed
}

// hit applies damage to a single segment without carrying overflow.
func (c *Controller) hit(index int, seg *Segment, damage float64, ignoreModifiers bool) float64 {
	dealt := damage
	if !ignoreModifiers {
		dealt = c.damage.ModifiedDamage(damage, seg)
	}
	before := seg.CurrentHealth
	c.damage.ApplyToSegment(dealt, seg)
	absorbed := before - seg.CurrentHealth
	if absorbed > 0 {
		c.recharge.OnDamageTaken(index)
		c.logger.Debug("segment damaged",
			zap.String("entity", c.handle),
			zap.String("segment", seg.label(index)),
			zap.Float64("damage", dealt),
			zap.Float64("health", seg.CurrentHealth),
		)
	}
	return absorbed
}

func (c *Controller) healUp(amount float64, match func(*Segment) bool) float64 {
	if !c.accepts(amount) {
		return 0
	}
	segs := c.store.All()
	remaining := amount
	var added float64
	for i := 0; i < len(segs) && remaining > 0; i++ {
		seg := &segs[i]
		if seg.Disabled || seg.Missing() <= 0 || !match(seg) {
			continue
		}
		before := seg.CurrentHealth
		remaining = c.healing.ApplyToSegment(remaining, seg)
		added += seg.CurrentHealth - before
	}
	return added
}

// topIndex finds the highest-index enabled segment with health left.
func (c *Controller) topIndex() (int, bool) {
	segs := c.store.All()
	for i := len(segs) - 1; i >= 0; i-- {
		if !segs[i].Disabled && !segs[i].Depleted() {
			return i, true
		}
	}
	return -1, false
}

// baseIndex is the lowest enabled segment, or 0 when every segment is disabled.
func (c *Controller) baseIndex() int {
	for i, seg := range c.store.All() {
		if !seg.Disabled {
			return i
		}
	}
	return 0
}

func (c *Controller) checkDeath() {
	if c.dead {
		return
	}
	base, _ := c.store.Get(c.baseIndex())
	if !base.Depleted() {
		return
	}
	c.dead = true
	c.logger.Info("health stack depleted",
		zap.String("entity", c.handle),
		zap.String("segment", base.label(c.baseIndex())),
	)
	if c.onDeath != nil {
		c.onDeath(c.handle)
	}
}
