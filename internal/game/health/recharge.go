package health

import "math"

// Policy holds the stack-wide recharge and reset rules. It is fixed when the
// Controller is built.
type Policy struct {
	// UniversalRecharge recharges at most one segment per tick, lowest index
	// first. When false every eligible segment recharges each tick.
	UniversalRecharge bool
	// UniversalDamageReset resets the timer of every segment with
	// DamageResetsRecharge whenever any segment is hit. When false only the
	// segment that was hit resets.
	UniversalDamageReset bool
}

// RechargeScheduler advances recharge timers and restores health over time.
type RechargeScheduler struct {
	store   *Store
	healing HealingEngine
	policy  Policy
	// anyRechargeable is false when no segment has CanRecharge; Tick is then a no-op.
	anyRechargeable bool
}

// NewRechargeScheduler creates a scheduler over store using policy.
//
// Precondition: store must be non-nil.
func NewRechargeScheduler(store *Store, policy Policy) *RechargeScheduler {
	r := &RechargeScheduler{store: store, policy: policy}
	for _, seg := range store.All() {
		if seg.CanRecharge {
			r.anyRechargeable = true
			break
		}
	}
	return r
}

// Policy returns the scheduler's policy.
func (r *RechargeScheduler) Policy() Policy {
	return r.policy
}

// Tick advances time by dt seconds. Timers are decremented first so a timer
// that expires this tick starts recharging in the same tick.
//
// Postcondition: every RechargeTimer >= 0 and every CurrentHealth <= MaxHealth.
// A non-positive or non-finite dt is ignored.
func (r *RechargeScheduler) Tick(dt float64) {
	if !r.anyRechargeable || dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}
	segs := r.store.All()

	for i := range segs {
		seg := &segs[i]
		if seg.Disabled || !seg.CanRecharge || seg.RechargeTimer <= 0 {
			continue
		}
		seg.RechargeTimer -= dt
		if seg.RechargeTimer < 0 {
			seg.RechargeTimer = 0
		}
	}

	for i := range segs {
		seg := &segs[i]
		if !canRechargeNow(seg) {
			continue
		}
		r.healing.Recharge(seg.RechargeRate*dt, seg)
		if r.policy.UniversalRecharge {
			return
		}
	}
}

func canRechargeNow(seg *Segment) bool {
	return !seg.Disabled &&
		seg.CanRecharge &&
		seg.RechargeRate > 0 &&
		seg.CurrentHealth < seg.MaxHealth &&
		seg.RechargeTimer <= 0
}

// OnDamageTaken resets recharge timers after the segment at index was hit.
//
// Under UniversalDamageReset every segment with DamageResetsRecharge or
// ResetOnAnyDamage restarts its delay. Otherwise the hit segment restarts if
// it has DamageResetsRecharge, and segments with ResetOnAnyDamage always do.
func (r *RechargeScheduler) OnDamageTaken(index int) {
	segs := r.store.All()
	for i := range segs {
		seg := &segs[i]
		if seg.Disabled {
			continue
		}
		reset := seg.ResetOnAnyDamage
		if r.policy.UniversalDamageReset {
			reset = reset || seg.DamageResetsRecharge
		} else if i == index {
			reset = reset || seg.DamageResetsRecharge
		}
		if reset {
			seg.RechargeTimer = math.Max(seg.RechargeDelay, 0)
		}
	}
}
