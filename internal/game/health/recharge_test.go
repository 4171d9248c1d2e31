package health_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/healthstack/internal/game/health"
)

func rechargeable(maxHP, rate, delay float64) health.Segment {
	return health.Segment{
		Type:          health.Health,
		MaxHealth:     maxHP,
		StartActive:   true,
		CanRecharge:   true,
		RechargeRate:  rate,
		RechargeDelay: delay,
	}
}

func TestTick_LockStepRechargesOnlyLowest(t *testing.T) {
	c, err := health.NewController([]health.Segment{
		rechargeable(10, 2, 0),
		rechargeable(10, 2, 0),
	}, health.Policy{UniversalRecharge: true})
	require.NoError(t, err)

	c.ApplyDamageToIndex(4, true, 0)
	c.ApplyDamageToIndex(4, true, 1)
	require.Equal(t, []float64{6, 6}, c.AllHealthValues())

	c.Tick(0.5)
	assert.Equal(t, []float64{7, 6}, c.AllHealthValues())

	c.Tick(0.5)
	assert.Equal(t, []float64{8, 6}, c.AllHealthValues())

	// Base fills, then the next layer starts.
	c.Tick(1)
	c.Tick(0.5)
	assert.Equal(t, []float64{10, 7}, c.AllHealthValues())
}

func TestTick_LockStepSkipsSegmentStillWaiting(t *testing.T) {
	base := rechargeable(10, 2, 5)
	base.DamageResetsRecharge = true
	c, err := health.NewController([]health.Segment{base, rechargeable(10, 2, 0)}, health.Policy{UniversalRecharge: true})
	require.NoError(t, err)

	c.ApplyDamageToIndex(4, true, 0)
	c.ApplyDamageToIndex(4, true, 1)

	c.Tick(0.5)
	assert.Equal(t, []float64{6, 7}, c.AllHealthValues())
	seg, _ := c.Segment(0)
	assert.Equal(t, 4.5, seg.RechargeTimer)
}

func TestTick_IndependentRechargesAll(t *testing.T) {
	c, err := health.NewController([]health.Segment{
		rechargeable(10, 2, 0),
		rechargeable(10, 4, 0),
	}, health.Policy{UniversalRecharge: false})
	require.NoError(t, err)

	c.ApplyDamageToIndex(4, true, 0)
	c.ApplyDamageToIndex(4, true, 1)

	c.Tick(0.5)
	assert.Equal(t, []float64{7, 8}, c.AllHealthValues())
}

func TestTick_TimerExpiresAndRechargesSameTick(t *testing.T) {
	seg := rechargeable(10, 2, 1)
	seg.DamageResetsRecharge = true
	c, err := health.NewController([]health.Segment{seg}, health.Policy{})
	require.NoError(t, err)

	c.ApplyDamage(4, true)
	got, _ := c.Segment(0)
	require.Equal(t, 1.0, got.RechargeTimer)

	c.Tick(1)
	got, _ = c.Segment(0)
	assert.Equal(t, 0.0, got.RechargeTimer)
	assert.Equal(t, 8.0, got.CurrentHealth)
}

func TestTick_TimerClampsAtZero(t *testing.T) {
	seg := rechargeable(10, 1, 1)
	c, err := health.NewController([]health.Segment{seg}, health.Policy{})
	require.NoError(t, err)

	c.Tick(5)
	got, _ := c.Segment(0)
	assert.Equal(t, 0.0, got.RechargeTimer)
	assert.Equal(t, 10.0, got.CurrentHealth)
}

func TestTick_IgnoresDisabledAndNonRecharging(t *testing.T) {
	disabled := rechargeable(10, 2, 0)
	disabled.Disabled = true
	fixed := rechargeable(10, 2, 0)
	fixed.CanRecharge = false
	c, err := health.NewController([]health.Segment{rechargeable(10, 2, 0), disabled, fixed}, health.Policy{})
	require.NoError(t, err)

	c.ApplyDamageToIndex(4, true, 0)
	c.ApplyDamageToIndex(4, true, 2)

	c.Tick(1)
	assert.Equal(t, []float64{8, 10, 6}, c.AllHealthValues())
}

func TestTick_InvalidDeltaIgnored(t *testing.T) {
	c, err := health.NewController([]health.Segment{rechargeable(10, 2, 0)}, health.Policy{})
	require.NoError(t, err)
	c.ApplyDamage(4, true)

	c.Tick(0)
	c.Tick(-1)
	assert.Equal(t, []float64{6}, c.AllHealthValues())
}

func TestOnDamageTaken_PerSegmentReset(t *testing.T) {
	base := rechargeable(10, 1, 3)
	base.DamageResetsRecharge = true
	top := rechargeable(10, 1, 2)
	top.DamageResetsRecharge = true
	top.CarryDamageToNextSegment = false
	c, err := health.NewController([]health.Segment{base, top}, health.Policy{})
	require.NoError(t, err)

	c.Tick(2)
	c.ApplyDamage(1, true)

	b, _ := c.Segment(0)
	tp, _ := c.Segment(1)
	assert.Equal(t, 1.0, b.RechargeTimer, "base was not hit")
	assert.Equal(t, 2.0, tp.RechargeTimer, "top was hit")
}

func TestOnDamageTaken_UniversalReset(t *testing.T) {
	base := rechargeable(10, 1, 3)
	base.DamageResetsRecharge = true
	mid := rechargeable(10, 1, 3)
	top := rechargeable(10, 1, 2)
	top.DamageResetsRecharge = true
	c, err := health.NewController([]health.Segment{base, mid, top}, health.Policy{UniversalDamageReset: true})
	require.NoError(t, err)

	c.Tick(2)
	c.ApplyDamage(1, true)

	segs := c.Segments()
	assert.Equal(t, 3.0, segs[0].RechargeTimer)
	assert.Equal(t, 1.0, segs[1].RechargeTimer, "mid does not reset on damage")
	assert.Equal(t, 2.0, segs[2].RechargeTimer)
}

func TestOnDamageTaken_ResetOnAnyDamage(t *testing.T) {
	base := rechargeable(10, 1, 3)
	base.ResetOnAnyDamage = true
	c, err := health.NewController([]health.Segment{base, rechargeable(10, 1, 2)}, health.Policy{})
	require.NoError(t, err)

	c.Tick(2)
	c.ApplyDamage(1, true)

	b, _ := c.Segment(0)
	assert.Equal(t, 3.0, b.RechargeTimer)
}

func TestTick_NoOpAfterDeath(t *testing.T) {
	c, err := health.NewController([]health.Segment{rechargeable(10, 5, 0)}, health.Policy{})
	require.NoError(t, err)
	c.ApplyDamage(10, true)
	require.False(t, c.Alive())

	c.Tick(1)
	assert.Equal(t, []float64{0}, c.AllHealthValues())
}
