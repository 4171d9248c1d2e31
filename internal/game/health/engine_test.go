package health_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/healthstack/internal/game/health"
)

func TestModifiedDamage_Health(t *testing.T) {
	e := health.NewDamageEngine(nil)
	assert.Equal(t, 7.5, e.ModifiedDamage(7.5, &health.Segment{Type: health.Health}))
}

func TestModifiedDamage_ArmorFloor(t *testing.T) {
	e := health.NewDamageEngine(nil)
	seg := &health.Segment{Type: health.Armor, ArmourDamageReduction: 5, MinimumArmourDamage: 1}
	assert.Equal(t, 1.0, e.ModifiedDamage(3, seg))
	assert.Equal(t, 5.0, e.ModifiedDamage(10, seg))
}

func TestModifiedDamage_ShieldConstant(t *testing.T) {
	e := health.NewDamageEngine(nil)
	seg := &health.Segment{Type: health.Shield, ConstantShieldDamage: 4}
	assert.Equal(t, 4.0, e.ModifiedDamage(100, seg))
	assert.Equal(t, 4.0, e.ModifiedDamage(1, seg))
}

func TestModifiedDamage_BarrierPercentage(t *testing.T) {
	e := health.NewDamageEngine(nil)
	seg := &health.Segment{Type: health.Barrier, BarrierDamageMitigation: 0.5}
	assert.Equal(t, 5.0, e.ModifiedDamage(10, seg))
}

func TestModifiedDamage_UnknownTypePassesThroughAndLogs(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	e := health.NewDamageEngine(zap.New(core))
	seg := &health.Segment{Type: health.SegmentType(42)}
	assert.Equal(t, 12.0, e.ModifiedDamage(12, seg))
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "unrecognized segment type")
}

func TestDamageApplyToSegment(t *testing.T) {
	e := health.NewDamageEngine(nil)

	seg := &health.Segment{MaxHealth: 10, CurrentHealth: 5, CarryDamageToNextSegment: true}
	assert.Equal(t, 3.0, e.ApplyToSegment(8, seg))
	assert.Equal(t, 0.0, seg.CurrentHealth)

	seg = &health.Segment{MaxHealth: 10, CurrentHealth: 5}
	assert.Equal(t, 0.0, e.ApplyToSegment(8, seg), "overflow is discarded without carry")
	assert.Equal(t, 0.0, seg.CurrentHealth)

	seg = &health.Segment{MaxHealth: 10, CurrentHealth: 5, CarryDamageToNextSegment: true}
	assert.Equal(t, 0.0, e.ApplyToSegment(5, seg))
	assert.Equal(t, 0.0, seg.CurrentHealth)

	seg = &health.Segment{MaxHealth: 10, CurrentHealth: 5}
	assert.Equal(t, 0.0, e.ApplyToSegment(2, seg))
	assert.Equal(t, 3.0, seg.CurrentHealth)
}

func TestHealApplyToSegment(t *testing.T) {
	var h health.HealingEngine

	seg := &health.Segment{MaxHealth: 10, CurrentHealth: 7, CarryHealingToNextSegment: true}
	assert.Equal(t, 2.0, h.ApplyToSegment(5, seg))
	assert.Equal(t, 10.0, seg.CurrentHealth)

	seg = &health.Segment{MaxHealth: 10, CurrentHealth: 7}
	assert.Equal(t, 0.0, h.ApplyToSegment(5, seg))
	assert.Equal(t, 10.0, seg.CurrentHealth)

	seg = &health.Segment{MaxHealth: 10, CurrentHealth: 2, CarryHealingToNextSegment: true}
	assert.Equal(t, 0.0, h.ApplyToSegment(3, seg))
	assert.Equal(t, 5.0, seg.CurrentHealth)

	seg = &health.Segment{MaxHealth: 10, CurrentHealth: 2}
	assert.Equal(t, 0.0, h.ApplyToSegment(-3, seg))
	assert.Equal(t, 2.0, seg.CurrentHealth)
}

func TestHealRecharge_Clamps(t *testing.T) {
	var h health.HealingEngine
	seg := &health.Segment{MaxHealth: 10, CurrentHealth: 9, CarryHealingToNextSegment: true}
	h.Recharge(5, seg)
	assert.Equal(t, 10.0, seg.CurrentHealth)
}

func TestSegmentType_StringAndParse(t *testing.T) {
	for _, typ := range []health.SegmentType{health.Health, health.Armor, health.Shield, health.Barrier} {
		got, err := health.ParseSegmentType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	got, err := health.ParseSegmentType("Armour")
	require.NoError(t, err)
	assert.Equal(t, health.Armor, got)

	_, err = health.ParseSegmentType("plating")
	assert.Error(t, err)
}

func TestSegment_HasAnyTag(t *testing.T) {
	seg := &health.Segment{UseTags: true, SpecialTags: []string{"fire", "ice"}}
	assert.True(t, seg.HasAnyTag([]string{"ice"}))
	assert.True(t, seg.HasAnyTag([]string{"water", "fire"}))
	assert.False(t, seg.HasAnyTag([]string{"water"}))
	assert.False(t, seg.HasAnyTag([]string{"ICE"}), "matching is case-sensitive")
	assert.False(t, seg.HasAnyTag(nil))

	seg.UseTags = false
	assert.False(t, seg.HasAnyTag([]string{"ice"}))
}
