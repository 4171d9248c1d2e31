package health

import "go.uber.org/zap"

// DamageEngine computes per-type modified damage and applies it to segments.
type DamageEngine struct {
	logger *zap.Logger
}

// NewDamageEngine creates a DamageEngine. A nil logger is replaced by a no-op logger.
func NewDamageEngine(logger *zap.Logger) *DamageEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DamageEngine{logger: logger}
}

// ModifiedDamage returns raw transformed by seg's type:
//
//	Health:  raw
//	Armor:   max(raw - ArmourDamageReduction, MinimumArmourDamage)
//	Shield:  ConstantShieldDamage, regardless of raw
//	Barrier: raw * BarrierDamageMitigation
//
// An unknown type is logged as an error and raw is returned unchanged.
func (e *DamageEngine) ModifiedDamage(raw float64, seg *Segment) float64 {
	switch seg.Type {
	case Health:
		return raw
	case Armor:
		reduced := raw - seg.ArmourDamageReduction
		if reduced < seg.MinimumArmourDamage {
			return seg.MinimumArmourDamage
		}
		return reduced
	case Shield:
		return seg.ConstantShieldDamage
	case Barrier:
		return raw * seg.BarrierDamageMitigation
	default:
		e.logger.Error("unrecognized segment type, passing damage through",
			zap.Int("type", int(seg.Type)),
			zap.String("segment", seg.Name),
			zap.Float64("damage", raw),
		)
		return raw
	}
}

// ApplyToSegment subtracts damage from seg, flooring CurrentHealth at zero.
//
// Postcondition: seg.CurrentHealth >= 0. Returns the damage seg could not
// absorb when CarryDamageToNextSegment is set, and 0 otherwise.
func (e *DamageEngine) ApplyToSegment(damage float64, seg *Segment) float64 {
	if damage <= 0 {
		return 0
	}
	var overflow float64
	if seg.CurrentHealth < damage {
		overflow = damage - seg.CurrentHealth
		seg.CurrentHealth = 0
	} else {
		seg.CurrentHealth -= damage
	}
	if !seg.CarryDamageToNextSegment {
		return 0
	}
	return overflow
}
