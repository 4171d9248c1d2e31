package health

// HealingEngine adds health to segments. It is the counterpart of DamageEngine.
type HealingEngine struct{}

// ApplyToSegment adds amount to seg, capping CurrentHealth at MaxHealth.
//
// Postcondition: seg.CurrentHealth <= seg.MaxHealth. Returns the healing seg
// could not take when CarryHealingToNextSegment is set, and 0 otherwise.
func (HealingEngine) ApplyToSegment(amount float64, seg *Segment) float64 {
	if amount <= 0 {
		return 0
	}
	room := seg.MaxHealth - seg.CurrentHealth
	var overflow float64
	if amount > room {
		seg.CurrentHealth = seg.MaxHealth
		overflow = amount - room
	} else {
		seg.CurrentHealth += amount
		if seg.CurrentHealth > seg.MaxHealth {
			seg.CurrentHealth = seg.MaxHealth
		}
	}
	if !seg.CarryHealingToNextSegment {
		return 0
	}
	return overflow
}

// Recharge adds amount to seg capped at MaxHealth and discards any excess.
func (HealingEngine) Recharge(amount float64, seg *Segment) {
	if amount <= 0 {
		return
	}
	seg.CurrentHealth += amount
	if seg.CurrentHealth > seg.MaxHealth {
		seg.CurrentHealth = seg.MaxHealth
	}
}
