package entity

import "github.com/cory-johannsen/healthstack/internal/game/health"

// DamageRequest selects one of the Controller's damage operations.
//
// Precedence: Index, then Bonus (with Type or Tags), then Type, then Tags,
// then the default traversal.
type DamageRequest struct {
	Amount          float64
	IgnoreModifiers bool
	// Bonus is added when the top segment matches Type or Tags.
	Bonus float64
	// Type restricts damage to segments of this type when non-nil.
	Type *health.SegmentType
	// OnlyIfTop aborts a Type request unless the top segment has that type.
	OnlyIfTop bool
	Tags      []string
	// Index targets a single segment when non-nil.
	Index *int
}

// Apply runs the request against c and returns the health removed.
func (r DamageRequest) Apply(c *health.Controller) float64 {
	switch {
	case r.Index != nil:
		return c.ApplyDamageToIndex(r.Amount, r.IgnoreModifiers, *r.Index)
	case r.Bonus != 0 && r.Type != nil:
		return c.ApplyBonusDamage(r.Amount, r.Bonus, *r.Type, r.IgnoreModifiers)
	case r.Bonus != 0 && len(r.Tags) > 0:
		return c.ApplyBonusDamageForTags(r.Amount, r.Bonus, r.IgnoreModifiers, r.Tags...)
	case r.Type != nil:
		return c.ApplyDamageToType(r.Amount, r.IgnoreModifiers, *r.Type, r.OnlyIfTop)
	case len(r.Tags) > 0:
		return c.ApplyDamageToTags(r.Amount, r.IgnoreModifiers, r.Tags...)
	default:
		return c.ApplyDamage(r.Amount, r.IgnoreModifiers)
	}
}

// HealRequest selects one of the Controller's healing operations.
//
// Precedence: Index, then Type, then Tags, then the default traversal.
type HealRequest struct {
	Amount float64
	Type   *health.SegmentType
	Tags   []string
	Index  *int
}

// Apply runs the request against c and returns the health added.
func (r HealRequest) Apply(c *health.Controller) float64 {
	switch {
	case r.Index != nil:
		return c.ApplyHealthToIndex(r.Amount, *r.Index)
	case r.Type != nil:
		return c.ApplyHealthToType(r.Amount, *r.Type)
	case len(r.Tags) > 0:
		return c.ApplyHealthToTags(r.Amount, r.Tags...)
	default:
		return c.ApplyHealth(r.Amount)
	}
}
