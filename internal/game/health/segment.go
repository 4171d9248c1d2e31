// Package health implements layered health stacks: an ordered set of
// segments (health, armor, shield, barrier) that absorb damage top-down,
// take healing bottom-up, and recharge on their own timers.
package health

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SegmentType selects the damage modifier a segment applies.
type SegmentType int

const (
	Health SegmentType = iota
	Armor
	Shield
	Barrier
)

// String returns the lowercase type name.
func (t SegmentType) String() string {
	switch t {
	case Health:
		return "health"
	case Armor:
		return "armor"
	case Shield:
		return "shield"
	case Barrier:
		return "barrier"
	default:
		return fmt.Sprintf("segment_type(%d)", int(t))
	}
}

// ParseSegmentType converts a type name to a SegmentType. Matching is
// case-insensitive and accepts the "armour" spelling.
//
// Postcondition: Returns a known SegmentType or a non-nil error.
func ParseSegmentType(s string) (SegmentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "health":
		return Health, nil
	case "armor", "armour":
		return Armor, nil
	case "shield":
		return Shield, nil
	case "barrier":
		return Barrier, nil
	default:
		return Health, fmt.Errorf("unknown segment type %q", s)
	}
}

// UnmarshalYAML decodes a segment type from its name.
func (t *SegmentType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseSegmentType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML encodes a segment type as its name.
func (t SegmentType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// Segment is one absorptive layer of a health stack. Index 0 is the base
// layer; the highest index is the outermost layer and absorbs damage first.
//
// Invariant: 0 <= CurrentHealth <= MaxHealth; RechargeTimer >= 0.
type Segment struct {
	// Name is a display label used in logs and status output.
	Name string
	Type SegmentType

	MaxHealth     float64
	CurrentHealth float64
	StartActive   bool
	// Disabled segments are skipped by damage, healing and recharge.
	Disabled bool

	CarryDamageToNextSegment  bool
	CarryHealingToNextSegment bool

	CanRecharge bool
	// RechargeRate is in health per second.
	RechargeRate float64
	// RechargeDelay is in seconds.
	RechargeDelay float64
	RechargeTimer float64
	// DamageResetsRecharge restarts the timer when this segment is hit.
	DamageResetsRecharge bool
	// ResetOnAnyDamage restarts the timer whenever any segment is hit.
	ResetOnAnyDamage bool

	UseTags     bool
	SpecialTags []string

	ArmourDamageReduction   float64
	MinimumArmourDamage     float64
	ConstantShieldDamage    float64
	BarrierDamageMitigation float64
}

// Missing reports how much health the segment can still take.
func (s *Segment) Missing() float64 {
	return s.MaxHealth - s.CurrentHealth
}

// Depleted reports whether the segment has no health left.
func (s *Segment) Depleted() bool {
	return s.CurrentHealth <= 0
}

// HasAnyTag reports whether the segment uses tags and carries at least one of
// tags. Matching is exact and case-sensitive.
func (s *Segment) HasAnyTag(tags []string) bool {
	if !s.UseTags {
		return false
	}
	for _, own := range s.SpecialTags {
		for _, t := range tags {
			if own == t {
				return true
			}
		}
	}
	return false
}

func (s *Segment) label(index int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%s#%d", s.Type, index)
}
