package health

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SegmentDef is the static definition of one segment, loaded from YAML.
type SegmentDef struct {
	Name                      string      `yaml:"name"`
	Type                      SegmentType `yaml:"type"`
	MaxHealth                 float64     `yaml:"max_health"`
	StartActive               bool        `yaml:"start_active"`
	Disabled                  bool        `yaml:"disabled"`
	CarryDamageToNextSegment  bool        `yaml:"carry_damage"`
	CarryHealingToNextSegment bool        `yaml:"carry_healing"`
	CanRecharge               bool        `yaml:"can_recharge"`
	RechargeRate              float64     `yaml:"recharge_rate"`
	RechargeDelay             float64     `yaml:"recharge_delay"`
	DamageResetsRecharge      bool        `yaml:"damage_resets_recharge"`
	ResetOnAnyDamage          bool        `yaml:"reset_on_any_damage"`
	UseTags                   bool        `yaml:"use_tags"`
	SpecialTags               []string    `yaml:"tags"`
	ArmourDamageReduction     float64     `yaml:"armour_damage_reduction"`
	MinimumArmourDamage       float64     `yaml:"minimum_armour_damage"`
	ConstantShieldDamage      float64     `yaml:"constant_shield_damage"`
	BarrierDamageMitigation   float64     `yaml:"barrier_damage_mitigation"`
}

// Segment converts the definition to a runtime Segment.
func (d SegmentDef) Segment() Segment {
	return Segment{
		Name:                      d.Name,
		Type:                      d.Type,
		MaxHealth:                 d.MaxHealth,
		StartActive:               d.StartActive,
		Disabled:                  d.Disabled,
		CarryDamageToNextSegment:  d.CarryDamageToNextSegment,
		CarryHealingToNextSegment: d.CarryHealingToNextSegment,
		CanRecharge:               d.CanRecharge,
		RechargeRate:              d.RechargeRate,
		RechargeDelay:             d.RechargeDelay,
		DamageResetsRecharge:      d.DamageResetsRecharge,
		ResetOnAnyDamage:          d.ResetOnAnyDamage,
		UseTags:                   d.UseTags,
		SpecialTags:               append([]string(nil), d.SpecialTags...),
		ArmourDamageReduction:     d.ArmourDamageReduction,
		MinimumArmourDamage:       d.MinimumArmourDamage,
		ConstantShieldDamage:      d.ConstantShieldDamage,
		BarrierDamageMitigation:   d.BarrierDamageMitigation,
	}
}

// StackDef defines a reusable health stack. Segments are listed base first.
// A nil policy flag falls back to the default passed to PolicyOr.
type StackDef struct {
	ID                   string       `yaml:"id"`
	Name                 string       `yaml:"name"`
	UniversalRecharge    *bool        `yaml:"universal_recharge"`
	UniversalDamageReset *bool        `yaml:"universal_damage_reset"`
	Segments             []SegmentDef `yaml:"segments"`
}

// Validate checks every definition invariant.
//
// Postcondition: Returns nil if the definition is valid, or one error naming
// every violation. A definition without segments wraps ErrNoSegments.
func (d *StackDef) Validate() error {
	if len(d.Segments) == 0 {
		return fmt.Errorf("stack %q: %w", d.ID, ErrNoSegments)
	}
	var errs []string
	if d.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	for i, s := range d.Segments {
		prefix := fmt.Sprintf("segments[%d]", i)
		for _, f := range []struct {
			name  string
			value float64
		}{
			{"max_health", s.MaxHealth},
			{"recharge_rate", s.RechargeRate},
			{"recharge_delay", s.RechargeDelay},
			{"armour_damage_reduction", s.ArmourDamageReduction},
			{"minimum_armour_damage", s.MinimumArmourDamage},
			{"constant_shield_damage", s.ConstantShieldDamage},
			{"barrier_damage_mitigation", s.BarrierDamageMitigation},
		} {
			if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
				errs = append(errs, fmt.Sprintf("%s.%s must be finite, got %g", prefix, f.name, f.value))
			}
		}
		if s.MaxHealth <= 0 {
			errs = append(errs, fmt.Sprintf("%s.max_health must be > 0, got %g", prefix, s.MaxHealth))
		}
		if s.RechargeRate < 0 {
			errs = append(errs, fmt.Sprintf("%s.recharge_rate must be >= 0, got %g", prefix, s.RechargeRate))
		}
		if s.RechargeDelay < 0 {
			errs = append(errs, fmt.Sprintf("%s.recharge_delay must be >= 0, got %g", prefix, s.RechargeDelay))
		}
		if s.MinimumArmourDamage < 0 {
			errs = append(errs, fmt.Sprintf("%s.minimum_armour_damage must be >= 0, got %g", prefix, s.MinimumArmourDamage))
		}
		if s.ConstantShieldDamage < 0 {
			errs = append(errs, fmt.Sprintf("%s.constant_shield_damage must be >= 0, got %g", prefix, s.ConstantShieldDamage))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("stack %q: %s", d.ID, strings.Join(errs, "; "))
	}
	return nil
}

// Warnings returns non-fatal findings about the definition.
func (d *StackDef) Warnings() []string {
	var out []string
	for i, s := range d.Segments {
		if s.Type == Barrier && (s.BarrierDamageMitigation < 0 || s.BarrierDamageMitigation > 1) {
			out = append(out, fmt.Sprintf("segments[%d].barrier_damage_mitigation %g is outside [0, 1]", i, s.BarrierDamageMitigation))
		}
		if s.UseTags && len(s.SpecialTags) == 0 {
			out = append(out, fmt.Sprintf("segments[%d] uses tags but has none", i))
		}
		if !s.UseTags && len(s.SpecialTags) > 0 {
			out = append(out, fmt.Sprintf("segments[%d] has tags but use_tags is false; tags are ignored", i))
		}
		if s.CanRecharge && s.RechargeRate == 0 {
			out = append(out, fmt.Sprintf("segments[%d] can recharge but recharge_rate is 0", i))
		}
	}
	return out
}

// PolicyOr returns the definition's policy, taking unset flags from def.
func (d *StackDef) PolicyOr(def Policy) Policy {
	p := def
	if d.UniversalRecharge != nil {
		p.UniversalRecharge = *d.UniversalRecharge
	}
	if d.UniversalDamageReset != nil {
		p.UniversalDamageReset = *d.UniversalDamageReset
	}
	return p
}

// RuntimeSegments converts every SegmentDef to a Segment.
func (d *StackDef) RuntimeSegments() []Segment {
	out := make([]Segment, len(d.Segments))
	for i, s := range d.Segments {
		out[i] = s.Segment()
	}
	return out
}

// NewController builds a Controller from the definition.
//
// Precondition: d must have passed Validate.
func (d *StackDef) NewController(defaults Policy, opts ...Option) (*Controller, error) {
	return NewController(d.RuntimeSegments(), d.PolicyOr(defaults), opts...)
}

// Registry holds stack definitions keyed by ID.
type Registry struct {
	defs map[string]*StackDef
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*StackDef)}
}

// Register adds def, replacing any definition with the same ID.
//
// Precondition: def must be non-nil.
func (r *Registry) Register(def *StackDef) {
	r.defs[def.ID] = def
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (*StackDef, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns every registered ID in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.defs))
	for id := range r.defs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// LoadStackDef parses and validates a single definition.
//
// Postcondition: Returns a validated *StackDef or an error. Unknown YAML
// fields are rejected.
func LoadStackDef(data []byte) (*StackDef, error) {
	var def StackDef
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parsing stack YAML: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDirectory reads every *.yaml and *.yml file in dir into a Registry.
// warn, if non-nil, receives each definition's warnings.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a populated Registry, or an error naming the first
// file that fails to read, parse or validate.
func LoadDirectory(dir string, warn func(path, msg string)) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading stack dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		def, err := LoadStackDef(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if _, dup := reg.Get(def.ID); dup {
			return nil, fmt.Errorf("loading %q: duplicate stack id %q", path, def.ID)
		}
		if warn != nil {
			for _, w := range def.Warnings() {
				warn(path, w)
			}
		}
		reg.Register(def)
	}
	return reg, nil
}
