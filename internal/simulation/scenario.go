package simulation

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/healthstack/internal/game/dice"
	"github.com/cory-johannsen/healthstack/internal/game/entity"
	"github.com/cory-johannsen/healthstack/internal/game/health"
)

// Event actions.
const (
	ActionDamage = "damage"
	ActionHeal   = "heal"
	ActionBonus  = "bonus"
)

// Amount is a fixed number or a dice expression such as "2d6+1".
type Amount struct {
	dice.Expression
}

// UnmarshalYAML accepts any scalar and parses it as a dice expression.
func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a number or dice expression", node.Line)
	}
	e, err := dice.Parse(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	a.Expression = e
	return nil
}

// SpawnSpec creates one entity under an alias used by events.
type SpawnSpec struct {
	Alias string `yaml:"alias"`
	Stack string `yaml:"stack"`
	Name  string `yaml:"name"`
}

// Event is one damage or heal applied at a simulated time.
type Event struct {
	At              float64  `yaml:"at"`
	Entity          string   `yaml:"entity"`
	Action          string   `yaml:"action"`
	Amount          Amount   `yaml:"amount"`
	Bonus           float64  `yaml:"bonus"`
	IgnoreModifiers bool     `yaml:"ignore_modifiers"`
	Type            string   `yaml:"type"`
	OnlyIfTop       bool     `yaml:"only_if_top"`
	Tags            []string `yaml:"tags"`
	Index           *int     `yaml:"index"`
}

// Scenario is a scripted sequence of events against freshly spawned entities.
type Scenario struct {
	Name string `yaml:"name"`
	// Duration is the simulated length in seconds; 0 ends at the last event.
	Duration float64     `yaml:"duration"`
	Spawn    []SpawnSpec `yaml:"spawn"`
	Events   []Event     `yaml:"events"`
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenario reads and parses the scenario file at path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Validate checks every scenario invariant.
//
// Postcondition: Returns nil if the scenario is valid, or one error naming every violation.
func (s *Scenario) Validate() error {
	var errs []string
	aliases := make(map[string]bool, len(s.Spawn))
	if s.Duration < 0 || math.IsNaN(s.Duration) || math.IsInf(s.Duration, 0) {
		errs = append(errs, fmt.Sprintf("duration must be finite and >= 0, got %g", s.Duration))
	}
	for i, sp := range s.Spawn {
		switch {
		case sp.Alias == "":
			errs = append(errs, fmt.Sprintf("spawn[%d].alias must not be empty", i))
		case aliases[sp.Alias]:
			errs = append(errs, fmt.Sprintf("spawn[%d].alias %q is duplicated", i, sp.Alias))
		}
		if sp.Stack == "" {
			errs = append(errs, fmt.Sprintf("spawn[%d].stack must not be empty", i))
		}
		aliases[sp.Alias] = true
	}
	for i, ev := range s.Events {
		prefix := fmt.Sprintf("events[%d]", i)
		if ev.At < 0 || math.IsNaN(ev.At) || math.IsInf(ev.At, 0) {
			errs = append(errs, fmt.Sprintf("%s.at must be finite and >= 0, got %g", prefix, ev.At))
		}
		if !aliases[ev.Entity] {
			errs = append(errs, fmt.Sprintf("%s.entity %q is not spawned", prefix, ev.Entity))
		}
		if ev.Amount.Raw == "" {
			errs = append(errs, fmt.Sprintf("%s.amount is required", prefix))
		}
		if ev.Type != "" {
			if _, err := health.ParseSegmentType(ev.Type); err != nil {
				errs = append(errs, fmt.Sprintf("%s.type: %v", prefix, err))
			}
		}
		switch ev.Action {
		case ActionDamage, ActionHeal:
		case ActionBonus:
			if ev.Type == "" && len(ev.Tags) == 0 {
				errs = append(errs, fmt.Sprintf("%s: bonus needs a type or tags", prefix))
			}
			if ev.Bonus == 0 {
				errs = append(errs, fmt.Sprintf("%s.bonus must not be 0", prefix))
			}
		default:
			errs = append(errs, fmt.Sprintf("%s.action must be damage, heal, or bonus, got %q", prefix, ev.Action))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("scenario %q: %s", s.Name, strings.Join(errs, "; "))
	}
	return nil
}

// FiredEvent records one applied event.
type FiredEvent struct {
	At      float64
	Alias   string
	Action  string
	Rolled  float64
	Applied float64
}

// EntityResult is the final state of one spawned entity.
type EntityResult struct {
	Alias  string
	Status entity.Status
}

// Result is the outcome of Play.
type Result struct {
	Elapsed  float64
	Ticks    int
	Fired    []FiredEvent
	Entities []EntityResult
}

// Play spawns the scenario's entities from defs, then steps ticks, firing each
// event before the first tick that would pass its time, until duration
// seconds have elapsed. A duration <= 0 uses the scenario's duration, and
// failing that the time of the last event.
//
// Precondition: sc must have passed Validate; roller must be non-nil.
// Postcondition: Returns the final status of every spawned entity in spawn order.
func (d *Driver) Play(sc *Scenario, defs *health.Registry, roller *dice.Roller, duration float64) (*Result, error) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("scenario %q: duration must be finite, got %g", sc.Name, duration)
	}
	ids := make(map[string]string, len(sc.Spawn))
	for _, sp := range sc.Spawn {
		def, ok := defs.Get(sp.Stack)
		if !ok {
			return nil, fmt.Errorf("scenario %q: unknown stack %q for %q", sc.Name, sp.Stack, sp.Alias)
		}
		name := sp.Name
		if name == "" {
			name = sp.Alias
		}
		e, err := d.manager.Spawn(def, name)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		ids[sp.Alias] = e.ID
	}

	events := append([]Event(nil), sc.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	if duration <= 0 {
		duration = sc.Duration
	}
	if duration <= 0 && len(events) > 0 {
		duration = events[len(events)-1].At
	}

	const eps = 1e-9
	start := d.Elapsed()
	res := &Result{}
	next := 0
	for {
		now := d.Elapsed() - start
		for next < len(events) && events[next].At <= now+eps {
			fired, err := d.fire(events[next], ids[events[next].Entity], roller)
			if err != nil {
				return nil, err
			}
			fired.Alias = events[next].Entity
			res.Fired = append(res.Fired, fired)
			next++
		}
		if now+eps >= duration {
			break
		}
		d.Step(1)
		res.Ticks++
	}
	res.Elapsed = d.Elapsed() - start

	for _, sp := range sc.Spawn {
		st, ok := d.manager.Status(ids[sp.Alias])
		if !ok {
			continue
		}
		res.Entities = append(res.Entities, EntityResult{Alias: sp.Alias, Status: st})
	}
	d.logger.Info("scenario finished",
		zap.String("scenario", sc.Name),
		zap.Int("ticks", res.Ticks),
		zap.Int("events", len(res.Fired)),
	)
	return res, nil
}

func (d *Driver) fire(ev Event, id string, roller *dice.Roller) (FiredEvent, error) {
	rolled := roller.Roll(ev.Amount.Expression).Total()
	out := FiredEvent{At: ev.At, Action: ev.Action, Rolled: rolled}

	var typ *health.SegmentType
	if ev.Type != "" {
		t, err := health.ParseSegmentType(ev.Type)
		if err != nil {
			return out, err
		}
		typ = &t
	}

	var err error
	switch ev.Action {
	case ActionHeal:
		out.Applied, err = d.Heal(id, entity.HealRequest{
			Amount: rolled,
			Type:   typ,
			Tags:   ev.Tags,
			Index:  ev.Index,
		})
	default:
		req := entity.DamageRequest{
			Amount:          rolled,
			IgnoreModifiers: ev.IgnoreModifiers,
			Type:            typ,
			OnlyIfTop:       ev.OnlyIfTop,
			Tags:            ev.Tags,
			Index:           ev.Index,
		}
		if ev.Action == ActionBonus {
			req.Bonus = ev.Bonus
		}
		out.Applied, err = d.Damage(id, req)
	}
	if err != nil {
		return out, err
	}
	d.logger.Debug("event fired",
		zap.String("entity", id),
		zap.String("action", ev.Action),
		zap.Float64("at", ev.At),
		zap.Float64("rolled", rolled),
		zap.Float64("applied", out.Applied),
	)
	return out, nil
}
