package simulation_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/healthstack/internal/game/dice"
	"github.com/cory-johannsen/healthstack/internal/game/entity"
	"github.com/cory-johannsen/healthstack/internal/game/health"
	"github.com/cory-johannsen/healthstack/internal/scripting"
	"github.com/cory-johannsen/healthstack/internal/simulation"
)

func gruntDef() *health.StackDef {
	return &health.StackDef{
		ID:   "grunt",
		Name: "Grunt",
		Segments: []health.SegmentDef{
			{Name: "flesh", Type: health.Health, MaxHealth: 10, StartActive: true},
			{Name: "overshield", Type: health.Health, MaxHealth: 5, StartActive: true, CarryDamageToNextSegment: true,
				CanRecharge: true, RechargeRate: 2, RechargeDelay: 0.5, DamageResetsRecharge: true},
		},
	}
}

func registry(defs ...*health.StackDef) *health.Registry {
	r := health.NewRegistry()
	for _, d := range defs {
		r.Register(d)
	}
	return r
}

type recordingHooks struct {
	mu      sync.Mutex
	damaged []float64
	healed  []float64
	died    []string
}

func (h *recordingHooks) Damaged(_ entity.Status, amount float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.damaged = append(h.damaged, amount)
}

func (h *recordingHooks) Healed(_ entity.Status, amount float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healed = append(h.healed, amount)
}

func (h *recordingHooks) Died(st entity.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.died = append(h.died, st.ID)
}

func newDriver(t testing.TB, rate int, opts ...simulation.Option) *simulation.Driver {
	t.Helper()
	d, err := simulation.NewDriver(entity.NewManager(health.Policy{}, nil), rate, opts...)
	require.NoError(t, err)
	return d
}

func TestNewDriver_Validation(t *testing.T) {
	_, err := simulation.NewDriver(nil, 10)
	assert.Error(t, err)
	_, err = simulation.NewDriver(entity.NewManager(health.Policy{}, nil), 0)
	assert.Error(t, err)
}

func TestStep_RechargesAfterDelay(t *testing.T) {
	d := newDriver(t, 4)
	e, err := d.Manager().Spawn(gruntDef(), "g")
	require.NoError(t, err)
	_, err = d.Damage(e.ID, entity.DamageRequest{Amount: 3})
	require.NoError(t, err)

	assert.Equal(t, 0.25, d.Step(1))
	st, _ := d.Manager().Status(e.ID)
	assert.Equal(t, 2.0, st.Values[1])

	assert.Equal(t, 0.5, d.Step(1))
	st, _ = d.Manager().Status(e.ID)
	assert.Equal(t, 2.5, st.Values[1])
	assert.Equal(t, 2, d.Ticks())
}

func TestStep_NonPositiveDoesNothing(t *testing.T) {
	d := newDriver(t, 4)
	assert.Equal(t, 0.0, d.Step(0))
	assert.Equal(t, 0.0, d.Step(-3))
	assert.Equal(t, 0, d.Ticks())
}

func TestAdvance_RoundsUp(t *testing.T) {
	d := newDriver(t, 4)
	assert.Equal(t, 0.5, d.Advance(0.3))
	assert.Equal(t, 2, d.Ticks())
	assert.Equal(t, 0.5, d.Advance(0))
}

func TestAdvance_CeilingAndGuards(t *testing.T) {
	d := newDriver(t, 10)
	assert.InDelta(t, 1.1, d.Advance(1.00000005), 1e-9)
	assert.Equal(t, 11, d.Ticks())

	// Float noise just above a whole tick does not add one.
	d = newDriver(t, 10)
	d.Advance(0.1 * 3)
	assert.Equal(t, 3, d.Ticks())

	d.Advance(math.NaN())
	d.Advance(math.Inf(1))
	d.Advance(-1)
	assert.Equal(t, 3, d.Ticks())
}

func TestPlay_RejectsInfiniteDuration(t *testing.T) {
	sc, err := simulation.ParseScenario([]byte("name: forever\nspawn: []\n"))
	require.NoError(t, err)
	d := newDriver(t, 4)
	_, err = d.Play(sc, health.NewRegistry(), dice.NewRoller(dice.NewSeededSource(1), nil), math.Inf(1))
	assert.Error(t, err)
	assert.Equal(t, 0, d.Ticks())
}

func TestRun_StopsAtMaxTicks(t *testing.T) {
	d := newDriver(t, 1000, simulation.WithMaxTicks(5))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 5, d.Ticks())
}

func TestRun_StopsOnCancel(t *testing.T) {
	d := newDriver(t, 100)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHooks_DamageHealDeath(t *testing.T) {
	hooks := &recordingHooks{}
	d := newDriver(t, 10, simulation.WithHooks(hooks))
	e, err := d.Manager().Spawn(gruntDef(), "g")
	require.NoError(t, err)

	_, err = d.Damage(e.ID, entity.DamageRequest{Amount: 4})
	require.NoError(t, err)
	_, err = d.Heal(e.ID, entity.HealRequest{Amount: 1})
	require.NoError(t, err)
	_, err = d.Damage(e.ID, entity.DamageRequest{Amount: 100})
	require.NoError(t, err)
	_, err = d.Damage(e.ID, entity.DamageRequest{Amount: 100})
	require.NoError(t, err)

	assert.Equal(t, []float64{4, 12}, hooks.damaged)
	assert.Equal(t, []float64{1}, hooks.healed)
	assert.Equal(t, []string{e.ID}, hooks.died)
}

func TestDamage_UnknownEntity(t *testing.T) {
	d := newDriver(t, 10)
	_, err := d.Damage("nobody", entity.DamageRequest{Amount: 1})
	assert.Error(t, err)
	_, err = d.Heal("nobody", entity.HealRequest{Amount: 1})
	assert.Error(t, err)
}

const gruntScenario = `
name: grunt drill
duration: 1
spawn:
  - alias: a
    stack: grunt
events:
  - at: 1
    entity: a
    action: heal
    amount: 2
  - at: 0
    entity: a
    action: damage
    amount: 3
  - at: 0.5
    entity: a
    action: damage
    amount: 4
    index: 0
`

func TestParseScenario(t *testing.T) {
	sc, err := simulation.ParseScenario([]byte(gruntScenario))
	require.NoError(t, err)
	assert.Equal(t, "grunt drill", sc.Name)
	require.Len(t, sc.Events, 3)
	assert.True(t, sc.Events[0].Amount.Fixed())
	assert.Equal(t, 2.0, sc.Events[0].Amount.Modifier)
	require.NotNil(t, sc.Events[2].Index)
	assert.Equal(t, 0, *sc.Events[2].Index)
}

func TestParseScenario_DiceAmount(t *testing.T) {
	sc, err := simulation.ParseScenario([]byte(`
spawn: [{alias: a, stack: grunt}]
events:
  - {at: 0, entity: a, action: damage, amount: 2d6+1}
`))
	require.NoError(t, err)
	assert.Equal(t, 2, sc.Events[0].Amount.Count)
	assert.Equal(t, 6, sc.Events[0].Amount.Sides)
	assert.Equal(t, 1.0, sc.Events[0].Amount.Modifier)
}

func TestParseScenario_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown field":     "spawn: []\nbogus: 1\n",
		"bad amount":        "spawn: [{alias: a, stack: s}]\nevents: [{at: 0, entity: a, action: damage, amount: lots}]\n",
		"unknown alias":     "spawn: [{alias: a, stack: s}]\nevents: [{at: 0, entity: b, action: damage, amount: 1}]\n",
		"bad action":        "spawn: [{alias: a, stack: s}]\nevents: [{at: 0, entity: a, action: poke, amount: 1}]\n",
		"bad type":          "spawn: [{alias: a, stack: s}]\nevents: [{at: 0, entity: a, action: damage, amount: 1, type: goo}]\n",
		"bonus no match":    "spawn: [{alias: a, stack: s}]\nevents: [{at: 0, entity: a, action: bonus, amount: 1, bonus: 2}]\n",
		"bonus zero":        "spawn: [{alias: a, stack: s}]\nevents: [{at: 0, entity: a, action: bonus, amount: 1, type: armor}]\n",
		"negative at":       "spawn: [{alias: a, stack: s}]\nevents: [{at: -1, entity: a, action: damage, amount: 1}]\n",
		"missing amount":    "spawn: [{alias: a, stack: s}]\nevents: [{at: 0, entity: a, action: damage}]\n",
		"dup alias":         "spawn: [{alias: a, stack: s}, {alias: a, stack: s}]\n",
		"infinite duration": "duration: .inf\nspawn: [{alias: a, stack: s}]\n",
		"infinite at":       "spawn: [{alias: a, stack: s}]\nevents: [{at: .inf, entity: a, action: damage, amount: 1}]\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := simulation.ParseScenario([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drill.yaml")
	require.NoError(t, os.WriteFile(path, []byte(gruntScenario), 0644))
	sc, err := simulation.LoadScenario(path)
	require.NoError(t, err)
	assert.Len(t, sc.Spawn, 1)

	_, err = simulation.LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPlay(t *testing.T) {
	sc, err := simulation.ParseScenario([]byte(gruntScenario))
	require.NoError(t, err)
	d := newDriver(t, 4)
	roller := dice.NewRoller(dice.NewSeededSource(1), nil)

	res, err := d.Play(sc, registry(gruntDef()), roller, 0)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Ticks)
	assert.Equal(t, 1.0, res.Elapsed)
	require.Len(t, res.Fired, 3)
	assert.Equal(t, []float64{0, 0.5, 1}, []float64{res.Fired[0].At, res.Fired[1].At, res.Fired[2].At})
	assert.Equal(t, 3.0, res.Fired[0].Applied)
	assert.Equal(t, 4.0, res.Fired[1].Applied)
	assert.Equal(t, 2.0, res.Fired[2].Applied)

	require.Len(t, res.Entities, 1)
	assert.Equal(t, "a", res.Entities[0].Alias)
	assert.Equal(t, []float64{8, 3.5}, res.Entities[0].Status.Values)
}

func TestPlay_UnknownStack(t *testing.T) {
	sc, err := simulation.ParseScenario([]byte(gruntScenario))
	require.NoError(t, err)
	d := newDriver(t, 4)
	_, err = d.Play(sc, registry(), dice.NewRoller(dice.NewSeededSource(1), nil), 0)
	assert.Error(t, err)
}

func TestPlay_BonusAndDeath(t *testing.T) {
	armored := &health.StackDef{
		ID: "armored",
		Segments: []health.SegmentDef{
			{Type: health.Health, MaxHealth: 10, StartActive: true},
			{Type: health.Armor, MaxHealth: 10, StartActive: true, CarryDamageToNextSegment: true},
		},
	}
	sc, err := simulation.ParseScenario([]byte(`
spawn: [{alias: tank, stack: armored}]
events:
  - {at: 0, entity: tank, action: bonus, amount: 5, bonus: 10, type: armour}
  - {at: 0.25, entity: tank, action: bonus, amount: 1, bonus: 10, type: armour}
`))
	require.NoError(t, err)
	hooks := &recordingHooks{}
	d := newDriver(t, 4, simulation.WithHooks(hooks))

	res, err := d.Play(sc, registry(armored), dice.NewRoller(dice.NewSeededSource(1), nil), 0)
	require.NoError(t, err)
	require.Len(t, res.Fired, 2)
	// 15 against the armor: 10 absorbed, 5 carried into the base.
	assert.Equal(t, 15.0, res.Fired[0].Applied)
	// The top segment is now health, so no bonus applies.
	assert.Equal(t, 1.0, res.Fired[1].Applied)
	assert.Equal(t, []float64{4, 0}, res.Entities[0].Status.Values)
	assert.Empty(t, hooks.died)
}

func TestScriptHooks_OnDeathCanDamageOthers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	scripts := scripting.NewManager(dice.NewRoller(dice.NewSeededSource(1), logger), logger)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hooks.lua"), []byte(`
		partner = nil
		function on_damage(id, name, amount)
			engine.log.info("hurt " .. name .. " " .. amount)
		end
		function on_death(id, name, stack)
			engine.log.info("died " .. name)
			if partner ~= nil and partner ~= id then
				engine.health.damage(partner, 1000, true)
			end
		end
		function set_partner(id) partner = id end
	`), 0644))
	require.NoError(t, scripts.LoadGlobal(dir, 0))

	m := entity.NewManager(health.Policy{}, logger)
	simulation.BindScripts(scripts, m)
	d, err := simulation.NewDriver(m, 10, simulation.WithHooks(simulation.NewScriptHooks(scripts)), simulation.WithLogger(logger))
	require.NoError(t, err)

	a, err := m.Spawn(gruntDef(), "alpha")
	require.NoError(t, err)
	b, err := m.Spawn(gruntDef(), "beta")
	require.NoError(t, err)
	_, err = scripts.CallHook("grunt", "set_partner", lua.LString(b.ID))
	require.NoError(t, err)

	_, err = d.Damage(a.ID, entity.DamageRequest{Amount: 100, IgnoreModifiers: true})
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("hurt alpha 15").Len())
	assert.Equal(t, 1, logs.FilterMessage("died alpha").Len())
	assert.Equal(t, 1, logs.FilterMessage("died beta").Len())
	stB, _ := m.Status(b.ID)
	assert.False(t, stB.Active)
}

func TestPropertyPlayNeverExceedsMax(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d, err := simulation.NewDriver(entity.NewManager(health.Policy{}, nil), 4)
		if err != nil {
			t.Fatal(err)
		}
		n := rapid.IntRange(0, 10).Draw(t, "events")
		sc := &simulation.Scenario{Spawn: []simulation.SpawnSpec{{Alias: "a", Stack: "grunt"}}}
		for i := 0; i < n; i++ {
			action := rapid.SampledFrom([]string{simulation.ActionDamage, simulation.ActionHeal}).Draw(t, "action")
			amount := rapid.SampledFrom([]string{"1", "2.5", "1d6", "2d4+1", "7"}).Draw(t, "amount")
			sc.Events = append(sc.Events, simulation.Event{
				At:     float64(rapid.IntRange(0, 8).Draw(t, "quarter")) / 4,
				Entity: "a",
				Action: action,
				Amount: simulation.Amount{Expression: dice.MustParse(amount)},
			})
		}
		if err := sc.Validate(); err != nil {
			t.Fatal(err)
		}
		res, err := d.Play(sc, registry(gruntDef()), dice.NewRoller(dice.NewSeededSource(7), nil), 2)
		if err != nil {
			t.Fatal(err)
		}
		for i, seg := range res.Entities[0].Status.Segments {
			if seg.CurrentHealth < 0 || seg.CurrentHealth > seg.MaxHealth {
				t.Fatalf("segment %d health %g outside [0, %g]", i, seg.CurrentHealth, seg.MaxHealth)
			}
		}
	})
}

func TestPlay_ShippedSkirmish(t *testing.T) {
	root := filepath.Join("..", "..", "content")
	defs, err := health.LoadDirectory(filepath.Join(root, "stacks"), nil)
	require.NoError(t, err)
	sc, err := simulation.LoadScenario(filepath.Join(root, "scenarios", "skirmish.yaml"))
	require.NoError(t, err)

	m := entity.NewManager(health.Policy{}, nil)
	d, err := simulation.NewDriver(m, 4)
	require.NoError(t, err)
	res, err := d.Play(sc, defs, dice.NewRoller(dice.NewSeededSource(7), nil), 0)
	require.NoError(t, err)

	assert.Equal(t, 24, res.Ticks)
	assert.Len(t, res.Fired, len(sc.Events))
	require.Len(t, res.Entities, 3)
	assert.Equal(t, "fodder", res.Entities[2].Alias)
	assert.False(t, res.Entities[2].Status.Active)
	assert.True(t, res.Entities[0].Status.Active)
}
