// Package console provides a line-oriented command driver for interactive
// control of a running simulation.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/healthstack/internal/game/dice"
	"github.com/cory-johannsen/healthstack/internal/game/entity"
	"github.com/cory-johannsen/healthstack/internal/game/health"
	"github.com/cory-johannsen/healthstack/internal/simulation"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

// Definitions looks up stack definitions by ID.
type Definitions interface {
	Get(id string) (*health.StackDef, bool)
	IDs() []string
}

// Console executes text commands against a simulation driver.
type Console struct {
	driver   *simulation.Driver
	defs     Definitions
	roller   *dice.Roller
	registry *Registry
	logger   *zap.Logger
	paint    painter
}

// New creates a Console. Color enables ANSI styling in command output.
//
// Precondition: driver, defs, and roller must be non-nil.
func New(driver *simulation.Driver, defs Definitions, roller *dice.Roller, logger *zap.Logger, color bool) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		driver:   driver,
		defs:     defs,
		roller:   roller,
		registry: DefaultRegistry(),
		logger:   logger,
		paint:    painter(color),
	}
}

// Execute runs one command line and returns its output.
//
// Postcondition: Returns ErrQuit for the quit command; any other error is a
// usage or lookup failure to report to the operator.
func (c *Console) Execute(line string) (string, error) {
	p := Parse(line)
	if p.Command == "" {
		return "", nil
	}
	cmd, ok := c.registry.Resolve(p.Command)
	if !ok {
		return "", fmt.Errorf("unknown command %q; try help", p.Command)
	}
	c.logger.Debug("console command", zap.String("command", cmd.Name), zap.String("args", p.RawArgs))

	switch cmd.Handler {
	case HandlerHelp:
		return c.help(), nil
	case HandlerSpawn:
		return c.spawn(p)
	case HandlerDamage:
		return c.damage(p)
	case HandlerHeal:
		return c.heal(p)
	case HandlerTick:
		return c.tick(p)
	case HandlerAdvance:
		return c.advance(p)
	case HandlerStatus:
		return c.status(p)
	case HandlerList:
		return c.list(), nil
	case HandlerStacks:
		return c.stacks(), nil
	case HandlerRemove:
		return c.remove(p)
	case HandlerQuit:
		return "", ErrQuit
	default:
		return "", fmt.Errorf("command %q has no handler", cmd.Name)
	}
}

// Serve reads commands from r and writes results to w until EOF, quit, or
// ctx is cancelled. Command errors are written to w and do not stop the loop.
// A cancelled ctx returns immediately even while a read is blocked; the
// reading goroutine exits at its next line or at EOF.
func (c *Console) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	prompt := c.paint.paint(bold, "> ")
	fmt.Fprint(w, prompt)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := c.Execute(line)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(w, c.paint.paint(red, "error: "+err.Error()))
			} else if out != "" {
				fmt.Fprintln(w, out)
			}
			fmt.Fprint(w, prompt)
		}
	}
}

func (c *Console) help() string {
	var b strings.Builder
	for _, cmd := range c.registry.Commands() {
		fmt.Fprintf(&b, "%-60s %s", cmd.Usage, cmd.Help)
		if len(cmd.Aliases) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(cmd.Aliases, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Console) spawn(p ParseResult) (string, error) {
	if len(p.Args) < 1 {
		return "", errors.New("usage: spawn <stack> [name]")
	}
	def, ok := c.defs.Get(p.Args[0])
	if !ok {
		return "", fmt.Errorf("unknown stack %q", p.Args[0])
	}
	name := strings.Join(p.Args[1:], " ")
	e, err := c.driver.Manager().Spawn(def, name)
	if err != nil {
		return "", err
	}
	st, _ := c.driver.Manager().Status(e.ID)
	return c.paint.RenderSummary(st), nil
}

// target resolves the entity argument and rolls the amount argument.
func (c *Console) target(p ParseResult, usage string) (string, float64, error) {
	if len(p.Args) < 2 {
		return "", 0, errors.New("usage: " + usage)
	}
	id, ok := c.driver.Manager().Resolve(p.Args[0])
	if !ok {
		return "", 0, fmt.Errorf("no entity %q", p.Args[0])
	}
	roll, err := c.roller.RollString(p.Args[1])
	if err != nil {
		return "", 0, err
	}
	return id, roll.Total(), nil
}

func segmentType(p ParseResult) (*health.SegmentType, error) {
	v, ok := p.Options["type"]
	if !ok {
		return nil, nil
	}
	t, err := health.ParseSegmentType(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Console) damage(p ParseResult) (string, error) {
	cmd, _ := c.registry.Resolve(HandlerDamage)
	id, amount, err := c.target(p, cmd.Usage)
	if err != nil {
		return "", err
	}
	req := entity.DamageRequest{
		Amount:          amount,
		IgnoreModifiers: p.Has("ignore"),
		OnlyIfTop:       p.Has("top"),
		Tags:            p.List("tags"),
	}
	if req.Type, err = segmentType(p); err != nil {
		return "", err
	}
	if req.Index, err = p.Int("index"); err != nil {
		return "", err
	}
	if req.Bonus, err = p.Float("bonus", 0); err != nil {
		return "", err
	}
	if req.Bonus != 0 && req.Type == nil && len(req.Tags) == 0 {
		return "", errors.New("bonus needs type= or tags=")
	}
	removed, err := c.driver.Damage(id, req)
	if err != nil {
		return "", err
	}
	st, _ := c.driver.Manager().Status(id)
	return fmt.Sprintf("%g damage (rolled %g)\n%s", removed, amount, c.paint.RenderSummary(st)), nil
}

func (c *Console) heal(p ParseResult) (string, error) {
	cmd, _ := c.registry.Resolve(HandlerHeal)
	id, amount, err := c.target(p, cmd.Usage)
	if err != nil {
		return "", err
	}
	req := entity.HealRequest{Amount: amount, Tags: p.List("tags")}
	if req.Type, err = segmentType(p); err != nil {
		return "", err
	}
	if req.Index, err = p.Int("index"); err != nil {
		return "", err
	}
	added, err := c.driver.Heal(id, req)
	if err != nil {
		return "", err
	}
	st, _ := c.driver.Manager().Status(id)
	return fmt.Sprintf("%g healed (rolled %g)\n%s", added, amount, c.paint.RenderSummary(st)), nil
}

func (c *Console) tick(p ParseResult) (string, error) {
	n := 1
	if len(p.Args) > 0 {
		v, err := strconv.Atoi(p.Args[0])
		if err != nil || v < 1 {
			return "", fmt.Errorf("tick count must be a positive integer, got %q", p.Args[0])
		}
		n = v
	}
	elapsed := c.driver.Step(n)
	return fmt.Sprintf("t=%.3fs (tick %d)", elapsed, c.driver.Ticks()), nil
}

func (c *Console) advance(p ParseResult) (string, error) {
	if len(p.Args) < 1 {
		return "", errors.New("usage: advance <seconds>")
	}
	secs, err := strconv.ParseFloat(p.Args[0], 64)
	if err != nil || secs <= 0 {
		return "", fmt.Errorf("seconds must be a positive number, got %q", p.Args[0])
	}
	elapsed := c.driver.Advance(secs)
	return fmt.Sprintf("t=%.3fs (tick %d)", elapsed, c.driver.Ticks()), nil
}

func (c *Console) status(p ParseResult) (string, error) {
	if len(p.Args) < 1 {
		return "", errors.New("usage: status <entity>")
	}
	id, ok := c.driver.Manager().Resolve(p.Args[0])
	if !ok {
		return "", fmt.Errorf("no entity %q", p.Args[0])
	}
	st, _ := c.driver.Manager().Status(id)
	return c.paint.RenderStatus(st), nil
}

func (c *Console) list() string {
	all := c.driver.Manager().All()
	if len(all) == 0 {
		return "no entities"
	}
	lines := make([]string, len(all))
	for i, st := range all {
		lines[i] = c.paint.RenderSummary(st)
	}
	return strings.Join(lines, "\n")
}

func (c *Console) stacks() string {
	ids := c.defs.IDs()
	if len(ids) == 0 {
		return "no stack definitions loaded"
	}
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		def, ok := c.defs.Get(id)
		if !ok {
			continue
		}
		types := make([]string, len(def.Segments))
		for i, s := range def.Segments {
			types[i] = s.Type.String()
		}
		lines = append(lines, fmt.Sprintf("%-16s %-24s %s", id, def.Name, strings.Join(types, " < ")))
	}
	return strings.Join(lines, "\n")
}

func (c *Console) remove(p ParseResult) (string, error) {
	if len(p.Args) < 1 {
		return "", errors.New("usage: remove <entity>")
	}
	id, ok := c.driver.Manager().Resolve(p.Args[0])
	if !ok {
		return "", fmt.Errorf("no entity %q", p.Args[0])
	}
	if err := c.driver.Manager().Remove(id); err != nil {
		return "", err
	}
	return "removed " + shortID(id), nil
}
