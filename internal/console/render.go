package console

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/healthstack/internal/game/entity"
	"github.com/cory-johannsen/healthstack/internal/game/health"
	"github.com/cory-johannsen/healthstack/internal/simulation"
)

// ANSI escape codes used by the renderer.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	purple = "\033[35m"
)

// painter wraps text in ANSI colors when enabled.
type painter bool

func (p painter) paint(color, text string) string {
	if !p {
		return text
	}
	return color + text + reset
}

func typeColor(t health.SegmentType) string {
	switch t {
	case health.Health:
		return green
	case health.Armor:
		return yellow
	case health.Shield:
		return cyan
	case health.Barrier:
		return purple
	default:
		return reset
	}
}

// shortID returns the first block of a uuid for display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// bar draws a width-cell gauge of cur/max.
func bar(cur, max float64, width int) string {
	filled := 0
	if max > 0 {
		filled = int(cur / max * float64(width))
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
}

// RenderSummary formats a one-line entity summary.
func (p painter) RenderSummary(st entity.Status) string {
	state := p.paint(green, "alive")
	if !st.Active {
		state = p.paint(red, "dead")
	}
	return fmt.Sprintf("%s %s [%s] %s %s",
		p.paint(bold, st.Name), p.paint(dim, shortID(st.ID)), st.StackID, state, formatValues(st.Values))
}

// RenderStatus formats an entity and every segment, top segment first.
func (p painter) RenderStatus(st entity.Status) string {
	var b strings.Builder
	b.WriteString(p.RenderSummary(st))
	b.WriteString("\n")
	for i := len(st.Segments) - 1; i >= 0; i-- {
		seg := st.Segments[i]
		marker := " "
		if i == st.Current {
			marker = p.paint(bold, ">")
		}
		name := seg.Name
		if name == "" {
			name = "-"
		}
		line := fmt.Sprintf("%s [%d] %-10s %-8s %s %g/%g",
			marker, i, name, p.paint(typeColor(seg.Type), seg.Type.String()),
			bar(seg.CurrentHealth, seg.MaxHealth, 10), seg.CurrentHealth, seg.MaxHealth)
		var notes []string
		if seg.Disabled {
			notes = append(notes, "disabled")
		}
		if seg.CanRecharge && seg.RechargeRate > 0 {
			notes = append(notes, fmt.Sprintf("recharge %g/s after %.2fs", seg.RechargeRate, seg.RechargeTimer))
		}
		if seg.UseTags && len(seg.SpecialTags) > 0 {
			notes = append(notes, "tags "+strings.Join(seg.SpecialTags, ","))
		}
		if len(notes) > 0 {
			line += " " + p.paint(dim, "("+strings.Join(notes, "; ")+")")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// RenderResult formats a scenario outcome: every fired event in order, then
// the final status of each spawned entity.
func RenderResult(name string, res *simulation.Result, color bool) string {
	p := painter(color)
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d ticks, %gs simulated\n", p.paint(bold, name), res.Ticks, res.Elapsed)
	for _, ev := range res.Fired {
		fmt.Fprintf(&b, "  t=%-6g %-8s %-7s rolled %g applied %g\n", ev.At, ev.Alias, ev.Action, ev.Rolled, ev.Applied)
	}
	for _, er := range res.Entities {
		fmt.Fprintf(&b, "%s = %s\n", er.Alias, p.RenderStatus(er.Status))
	}
	return strings.TrimRight(b.String(), "\n")
}
