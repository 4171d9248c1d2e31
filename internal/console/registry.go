package console

import (
	"fmt"
	"sort"
)

// Handler identifiers mapping commands to console handlers.
const (
	HandlerHelp    = "help"
	HandlerSpawn   = "spawn"
	HandlerDamage  = "damage"
	HandlerHeal    = "heal"
	HandlerTick    = "tick"
	HandlerAdvance = "advance"
	HandlerStatus  = "status"
	HandlerList    = "list"
	HandlerStacks  = "stacks"
	HandlerRemove  = "remove"
	HandlerQuit    = "quit"
)

// Command defines an operator-invocable console command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage shows the argument syntax.
	Usage string
	// Help is the short help text.
	Help string
	// Handler maps to the console handler.
	Handler string
}

// BuiltinCommands returns every console command.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "help", Aliases: []string{"?", "h"}, Usage: "help", Help: "List commands", Handler: HandlerHelp},
		{Name: "spawn", Aliases: []string{"sp"}, Usage: "spawn <stack> [name]", Help: "Spawn an entity from a stack definition", Handler: HandlerSpawn},
		{Name: "damage", Aliases: []string{"dmg", "d"},
			Usage: "damage <entity> <amount|dice> [ignore] [type=T [top]] [tags=a,b] [index=N] [bonus=B]",
			Help:  "Damage an entity", Handler: HandlerDamage},
		{Name: "heal", Aliases: []string{"hl"}, Usage: "heal <entity> <amount|dice> [type=T] [tags=a,b] [index=N]", Help: "Heal an entity", Handler: HandlerHeal},
		{Name: "tick", Aliases: []string{"t"}, Usage: "tick [n]", Help: "Advance n fixed ticks (default 1)", Handler: HandlerTick},
		{Name: "advance", Aliases: []string{"wait"}, Usage: "advance <seconds>", Help: "Advance simulated time", Handler: HandlerAdvance},
		{Name: "status", Aliases: []string{"st"}, Usage: "status <entity>", Help: "Show an entity's segments", Handler: HandlerStatus},
		{Name: "list", Aliases: []string{"ls"}, Usage: "list", Help: "List entities", Handler: HandlerList},
		{Name: "stacks", Usage: "stacks", Help: "List loaded stack definitions", Handler: HandlerStacks},
		{Name: "remove", Aliases: []string{"rm"}, Usage: "remove <entity>", Help: "Remove an entity", Handler: HandlerRemove},
		{Name: "quit", Aliases: []string{"exit", "q"}, Usage: "quit", Help: "Leave the console", Handler: HandlerQuit},
	}
}

// Registry maps command names and aliases to Command definitions.
type Registry struct {
	commands map[string]*Command // canonical name → command
	aliases  map[string]string   // alias → canonical name
}

// NewRegistry creates a Registry populated with the given commands.
//
// Precondition: No two commands may share a canonical name or alias.
// Postcondition: Returns a Registry or an error on name/alias collisions.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Command, len(cmds)),
		aliases:  make(map[string]string),
	}

	for i := range cmds {
		cmd := &cmds[i]
		if _, exists := r.commands[cmd.Name]; exists {
			return nil, fmt.Errorf("duplicate command name: %q", cmd.Name)
		}
		if _, exists := r.aliases[cmd.Name]; exists {
			return nil, fmt.Errorf("command name %q conflicts with an existing alias", cmd.Name)
		}
		r.commands[cmd.Name] = cmd

		for _, alias := range cmd.Aliases {
			if _, exists := r.commands[alias]; exists {
				return nil, fmt.Errorf("alias %q conflicts with command name %q", alias, alias)
			}
			if existing, exists := r.aliases[alias]; exists {
				return nil, fmt.Errorf("duplicate alias %q: used by %q and %q", alias, existing, cmd.Name)
			}
			r.aliases[alias] = cmd.Name
		}
	}

	return r, nil
}

// DefaultRegistry creates a Registry with all built-in commands.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up a command by name or alias.
//
// Postcondition: Returns (command, true) if found, or (nil, false).
func (r *Registry) Resolve(input string) (*Command, bool) {
	if cmd, ok := r.commands[input]; ok {
		return cmd, true
	}
	if canonical, ok := r.aliases[input]; ok {
		return r.commands[canonical], true
	}
	return nil, false
}

// Commands returns all registered commands sorted by name.
func (r *Registry) Commands() []*Command {
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
