package console

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseResult holds the parsed command name and arguments from a text line.
type ParseResult struct {
	// Command is the first word of the input, lowercased.
	Command string
	// Args are the positional words after the command.
	Args []string
	// Options are key=value words after the command, keyed by lowercased key.
	// A bare flag such as "ignore" is stored with an empty value.
	Options map[string]string
	// RawArgs is the raw text after the command.
	RawArgs string
}

// flagWords are bare words treated as options rather than positional args.
var flagWords = map[string]bool{
	"ignore": true,
	"top":    true,
}

// Parse splits a text line into a command, positional arguments, and options.
//
// Postcondition: Returns a ParseResult. If line is empty, Command is empty.
func Parse(line string) ParseResult {
	line = strings.TrimSpace(line)
	if line == "" {
		return ParseResult{}
	}

	spaceIdx := strings.IndexByte(line, ' ')
	if spaceIdx < 0 {
		return ParseResult{Command: strings.ToLower(line)}
	}

	res := ParseResult{
		Command: strings.ToLower(line[:spaceIdx]),
		RawArgs: strings.TrimSpace(line[spaceIdx+1:]),
	}
	for _, word := range strings.Fields(res.RawArgs) {
		if key, value, ok := strings.Cut(word, "="); ok && key != "" {
			res.option(strings.ToLower(key), value)
			continue
		}
		if flagWords[strings.ToLower(word)] {
			res.option(strings.ToLower(word), "")
			continue
		}
		res.Args = append(res.Args, word)
	}
	return res
}

func (p *ParseResult) option(key, value string) {
	if p.Options == nil {
		p.Options = make(map[string]string)
	}
	p.Options[key] = value
}

// Has reports whether option key was given.
func (p ParseResult) Has(key string) bool {
	_, ok := p.Options[key]
	return ok
}

// Float returns option key as a float64, or def when it is absent.
func (p ParseResult) Float(key string, def float64) (float64, error) {
	v, ok := p.Options[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return f, nil
}

// Int returns option key as an int pointer, or nil when it is absent.
func (p ParseResult) Int(key string) (*int, error) {
	v, ok := p.Options[key]
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return &n, nil
}

// List returns option key split on commas, or nil when it is absent.
func (p ParseResult) List(key string) []string {
	v, ok := p.Options[key]
	if !ok || v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
