package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Expression is a parsed amount. Count == 0 means a fixed amount equal to Modifier.
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier float64
}

// Fixed reports whether the expression rolls no dice.
func (e Expression) Fixed() bool {
	return e.Count == 0
}

// Parse parses an amount. Supported forms: "7", "2.5", "d20", "2d6", "2d6+3", "4d8-1.5".
//
// Postcondition: Returns an Expression with Count >= 1 and Sides >= 2, or
// Count == 0 for a fixed amount, or a descriptive error.
func Parse(s string) (Expression, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}

	dIdx := strings.IndexByte(s, 'd')
	if dIdx < 0 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid amount %q: %w", raw, err)
		}
		return Expression{Raw: raw, Modifier: v}, nil
	}

	count := 1
	if dIdx > 0 {
		n, err := strconv.Atoi(s[:dIdx])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: %w", raw, err)
		}
		if n < 1 {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: must be >= 1", raw)
		}
		count = n
	}

	rest := s[dIdx+1:]
	sidesStr, modStr := rest, ""
	if i := strings.IndexAny(rest, "+-"); i >= 0 {
		sidesStr, modStr = rest[:i], rest[i:]
	}

	sides, err := strconv.Atoi(sidesStr)
	if err != nil {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: %w", raw, err)
	}
	if sides < 2 {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: must be >= 2", raw)
	}

	var mod float64
	if modStr != "" {
		mod, err = strconv.ParseFloat(modStr, 64)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", raw, err)
		}
	}

	return Expression{Raw: raw, Count: count, Sides: sides, Modifier: mod}, nil
}

// MustParse parses s and panics on error.
func MustParse(s string) Expression {
	e, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return e
}
