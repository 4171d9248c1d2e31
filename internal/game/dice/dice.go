// Package dice rolls damage and healing amounts for scripted scenarios.
// An amount is either a fixed number ("12.5") or a dice expression ("2d6+3").
package dice

import "fmt"

// RollResult holds the audit trail of one evaluated amount.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string  // original text, e.g. "2d6+3"
	Dice       []int   // individual die faces; empty for fixed amounts
	Modifier   float64 // flat part of the amount
}

// Total returns the sum of all dice plus the modifier.
func (r RollResult) Total() float64 {
	total := r.Modifier
	for _, d := range r.Dice {
		total += float64(d)
	}
	return total
}

// String returns an audit string such as "2d6+3 -> [4 5] +3 = 12".
func (r RollResult) String() string {
	return fmt.Sprintf("%s -> %v %+g = %g", r.Expression, r.Dice, r.Modifier, r.Total())
}

// Source is the randomness behind dice rolls.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Intn returns a random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
