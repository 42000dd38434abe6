package dice

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrInvalidSpec is the sentinel wrapped by every Parse validation failure.
// Callers match it with errors.Is.
var ErrInvalidSpec = errors.New("invalid dice expression")

// Limits on what Parse accepts. A single expression never rolls more than
// MaxDice dice, and degenerate one-sided dice are capped harder because they
// add no randomness, only work.
const (
	MaxDice         = 1000
	MaxOneSidedDice = 100
)

var exprPattern = regexp.MustCompile(`(?i)^(\d*)d(\d+)([+-]\d+)?$`)

// Expression represents a parsed dice expression ready to be rolled.
// Precondition: Count >= 1, Sides >= 1 after successful Parse.
type Expression struct {
	Raw      string // original input string
	Count    int    // number of dice
	Sides    int    // faces per die
	Modifier int    // flat modifier (may be negative)
}

// Parse parses a dice expression string into an Expression.
// Supported forms: "d20", "2d6", "2d6+3", "4d8-2" (case-insensitive).
// The die count defaults to 1 when omitted.
//
// Postcondition: Returns a valid Expression, or an error wrapping ErrInvalidSpec
// when the notation does not match, the count or sides are not positive, the
// count exceeds MaxDice, or a one-sided expression exceeds MaxOneSidedDice.
func Parse(expr string) (Expression, error) {
	m := exprPattern.FindStringSubmatch(expr)
	if m == nil {
		return Expression{}, fmt.Errorf("dice: %w: %q does not match XdY±Z", ErrInvalidSpec, expr)
	}

	count := 1
	if m[1] != "" {
		var err error
		count, err = strconv.Atoi(m[1])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: %w: die count in %q: %v", ErrInvalidSpec, expr, err)
		}
	}
	if count <= 0 {
		return Expression{}, fmt.Errorf("dice: %w: die count in %q must be >= 1", ErrInvalidSpec, expr)
	}
	if count > MaxDice {
		return Expression{}, fmt.Errorf("dice: %w: die count %d in %q exceeds maximum %d", ErrInvalidSpec, count, expr, MaxDice)
	}

	sides, err := strconv.Atoi(m[2])
	if err != nil {
		return Expression{}, fmt.Errorf("dice: %w: die sides in %q: %v", ErrInvalidSpec, expr, err)
	}
	if sides <= 0 {
		return Expression{}, fmt.Errorf("dice: %w: die sides in %q must be >= 1", ErrInvalidSpec, expr)
	}
	if sides == 1 && count > MaxOneSidedDice {
		return Expression{}, fmt.Errorf("dice: %w: %d one-sided dice in %q exceeds maximum %d", ErrInvalidSpec, count, expr, MaxOneSidedDice)
	}

	modifier := 0
	if m[3] != "" {
		modifier, err = strconv.Atoi(m[3])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: %w: modifier in %q: %v", ErrInvalidSpec, expr, err)
		}
	}

	return Expression{
		Raw:      expr,
		Count:    count,
		Sides:    sides,
		Modifier: modifier,
	}, nil
}
