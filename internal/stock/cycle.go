package stock

import (
	"fmt"
	"strings"
)

// InUse positions on the ring.
const (
	InUseIdle      = 0
	InUseOpen      = 1
	InUseLow       = 2
	inUsePositions = 3
)

// NextInUse returns the following ring position. Out of range values are
// folded back onto the ring first.
func NextInUse(current int) int {
	current %= inUsePositions
	if current < 0 {
		current += inUsePositions
	}
	return (current + 1) % inUsePositions
}

// Advance moves a reusable item one step around the in-use ring. Wrapping
// from InUseLow back to InUseIdle uses up one unit, floored at zero.
// Consumable items do not cycle; changed is false and nothing moves.
func Advance(inUse, amount int, consumable bool) (nextInUse, nextAmount int, changed bool) {
	if consumable {
		return inUse, amount, false
	}
	next := NextInUse(inUse)
	if next == InUseIdle {
		amount = floor(amount - 1)
	}
	return next, amount, true
}

type Action string

const (
	ActionIncrement Action = "increment"
	ActionDecrement Action = "decrement"
	ActionSet       Action = "set"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionIncrement, ActionDecrement, ActionSet:
		return a, nil
	}
	return "", fmt.Errorf("unknown amount action %q", s)
}

// ApplyAction returns the new amount. value is only read by ActionSet;
// negative values clamp to zero.
func ApplyAction(amount int, action Action, value int) (int, error) {
	switch action {
	case ActionIncrement:
		return amount + 1, nil
	case ActionDecrement:
		return floor(amount - 1), nil
	case ActionSet:
		return floor(value), nil
	}
	return amount, fmt.Errorf("unknown amount action %q", action)
}

func floor(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
