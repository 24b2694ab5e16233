// Package stock derives item stock levels and drives the in-use cycle.
// Everything here is pure; persistence lives in the store package.
package stock

import (
	"math"
	"strconv"
	"strings"
)

type Status string

const (
	StatusRed    Status = "Red"
	StatusYellow Status = "Yellow"
	StatusGreen  Status = "Green"
	StatusPurple Status = "Purple"
)

// Compute returns the stock category for amount against the three thresholds.
// Conditions are checked from purple down, so misordered thresholds still
// produce a category. Any NaN input yields Red.
func Compute(amount, yellow, green, purple float64) Status {
	if math.IsNaN(amount) || math.IsNaN(yellow) || math.IsNaN(green) || math.IsNaN(purple) {
		return StatusRed
	}
	switch {
	case amount >= purple:
		return StatusPurple
	case amount >= green:
		return StatusGreen
	case amount >= yellow:
		return StatusYellow
	default:
		return StatusRed
	}
}

// Coerce converts raw input to a number. Blank input is 0; anything that is
// not a number is NaN.
func Coerce(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Level is the set of fields the status is derived from. Item writes go
// through a Level so the stored status always matches Status().
type Level struct {
	Amount int
	Yellow int
	Green  int
	Purple int
}

const (
	DefaultYellow = 1
	DefaultGreen  = 3
	DefaultPurple = 6
)

func DefaultLevel() Level {
	return Level{Amount: 0, Yellow: DefaultYellow, Green: DefaultGreen, Purple: DefaultPurple}
}

func (l Level) Status() Status {
	return Compute(float64(l.Amount), float64(l.Yellow), float64(l.Green), float64(l.Purple))
}
