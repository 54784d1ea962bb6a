// Package trust implements the four-color trust-state reducer (spec.md
// §4.4). The ordering is intentionally a total order, not a lattice: a
// fixed-width integer with comparison and a raise-only helper, per the
// design notes.
package trust

import "fmt"

// Color is the verified boot trust verdict, persisted to the firmware
// variable BootState before kernel handoff.
type Color uint8

const (
	Green Color = iota
	Yellow
	Orange
	Red
)

func (c Color) String() string {
	switch c {
	case Green:
		return "GREEN"
	case Yellow:
		return "YELLOW"
	case Orange:
		return "ORANGE"
	case Red:
		return "RED"
	default:
		return fmt.Sprintf("TRUST_STATE(%d)", uint8(c))
	}
}

// BootStateValue is the byte persisted to the firmware variable BootState.
// It is numerically equal to the Color itself; named for call sites that
// want to be explicit they're about to write firmware state.
func (c Color) BootStateValue() byte { return byte(c) }

// RaiseTo returns the higher of c and min. It never lowers a color — the
// monotonicity invariant every stage of the reducer (and every later
// pipeline stage) must respect.
func (c Color) RaiseTo(min Color) Color {
	if min > c {
		return min
	}
	return c
}
