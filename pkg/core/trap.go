// pkg/core/trap.go
package core

import (
	"fmt"
	"strings"
)

// WorldPoint is an absolute tile coordinate in the game world.
type WorldPoint struct {
	X     int
	Y     int
	Plane int
}

func (p WorldPoint) String() string {
	return fmt.Sprintf("[%d,%d,%d]", p.X, p.Y, p.Plane)
}

// TrapState is the lifecycle state reported by the host for a tracked trap.
type TrapState uint8

const (
	StateUnknown TrapState = iota
	StateOpen
	StateEmpty
	StateFull
	StateTransition
)

// NumStates is the number of TrapState values including StateUnknown.
const NumStates = int(StateTransition) + 1

var stateNames = [NumStates]string{
	StateUnknown:    "UNKNOWN",
	StateOpen:       "OPEN",
	StateEmpty:      "EMPTY",
	StateFull:       "FULL",
	StateTransition: "TRANSITION",
}

func (s TrapState) String() string {
	if int(s) < NumStates {
		return stateNames[s]
	}
	return fmt.Sprintf("TrapState(%d)", uint8(s))
}

// Valid reports whether s is one of the four host states.
func (s TrapState) Valid() bool {
	return s >= StateOpen && s <= StateTransition
}

// ParseTrapState converts a host state name ("OPEN", "full", ...) into a TrapState.
func ParseTrapState(s string) (TrapState, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i := StateOpen; i <= StateTransition; i++ {
		if stateNames[i] == name {
			return i, nil
		}
	}
	return StateUnknown, fmt.Errorf("unknown trap state %q", s)
}

// Trap is one tracked trap as supplied by the host. The overlay only reads it.
type Trap struct {
	Location WorldPoint
	State    TrapState
	// TimeRemaining is 1 when the trap was just placed and 0 once it collapses.
	TimeRemaining float64
}
