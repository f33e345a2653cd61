package fieldbus

import (
	"strings"
)

// State is the application-layer state of a slave, optionally combined with the ERROR/ACK modifier.
type State uint16

const (
	// StateNone is reported by a slave that did not answer the state read.
	StateNone State = 0x00
	// StateInit is the initial state after power-on.
	StateInit State = 0x01
	// StatePreOp enables the parameter channel.
	StatePreOp State = 0x02
	// StateBoot is the bootstrap state used for firmware updates.
	StateBoot State = 0x03
	// StateSafeOp enables input exchange with outputs held safe.
	StateSafeOp State = 0x04
	// StateOp enables full cyclic exchange.
	StateOp State = 0x08

	// StateError is the modifier bit a slave reports when a requested transition failed.
	StateError State = 0x10
	// StateAck is the modifier bit a master writes to acknowledge an error. It shares the ERROR bit.
	StateAck State = 0x10

	stateBaseMask State = 0x0f
)

// Base returns the state without the ERROR/ACK modifier.
func (s State) Base() State { return s & stateBaseMask }

// HasError reports whether the ERROR modifier is set.
func (s State) HasError() bool { return s&StateError != 0 }

// IsNone reports whether the slave did not answer.
func (s State) IsNone() bool { return s == StateNone }

// IsOperational reports whether the slave is in OPERATIONAL without error.
func (s State) IsOperational() bool { return s == StateOp }

// Reached reports whether s is an error free state at or above want.
func (s State) Reached(want State) bool {
	return !s.HasError() && s.Base() >= want.Base()
}

// String returns string representation of the state, e.g. "SAFEOP+ERROR".
func (s State) String() string {
	var name string
	switch s.Base() {
	case StateNone:
		name = "NONE"
	case StateInit:
		name = "INIT"
	case StatePreOp:
		name = "PREOP"
	case StateBoot:
		name = "BOOT"
	case StateSafeOp:
		name = "SAFEOP"
	case StateOp:
		name = "OP"
	default:
		name = "UNKNOWN"
	}

	if s.HasError() {
		var sb strings.Builder
		sb.WriteString(name)
		sb.WriteString("+ERROR")
		return sb.String()
	}

	return name
}

// LowestState returns the lowest state in states, comparing base states and ranking error states
// below their error free counterpart. An empty slice yields StateNone.
func LowestState(states []State) State {
	if len(states) == 0 {
		return StateNone
	}

	lowest := states[0]
	for _, s := range states[1:] {
		if stateRank(s) < stateRank(lowest) {
			lowest = s
		}
	}

	return lowest
}

func stateRank(s State) int {
	rank := int(s.Base()) * 2
	if !s.HasError() {
		rank++
	}
	return rank
}
