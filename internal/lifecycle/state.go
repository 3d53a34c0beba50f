package lifecycle

import (
	"fmt"
	"strings"
)

// State is a device lifecycle state. The numeric values are the ones
// carried on the wire.
type State uint8

const (
	StateInit State = iota
	StatePreOperational
	StateSafeOperational
	StateOperational
	StateBoot
)

// String returns the canonical state name
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StatePreOperational:
		return "PreOperational"
	case StateSafeOperational:
		return "SafeOperational"
	case StateOperational:
		return "Operational"
	case StateBoot:
		return "Boot"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Valid reports whether s is a defined state.
func (s State) Valid() bool {
	return s <= StateBoot
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid lifecycle state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	v, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

var stateNames = map[string]State{
	"init":            StateInit,
	"preoperational":  StatePreOperational,
	"preop":           StatePreOperational,
	"safeoperational": StateSafeOperational,
	"safeop":          StateSafeOperational,
	"operational":     StateOperational,
	"op":              StateOperational,
	"boot":            StateBoot,
	"bootstrap":       StateBoot,
}

// ParseState accepts a state name (case-insensitive, common short forms
// like "preop" included) or its numeric value.
func ParseState(text string) (State, error) {
	key := strings.ToLower(strings.TrimSpace(text))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if s, ok := stateNames[key]; ok {
		return s, nil
	}
	if len(key) == 1 && key[0] >= '0' && key[0] <= '4' {
		return State(key[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown lifecycle state %q", text)
}

// Transition is a single requested state change.
type Transition struct {
	From State
	To   State
}

// String returns "From -> To"
func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s", t.From, t.To)
}

// StandardSequence is the forward walk checked by ValidateFullStateSequence.
var StandardSequence = []Transition{
	{StateInit, StatePreOperational},
	{StatePreOperational, StateSafeOperational},
	{StateSafeOperational, StateOperational},
}

// CleanupTransition returns the device to Init after the walk.
var CleanupTransition = Transition{StateOperational, StateInit}
