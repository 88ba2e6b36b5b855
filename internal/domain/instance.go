package domain

import (
	"fmt"
	"strings"
)

// State is the runtime lifecycle state of an instance.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
	StateUnknown State = "unknown"
)

func (s State) Valid() bool {
	switch s {
	case StateRunning, StateStopped, StateError, StateUnknown:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	return string(s)
}

func ParseState(raw string) (State, error) {
	state := State(strings.ToLower(strings.TrimSpace(raw)))
	if !state.Valid() {
		return "", fmt.Errorf("unsupported instance state %q", raw)
	}
	return state, nil
}

var stateTransitions = map[State][]State{
	StateRunning: {StateStopped, StateError, StateUnknown},
	StateStopped: {StateRunning, StateError, StateUnknown},
	StateError:   {StateUnknown},
	StateUnknown: {StateRunning, StateStopped, StateError},
}

// CanTransition reports whether a driver may move an instance between states.
// Staying in the same state is always allowed. An instance in error only
// leaves it through remove and create.
func CanTransition(from, to State) bool {
	if from == to {
		return from.Valid()
	}
	for _, candidate := range stateTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Credentials is the identifier/secret pair a running instance uses to
// authenticate back to the platform.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.ClientID) == "" && strings.TrimSpace(c.ClientSecret) == ""
}

// Instance is the runtime view a driver keeps for one project.
type Instance struct {
	ID          string
	State       State
	URL         string
	Options     map[string]any
	Meta        Metadata
	Credentials *Credentials
}

func (i Instance) Clone() Instance {
	if i.Options != nil {
		options := make(map[string]any, len(i.Options))
		for k, v := range i.Options {
			options[k] = v
		}
		i.Options = options
	}
	if i.Meta != nil {
		i.Meta = i.Meta.Clone()
	}
	if i.Credentials != nil {
		creds := *i.Credentials
		i.Credentials = &creds
	}
	return i
}
