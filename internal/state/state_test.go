package state_test

import (
	"testing"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/state"
)

func TestMachineStartsInInit(t *testing.T) {
	m := state.New()
	if m.Current() != api.StateInit {
		t.Fatalf("Current() = %v, want Init", m.Current())
	}
}

func TestMachineLegalTransitionSequence(t *testing.T) {
	m := state.New()
	seq := []api.ControllerState{
		api.StateStarted, api.StateOperational, api.StateInReset, api.StateOperational,
	}
	for _, next := range seq {
		if _, ok := m.SetState(next); !ok {
			t.Fatalf("transition to %v rejected from %v", next, m.Current())
		}
	}
	if m.Current() != api.StateOperational {
		t.Fatalf("Current() = %v, want Operational", m.Current())
	}
}

func TestMachineRejectsIllegalTransition(t *testing.T) {
	m := state.New()
	if _, ok := m.SetState(api.StateOperational); ok {
		t.Fatal("Init -> Operational should be illegal (must pass through Started)")
	}
	if m.Current() != api.StateInit {
		t.Fatalf("state changed after a rejected transition: %v", m.Current())
	}
}

func TestMachineMissingReachableFromAnyNonDetachedState(t *testing.T) {
	for _, start := range []api.ControllerState{
		api.StateInit, api.StateStarted, api.StateOperational, api.StateSuspend,
		api.StateInReset, api.StateFailed, api.StateQuiesced,
	} {
		m := state.New()
		forceState(t, m, start)
		if _, ok := m.SetState(api.StateMissing); !ok {
			t.Fatalf("Missing rejected from %v", start)
		}
	}
}

func TestMachineDetachedIsTerminal(t *testing.T) {
	m := state.New()
	forceState(t, m, api.StateQuiesced)
	if _, ok := m.SetState(api.StateDetached); !ok {
		t.Fatal("Quiesced -> Detached should be legal")
	}
	if _, ok := m.SetState(api.StateOperational); ok {
		t.Fatal("Detached must have no outgoing transitions")
	}
}

// forceState drives m to target via whatever legal path exists, since
// the machine exposes no direct setter.
func forceState(t *testing.T, m *state.Machine, target api.ControllerState) {
	t.Helper()
	if target == api.StateInit {
		return
	}
	path := map[api.ControllerState][]api.ControllerState{
		api.StateStarted:     {api.StateStarted},
		api.StateOperational: {api.StateStarted, api.StateOperational},
		api.StateSuspend:     {api.StateStarted, api.StateOperational, api.StateSuspend},
		api.StateInReset:     {api.StateStarted, api.StateOperational, api.StateInReset},
		api.StateFailed:      {api.StateStarted, api.StateOperational, api.StateInReset, api.StateFailed},
		api.StateQuiesced:    {api.StateStarted, api.StateOperational, api.StateQuiesced},
	}
	steps, ok := path[target]
	if !ok {
		t.Fatalf("no known path to %v", target)
	}
	for _, s := range steps {
		if _, ok := m.SetState(s); !ok {
			t.Fatalf("setup: transition to %v failed from %v", s, m.Current())
		}
	}
}
