// File: internal/state/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Global controller state machine with legal transitions, atomic under
// the controller lock. SetState returns the prior state so callers can
// implement CAS-style guards (e.g. HwReset's "if already InReset return
// Busy").

package state

import (
	"sync"

	"github.com/momentics/nvme-core/api"
)

// Machine holds the current controller state plus the adjacency table
// of legal transitions.
type Machine struct {
	mu      sync.Mutex
	current api.ControllerState
}

// New constructs a state machine starting in Init.
func New() *Machine {
	return &Machine{current: api.StateInit}
}

// legal maps each state to the set of states it may transition into.
// Missing is reachable from any state (hot-removal can happen at any
// point) and is handled as a special case in SetState rather than
// listed in every row. Once Missing, only Detached follows; once
// Failed, only Missing follows.
var legal = map[api.ControllerState]map[api.ControllerState]bool{
	api.StateInit:        {api.StateStarted: true},
	api.StateStarted:     {api.StateOperational: true},
	api.StateOperational: {api.StateSuspend: true, api.StateInReset: true, api.StateQuiesced: true},
	api.StateSuspend:     {api.StateOperational: true},
	api.StateInReset:     {api.StateOperational: true, api.StateFailed: true},
	api.StateFailed:      {},
	api.StateQuiesced:    {api.StateDetached: true},
	api.StateMissing:     {api.StateDetached: true},
	api.StateDetached:    {},
}

// Current returns the present state.
func (m *Machine) Current() api.ControllerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetState attempts the transition current -> next, returning the
// prior state and whether the transition was applied. Missing is
// reachable from any state except Detached (terminal); Failed accepts
// only Missing thereafter per the state table.
func (m *Machine) SetState(next api.ControllerState) (prior api.ControllerState, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prior = m.current
	if prior == api.StateDetached {
		return prior, false
	}
	if next == api.StateMissing {
		m.current = next
		return prior, true
	}
	if legal[prior][next] {
		m.current = next
		return prior, true
	}
	return prior, false
}

// Is reports whether the current state equals s.
func (m *Machine) Is(s api.ControllerState) bool {
	return m.Current() == s
}
