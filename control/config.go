// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with dynamic update and hot-reload
// propagation, plus a locked-key set so attach-time knobs (queue
// depths, I/O queue count) that cannot change under a running
// controller are rejected by SetConfig rather than silently merged
// and never actually applied by anything downstream.

package control

import (
	"fmt"
	"sync"
)

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func()
	locked    map[string]bool
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:    make(map[string]any),
		listeners: make([]func(), 0),
		locked:    make(map[string]bool),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	copy := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		copy[k] = v
	}
	return copy
}

// Lock marks keys as immutable: subsequent SetConfig calls reject any
// attempt to change them. Used once a controller has left StateInit,
// when topology-defining knobs (queue counts/depths) are frozen.
func (cs *ConfigStore) Lock(keys ...string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, k := range keys {
		cs.locked[k] = true
	}
}

// SetConfig merges new values and dispatches reload if needed. Any key
// already marked locked via Lock is rejected wholesale — no partial
// merge is applied — and the caller gets back the offending key name.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k := range newCfg {
		if cs.locked[k] {
			return fmt.Errorf("control: config key %q is locked and cannot be changed at runtime", k)
		}
	}
	for k, v := range newCfg {
		cs.config[k] = v
	}
	cs.dispatchReload()
	return nil
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// dispatchReload invokes all listeners.
func (cs *ConfigStore) dispatchReload() {
	for _, fn := range cs.listeners {
		go fn()
	}
}
