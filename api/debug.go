// Package api
// Author: momentics
//
// Live debug introspection for a running controller: register-dump,
// per-queue occupancy, and platform probes without coupling callers to
// the concrete Controller/control.DebugProbes types.

package api

// Debug exposes runtime introspection and health API.
type Debug interface {
    // DumpState runs every registered probe and collects the results —
    // register values, queue stats, platform info — keyed by probe name.
    DumpState() map[string]any

    // RegisterProbe adds a named probe invoked on every DumpState call.
    RegisterProbe(name string, fn func() any)
}
