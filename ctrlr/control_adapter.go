// File: ctrlr/control_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adapts Controller onto the generic api.Control surface (config
// snapshot/merge, map-shaped stats, reload hooks, debug probes) for
// callers that want the uniform cross-component contract rather than
// the typed ctrlr.Controller API. Kept separate from Controller's own
// Stats method, whose struct return type upper-layer callers (and
// cmd/nvmectl) depend on.

package ctrlr

import "github.com/momentics/nvme-core/api"

// ControlAdapter wraps a Controller to satisfy api.Control.
type ControlAdapter struct {
	c *Controller
}

var _ api.Control = (*ControlAdapter)(nil)

// AsControl returns a view of c implementing api.Control.
func (c *Controller) AsControl() api.Control { return &ControlAdapter{c: c} }

func (a *ControlAdapter) GetConfig() map[string]any { return a.c.configStore.GetSnapshot() }

func (a *ControlAdapter) SetConfig(cfg map[string]any) error {
	return a.c.configStore.SetConfig(cfg)
}

func (a *ControlAdapter) Stats() map[string]any {
	st := a.c.Stats()
	return map[string]any{
		"state":          st.State.String(),
		"reset_count":    st.ResetCount,
		"aborted_cmds":   st.AbortedCmds,
		"io_queue_count": len(st.IOQueues),
	}
}

func (a *ControlAdapter) OnReload(fn func()) { a.c.configStore.OnReload(fn) }

func (a *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	a.c.debug.RegisterProbe(name, fn)
}
