// File: ctrlr/controller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Controller lifecycle (C6): PCIe attach, CC/CSTS bring-up, IDENTIFY,
// I/O-queue creation, teardown. This is the component that owns every
// other component's lifetime: queues, the DMA allocator, the namespace
// registry, and the state machine.

package ctrlr

import (
	"fmt"
	"sync"
	"time"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/control"
	"github.com/momentics/nvme-core/internal/mmio"
	"github.com/momentics/nvme-core/internal/normalize"
	"github.com/momentics/nvme-core/internal/prp"
	"github.com/momentics/nvme-core/internal/queue"
	"github.com/momentics/nvme-core/internal/recovery"
	"github.com/momentics/nvme-core/internal/state"
	"github.com/momentics/nvme-core/internal/wire"
)

// Config carries the attach-time knobs a caller may tune; zero values
// fall back to the documented defaults. Backed by the same
// ConfigStore pattern used for runtime-adjustable settings, but these
// particular knobs are read once at Attach and are not live-reloadable
// (queue counts and sizes cannot change under a running controller —
// see HwReset's "reject if queue count changed" rule).
type Config struct {
	Name           string
	ResourcePath   string // e.g. /sys/bus/pci/devices/0000:01:00.0/resource0
	VFIOGroupPath  string // e.g. /dev/vfio/12; empty disables IOMMU mapping (dev/test only)
	AdminSQDepth   int    // default 32
	AdminCQDepth   int    // default 32
	RequestedIOQs  int    // default: number of CPUs
	TickPeriod     time.Duration
	ReissuePolicy  recovery.ReissuePolicy
	PickQueue      api.PickQueue
	BlockDone      api.BlockRequestDone
	ScanEvent      api.ScanEvent
	MaxTransferLen int // bytes, default 1 MiB
}

func (c *Config) setDefaults() {
	if c.AdminSQDepth == 0 {
		c.AdminSQDepth = 32
	}
	if c.AdminCQDepth == 0 {
		c.AdminCQDepth = 32
	}
	if c.TickPeriod == 0 {
		c.TickPeriod = 200 * time.Millisecond
	}
	if c.MaxTransferLen == 0 {
		c.MaxTransferLen = 1 << 20
	}
	if c.PickQueue == nil {
		c.PickQueue = roundRobinPickQueue
	}
}

// Controller is the driver core's top-level object: one per attached
// NVMe device.
type Controller struct {
	cfg Config

	mu sync.Mutex // rank Low: state, namespace list, AEN counter
	taskMgmtSem sync.Mutex // rank above all; never taken while holding mu or a queue lock

	win *mmio.Window
	cap wire.Cap
	vs  uint32
	mps uint8 // negotiated page shift - 12, i.e. CC.MPS value

	vendor, model, serial, firmware string
	ieeeOUI   [3]byte
	maxAEN    int
	nsCount   int

	admin    *queue.Queue
	ioQueues []*queue.Queue
	builder  *prp.Builder

	namespaces map[uint32]*Namespace

	dma *mmio.Allocator

	st *state.Machine

	configStore *control.ConfigStore
	metrics     *control.MetricsRegistry
	debug       *control.DebugProbes

	workQ *recovery.WorkQueue

	sweepStop chan struct{}
	sweepDone chan struct{}
	pollers   []*queuePoller

	resetCount  uint64
	abortedCmds uint64

	aerOutstanding int
}

// New constructs a Controller in StateInit; Attach performs the actual
// PCIe/register work.
func New(cfg Config) *Controller {
	cfg.setDefaults()
	c := &Controller{
		cfg:         cfg,
		st:          state.New(),
		namespaces:  make(map[uint32]*Namespace),
		configStore: control.NewConfigStore(),
		metrics:     control.NewMetricsRegistry(),
		debug:       control.NewDebugProbes(),
		workQ:       recovery.NewWorkQueue(1024),
	}
	control.RegisterPlatformProbes(c.debug)
	return c
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() api.ControllerState { return c.st.Current() }

// Attach maps the register window, validates configured knobs against
// CAP, builds the admin queue, and runs HwStart. No I/O is permitted
// until the returned error is nil and a later Bootstrap call has moved
// the controller to Operational.
func (c *Controller) Attach() error {
	mapped, err := mmio.MapBAR(c.cfg.ResourcePath, wire.RegisterWindowMinBytes)
	if err != nil {
		return fmt.Errorf("ctrlr: attach: %w", err)
	}
	win, err := mmio.NewWindow(mapped)
	if err != nil {
		return fmt.Errorf("ctrlr: attach: %w", err)
	}
	c.win = win
	c.cap = wire.DecodeCap(win.Read64(wire.RegCAP))

	hostPageShift := uint8(12) // runtime.GOARCH pages are 4KiB on the platforms this core targets
	if hostPageShift < c.cap.MPSMIN+12 || hostPageShift > c.cap.MPSMAX+12 {
		return fmt.Errorf("ctrlr: attach: host page size excluded by CAP.MPSMIN/MPSMAX")
	}
	c.mps = hostPageShift - 12

	if c.cfg.AdminSQDepth > int(c.cap.MQES)+1 {
		c.cfg.AdminSQDepth = int(c.cap.MQES) + 1
	}
	if c.cfg.AdminCQDepth > int(c.cap.MQES)+1 {
		c.cfg.AdminCQDepth = int(c.cap.MQES) + 1
	}

	c.builder = prp.NewBuilder(c.mps, c.cfg.MaxTransferLen)

	mapper, err := mmio.NewPlatformMapper(c.cfg.VFIOGroupPath)
	if err != nil {
		return fmt.Errorf("ctrlr: attach: dma mapper: %w", err)
	}
	c.dma = mmio.NewAllocator(mapper)

	if err := c.configStore.SetConfig(map[string]any{
		"admin_sq_depth":      c.cfg.AdminSQDepth,
		"admin_cq_depth":      c.cfg.AdminCQDepth,
		"requested_io_queues": c.cfg.RequestedIOQs,
	}); err != nil {
		return fmt.Errorf("ctrlr: attach: seed config: %w", err)
	}
	c.configStore.Lock("admin_sq_depth", "admin_cq_depth", "requested_io_queues")

	if err := c.buildAdminQueue(); err != nil {
		return fmt.Errorf("ctrlr: attach: %w", err)
	}

	c.st.SetState(api.StateStarted)
	return c.hwStart()
}

// buildAdminQueue allocates the admin SQ/CQ rings and constructs queue
// id 0 in the suspended state.
func (c *Controller) buildAdminQueue() error {
	sqBytes := c.cfg.AdminSQDepth * wire.SQESize
	cqBytes := c.cfg.AdminCQDepth * wire.CQESize

	sqRing, err := c.dma.Alloc(sqBytes, normalize.NUMANode(0, 1), mmio.DirToDevice)
	if err != nil {
		return fmt.Errorf("admin SQ alloc: %w", err)
	}
	cqRing, err := c.dma.Alloc(cqBytes, normalize.NUMANode(0, 1), mmio.DirFromDevice)
	if err != nil {
		c.dma.Free(sqRing)
		return fmt.Errorf("admin CQ alloc: %w", err)
	}

	depth := c.cfg.AdminCQDepth
	if c.cfg.AdminSQDepth < depth {
		depth = c.cfg.AdminSQDepth
	}
	c.admin = queue.New(0, depth, sqRing, cqRing, c.win, c.cap.DSTRD, -1)
	if err := attachPRPPages(c.admin, c.dma, c.builder); err != nil {
		return err
	}
	return nil
}
