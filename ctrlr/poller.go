// File: ctrlr/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-I/O-queue completion reaper: one goroutine per queue, pinned to
// the CPU the queue is associated with, polling ProcessCompletions at
// a short interval. This is the concrete consumer of the affinity
// package and of normalize.CPUIndex — without a pinned poller, the
// NUMA-local ring/PRP-page placement done at queue-creation time buys
// nothing, since a completion could otherwise be reaped by a goroutine
// scheduled on a remote node.

package ctrlr

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/momentics/nvme-core/affinity"
	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/normalize"
	"github.com/momentics/nvme-core/internal/queue"
)

const pollerInterval = 20 * time.Microsecond

type queuePoller struct {
	q        *queue.Queue
	cpu      int
	numaNode int
	stop     chan struct{}
	done     chan struct{}

	mu     sync.Mutex
	pinned bool
}

var _ api.Reactor = (*queuePoller)(nil)
var _ api.Affinity = (*queuePoller)(nil)

// Pin re-pins the calling goroutine's locked OS thread to the given
// cpu/numaID pair, satisfying api.Affinity. The poller's own run/Run
// loop calls this once at startup with its configured cpu; callers
// may invoke it again (from within the same pinned goroutine) to
// rebalance after a topology change.
func (p *queuePoller) Pin(cpuID, numaID int) error {
	if err := affinity.PinCurrentThread(cpuID); err != nil {
		return err
	}
	p.mu.Lock()
	p.cpu, p.numaNode, p.pinned = cpuID, numaID, true
	p.mu.Unlock()
	return nil
}

// Unpin marks the poller as no longer guaranteed pinned. The OS
// thread itself is not unlocked here — that remains the running
// goroutine's own responsibility via runtime.UnlockOSThread.
func (p *queuePoller) Unpin() error {
	p.mu.Lock()
	p.pinned = false
	p.mu.Unlock()
	return nil
}

// Get reports the poller's current effective CPU and NUMA node.
func (p *queuePoller) Get() (cpuID, numaID int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cpu, p.numaNode, nil
}

// Scope reports that a queue poller binds a single goroutine's locked
// OS thread, not the whole process.
func (p *queuePoller) Scope() api.AffinityScope { return api.ScopeGoroutine }

// ImmutableDescriptor snapshots the poller's current binding state.
func (p *queuePoller) ImmutableDescriptor() api.AffinityDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return api.AffinityDescriptor{
		CPUID:  p.cpu,
		NUMAID: p.numaNode,
		Scope:  api.ScopeGoroutine,
		Pinned: p.pinned,
	}
}

// Run drives this poller's completion loop until ctx is canceled,
// satisfying api.Reactor for supervisors that want a uniform
// ctx-driven event loop instead of the stop/done channel pair bring-up
// uses directly via newQueuePoller/Stop.
func (p *queuePoller) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := p.Pin(p.cpu, p.numaNode); err != nil {
		_ = err
	}

	ticker := time.NewTicker(pollerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stop:
			return nil
		case <-ticker.C:
			p.q.ProcessCompletions()
		}
	}
}

func newQueuePoller(q *queue.Queue, cpu, numaNode int) *queuePoller {
	p := &queuePoller{q: q, cpu: cpu, numaNode: numaNode, stop: make(chan struct{}), done: make(chan struct{})}
	go p.run()
	return p
}

func (p *queuePoller) run() {
	defer close(p.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := p.Pin(p.cpu, p.numaNode); err != nil {
		// Pinning is best-effort: some platforms/containers deny
		// CAP_SYS_NICE or lack NUMA topology; the poller still runs,
		// just without a CPU guarantee.
		_ = err
	}

	ticker := time.NewTicker(pollerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.q.ProcessCompletions()
		}
	}
}

func (p *queuePoller) Stop() {
	close(p.stop)
	<-p.done
}

// startQueuePollers launches one poller per I/O queue, distributing
// them round-robin across the available logical CPUs.
func (c *Controller) startQueuePollers(queues []*queue.Queue) []*queuePoller {
	n := runtime.NumCPU()
	pollers := make([]*queuePoller, 0, len(queues))
	for i, q := range queues {
		cpu := normalize.CPUIndex(i%n, n)
		numaNode := normalize.NUMANode(q.ID%2, 2)
		pollers = append(pollers, newQueuePoller(q, cpu, numaNode))
	}
	return pollers
}

func stopQueuePollers(pollers []*queuePoller) {
	for _, p := range pollers {
		p.Stop()
	}
}
