// File: api/interfaces.go
// Package api defines the collaborator contracts the core calls
// outward through: the upstream I/O-completion callback, the I/O
// queue picker, the AER/log-page notification hook, and the uniform
// event-loop contract the completion-polling goroutines satisfy.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// BlockRequestDone is invoked by the core when an I/O command completes,
// carrying the final status and the number of bytes actually transferred.
// Implemented by the upstream block layer; the core never blocks on it.
type BlockRequestDone func(status Status, bytesTransferred int)

// PickQueue selects the I/O submission queue index for a request, given
// the requesting CPU ID and the number of active I/O queues. Must return
// a value in [0, numQueues) — numQueues is always > 0 when called.
type PickQueue func(cpuID, numQueues int) int

// ScanEvent is the signature AER and log-page-change notifications are
// delivered through. eventType is a controller-defined class tag
// (e.g. "ns_changed", "temp_threshold"); payload carries the decoded
// log page, if any was fetched as part of handling the event.
type ScanEvent func(eventType string, payload []byte)

// Reactor runs a blocking event loop until ctx is canceled. The core's
// completion-polling goroutines implement this contract so they can be
// driven uniformly by a supervising runtime.
type Reactor interface {
	Run(ctx context.Context) error
}
