// File: internal/recovery/reissue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reissue-on-timeout policy. The source gates this behind a feature
// flag without consistently populating the namespace back-reference a
// reissue needs; this core resolves that ambiguity explicitly (see
// SPEC_FULL.md's Open Questions): only BlockIO slots carry a namespace
// back-reference at submit time, and reissue is off by default.

package recovery

// ReissuePolicy classifies whether a slot that cannot complete normally
// (an abandoned/timed-out command being reclaimed) qualifies for
// resubmission, as reported by ShouldReissue. Queue.Flush does not
// consult it: Flush completes every remaining slot with the status it
// is given, whatever the policy.
type ReissuePolicy int

const (
	// ReissueNever never qualifies a slot for resubmission — the safe
	// default.
	ReissueNever ReissuePolicy = iota
	// ReissueIfNamespaceKnown qualifies the command for resubmission
	// against its original namespace if, and only if, the slot carries a resolved
	// NamespaceID (BlockIO slots only; Admin/Passthrough slots never
	// qualify since the core does not track which admin sub-operation
	// is safe to simply repeat).
	ReissueIfNamespaceKnown
)

// ShouldReissue reports whether a slot qualifies for reissue under
// policy p. hasNamespace is true only for BlockIO slots whose
// NamespaceID was set at submit time.
func ShouldReissue(p ReissuePolicy, hasNamespace bool) bool {
	return p == ReissueIfNamespaceKnown && hasNamespace
}
