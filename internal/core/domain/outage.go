package domain

import "sync/atomic"

// OutageFlag records that the repository is unreachable.
// It is set by the batch runner when an item reports ErrConnectionBroken
// and cleared only by a successful connectivity probe.
//
// The zero value is ready to use and not set.
type OutageFlag struct {
	set atomic.Bool
}

// Set marks the repository as unreachable.
// Returns true if the flag was previously clear.
func (f *OutageFlag) Set() bool {
	return f.set.CompareAndSwap(false, true)
}

// Clear marks the repository as reachable.
func (f *OutageFlag) Clear() {
	f.set.Store(false)
}

// IsSet reports whether an outage is in effect.
func (f *OutageFlag) IsSet() bool {
	return f.set.Load()
}
