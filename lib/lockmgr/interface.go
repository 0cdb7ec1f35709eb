package lockmgr

import "context"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Mode is the mode a lock is requested or held in.
type Mode string

const (
	ModeExclusive Mode = "exclusive" // At most one holder per name
	ModeShared    Mode = "shared"    // Any number of shared holders, no exclusive holder
)

// OrDefault returns ModeExclusive for the zero value.
func (m Mode) OrDefault() Mode {
	if m == "" {
		return ModeExclusive
	}
	return m
}

// Valid reports whether m is a known mode (the zero value counts as exclusive).
func (m Mode) Valid() bool {
	switch m.OrDefault() {
	case ModeExclusive, ModeShared:
		return true
	default:
		return false
	}
}

// Options configures a single lock request.
// A nil *Options is equivalent to the zero value and is forwarded as nil.
type Options struct {
	// Mode defaults to ModeExclusive.
	Mode Mode
	// IfAvailable grants the lock only if it can be granted without waiting.
	// Otherwise the grant callback is invoked with nil.
	IfAvailable bool
	// Steal drops all current holders of the name and grants the lock immediately.
	Steal bool
}

// LockInfo describes a held or pending lock.
type LockInfo struct {
	Name     string `json:"name"`
	Mode     Mode   `json:"mode"`
	ClientID string `json:"client_id"`
}

// Snapshot is a point-in-time view of held and pending locks.
// Held is ordered by grant time, Pending by queue position.
type Snapshot struct {
	Held    []LockInfo `json:"held,omitempty"`
	Pending []LockInfo `json:"pending,omitempty"`
}

// HasHeld reports whether the snapshot contains any held lock.
func (s Snapshot) HasHeld() bool { return len(s.Held) > 0 }

// HasPending reports whether the snapshot contains any pending request.
func (s Snapshot) HasPending() bool { return len(s.Pending) > 0 }

// GrantFunc is invoked by the lock manager at most once per request.
// lock is nil if the request was declined (only possible with Options.IfAvailable).
// The lock is held until the returned channel is closed; a nil channel releases it immediately.
type GrantFunc func(lock *LockInfo) (release <-chan struct{})

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ILockManager defines the interface of a lock manager (the host capability).
type ILockManager interface {
	// Request queues a lock request for name and calls grant once the lock is granted
	// (or with nil if it was declined). The call returns once the whole lease is over:
	// nil after the lock was released through the channel returned by grant, or an error
	// if the request failed before it was granted or the lock was lost to a steal.
	// The ctx only aborts the request while it is waiting for the grant.
	Request(ctx context.Context, name string, opts *Options, grant GrantFunc) (err error)

	// Query returns a snapshot of all held and pending locks across all names.
	Query(ctx context.Context) (snapshot Snapshot, err error)
}
