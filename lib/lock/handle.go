package lock

import (
	"io"
	"sync"
	"time"

	"github.com/ValentinKolb/wlock/lib/lockmgr"
)

// Handle is the result of Request. It is either a granted lock or an empty
// handle (the lock was not available for an IfAvailable request). Both can be
// released the same way, usually with defer h.Close().
type Handle interface {
	// Name returns the lock name ("" for an empty handle).
	Name() string
	// Mode returns the mode the lock is held in ("" for an empty handle).
	Mode() lockmgr.Mode
	// Granted reports whether the handle holds (or held) a lock.
	Granted() bool
	// Release releases the lock and waits until the lock manager dropped it.
	// It returns true if the lock was released by this handle and false if it
	// was lost before (e.g. stolen) or never held. Release can be called any
	// number of times; every call returns the result of the first one.
	Release() bool

	// Close calls Release and discards the result. It always returns nil.
	io.Closer
}

// lease is the completion signal of the underlying lock manager request.
// err must only be read after done is closed.
type lease struct {
	done chan struct{}
	err  error
}

// --------------------------------------------------------------------------
// Granted lock
// --------------------------------------------------------------------------

type heldLock struct {
	info      lockmgr.LockInfo
	release   chan struct{} // Release signal, handed to the lock manager
	lease     *lease
	grantedAt time.Time

	once     sync.Once
	released bool
}

func newHeldLock(info lockmgr.LockInfo, release chan struct{}, l *lease) *heldLock {
	return &heldLock{
		info:      info,
		release:   release,
		lease:     l,
		grantedAt: time.Now(),
	}
}

func (h *heldLock) Name() string       { return h.info.Name }
func (h *heldLock) Mode() lockmgr.Mode { return h.info.Mode }
func (h *heldLock) Granted() bool      { return true }

func (h *heldLock) Release() bool {
	h.once.Do(func() {
		close(h.release)
		<-h.lease.done

		h.released = h.lease.err == nil
		holdDuration.UpdateDuration(h.grantedAt)
		if h.released {
			releasesReleased.Inc()
			Logger.Debugf("released %s lock %q", h.info.Mode, h.info.Name)
		} else {
			releasesLost.Inc()
			Logger.Debugf("%s lock %q was lost before release: %v", h.info.Mode, h.info.Name, h.lease.err)
		}
	})
	return h.released
}

func (h *heldLock) Close() error {
	h.Release()
	return nil
}

// --------------------------------------------------------------------------
// Empty handle
// --------------------------------------------------------------------------

type emptyHandle struct{}

func (emptyHandle) Name() string       { return "" }
func (emptyHandle) Mode() lockmgr.Mode { return "" }
func (emptyHandle) Granted() bool      { return false }
func (emptyHandle) Release() bool      { return false }
func (emptyHandle) Close() error       { return nil }
