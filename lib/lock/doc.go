// Package lock turns the callback based grant protocol of a lockmgr.ILockManager
// into a linear acquire, use, release flow.
//
// A name is bound to a lock manager once with Bind. The resulting Binding can
// request the lock any number of times (every request is independent) and
// query its current state:
//
//	l, err := lock.Bind("reports", locks)
//	if err != nil {
//	    return err // lock.ErrCapabilityMissing
//	}
//
//	h, err := l.Request(ctx, &lockmgr.Options{Mode: lockmgr.ModeShared})
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
// Request Protocol:
//
//	Request starts the manager call in its own goroutine and coordinates it
//	through three signals:
//
//	- Grant: written once by the grant callback with the granted LockInfo
//	  (or nil if an IfAvailable request was declined).
//
//	- Release: closed by Handle.Release. The grant callback hands this
//	  channel to the manager, which holds the lock until it is closed.
//
//	- Completion: closed when the manager call returns. An error before the
//	  grant is the result of Request; an error after the grant means the lock
//	  was lost (stolen) and turns the result of Release into false.
//
// Handles:
//
//	A granted handle reports its name and mode. Release is idempotent: the
//	first call releases the lock and waits for the manager, every later call
//	returns the same result. A holder whose lock was stolen learns about it
//	only through Release returning false.
//
//	Declined IfAvailable requests return an empty handle without name and
//	mode whose Release always returns false, so callers can release any
//	handle the same way.
//
// Errors:
//
//   - ErrCapabilityMissing: Bind without a lock manager.
//   - *ConfigurationError (ErrConfiguration): IfAvailable combined with Steal.
//   - lockmgr errors (e.g. lockmgr.ErrAborted): returned unchanged.
//
// Query projects the manager's global snapshot onto the bound name.
package lock
