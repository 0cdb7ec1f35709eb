// Package lockmgr defines the lock manager capability that the lock package
// builds on. A lock manager owns a namespace of named locks and is the only
// arbiter of mutual exclusion between the tasks that share it. It may run in
// the same process (see the local package) or be provided by a host.
//
// Core Functionality:
//   - Named locks in exclusive or shared mode
//   - Non-blocking probes (Options.IfAvailable)
//   - Forced takeover of a held lock (Options.Steal)
//   - Cancellation of waiting requests through a context.Context
//   - Global snapshots of held and pending locks (Query)
//
// Grant Protocol:
//
//	The grant notification is callback shaped. ILockManager.Request calls the
//	GrantFunc exactly once when the lock is granted (or with nil when an
//	IfAvailable request is declined) and keeps the lock until the channel
//	returned by the GrantFunc is closed. Only then does Request return.
//
//	Request therefore blocks for the whole lease:
//
//	- Before the grant it can fail with RetCAborted (ctx done),
//	  RetCNotSupported (invalid name or options) or any other manager error.
//
//	- After the grant it returns nil once the lock was released through the
//	  channel, or an error with RetCStolen if another request took the lock
//	  over with Options.Steal. A stolen lock is dropped without waiting for
//	  the release channel.
//
// Holder Identity:
//
//	Every LockInfo carries a ClientID identifying the holder (or waiter).
//	Callers can tag requests with WithClientID; managers fall back to an ID of
//	their own otherwise.
//
// Usage Example:
//
//	release := make(chan struct{})
//	go func() {
//	    err := locks.Request(ctx, "resource:123", nil, func(l *lockmgr.LockInfo) <-chan struct{} {
//	        // the lock is held from here on
//	        return release
//	    })
//	    // err is nil once the lock was released
//	}()
//
//	// ...
//	close(release)
//
// Most code should not use this protocol directly but bind a name with the
// lock package, which turns it into a linear acquire / release flow.
package lockmgr
