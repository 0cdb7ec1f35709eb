package lock

import (
	"context"

	"github.com/ValentinKolb/wlock/lib/lockmgr"
)

// Request requests the bound lock and returns once it is granted.
//
// opts may be nil (exclusive, waiting). It is forwarded to the lock manager as is.
// The ctx aborts the request while it waits for the grant; the resulting error
// comes from the lock manager (see lockmgr.ErrAborted). Cancelling ctx after the
// grant has no effect, the lock is held until the handle is released.
//
// For IfAvailable requests that were declined an empty handle is returned.
// Requests with both IfAvailable and Steal fail with a *ConfigurationError
// without calling the lock manager. All other errors of the lock manager are
// returned unchanged.
func (b *Binding) Request(ctx context.Context, opts *lockmgr.Options) (Handle, error) {
	if opts != nil && opts.IfAvailable && opts.Steal {
		requestsInvalid.Inc()
		return nil, &ConfigurationError{Msg: "ifAvailable and steal are mutually exclusive"}
	}

	granted := make(chan *lockmgr.LockInfo, 1) // grant signal, written at most once
	release := make(chan struct{})             // release signal, returned to the manager
	l := &lease{done: make(chan struct{})}     // completion signal

	go func() {
		defer close(l.done)
		l.err = b.locks.Request(ctx, b.name, opts, func(info *lockmgr.LockInfo) <-chan struct{} {
			select {
			case granted <- info:
			default:
			}
			return release
		})
	}()

	var info *lockmgr.LockInfo
	select {
	case info = <-granted:
	case <-l.done:
		select {
		case info = <-granted:
			// granted before the request completed (e.g. stolen right away)
		default:
			if l.err != nil {
				requestsFailed.Inc()
				return nil, l.err
			}
			// completed without ever granting: nothing is held
			requestsDeclined.Inc()
			return emptyHandle{}, nil
		}
	}

	if info == nil {
		close(release)
		requestsDeclined.Inc()
		Logger.Debugf("lock %q not available", b.name)
		return emptyHandle{}, nil
	}

	requestsGranted.Inc()
	Logger.Debugf("granted %s lock %q", info.Mode, info.Name)
	return newHeldLock(*info, release, l), nil
}

// With requests the bound lock, calls fn with the handle and releases the lock
// once fn returns. fn is also called with empty handles (see Handle.Granted).
func (b *Binding) With(ctx context.Context, opts *lockmgr.Options, fn func(ctx context.Context, h Handle) error) error {
	h, err := b.Request(ctx, opts)
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(ctx, h)
}
