package lock

import (
	"errors"
	"sync/atomic"

	"github.com/ValentinKolb/wlock/lib/common"
	"github.com/ValentinKolb/wlock/lib/lockmgr"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(common.LoggerLock)

// ErrCapabilityMissing is returned by Bind and BindDefault if no lock manager is available
var ErrCapabilityMissing = errors.New("lock: no lock manager available (pass a lockmgr.ILockManager or install one with SetDefault)")

// Binding binds a lock name to a lock manager.
// It is immutable and safe for concurrent use.
type Binding struct {
	locks lockmgr.ILockManager
	name  string
}

// Bind binds name to the lock manager locks.
// It returns ErrCapabilityMissing if locks is nil.
//
// Usage:
//
//	l, err := lock.Bind("resource:123", local.NewLockManager(nil))
//	if err != nil {
//	    return err
//	}
//
//	h, err := l.Request(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
func Bind(name string, locks lockmgr.ILockManager) (*Binding, error) {
	if locks == nil {
		return nil, ErrCapabilityMissing
	}
	return &Binding{
		locks: locks,
		name:  name,
	}, nil
}

// Name returns the bound lock name
func (b *Binding) Name() string {
	return b.name
}

// --------------------------------------------------------------------------
// Process-wide default
// --------------------------------------------------------------------------

type defaultManager struct {
	locks lockmgr.ILockManager
}

var ambient atomic.Pointer[defaultManager]

// SetDefault installs locks as the process-wide default lock manager used by BindDefault.
// Passing nil removes the default.
func SetDefault(locks lockmgr.ILockManager) {
	if locks == nil {
		ambient.Store(nil)
		return
	}
	ambient.Store(&defaultManager{locks: locks})
}

// Default returns the process-wide default lock manager, or nil if none is installed
func Default() lockmgr.ILockManager {
	if d := ambient.Load(); d != nil {
		return d.locks
	}
	return nil
}

// BindDefault binds name to the default lock manager (see SetDefault).
// It returns ErrCapabilityMissing if no default is installed.
func BindDefault(name string) (*Binding, error) {
	return Bind(name, Default())
}
