package local

import (
	"slices"
	"sync"

	"github.com/ValentinKolb/wlock/lib/lockmgr"
)

// request is a pending or granted lock request
type request struct {
	info      lockmgr.LockInfo
	granted   chan struct{} // Closed when the lock is granted
	stolen    chan struct{} // Closed when the lock is taken over by a steal
	isGranted bool          // Guarded by resource.mu
}

func newRequest(info lockmgr.LockInfo) *request {
	return &request{
		info:    info,
		granted: make(chan struct{}),
		stolen:  make(chan struct{}),
	}
}

// isStolen reports whether the request lost its lock to a steal.
// The stolen channel is only closed while the resource is locked.
func (req *request) isStolen() bool {
	select {
	case <-req.stolen:
		return true
	default:
		return false
	}
}

// resource holds the lock state of a single name.
// All fields are guarded by mu.
type resource struct {
	mu    sync.Mutex
	seq   uint64     // Creation order
	held  []*request // Granted requests (in grant order)
	queue []*request // Pending requests (FIFO)
	dead  bool       // Removed from the manager, must not be used anymore
}

// compatible reports whether a lock in the given mode can be granted next to the current holders
func (r *resource) compatible(mode lockmgr.Mode) bool {
	if len(r.held) == 0 {
		return true
	}
	if mode == lockmgr.ModeExclusive {
		return false
	}
	for _, holder := range r.held {
		if holder.info.Mode == lockmgr.ModeExclusive {
			return false
		}
	}
	return true
}

// grant moves req to the holders and wakes it up
func (r *resource) grant(req *request) {
	req.isGranted = true
	r.held = append(r.held, req)
	close(req.granted)
}

// process grants the head of the queue as long as it is compatible with the holders.
// A request never overtakes an earlier one.
func (r *resource) process() {
	for len(r.queue) > 0 {
		head := r.queue[0]
		if !r.compatible(head.info.Mode) {
			return
		}
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.grant(head)
	}
}

// remove deletes req from the holders or the queue
func (r *resource) remove(req *request) {
	r.held = slices.DeleteFunc(r.held, func(other *request) bool { return other == req })
	r.queue = slices.DeleteFunc(r.queue, func(other *request) bool { return other == req })
}

func (r *resource) empty() bool {
	return len(r.held) == 0 && len(r.queue) == 0
}
