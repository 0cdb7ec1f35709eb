package local

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/wlock/lib/common"
	"github.com/ValentinKolb/wlock/lib/lockmgr"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger(common.LoggerLockMgr)

// Metric names registered in Options.Registry
const (
	MetricGranted  = "lockmgr.granted"
	MetricDeclined = "lockmgr.declined"
	MetricAborted  = "lockmgr.aborted"
	MetricStolen   = "lockmgr.stolen"
	MetricReleased = "lockmgr.released"
	MetricWait     = "lockmgr.wait"
)

// Options configures the local lock manager
type Options struct {
	ClientID string           // Client ID for untagged requests ("" = random)
	Registry metrics.Registry // Registry for the manager metrics (nil = new registry)
}

// DefaultOptions returns the default options
func DefaultOptions() *Options {
	return &Options{
		Registry: metrics.NewRegistry(),
	}
}

type managerStats struct {
	granted  metrics.Counter
	declined metrics.Counter
	aborted  metrics.Counter
	stolen   metrics.Counter
	released metrics.Counter
	wait     metrics.Timer
}

type managerImpl struct {
	resources *xsync.MapOf[string, *resource]
	seq       atomic.Uint64 // creation order of resources (for Query)
	clientID  string
	stats     managerStats
}

// NewLockManager creates a new in-process lock manager with the specified options (optional).
//
// All requests made through the returned manager share one lock namespace.
// Locks are granted in FIFO order per name.
func NewLockManager(opts *Options) lockmgr.ILockManager {
	if opts == nil {
		opts = DefaultOptions()
	}

	registry := opts.Registry
	if registry == nil {
		registry = metrics.NewRegistry()
	}

	clientID := opts.ClientID
	if clientID == "" {
		id, err := lockmgr.NewClientID()
		if err != nil {
			Logger.Warningf("failed to generate client id: %v", err)
			id = fmt.Sprintf("local-%d", time.Now().UnixNano())
		}
		clientID = id
	}

	return &managerImpl{
		resources: xsync.NewMapOf[string, *resource](),
		clientID:  clientID,
		stats: managerStats{
			granted:  metrics.GetOrRegisterCounter(MetricGranted, registry),
			declined: metrics.GetOrRegisterCounter(MetricDeclined, registry),
			aborted:  metrics.GetOrRegisterCounter(MetricAborted, registry),
			stolen:   metrics.GetOrRegisterCounter(MetricStolen, registry),
			released: metrics.GetOrRegisterCounter(MetricReleased, registry),
			wait:     metrics.GetOrRegisterTimer(MetricWait, registry),
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lockmgr/interface.go)
// --------------------------------------------------------------------------

func (m *managerImpl) Request(ctx context.Context, name string, opts *lockmgr.Options, grant lockmgr.GrantFunc) error {
	var o lockmgr.Options
	if opts != nil {
		o = *opts
	}
	if err := validate(name, o); err != nil {
		return err
	}
	if grant == nil {
		return lockmgr.NewError(lockmgr.RetCNotSupported, "grant callback is nil")
	}
	if err := ctx.Err(); err != nil {
		m.stats.aborted.Inc(1)
		return lockmgr.WrapError(lockmgr.RetCAborted, fmt.Sprintf("request for %q aborted", name), err)
	}

	req := newRequest(lockmgr.LockInfo{
		Name:     name,
		Mode:     o.Mode.OrDefault(),
		ClientID: m.clientIDFor(ctx),
	})
	start := time.Now()

	r := m.lockResource(name)
	switch {
	case o.Steal:
		for _, holder := range r.held {
			close(holder.stolen)
			m.stats.stolen.Inc(1)
			Logger.Debugf("lock %q of client %s stolen by client %s", name, holder.info.ClientID, req.info.ClientID)
		}
		r.held = nil
		r.grant(req)
	case o.IfAvailable:
		if len(r.queue) > 0 || !r.compatible(req.info.Mode) {
			m.unlockResource(name, r)
			m.stats.declined.Inc(1)
			grant(nil)
			return nil
		}
		r.grant(req)
	default:
		r.queue = append(r.queue, req)
		r.process()
	}
	r.mu.Unlock()

	// wait for the grant (or the abort of the request)
	select {
	case <-req.granted:
	case <-ctx.Done():
		r.mu.Lock()
		if !req.isGranted {
			r.remove(req)
			r.process()
			m.unlockResource(name, r)
			m.stats.aborted.Inc(1)
			return lockmgr.WrapError(lockmgr.RetCAborted, fmt.Sprintf("request for %q aborted", name), ctx.Err())
		}
		// granted in the meantime, an abort after the grant has no effect
		r.mu.Unlock()
	}

	m.stats.wait.UpdateSince(start)
	m.stats.granted.Inc(1)

	// hold the lock until it is released or stolen
	info := req.info
	if release := grant(&info); release != nil {
		select {
		case <-release:
		case <-req.stolen:
		}
	}

	r.mu.Lock()
	if req.isStolen() {
		r.mu.Unlock()
		return lockmgr.NewError(lockmgr.RetCStolen, fmt.Sprintf("lock %q was stolen", name))
	}
	r.remove(req)
	r.process()
	m.unlockResource(name, r)
	m.stats.released.Inc(1)
	return nil
}

func (m *managerImpl) Query(ctx context.Context) (lockmgr.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return lockmgr.Snapshot{}, lockmgr.WrapError(lockmgr.RetCAborted, "query aborted", err)
	}

	type entry struct {
		seq     uint64
		held    []lockmgr.LockInfo
		pending []lockmgr.LockInfo
	}

	var entries []entry
	m.resources.Range(func(_ string, r *resource) bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.dead {
			return true
		}
		e := entry{seq: r.seq}
		for _, req := range r.held {
			e.held = append(e.held, req.info)
		}
		for _, req := range r.queue {
			e.pending = append(e.pending, req.info)
		}
		entries = append(entries, e)
		return true
	})

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	var snapshot lockmgr.Snapshot
	for _, e := range entries {
		snapshot.Held = append(snapshot.Held, e.held...)
		snapshot.Pending = append(snapshot.Pending, e.pending...)
	}
	return snapshot, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// validate checks name and options before the request is queued
func validate(name string, o lockmgr.Options) error {
	if strings.HasPrefix(name, "-") {
		return lockmgr.NewError(lockmgr.RetCNotSupported, fmt.Sprintf("lock name %q must not start with '-'", name))
	}
	if !o.Mode.Valid() {
		return lockmgr.NewError(lockmgr.RetCNotSupported, fmt.Sprintf("unknown lock mode %q", o.Mode))
	}
	if o.Steal && o.IfAvailable {
		return lockmgr.NewError(lockmgr.RetCNotSupported, "steal and ifAvailable cannot be combined")
	}
	if o.Steal && o.Mode.OrDefault() != lockmgr.ModeExclusive {
		return lockmgr.NewError(lockmgr.RetCNotSupported, "steal requires exclusive mode")
	}
	return nil
}

// clientIDFor returns the client ID the request is tagged with
func (m *managerImpl) clientIDFor(ctx context.Context) string {
	if id, ok := lockmgr.ClientIDFromContext(ctx); ok {
		return id
	}
	return m.clientID
}

// lockResource returns the locked resource for name, creating it if needed
func (m *managerImpl) lockResource(name string) *resource {
	for {
		r, _ := m.resources.LoadOrCompute(name, func() *resource {
			return &resource{seq: m.seq.Add(1)}
		})
		r.mu.Lock()
		if !r.dead {
			return r
		}
		// removed concurrently, retry with a fresh resource
		r.mu.Unlock()
	}
}

// unlockResource unlocks r and removes it from the manager if it is empty.
// The caller must hold r.mu.
func (m *managerImpl) unlockResource(name string, r *resource) {
	if r.empty() {
		r.dead = true
		m.resources.Delete(name)
	}
	r.mu.Unlock()
}
