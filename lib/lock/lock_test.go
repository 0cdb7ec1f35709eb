package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/wlock/lib/lockmgr"
	"github.com/ValentinKolb/wlock/lib/lockmgr/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

const (
	waitFor  = time.Second
	tick     = 5 * time.Millisecond
	stillFor = 50 * time.Millisecond
)

type result struct {
	h   Handle
	err error
}

// newBinding binds name to a fresh local lock manager
func newBinding(t *testing.T, name string) *Binding {
	t.Helper()
	b, err := Bind(name, local.NewLockManager(nil))
	require.NoError(t, err)
	return b
}

// requestAsync runs Request in a goroutine
func requestAsync(ctx context.Context, b *Binding, opts *lockmgr.Options) <-chan result {
	ch := make(chan result, 1)
	go func() {
		h, err := b.Request(ctx, opts)
		ch <- result{h: h, err: err}
	}()
	return ch
}

// requireState waits until the projected snapshot has the given number of held and pending entries
func requireState(t *testing.T, b *Binding, held, pending int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := b.Query(context.Background())
		return err == nil && len(s.Held) == held && len(s.Pending) == pending
	}, waitFor, tick)
}

// requireNoResult asserts that ch does not deliver a result for a short time
func requireNoResult(t *testing.T, ch <-chan result) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("request resolved too early (granted=%v, err=%v)", r.h != nil && r.h.Granted(), r.err)
	case <-time.After(stillFor):
	}
}

// requireResult waits for the result of ch
func requireResult(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for request")
		return result{}
	}
}

// fakeManager is a scripted lockmgr.ILockManager
type fakeManager struct {
	mu       sync.Mutex
	calls    int
	opts     []*lockmgr.Options
	request  func(ctx context.Context, name string, opts *lockmgr.Options, grant lockmgr.GrantFunc) error
	snapshot lockmgr.Snapshot
	queryErr error
}

func (f *fakeManager) Request(ctx context.Context, name string, opts *lockmgr.Options, grant lockmgr.GrantFunc) error {
	f.mu.Lock()
	f.calls++
	f.opts = append(f.opts, opts)
	fn := f.request
	f.mu.Unlock()
	if fn == nil {
		<-grant(&lockmgr.LockInfo{Name: name, Mode: lockmgr.ModeExclusive, ClientID: "fake"})
		return nil
	}
	return fn(ctx, name, opts, grant)
}

func (f *fakeManager) Query(context.Context) (lockmgr.Snapshot, error) {
	return f.snapshot, f.queryErr
}

func (f *fakeManager) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --------------------------------------------------------------------------
// Bind
// --------------------------------------------------------------------------

func TestBindWithoutManager(t *testing.T) {
	b, err := Bind("no manager", nil)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrCapabilityMissing)
}

func TestBindDefault(t *testing.T) {
	t.Cleanup(func() { SetDefault(nil) })

	SetDefault(nil)
	_, err := BindDefault("default")
	require.ErrorIs(t, err, ErrCapabilityMissing)

	locks := local.NewLockManager(nil)
	SetDefault(locks)
	require.Equal(t, locks, Default())

	b, err := BindDefault("default")
	require.NoError(t, err)
	assert.Equal(t, "default", b.Name())

	h, err := b.Request(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, h.Release())
}

// --------------------------------------------------------------------------
// Request
// --------------------------------------------------------------------------

func TestQueryBeforeRequest(t *testing.T) {
	b := newBinding(t, "query before request")

	s, err := b.Query(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s.Held)
	assert.Nil(t, s.Pending)
	assert.False(t, s.HasHeld())
	assert.False(t, s.HasPending())
}

func TestExclusiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newBinding(t, "simple use exclusive lock")

	func() {
		h, err := b.Request(ctx, nil)
		require.NoError(t, err)
		defer h.Close()

		assert.True(t, h.Granted())
		assert.Equal(t, "simple use exclusive lock", h.Name())
		assert.Equal(t, lockmgr.ModeExclusive, h.Mode())

		s, err := b.Query(ctx)
		require.NoError(t, err)
		require.Len(t, s.Held, 1)
		assert.Equal(t, "simple use exclusive lock", s.Held[0].Name)
		assert.Nil(t, s.Pending)
	}()

	s, err := b.Query(ctx)
	require.NoError(t, err)
	assert.Nil(t, s.Held)
	assert.Nil(t, s.Pending)
}

func TestExclusiveSequential(t *testing.T) {
	ctx := context.Background()
	b := newBinding(t, "exclusive lock")

	h1, err := b.Request(ctx, &lockmgr.Options{Mode: lockmgr.ModeExclusive})
	require.NoError(t, err)
	requireState(t, b, 1, 0)

	second := requestAsync(ctx, b, &lockmgr.Options{Mode: lockmgr.ModeExclusive})
	requireState(t, b, 1, 1)
	requireNoResult(t, second)

	assert.True(t, h1.Release())

	r := requireResult(t, second)
	require.NoError(t, r.err)
	require.True(t, r.h.Granted())
	assert.Equal(t, "exclusive lock", r.h.Name())
	requireState(t, b, 1, 0)

	require.NoError(t, r.h.Close())
	requireState(t, b, 0, 0)
}

func TestSharedConcurrent(t *testing.T) {
	ctx := context.Background()
	b := newBinding(t, "shared lock")
	shared := &lockmgr.Options{Mode: lockmgr.ModeShared}

	s1 := requireResult(t, requestAsync(ctx, b, shared))
	s2 := requireResult(t, requestAsync(ctx, b, shared))
	require.NoError(t, s1.err)
	require.NoError(t, s2.err)
	assert.Equal(t, lockmgr.ModeShared, s1.h.Mode())
	assert.Equal(t, lockmgr.ModeShared, s2.h.Mode())
	requireState(t, b, 2, 0)

	exclusive := requestAsync(ctx, b, nil)
	requireState(t, b, 2, 1)
	requireNoResult(t, exclusive)

	assert.True(t, s1.h.Release())
	requireState(t, b, 1, 1)
	requireNoResult(t, exclusive)

	assert.True(t, s2.h.Release())
	r := requireResult(t, exclusive)
	require.NoError(t, r.err)
	assert.Equal(t, lockmgr.ModeExclusive, r.h.Mode())
	requireState(t, b, 1, 0)
	assert.True(t, r.h.Release())
}

func TestIfAvailable(t *testing.T) {
	ctx := context.Background()
	b := newBinding(t, "if available")

	t.Run("Free", func(t *testing.T) {
		h, err := b.Request(ctx, &lockmgr.Options{IfAvailable: true})
		require.NoError(t, err)
		assert.True(t, h.Granted())
		assert.Equal(t, "if available", h.Name())
		assert.True(t, h.Release())
	})

	t.Run("Held", func(t *testing.T) {
		held, err := b.Request(ctx, nil)
		require.NoError(t, err)

		h, err := b.Request(ctx, &lockmgr.Options{IfAvailable: true})
		require.NoError(t, err)
		assert.False(t, h.Granted())
		assert.Equal(t, "", h.Name())
		assert.Equal(t, lockmgr.Mode(""), h.Mode())
		assert.False(t, h.Release())
		assert.False(t, h.Release())
		assert.NoError(t, h.Close())

		// the probe must not disturb the holder
		requireState(t, b, 1, 0)
		assert.True(t, held.Release())
		requireState(t, b, 0, 0)
	})
}

func TestSteal(t *testing.T) {
	ctx := context.Background()
	b := newBinding(t, "steal")

	h1, err := b.Request(ctx, nil)
	require.NoError(t, err)

	h2, err := b.Request(ctx, &lockmgr.Options{Steal: true})
	require.NoError(t, err)
	require.True(t, h2.Granted())
	assert.Equal(t, "steal", h2.Name())
	requireState(t, b, 1, 0)

	assert.False(t, h1.Release())
	assert.False(t, h1.Release())
	requireState(t, b, 1, 0)

	assert.True(t, h2.Release())
	assert.True(t, h2.Release())
	requireState(t, b, 0, 0)
}

func TestIfAvailableAndSteal(t *testing.T) {
	f := &fakeManager{}
	b, err := Bind("invalid", f)
	require.NoError(t, err)

	h, err := b.Request(context.Background(), &lockmgr.Options{IfAvailable: true, Steal: true})
	assert.Nil(t, h)
	require.ErrorIs(t, err, ErrConfiguration)

	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Contains(t, confErr.Error(), "ifAvailable and steal are mutually exclusive")
	assert.Equal(t, 0, f.callCount())
}

func TestAbortBeforeGrant(t *testing.T) {
	b := newBinding(t, "abort")

	held, err := b.Request(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	waiting := requestAsync(ctx, b, nil)
	requireState(t, b, 1, 1)

	cancel()
	r := requireResult(t, waiting)
	assert.Nil(t, r.h)
	assert.ErrorIs(t, r.err, lockmgr.ErrAborted)
	assert.ErrorIs(t, r.err, context.Canceled)
	requireState(t, b, 1, 0)

	// the held lock is not affected
	assert.True(t, held.Release())
	requireState(t, b, 0, 0)
}

func TestAbortAlreadyCancelled(t *testing.T) {
	b := newBinding(t, "abort early")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h, err := b.Request(ctx, nil)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, lockmgr.ErrAborted)
	requireState(t, b, 0, 0)
}

func TestAbortAfterGrant(t *testing.T) {
	b := newBinding(t, "abort after grant")

	ctx, cancel := context.WithCancel(context.Background())
	h, err := b.Request(ctx, nil)
	require.NoError(t, err)

	cancel()
	requireState(t, b, 1, 0)
	requireNoResult(t, requestAsync(context.Background(), b, nil))

	assert.True(t, h.Release())
}

func TestReleaseConcurrent(t *testing.T) {
	b := newBinding(t, "concurrent release")

	h, err := b.Request(context.Background(), nil)
	require.NoError(t, err)

	const callers = 10
	results := make(chan bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- h.Release()
		}()
	}
	wg.Wait()
	close(results)

	for released := range results {
		assert.True(t, released)
	}
	requireState(t, b, 0, 0)
}

func TestWith(t *testing.T) {
	ctx := context.Background()
	b := newBinding(t, "with")

	called := false
	err := b.With(ctx, nil, func(ctx context.Context, h Handle) error {
		called = true
		assert.True(t, h.Granted())
		requireState(t, b, 1, 0)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	requireState(t, b, 0, 0)

	errFn := errors.New("fn failed")
	err = b.With(ctx, nil, func(context.Context, Handle) error { return errFn })
	assert.Same(t, errFn, err)
	requireState(t, b, 0, 0)
}

// --------------------------------------------------------------------------
// Protocol details (scripted manager)
// --------------------------------------------------------------------------

func TestOptionsForwarded(t *testing.T) {
	f := &fakeManager{}
	b, err := Bind("options", f)
	require.NoError(t, err)

	h, err := b.Request(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, h.Release())

	opts := &lockmgr.Options{Mode: lockmgr.ModeShared}
	h, err = b.Request(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, h.Release())

	require.Len(t, f.opts, 2)
	assert.Nil(t, f.opts[0])
	assert.Same(t, opts, f.opts[1])
}

func TestManagerErrorPassThrough(t *testing.T) {
	errInvalid := errors.New("invalid name")
	f := &fakeManager{
		request: func(context.Context, string, *lockmgr.Options, lockmgr.GrantFunc) error {
			return errInvalid
		},
	}
	b, err := Bind("-invalid", f)
	require.NoError(t, err)

	h, err := b.Request(context.Background(), nil)
	assert.Nil(t, h)
	assert.Same(t, errInvalid, err)
}

func TestLostAfterGrant(t *testing.T) {
	f := &fakeManager{
		request: func(_ context.Context, name string, _ *lockmgr.Options, grant lockmgr.GrantFunc) error {
			grant(&lockmgr.LockInfo{Name: name, Mode: lockmgr.ModeExclusive})
			return lockmgr.NewError(lockmgr.RetCStolen, "lost")
		},
	}
	b, err := Bind("lost", f)
	require.NoError(t, err)

	h, err := b.Request(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, h.Granted())
	assert.False(t, h.Release())
	assert.NoError(t, h.Close())
}

func TestCompletedWithoutGrant(t *testing.T) {
	f := &fakeManager{
		request: func(context.Context, string, *lockmgr.Options, lockmgr.GrantFunc) error {
			return nil
		},
	}
	b, err := Bind("no grant", f)
	require.NoError(t, err)

	h, err := b.Request(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, h.Granted())
	assert.False(t, h.Release())
}

// --------------------------------------------------------------------------
// Query
// --------------------------------------------------------------------------

func TestQueryProjection(t *testing.T) {
	f := &fakeManager{
		snapshot: lockmgr.Snapshot{
			Held: []lockmgr.LockInfo{
				{Name: "a", Mode: lockmgr.ModeShared, ClientID: "1"},
				{Name: "b", Mode: lockmgr.ModeExclusive, ClientID: "2"},
				{Name: "a", Mode: lockmgr.ModeShared, ClientID: "3"},
			},
			Pending: []lockmgr.LockInfo{
				{Name: "b", Mode: lockmgr.ModeExclusive, ClientID: "4"},
				{Name: "a", Mode: lockmgr.ModeExclusive, ClientID: "5"},
				{Name: "b", Mode: lockmgr.ModeShared, ClientID: "6"},
			},
		},
	}

	a, err := Bind("a", f)
	require.NoError(t, err)
	s, err := a.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []lockmgr.LockInfo{
		{Name: "a", Mode: lockmgr.ModeShared, ClientID: "1"},
		{Name: "a", Mode: lockmgr.ModeShared, ClientID: "3"},
	}, s.Held)
	assert.Equal(t, []lockmgr.LockInfo{
		{Name: "a", Mode: lockmgr.ModeExclusive, ClientID: "5"},
	}, s.Pending)

	b, err := Bind("b", f)
	require.NoError(t, err)
	s, err = b.Query(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Pending, 2)
	assert.Equal(t, "4", s.Pending[0].ClientID)
	assert.Equal(t, "6", s.Pending[1].ClientID)

	c, err := Bind("c", f)
	require.NoError(t, err)
	s, err = c.Query(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s.Held)
	assert.Nil(t, s.Pending)
}

func TestQueryError(t *testing.T) {
	errQuery := errors.New("query failed")
	b, err := Bind("query error", &fakeManager{queryErr: errQuery})
	require.NoError(t, err)

	_, err = b.Query(context.Background())
	assert.Same(t, errQuery, err)
}
