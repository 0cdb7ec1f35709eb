package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/wlock/lib/lock"
	"github.com/ValentinKolb/wlock/lib/lockmgr"
	"github.com/spf13/cobra"
)

const (
	demoPollInterval = 5 * time.Millisecond
	demoWaitTimeout  = time.Second
)

var (
	demoCmd = &cobra.Command{
		Use:       "demo [scenario...]",
		Short:     "Walk through lock scenarios",
		Long:      "Walk through lock scenarios and print the lock state after every step. Scenarios: " + strings.Join(demoOrder, ", ") + " (default: all)",
		ValidArgs: demoOrder,
		Args:      cobra.OnlyValidArgs,
		RunE:      runDemo,
	}

	demoOrder = []string{"exclusive", "shared", "probe", "steal", "abort"}

	demoScenarios = map[string]func(ctx context.Context, b *lock.Binding) error{
		"exclusive": demoExclusive,
		"shared":    demoShared,
		"probe":     demoProbe,
		"steal":     demoSteal,
		"abort":     demoAbort,
	}
)

// runDemo handles the demo command
func runDemo(cmd *cobra.Command, args []string) error {
	scenarios := args
	if len(scenarios) == 0 {
		scenarios = demoOrder
	}

	for _, name := range scenarios {
		b, err := lock.BindDefault("demo-" + name)
		if err != nil {
			return err
		}

		fmt.Printf("== %s\n", name)
		if err := demoScenarios[name](cmd.Context(), b); err != nil {
			return fmt.Errorf("scenario %s failed: %w", name, err)
		}
		fmt.Println()
	}
	return nil
}

// --------------------------------------------------------------------------
// Scenarios
// --------------------------------------------------------------------------

func demoExclusive(ctx context.Context, b *lock.Binding) error {
	first, err := b.Request(ctx, nil)
	if err != nil {
		return err
	}
	step(ctx, b, "first exclusive lock granted")

	second := requestAsync(ctx, b, nil)
	if err := waitForState(ctx, b, 1, 1); err != nil {
		return err
	}
	step(ctx, b, "second exclusive request queued")

	fmt.Printf("  first.Release() = %v\n", first.Release())
	r := <-second
	if r.err != nil {
		return r.err
	}
	step(ctx, b, "second exclusive lock granted")

	fmt.Printf("  second.Release() = %v\n", r.h.Release())
	step(ctx, b, "all released")
	return nil
}

func demoShared(ctx context.Context, b *lock.Binding) error {
	shared := &lockmgr.Options{Mode: lockmgr.ModeShared}
	s1, err := b.Request(ctx, shared)
	if err != nil {
		return err
	}
	s2, err := b.Request(ctx, shared)
	if err != nil {
		return err
	}
	step(ctx, b, "two shared locks granted")

	exclusive := requestAsync(ctx, b, nil)
	if err := waitForState(ctx, b, 2, 1); err != nil {
		return err
	}
	step(ctx, b, "exclusive request queued behind shared holders")

	s1.Release()
	s2.Release()
	r := <-exclusive
	if r.err != nil {
		return r.err
	}
	step(ctx, b, "shared locks released, exclusive lock granted")

	return r.h.Close()
}

func demoProbe(ctx context.Context, b *lock.Binding) error {
	holder, err := b.Request(ctx, nil)
	if err != nil {
		return err
	}
	defer holder.Close()
	step(ctx, b, "exclusive lock granted")

	probe, err := b.Request(ctx, &lockmgr.Options{IfAvailable: true})
	if err != nil {
		return err
	}
	fmt.Printf("  probe.Granted() = %v, probe.Release() = %v\n", probe.Granted(), probe.Release())
	return nil
}

func demoSteal(ctx context.Context, b *lock.Binding) error {
	victim, err := b.Request(lockmgr.WithClientID(ctx, "victim"), nil)
	if err != nil {
		return err
	}
	step(ctx, b, "victim holds the lock")

	thief, err := b.Request(lockmgr.WithClientID(ctx, "thief"), &lockmgr.Options{Steal: true})
	if err != nil {
		return err
	}
	step(ctx, b, "thief stole the lock")

	fmt.Printf("  victim.Release() = %v\n", victim.Release())
	fmt.Printf("  thief.Release() = %v\n", thief.Release())
	step(ctx, b, "all released")
	return nil
}

func demoAbort(ctx context.Context, b *lock.Binding) error {
	holder, err := b.Request(ctx, nil)
	if err != nil {
		return err
	}
	defer holder.Close()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	waiting := requestAsync(waitCtx, b, nil)
	if err := waitForState(ctx, b, 1, 1); err != nil {
		return err
	}
	step(ctx, b, "second request queued")

	cancel()
	r := <-waiting
	fmt.Printf("  aborted request: %v\n", r.err)
	step(ctx, b, "queue after abort")
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type requestResult struct {
	h   lock.Handle
	err error
}

// requestAsync runs Request in a goroutine
func requestAsync(ctx context.Context, b *lock.Binding, opts *lockmgr.Options) <-chan requestResult {
	ch := make(chan requestResult, 1)
	go func() {
		h, err := b.Request(ctx, opts)
		ch <- requestResult{h: h, err: err}
	}()
	return ch
}

// waitForState polls the lock state until it has the given number of held and pending entries
func waitForState(ctx context.Context, b *lock.Binding, held, pending int) error {
	deadline := time.Now().Add(demoWaitTimeout)
	for time.Now().Before(deadline) {
		s, err := b.Query(ctx)
		if err != nil {
			return err
		}
		if len(s.Held) == held && len(s.Pending) == pending {
			return nil
		}
		time.Sleep(demoPollInterval)
	}
	return fmt.Errorf("lock %q did not reach held=%d pending=%d", b.Name(), held, pending)
}

// step prints a description and the current lock state
func step(ctx context.Context, b *lock.Binding, description string) {
	s, err := b.Query(ctx)
	if err != nil {
		fmt.Printf("  %-50s query failed: %v\n", description, err)
		return
	}
	fmt.Printf("  %-50s held=%s pending=%s\n", description, formatInfos(s.Held), formatInfos(s.Pending))
}

func formatInfos(infos []lockmgr.LockInfo) string {
	if infos == nil {
		return "-"
	}
	parts := make([]string, len(infos))
	for i, info := range infos {
		parts[i] = fmt.Sprintf("%s(%s)", info.Mode, shortID(info.ClientID))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
