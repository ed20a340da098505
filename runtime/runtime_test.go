package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wippyai/modbus-bridge/errors"
)

func newTestRuntime(t *testing.T, cfg Config) *Runtime {
	t.Helper()
	rt, err := New(cfg)
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}
	t.Cleanup(rt.Close)
	return rt
}

func TestNew_Flavors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		workers int
	}{
		{"current thread", Config{Flavor: CurrentThread}, 1},
		{"current thread ignores workers", Config{Flavor: CurrentThread, Workers: 8}, 1},
		{"multi thread explicit", Config{Flavor: MultiThread, Workers: 3}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newTestRuntime(t, tt.cfg)
			if rt.Workers() != tt.workers {
				t.Fatalf("Workers() = %d, want %d", rt.Workers(), tt.workers)
			}
			if rt.Flavor() != tt.cfg.Flavor {
				t.Fatalf("Flavor() = %v, want %v", rt.Flavor(), tt.cfg.Flavor)
			}
		})
	}

	rt := newTestRuntime(t, Config{Flavor: MultiThread})
	if rt.Workers() < 1 {
		t.Fatalf("default MultiThread has %d workers", rt.Workers())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	for _, cfg := range []Config{
		{Flavor: MultiThread, Workers: -1},
		{Flavor: Flavor(9)},
	} {
		rt, err := New(cfg)
		if err == nil || rt != nil {
			t.Fatalf("New(%+v) = (%v, %v), want error", cfg, rt, err)
		}
		if kind, _ := errors.KindOf(err); kind != errors.KindInvalidInput {
			t.Fatalf("kind = %q, want invalid_input", kind)
		}
	}
}

func TestSubmit_CurrentThreadSerializes(t *testing.T) {
	rt := newTestRuntime(t, Config{Flavor: CurrentThread})

	var (
		running atomic.Int32
		overlap atomic.Bool
		order   []int
		wg      sync.WaitGroup
	)
	for i := range 50 {
		wg.Add(1)
		err := rt.Submit(func() {
			defer wg.Done()
			if running.Add(1) > 1 {
				overlap.Store(true)
			}
			order = append(order, i)
			running.Add(-1)
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()

	if overlap.Load() {
		t.Fatal("work overlapped on a single-worker runtime")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want FIFO", i, v)
		}
	}
}

func TestSubmit_RecoversPanic(t *testing.T) {
	rt := newTestRuntime(t, Config{Flavor: CurrentThread})

	done := make(chan struct{})
	if err := rt.Submit(func() { panic("boom") }); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := rt.Submit(func() { close(done) }); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after a panic")
	}
}

func TestClose_JoinsSpawnedTasks(t *testing.T) {
	rt, err := New(Config{Flavor: MultiThread, Workers: 2})
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}

	var exited atomic.Int32
	for range 4 {
		err := rt.Spawn(func(ctx context.Context) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			exited.Add(1)
		})
		if err != nil {
			t.Fatalf("spawn: %v", err)
		}
	}

	rt.Close()

	if n := exited.Load(); n != 4 {
		t.Fatalf("Close returned with %d/4 tasks exited", n)
	}
	select {
	case <-rt.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}

func TestClose_DrainsQueuedWork(t *testing.T) {
	rt, err := New(Config{Flavor: CurrentThread})
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}

	var ran atomic.Int32
	block := make(chan struct{})
	rt.Submit(func() { <-block })
	for range 10 {
		rt.Submit(func() { ran.Add(1) })
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(block)
	}()
	rt.Close()

	if n := ran.Load(); n != 10 {
		t.Fatalf("drained %d/10 queued tasks", n)
	}
}

func TestClose_RejectsNewWork(t *testing.T) {
	rt, err := New(Config{Flavor: CurrentThread})
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}
	rt.Close()
	rt.Close()

	if err := rt.Submit(func() {}); !errors.Is(err, &errors.Error{Kind: errors.KindShutdown}) {
		t.Fatalf("Submit after Close = %v, want shutdown", err)
	}
	if err := rt.Spawn(func(context.Context) {}); !errors.Is(err, &errors.Error{Kind: errors.KindShutdown}) {
		t.Fatalf("Spawn after Close = %v, want shutdown", err)
	}
}
