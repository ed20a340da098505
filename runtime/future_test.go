package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wippyai/modbus-bridge/errors"
)

func TestFuture_FirstCompletionWins(t *testing.T) {
	f := NewFuture[int]()

	if !f.Complete(1, nil) {
		t.Fatal("first Complete reported loss")
	}
	if f.Complete(2, nil) {
		t.Fatal("second Complete reported win")
	}
	if f.Fail(fmt.Errorf("late")) {
		t.Fatal("Fail after Complete reported win")
	}

	v, err := f.Result()
	if v != 1 || err != nil {
		t.Fatalf("Result() = (%d, %v), want (1, nil)", v, err)
	}
}

func TestFuture_WaitCancelled(t *testing.T) {
	f := NewFuture[string]()
	cancel := make(chan struct{})
	close(cancel)

	_, err := f.Wait(cancel)
	if !errors.Is(err, &errors.Error{Kind: errors.KindShutdown}) {
		t.Fatalf("Wait = %v, want shutdown", err)
	}

	if f.Complete("late", nil) {
		t.Fatal("late result resolved a cancelled future")
	}
}

func TestFuture_WaitPrefersResult(t *testing.T) {
	f := NewFuture[string]()
	f.Complete("ok", nil)

	cancel := make(chan struct{})
	close(cancel)

	v, err := f.Wait(cancel)
	if v != "ok" || err != nil {
		t.Fatalf("Wait = (%q, %v), want (ok, nil)", v, err)
	}
}

func TestFuture_OnCompleteRunsOnWorkerOnce(t *testing.T) {
	rt := newTestRuntime(t, Config{Flavor: MultiThread, Workers: 4})

	f := NewFuture[int]()
	var calls atomic.Int32
	done := make(chan int, 2)
	f.OnComplete(rt, func(v int, err error) {
		calls.Add(1)
		done <- v
	})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			f.Complete(i, nil)
		})
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
	time.Sleep(20 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("callback ran %d times", n)
	}
}

func TestFuture_OnCompleteAfterResolve(t *testing.T) {
	rt := newTestRuntime(t, Config{Flavor: CurrentThread})

	f := NewFuture[int]()
	f.Complete(42, nil)

	got := make(chan int, 1)
	f.OnComplete(rt, func(v int, _ error) { got <- v })

	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("callback got %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
}

func TestFuture_OnCompleteAfterRuntimeClosed(t *testing.T) {
	rt, err := New(Config{Flavor: CurrentThread})
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}
	rt.Close()

	f := NewFuture[int]()
	var got error
	f.OnComplete(rt, func(_ int, err error) { got = err })
	f.Fail(errors.Shutdown(errors.PhaseChannel))

	if !errors.Is(got, &errors.Error{Kind: errors.KindShutdown}) {
		t.Fatalf("inline callback got %v, want shutdown", got)
	}
}
