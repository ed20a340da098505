// Package runtime provides the execution engine behind the bridge.
//
// # Quick Start
//
//	rt, err := runtime.New(runtime.Config{Flavor: runtime.MultiThread})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	// Long-lived task, joined by Close
//	rt.Spawn(func(ctx context.Context) {
//	    <-ctx.Done()
//	})
//
//	// Short work on a worker goroutine
//	rt.Submit(func() { fmt.Println("hello") })
//
// # Flavors
//
//	MultiThread    - Config.Workers goroutines (default runtime.NumCPU())
//	CurrentThread  - a single worker, so completions never run concurrently
//
// # Futures
//
// Future is the one task primitive the bridge builds both calling
// conventions on:
//
//	f := runtime.NewFuture[[]uint16]()
//
//	// blocking: returns Shutdown if rt starts closing first
//	values, err := f.Wait(rt.Done())
//
//	// callback: fn runs exactly once on a worker
//	f.OnComplete(rt, func(values []uint16, err error) { ... })
//
// Complete is first-wins, so a late result after a shutdown never resolves a
// future twice.
//
// # Teardown
//
// Close cancels the root context, waits for every spawned task, then lets the
// workers drain the queued work and exit. It blocks until nothing the engine
// started is still running.
package runtime
