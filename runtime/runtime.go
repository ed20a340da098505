package runtime

import (
	"context"
	goruntime "runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/modbus-bridge/errors"
)

// Flavor selects how many worker goroutines run completions and callbacks.
type Flavor uint8

const (
	// MultiThread runs one worker per CPU unless Config.Workers says otherwise.
	MultiThread Flavor = iota
	// CurrentThread runs exactly one worker; every completion is serialized on it.
	CurrentThread
)

func (f Flavor) String() string {
	switch f {
	case MultiThread:
		return "multi_thread"
	case CurrentThread:
		return "current_thread"
	default:
		return "unknown"
	}
}

// Config describes an execution engine.
type Config struct {
	Logger  *zap.Logger
	Workers int // 0 selects runtime.NumCPU(); ignored for CurrentThread
	Flavor  Flavor
}

// Runtime is the execution engine shared by every channel created on it.
//
// Long-lived tasks (one connection task per channel) run on goroutines
// started by Spawn. Short work such as request completions and foreign
// callbacks runs on the worker pool via Submit.
//
// A Runtime must outlive every channel scheduled on it. Close must not be
// called from a worker goroutine.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	pool   *workerPool
	log    *zap.Logger
	tasks  sync.WaitGroup
	mu     sync.Mutex
	once   sync.Once
	flavor Flavor
	closed bool
}

// New starts an execution engine. Nothing is left running when it fails.
func New(cfg Config) (*Runtime, error) {
	workers := cfg.Workers
	switch cfg.Flavor {
	case MultiThread:
		if workers < 0 {
			return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
				Value(workers).
				Detail("negative worker count %d", workers).
				Build()
		}
		if workers == 0 {
			workers = goruntime.NumCPU()
		}
	case CurrentThread:
		workers = 1
	default:
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Value(cfg.Flavor).
			Detail("unknown flavor %d", cfg.Flavor).
			Build()
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		ctx:    ctx,
		cancel: cancel,
		flavor: cfg.Flavor,
		log:    log,
	}
	r.pool = newWorkerPool(workers, log)

	log.Debug("runtime started",
		zap.Stringer("flavor", cfg.Flavor),
		zap.Int("workers", workers))

	return r, nil
}

// Flavor returns the engine flavor.
func (r *Runtime) Flavor() Flavor {
	return r.flavor
}

// Workers returns the number of worker goroutines.
func (r *Runtime) Workers() int {
	return r.pool.size
}

// Context returns the root context, cancelled when Close starts.
func (r *Runtime) Context() context.Context {
	return r.ctx
}

// Done is closed as soon as teardown starts.
func (r *Runtime) Done() <-chan struct{} {
	return r.ctx.Done()
}

// Spawn starts a long-lived task. The task must return once ctx is done;
// Close waits for it.
func (r *Runtime) Spawn(fn func(ctx context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.Shutdown(errors.PhaseRuntime)
	}

	r.tasks.Go(func() {
		fn(r.ctx)
	})
	return nil
}

// Submit queues short work on the worker pool. Work never blocks a worker
// for long; panics are recovered and logged.
//
// After Close has finished draining the pool Submit returns a shutdown error
// and fn is not run.
func (r *Runtime) Submit(fn func()) error {
	return r.pool.submit(fn)
}

// Close tears the engine down and blocks until it is gone.
//
// The root context is cancelled first so every spawned task resolves its
// outstanding work as Shutdown; once they have all returned the worker pool
// drains what was queued and exits. Close is idempotent.
func (r *Runtime) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		r.cancel()
		r.tasks.Wait()
		r.pool.close()

		r.log.Debug("runtime stopped", zap.Stringer("flavor", r.flavor))
	})
}

// Drop implements resource.Dropper.
func (r *Runtime) Drop() {
	r.Close()
}
