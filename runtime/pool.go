package runtime

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/wippyai/modbus-bridge/errors"
)

// workerPool runs submitted work on a fixed set of goroutines in FIFO order.
type workerPool struct {
	tasks  *queue.Queue
	log    *zap.Logger
	cond   *sync.Cond
	wg     sync.WaitGroup
	mu     sync.Mutex
	size   int
	closed bool
}

func newWorkerPool(size int, log *zap.Logger) *workerPool {
	p := &workerPool{
		tasks: queue.New(),
		log:   log,
		size:  size,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := range size {
		p.wg.Go(func() {
			p.run(i)
		})
	}
	return p
}

func (p *workerPool) submit(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.Shutdown(errors.PhaseRuntime)
	}
	p.tasks.Add(fn)
	p.cond.Signal()
	return nil
}

// close stops accepting work, lets the workers drain the queue and waits for them.
func (p *workerPool) close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *workerPool) run(id int) {
	for {
		p.mu.Lock()
		for p.tasks.Length() == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.tasks.Length() == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.tasks.Remove().(func())
		p.mu.Unlock()

		p.execute(id, fn)
	}
}

func (p *workerPool) execute(id int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("recovered panic in submitted work",
				zap.Int("worker", id),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
