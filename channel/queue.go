package channel

import (
	"sync"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"

	"github.com/wippyai/modbus-bridge/errors"
	"github.com/wippyai/modbus-bridge/protocol"
	"github.com/wippyai/modbus-bridge/runtime"
)

// ErrQueueFull is returned by Submit when a channel already holds its
// maximum number of pending requests. It matches iox.ErrWouldBlock.
var ErrQueueFull = errors.QueueFull(0, iox.ErrWouldBlock)

// pending is one queued request and the future its caller waits on.
type pending struct {
	future  *runtime.Future[protocol.Response]
	req     protocol.Request
	timeout time.Duration
	serial  uint32
	unit    uint8
}

// requestQueue is a bounded FIFO. Any number of goroutines may push; only
// the connection task pops.
type requestQueue struct {
	ring     lfq.SPSC[*pending]
	mu       sync.Mutex
	depth    int
	capacity int
	closed   bool
}

func newRequestQueue(capacity int) *requestQueue {
	q := &requestQueue{capacity: capacity}
	q.ring.Init(ringSize(capacity))
	return q
}

// ringSize rounds capacity up to a power of two; depth alone enforces capacity.
func ringSize(capacity int) int {
	n := 2
	for n < capacity {
		n <<= 1
	}
	return n
}

// push appends p or fails without blocking.
func (q *requestQueue) push(p *pending) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.Shutdown(errors.PhaseChannel)
	}
	if q.depth >= q.capacity {
		return errors.QueueFull(q.depth, iox.ErrWouldBlock)
	}
	if err := q.ring.Enqueue(&p); err != nil {
		return errors.QueueFull(q.depth, err)
	}
	q.depth++
	return nil
}

// pop removes the oldest request. Popping shares mu with pushers so the
// handoff of *pending is ordered for the race detector.
func (q *requestQueue) pop() (*pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, err := q.ring.Dequeue()
	if err != nil {
		return nil, false
	}
	q.depth--
	return p, true
}

// close rejects further pushes and returns everything still queued.
func (q *requestQueue) close() []*pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	var rest []*pending
	for {
		p, err := q.ring.Dequeue()
		if err != nil {
			break
		}
		rest = append(rest, p)
	}
	q.depth = 0
	return rest
}

func (q *requestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}
