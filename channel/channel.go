package channel

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/wippyai/modbus-bridge/errors"
	"github.com/wippyai/modbus-bridge/protocol"
	"github.com/wippyai/modbus-bridge/runtime"
)

// MaxQueuedRequests bounds the queue depth a channel may be created with.
const MaxQueuedRequests = 1 << 16

// serials numbers requests across all channels for log correlation.
var serials atomix.Uint32

// Channel is a Modbus TCP client connection managed by a task on a Runtime.
//
// Requests from any goroutine are queued with Submit and executed one at a
// time, in order, by the channel's connection task. The connection is opened
// lazily by the first request and reopened after failures, with a doubling
// backoff between failed attempts.
type Channel struct {
	rt       *runtime.Runtime
	queue    *requestQueue
	client   *protocol.Client
	log      *zap.Logger
	metrics  *Metrics
	cancel   context.CancelFunc
	notify   chan struct{}
	done     chan struct{}
	opts     options
	addr     netip.AddrPort
	id       ulid.ULID
	once     sync.Once
	retryAt  time.Time
	retryGap time.Duration
}

// New parses address, which must be an IP literal and port such as
// "127.0.0.1:502" or "[::1]:502", and starts the channel's connection task
// on rt. It returns before any connection is attempted.
//
// Nothing is allocated or spawned when New fails.
func New(rt *runtime.Runtime, address string, maxQueued int, opts ...Option) (*Channel, error) {
	if rt == nil {
		return nil, errors.InvalidInput(errors.PhaseChannel, "nil runtime")
	}
	addr, err := netip.ParseAddrPort(address)
	if err != nil {
		return nil, errors.ParseFailed("socket address", err)
	}
	if maxQueued <= 0 || maxQueued > MaxQueuedRequests {
		return nil, errors.New(errors.PhaseChannel, errors.KindInvalidInput).
			Value(maxQueued).
			Detail("max queued requests must be in 1..%d, got %d", MaxQueuedRequests, maxQueued).
			Build()
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = Logger()
	}

	id := ulid.Make()
	ctx, cancel := context.WithCancel(rt.Context())
	c := &Channel{
		rt:       rt,
		queue:    newRequestQueue(maxQueued),
		client:   protocol.NewClient(),
		metrics:  o.metrics,
		cancel:   cancel,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		opts:     o,
		addr:     addr,
		id:       id,
		retryGap: o.minRetry,
		log: o.log.With(
			zap.Stringer("channel", id),
			zap.Stringer("addr", addr)),
	}

	if err := rt.Spawn(func(context.Context) { c.run(ctx) }); err != nil {
		cancel()
		return nil, err
	}

	c.log.Debug("channel created", zap.Int("max_queued", maxQueued))
	return c, nil
}

// ID returns the channel's unique identifier.
func (c *Channel) ID() ulid.ULID {
	return c.id
}

// Runtime returns the runtime the channel's task runs on.
func (c *Channel) Runtime() *runtime.Runtime {
	return c.rt
}

// Addr returns the server address.
func (c *Channel) Addr() netip.AddrPort {
	return c.addr
}

// Pending returns the number of queued requests not yet taken by the task.
func (c *Channel) Pending() int {
	return c.queue.len()
}

// Submit validates req and queues it for unit. The returned future resolves
// exactly once: with the response, with the request's failure, or with
// Shutdown when the channel or its runtime is torn down first.
//
// timeout bounds the request from the moment the task takes it off the
// queue, covering any connection attempt, the write and the read.
//
// Submit never blocks. A full queue fails with an error matching ErrQueueFull.
func (c *Channel) Submit(unit uint8, timeout time.Duration, req protocol.Request) (*runtime.Future[protocol.Response], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := &pending{
		future:  runtime.NewFuture[protocol.Response](),
		req:     req,
		timeout: timeout,
		unit:    unit,
		serial:  serials.Add(1),
	}
	if err := c.queue.push(p); err != nil {
		return nil, err
	}
	c.metrics.queued(1)

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return p.future, nil
}

// Close stops the connection task and waits for it to exit. Every queued or
// in-flight request resolves as Shutdown. Close is idempotent.
func (c *Channel) Close() {
	c.once.Do(func() {
		c.cancel()
		<-c.done
		c.log.Debug("channel closed")
	})
}

// Drop implements resource.Dropper.
func (c *Channel) Drop() {
	c.Close()
}

// run is the connection task. It owns the client and its connection.
func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notify:
		}

		for ctx.Err() == nil {
			p, ok := c.queue.pop()
			if !ok {
				break
			}
			c.metrics.queued(-1)
			c.process(ctx, p)
		}
	}
}

// shutdown closes the queue, fails what was left in it and drops the connection.
func (c *Channel) shutdown() {
	rest := c.queue.close()
	c.metrics.queued(-float64(len(rest)))
	for _, p := range rest {
		p.future.Fail(errors.Shutdown(errors.PhaseChannel))
	}
	c.disconnect()
}

func (c *Channel) process(ctx context.Context, p *pending) {
	select {
	case <-p.future.Done():
		// the caller gave up while the request was queued
		return
	default:
	}

	start := time.Now()
	deadline := start.Add(p.timeout)

	resp, err := c.execute(ctx, deadline, p)
	if err != nil && ctx.Err() != nil {
		err = errors.Shutdown(errors.PhaseChannel)
	}

	c.metrics.observe(err, time.Since(start).Seconds())
	if err != nil {
		c.log.Debug("request failed",
			zap.Uint32("serial", p.serial),
			zap.Stringer("function", p.req.Function),
			zap.Uint8("unit", p.unit),
			zap.Error(err))
	}
	p.future.Complete(resp, err)
}

func (c *Channel) execute(ctx context.Context, deadline time.Time, p *pending) (protocol.Response, error) {
	if !c.client.Connected() {
		if err := c.connect(ctx, deadline); err != nil {
			return protocol.Response{}, err
		}
	}

	conn := c.client.Conn()
	conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	resp, err := c.client.Execute(p.unit, p.req)
	stop()

	if err != nil {
		switch kind, _ := errors.KindOf(err); kind {
		case errors.KindIO, errors.KindBadFrame, errors.KindResponseTimeout:
			c.log.Debug("dropping connection", zap.Error(err))
			c.disconnect()
		}
		return protocol.Response{}, err
	}
	return resp, nil
}

// connect dials the server unless a backoff from the last failure is still
// running, in which case the request fails at once with NoConnection.
func (c *Channel) connect(ctx context.Context, deadline time.Time) error {
	now := time.Now()
	if now.Before(c.retryAt) {
		return errors.New(errors.PhaseConnect, errors.KindNoConnection).
			Detail("waiting %s before reconnecting", c.retryAt.Sub(now).Round(time.Millisecond)).
			Build()
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.connectTimeout)
	defer cancel()
	dialCtx, cancelDeadline := context.WithDeadline(dialCtx, deadline)
	defer cancelDeadline()

	conn, err := c.opts.dial(dialCtx, "tcp", c.addr.String())
	c.metrics.connect(err)
	if err != nil && ctx.Err() == nil && !time.Now().Before(deadline) {
		return errors.Timeout(err)
	}
	if err != nil {
		c.retryAt = time.Now().Add(c.retryGap)
		c.log.Info("connect failed",
			zap.Duration("retry_in", c.retryGap),
			zap.Error(err))
		c.retryGap = min(2*c.retryGap, c.opts.maxRetry)
		return errors.NoConnection(err)
	}

	c.retryAt = time.Time{}
	c.retryGap = c.opts.minRetry
	c.client.Attach(conn)
	c.log.Info("connected")
	return nil
}

func (c *Channel) disconnect() {
	if conn := c.client.Detach(); conn != nil {
		conn.Close()
	}
}
