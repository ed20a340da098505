// Package channel manages Modbus TCP client connections on a runtime.
//
// A Channel owns one connection, a bounded request queue and the reconnect
// strategy. Its connection task runs on the runtime and is the only goroutine
// that touches the connection; callers on any goroutine only queue requests
// and wait on the returned futures.
//
//	ch, err := channel.New(rt, "127.0.0.1:502", 16,
//	    channel.WithLogger(log),
//	    channel.WithMetrics(channel.NewMetrics(prometheus.DefaultRegisterer)))
//	if err != nil {
//	    return err
//	}
//	defer ch.Close()
//
//	f, err := ch.Submit(1, time.Second, protocol.ReadHoldingRegisters(r))
//	resp, err := f.Wait(rt.Done())
//
// # Backpressure
//
// Submit never blocks. Once maxQueued requests are waiting, further calls
// fail with an error matching ErrQueueFull (and iox.ErrWouldBlock) until the
// task catches up.
//
// # Reconnecting
//
// Connections are opened on demand. A failed attempt starts a backoff that
// doubles from MinRetryDelay up to MaxRetryDelay; requests taken off the
// queue during a backoff fail at once with NoConnection instead of waiting.
// I/O errors, framing errors and timeouts drop the connection so the next
// request dials again.
package channel
