package channel

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// Defaults for the reconnect strategy.
const (
	DefaultMinRetryDelay  = time.Second
	DefaultMaxRetryDelay  = 10 * time.Second
	DefaultConnectTimeout = 5 * time.Second
)

// DialFunc opens the connection to a channel's server.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Option configures a Channel.
type Option func(*options)

type options struct {
	log            *zap.Logger
	metrics        *Metrics
	dial           DialFunc
	minRetry       time.Duration
	maxRetry       time.Duration
	connectTimeout time.Duration
}

func defaultOptions() options {
	var d net.Dialer
	return options{
		dial:           d.DialContext,
		minRetry:       DefaultMinRetryDelay,
		maxRetry:       DefaultMaxRetryDelay,
		connectTimeout: DefaultConnectTimeout,
	}
}

// WithLogger sets the logger used by the channel's connection task.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithMetrics records request and connection outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithRetryDelays sets the bounds of the doubling reconnect backoff.
// Non-positive values keep the defaults; the maximum is raised to the minimum if lower.
func WithRetryDelays(minDelay, maxDelay time.Duration) Option {
	return func(o *options) {
		if minDelay > 0 {
			o.minRetry = minDelay
		}
		if maxDelay > 0 {
			o.maxRetry = maxDelay
		}
		if o.maxRetry < o.minRetry {
			o.maxRetry = o.minRetry
		}
	}
}

// WithConnectTimeout bounds each connection attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(dial DialFunc) Option {
	return func(o *options) {
		if dial != nil {
			o.dial = dial
		}
	}
}
