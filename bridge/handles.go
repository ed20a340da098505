package bridge

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/modbus-bridge/channel"
	"github.com/wippyai/modbus-bridge/config"
	"github.com/wippyai/modbus-bridge/resource"
	"github.com/wippyai/modbus-bridge/runtime"
)

// RuntimeHandle identifies an execution engine. 0 is the null handle.
type RuntimeHandle resource.Handle

// ChannelHandle identifies a channel. 0 is the null handle.
type ChannelHandle resource.Handle

const (
	kindRuntime resource.Kind = iota + 1
	kindChannel
)

var (
	table    = newTable()
	runtimes = resource.NewTyped[*runtime.Runtime](table, kindRuntime)
	channels = resource.NewTyped[*channel.Channel](table, kindChannel)

	settingsMu sync.RWMutex
	workers    int
	chanOpts   []channel.Option
)

func newTable() *resource.UnifiedTable {
	t := resource.NewTable()
	t.Subscribe(lifecycleLog{})
	return t
}

// lifecycleLog records handle creation and destruction at debug level.
type lifecycleLog struct{}

func (lifecycleLog) OnResourceEvent(e resource.Event) {
	kind := "runtime"
	if e.Kind == kindChannel {
		kind = "channel"
	}
	Logger().Debug("handle "+e.Type.String(),
		zap.String("kind", kind),
		zap.Uint32("handle", uint32(e.Handle)))
}

// Configure applies cfg to every runtime and channel created afterwards.
// When log is non-nil it becomes the logger of the bridge, runtime and
// channel packages. opts are appended to the channel options derived from
// cfg, e.g. channel.WithMetrics.
//
// Configure must be called before any handle is created.
func Configure(cfg config.Config, log *zap.Logger, opts ...channel.Option) {
	if log != nil {
		SetLogger(log)
		runtime.SetLogger(log)
		channel.SetLogger(log)
	}

	settingsMu.Lock()
	defer settingsMu.Unlock()

	workers = cfg.Workers
	chanOpts = append([]channel.Option{
		channel.WithRetryDelays(cfg.RetryMin, cfg.RetryMax),
		channel.WithConnectTimeout(cfg.ConnectTimeout),
	}, opts...)
}

// CreateMultithreadedRuntime starts an engine with one worker per CPU, or
// the configured worker count. It returns 0 on failure.
func CreateMultithreadedRuntime() RuntimeHandle {
	settingsMu.RLock()
	n := workers
	settingsMu.RUnlock()
	return CreateRuntimeWithConfig(runtime.Config{Flavor: runtime.MultiThread, Workers: n})
}

// CreateBasicRuntime starts a single-worker engine on which every
// completion and callback is serialized. It returns 0 on failure.
func CreateBasicRuntime() RuntimeHandle {
	return CreateRuntimeWithConfig(runtime.Config{Flavor: runtime.CurrentThread})
}

// CreateRuntimeWithConfig starts an engine described by cfg and returns its
// handle, or 0 if it could not be started. Nothing is left running on failure.
func CreateRuntimeWithConfig(cfg runtime.Config) RuntimeHandle {
	return guardHandle(func() RuntimeHandle {
		rt, err := runtime.New(cfg)
		if err != nil {
			Logger().Warn("create runtime failed", zap.Error(err))
			return 0
		}
		h := runtimes.Insert(rt)
		if h == 0 {
			rt.Close()
			Logger().Warn("create runtime failed: handle table full")
		}
		return RuntimeHandle(h)
	})
}

// DestroyRuntime shuts the engine down and blocks until its tasks and
// workers are gone. Outstanding requests resolve as Shutdown. Null,
// unknown and already destroyed handles are ignored.
//
// Channels created on the engine stop with it, but their handles stay
// valid until DestroyTCPClient; requests made on them fail with Shutdown.
// DestroyRuntime must not be called from inside a callback.
func DestroyRuntime(h RuntimeHandle) {
	if h == 0 {
		return
	}
	Guard(func() Result {
		runtimes.Remove(resource.Handle(h))
		return Ok
	})
}

// CreateTCPClient creates a channel to address, an IP literal and port such
// as "127.0.0.1:502", with room for maxQueued pending requests. The
// connection is opened by the first request. It returns 0 when the runtime
// is unknown, the address does not parse or maxQueued is not positive; no
// task is started in that case.
func CreateTCPClient(rt RuntimeHandle, address string, maxQueued int) ChannelHandle {
	return guardHandle(func() ChannelHandle {
		r, ok := runtimes.Get(resource.Handle(rt))
		if !ok {
			Logger().Warn("create channel failed: unknown runtime",
				zap.Uint32("runtime", uint32(rt)))
			return 0
		}

		settingsMu.RLock()
		opts := chanOpts
		settingsMu.RUnlock()

		ch, err := channel.New(r, address, maxQueued, opts...)
		if err != nil {
			Logger().Warn("create channel failed",
				zap.String("addr", address),
				zap.Error(err))
			return 0
		}
		h := channels.Insert(ch)
		if h == 0 {
			ch.Close()
			Logger().Warn("create channel failed: handle table full")
		}
		return ChannelHandle(h)
	})
}

// DestroyTCPClient stops the channel's task and waits for it to exit.
// Requests still queued or in flight resolve as Shutdown. Null, unknown and
// already destroyed handles are ignored.
func DestroyTCPClient(h ChannelHandle) {
	if h == 0 {
		return
	}
	Guard(func() Result {
		channels.Remove(resource.Handle(h))
		return Ok
	})
}

// DestroyAll destroys every channel, then every runtime.
func DestroyAll() {
	var chs []ChannelHandle
	channels.Each(func(h resource.Handle, _ *channel.Channel) bool {
		chs = append(chs, ChannelHandle(h))
		return true
	})
	for _, h := range chs {
		DestroyTCPClient(h)
	}

	var rts []RuntimeHandle
	runtimes.Each(func(h resource.Handle, _ *runtime.Runtime) bool {
		rts = append(rts, RuntimeHandle(h))
		return true
	})
	for _, h := range rts {
		DestroyRuntime(h)
	}
}

// LiveHandles returns the number of runtimes and channels not yet destroyed.
func LiveHandles() (runtimeCount, channelCount int) {
	return runtimes.Len(), channels.Len()
}

// guardHandle runs a constructor, turning a panic into the null handle.
func guardHandle[H ~uint32](fn func() H) (h H) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("recovered panic at boundary", zap.String("panic", fmt.Sprint(r)))
			h = 0
		}
	}()
	return fn()
}
