package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/wippyai/modbus-bridge/config"
	"github.com/wippyai/modbus-bridge/internal/modbustest"
	"github.com/wippyai/modbus-bridge/protocol"
	"github.com/wippyai/modbus-bridge/resource"
	"github.com/wippyai/modbus-bridge/runtime"
)

func newRuntime(t *testing.T) RuntimeHandle {
	t.Helper()
	h := CreateRuntimeWithConfig(runtime.Config{Flavor: runtime.MultiThread, Workers: 2})
	if h == 0 {
		t.Fatal("create runtime returned null handle")
	}
	t.Cleanup(func() { DestroyRuntime(h) })
	return h
}

func newChannel(t *testing.T, rt RuntimeHandle, addr string, maxQueued int) ChannelHandle {
	t.Helper()
	h := CreateTCPClient(rt, addr, maxQueued)
	if h == 0 {
		t.Fatalf("create channel to %q returned null handle", addr)
	}
	t.Cleanup(func() { DestroyTCPClient(h) })
	return h
}

func startServer(t *testing.T) *modbustest.Server {
	t.Helper()
	srv, err := modbustest.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateRuntime(t *testing.T) {
	tests := []struct {
		name   string
		create func() RuntimeHandle
		flavor runtime.Flavor
	}{
		{"multithreaded", CreateMultithreadedRuntime, runtime.MultiThread},
		{"basic", CreateBasicRuntime, runtime.CurrentThread},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.create()
			if h == 0 {
				t.Fatal("null handle")
			}
			defer DestroyRuntime(h)

			rt, ok := runtimes.Get(resource.Handle(h))
			if !ok {
				t.Fatal("handle does not resolve")
			}
			if rt.Flavor() != tt.flavor {
				t.Fatalf("flavor = %v, want %v", rt.Flavor(), tt.flavor)
			}
		})
	}
}

func TestCreateRuntime_InvalidConfig(t *testing.T) {
	before, _ := LiveHandles()
	if h := CreateRuntimeWithConfig(runtime.Config{Flavor: runtime.MultiThread, Workers: -1}); h != 0 {
		DestroyRuntime(h)
		t.Fatal("negative worker count produced a runtime")
	}
	if after, _ := LiveHandles(); after != before {
		t.Fatalf("live runtimes %d -> %d", before, after)
	}
}

func TestDestroy_NullAndTwice(t *testing.T) {
	DestroyRuntime(0)
	DestroyTCPClient(0)

	rt := CreateBasicRuntime()
	ch := CreateTCPClient(rt, "127.0.0.1:1502", 4)
	if rt == 0 || ch == 0 {
		t.Fatal("create failed")
	}

	DestroyTCPClient(ch)
	DestroyTCPClient(ch)
	DestroyRuntime(rt)
	DestroyRuntime(rt)
}

func TestDestroy_WrongKindIgnored(t *testing.T) {
	rt := newRuntime(t)

	DestroyTCPClient(ChannelHandle(rt))
	if _, ok := runtimes.Get(resource.Handle(rt)); !ok {
		t.Fatal("destroying a runtime handle as a channel removed it")
	}
}

func TestCreateTCPClient_Invalid(t *testing.T) {
	rt := newRuntime(t)

	tests := []struct {
		name      string
		rt        RuntimeHandle
		addr      string
		maxQueued int
	}{
		{"not an address", rt, "not-an-address", 8},
		{"hostname", rt, "localhost:502", 8},
		{"missing port", rt, "127.0.0.1", 8},
		{"empty", rt, "", 8},
		{"zero queue", rt, "127.0.0.1:502", 0},
		{"negative queue", rt, "127.0.0.1:502", -1},
		{"null runtime", 0, "127.0.0.1:502", 8},
		{"unknown runtime", RuntimeHandle(0x7F000123), "127.0.0.1:502", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, before := LiveHandles()
			if h := CreateTCPClient(tt.rt, tt.addr, tt.maxQueued); h != 0 {
				DestroyTCPClient(h)
				t.Fatalf("CreateTCPClient(%q, %d) = %d, want 0", tt.addr, tt.maxQueued, h)
			}
			if _, after := LiveHandles(); after != before {
				t.Fatalf("live channels %d -> %d", before, after)
			}
		})
	}
}

func TestCreateTCPClient_IPv6(t *testing.T) {
	rt := newRuntime(t)
	newChannel(t, rt, "[::1]:1502", 4)
}

func TestBuildSession(t *testing.T) {
	s := BuildSession(RuntimeHandle(3), ChannelHandle(4), 5, 1000)
	if s.Runtime != 3 || s.Channel != 4 || s.UnitID != 5 || s.TimeoutMs != 1000 {
		t.Fatalf("session = %+v", s)
	}
}

func TestStaleChannelHandle(t *testing.T) {
	srv := startServer(t)
	rt := newRuntime(t)

	old := CreateTCPClient(rt, srv.Addr().String(), 4)
	DestroyTCPClient(old)
	fresh := newChannel(t, rt, srv.Addr().String(), 4)
	if fresh == old {
		t.Fatal("handle reused without a new generation")
	}

	_, res := ReadCoils(BuildSession(rt, old, 1, 500), protocol.AddressRange{Count: 1})
	if res.Status != StatusShutdown {
		t.Fatalf("request on destroyed channel = %v, want shutdown", res)
	}
	if _, res := ReadCoils(BuildSession(rt, fresh, 1, 500), protocol.AddressRange{Count: 1}); !res.IsOk() {
		t.Fatalf("request on new channel = %v", res)
	}
}

func TestChannelOutlivedByRuntime(t *testing.T) {
	srv := startServer(t)
	rt := CreateMultithreadedRuntime()
	ch := CreateTCPClient(rt, srv.Addr().String(), 4)
	defer DestroyTCPClient(ch)

	other := newRuntime(t)
	DestroyRuntime(rt)

	done := make(chan Result, 1)
	go func() {
		_, res := ReadHoldingRegisters(BuildSession(other, ch, 1, 5000), protocol.AddressRange{Count: 1})
		done <- res
	}()

	select {
	case res := <-done:
		if res.Status != StatusShutdown {
			t.Fatalf("result = %v, want shutdown", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("request on a channel of a destroyed runtime hung")
	}
}

func TestConcurrentCreateDestroy(t *testing.T) {
	rt := newRuntime(t)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			for range 10 {
				h := CreateTCPClient(rt, "127.0.0.1:1502", 2)
				if h == 0 {
					t.Error("create failed")
					return
				}
				DestroyTCPClient(h)
			}
		})
	}
	wg.Wait()
}

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { Configure(config.Config{}, nil) })

	Configure(config.Config{Workers: 3}, nil)

	h := CreateMultithreadedRuntime()
	if h == 0 {
		t.Fatal("null handle")
	}
	defer DestroyRuntime(h)

	rt, _ := runtimes.Get(resource.Handle(h))
	if rt.Workers() != 3 {
		t.Fatalf("workers = %d, want 3", rt.Workers())
	}
}

func TestDestroyAll(t *testing.T) {
	rt := CreateBasicRuntime()
	CreateTCPClient(rt, "127.0.0.1:1502", 2)
	CreateTCPClient(rt, "127.0.0.1:1503", 2)

	DestroyAll()

	if r, c := LiveHandles(); r != 0 || c != 0 {
		t.Fatalf("live handles after DestroyAll: %d runtimes, %d channels", r, c)
	}
}
