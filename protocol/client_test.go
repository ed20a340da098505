package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/wippyai/modbus-bridge/errors"
	"github.com/wippyai/modbus-bridge/internal/modbustest"
)

func startServer(t *testing.T) *modbustest.Server {
	t.Helper()
	srv, err := modbustest.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func connect(t *testing.T, srv *modbustest.Server) *Client {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	c := NewClient()
	c.Attach(conn)
	return c
}

func TestClient_Reads(t *testing.T) {
	srv := startServer(t)
	srv.SetHoldingRegisters(10, 1, 2, 3)
	srv.SetInputRegisters(0, 0xBEEF)
	srv.SetCoils(3, true, false, true)
	srv.SetDiscreteInputs(0, false, true)
	c := connect(t, srv)

	resp, err := c.Execute(1, ReadHoldingRegisters(AddressRange{Start: 10, Count: 3}))
	if err != nil {
		t.Fatalf("read holding: %v", err)
	}
	if len(resp.Registers) != 3 || resp.Registers[0] != 1 || resp.Registers[2] != 3 {
		t.Fatalf("holding = %v", resp.Registers)
	}

	resp, err = c.Execute(1, ReadInputRegisters(AddressRange{Start: 0, Count: 1}))
	if err != nil || resp.Registers[0] != 0xBEEF {
		t.Fatalf("read input = (%v, %v)", resp.Registers, err)
	}

	resp, err = c.Execute(1, ReadCoils(AddressRange{Start: 3, Count: 3}))
	if err != nil {
		t.Fatalf("read coils: %v", err)
	}
	want := []bool{true, false, true}
	for i, v := range want {
		if resp.Coils[i] != v {
			t.Fatalf("coils = %v, want %v", resp.Coils, want)
		}
	}

	resp, err = c.Execute(1, ReadDiscreteInputs(AddressRange{Start: 0, Count: 2}))
	if err != nil || resp.Coils[0] || !resp.Coils[1] {
		t.Fatalf("read discrete = (%v, %v)", resp.Coils, err)
	}
}

func TestClient_Writes(t *testing.T) {
	srv := startServer(t)
	c := connect(t, srv)

	if _, err := c.Execute(1, WriteSingleCoil(4, true)); err != nil {
		t.Fatalf("write coil: %v", err)
	}
	if !srv.Coil(4) {
		t.Fatal("coil 4 not set")
	}

	if _, err := c.Execute(1, WriteSingleRegister(7, 0x1234)); err != nil {
		t.Fatalf("write register: %v", err)
	}
	if srv.HoldingRegister(7) != 0x1234 {
		t.Fatalf("register 7 = %#x", srv.HoldingRegister(7))
	}

	coils := NewWriteMultiple(20, []bool{true, true, false, true, false, false, false, false, true})
	if _, err := c.Execute(1, WriteMultipleCoils(coils)); err != nil {
		t.Fatalf("write coils: %v", err)
	}
	if !srv.Coil(20) || srv.Coil(22) || !srv.Coil(28) {
		t.Fatal("multiple coils not written")
	}

	regs := NewWriteMultiple(100, []uint16{9, 8, 7})
	if _, err := c.Execute(1, WriteMultipleRegisters(regs)); err != nil {
		t.Fatalf("write registers: %v", err)
	}
	if srv.HoldingRegister(102) != 7 {
		t.Fatalf("register 102 = %d", srv.HoldingRegister(102))
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*modbustest.Server)
		kind  errors.Kind
	}{
		{
			name:  "exception",
			setup: func(s *modbustest.Server) { s.SetException(0x03, 0x02) },
			kind:  errors.KindException,
		},
		{
			name:  "bad frame",
			setup: func(s *modbustest.Server) { s.SetMode(modbustest.Garbage) },
			kind:  errors.KindBadFrame,
		},
		{
			name:  "timeout",
			setup: func(s *modbustest.Server) { s.SetMode(modbustest.Silent) },
			kind:  errors.KindResponseTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := startServer(t)
			tt.setup(srv)
			c := connect(t, srv)
			if tt.kind == errors.KindResponseTimeout {
				c.transport.conn.SetDeadline(time.Now().Add(50 * time.Millisecond))
			}

			_, err := c.Execute(1, ReadHoldingRegisters(AddressRange{Start: 0, Count: 1}))
			kind, ok := errors.KindOf(err)
			if !ok || kind != tt.kind {
				t.Fatalf("Execute error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestClient_ExceptionCode(t *testing.T) {
	srv := startServer(t)
	srv.SetException(0x06, 0x04)
	c := connect(t, srv)

	_, err := c.Execute(1, WriteSingleRegister(0, 1))
	code, ok := errors.ExceptionOf(err)
	if !ok || code != 0x04 {
		t.Fatalf("ExceptionOf(%v) = (%d, %v), want (4, true)", err, code, ok)
	}
}

func TestClient_IOError(t *testing.T) {
	srv := startServer(t)
	c := connect(t, srv)
	c.transport.conn.Close()

	_, err := c.Execute(1, ReadCoils(AddressRange{Start: 0, Count: 1}))
	if kind, _ := errors.KindOf(err); kind != errors.KindIO {
		t.Fatalf("Execute on closed conn = %v, want io", err)
	}
}

func TestClient_NoConnection(t *testing.T) {
	c := NewClient()
	_, err := c.Execute(1, ReadCoils(AddressRange{Start: 0, Count: 1}))
	if kind, _ := errors.KindOf(err); kind != errors.KindNoConnection {
		t.Fatalf("Execute without conn = %v, want no_connection", err)
	}
	if c.Connected() {
		t.Fatal("Connected() on a fresh client")
	}
}
