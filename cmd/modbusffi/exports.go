// Command modbusffi builds the bridge as a C shared library:
//
//	go build -buildmode=c-shared -o libmodbusffi.so ./cmd/modbusffi
//
// The generated header declares the exports below; modbusffi.h declares the
// types they use. Logging is configured from the environment when the
// library loads (see package config).
package main

/*
#include "modbusffi.h"
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/wippyai/modbus-bridge/bridge"
	"github.com/wippyai/modbus-bridge/channel"
	"github.com/wippyai/modbus-bridge/config"
	"github.com/wippyai/modbus-bridge/protocol"
)

func init() {
	cfg := config.Load()
	bridge.Configure(cfg, config.NewLogger(os.Stderr, cfg))
}

func main() {}

var nullBuffer = bridge.Result{Status: bridge.StatusBadRequest}

// queueDepth converts a C queue depth, mapping values no channel accepts to 0.
func queueDepth(n uint64) int {
	if n > channel.MaxQueuedRequests {
		return 0
	}
	return int(n)
}

// goSession copies a C session. NULL reads as a session of null handles,
// so requests made with it fail with Shutdown.
func goSession(s *C.modbus_session_t) bridge.Session {
	if s == nil {
		return bridge.Session{}
	}
	return bridge.BuildSession(
		bridge.RuntimeHandle(s.runtime),
		bridge.ChannelHandle(s.channel),
		uint8(s.unit_id),
		uint32(s.timeout_ms),
	)
}

func rangeOf(start, count C.uint16_t) protocol.AddressRange {
	return protocol.AddressRange{Start: uint16(start), Count: uint16(count)}
}

//export create_multithreaded_runtime
func create_multithreaded_runtime() C.modbus_runtime_t {
	return C.modbus_runtime_t(bridge.CreateMultithreadedRuntime())
}

//export create_basic_runtime
func create_basic_runtime() C.modbus_runtime_t {
	return C.modbus_runtime_t(bridge.CreateBasicRuntime())
}

//export destroy_runtime
func destroy_runtime(rt C.modbus_runtime_t) {
	bridge.DestroyRuntime(bridge.RuntimeHandle(rt))
}

//export create_tcp_client
func create_tcp_client(rt C.modbus_runtime_t, address *C.char, maxQueued C.size_t) C.modbus_channel_t {
	if address == nil {
		return 0
	}
	h := bridge.CreateTCPClient(bridge.RuntimeHandle(rt), C.GoString(address), queueDepth(uint64(maxQueued)))
	return C.modbus_channel_t(h)
}

//export destroy_tcp_client
func destroy_tcp_client(ch C.modbus_channel_t) {
	bridge.DestroyTCPClient(bridge.ChannelHandle(ch))
}

//export destroy_all
func destroy_all() {
	bridge.DestroyAll()
}

//export build_session
func build_session(rt C.modbus_runtime_t, ch C.modbus_channel_t, unitID C.uint8_t, timeoutMs C.uint32_t) C.modbus_session_t {
	return C.modbus_session_t{
		runtime:    rt,
		channel:    ch,
		unit_id:    unitID,
		timeout_ms: timeoutMs,
	}
}

//export read_coils
func read_coils(s *C.modbus_session_t, start, count C.uint16_t, out *C.bool) C.modbus_result_t {
	return readBits(s, start, count, out, bridge.ReadCoils)
}

//export read_discrete_inputs
func read_discrete_inputs(s *C.modbus_session_t, start, count C.uint16_t, out *C.bool) C.modbus_result_t {
	return readBits(s, start, count, out, bridge.ReadDiscreteInputs)
}

//export read_holding_registers
func read_holding_registers(s *C.modbus_session_t, start, count C.uint16_t, out *C.uint16_t) C.modbus_result_t {
	return readRegisters(s, start, count, out, bridge.ReadHoldingRegisters)
}

//export read_input_registers
func read_input_registers(s *C.modbus_session_t, start, count C.uint16_t, out *C.uint16_t) C.modbus_result_t {
	return readRegisters(s, start, count, out, bridge.ReadInputRegisters)
}

//export write_single_coil
func write_single_coil(s *C.modbus_session_t, index C.uint16_t, value C.bool) C.modbus_result_t {
	return cResult(bridge.Guard(func() bridge.Result {
		session := goSession(s)
		return bridge.WriteSingleCoil(session, uint16(index), bool(value))
	}))
}

//export write_single_register
func write_single_register(s *C.modbus_session_t, index, value C.uint16_t) C.modbus_result_t {
	return cResult(bridge.Guard(func() bridge.Result {
		session := goSession(s)
		return bridge.WriteSingleRegister(session, uint16(index), uint16(value))
	}))
}

//export write_multiple_coils
func write_multiple_coils(s *C.modbus_session_t, start, count C.uint16_t, values *C.bool) C.modbus_result_t {
	return cResult(bridge.Guard(func() bridge.Result {
		session := goSession(s)
		p := bridge.ToWriteMultiple(uint16(start), (*bool)(unsafe.Pointer(values)), uint16(count))
		return bridge.WriteMultipleCoils(session, p)
	}))
}

//export write_multiple_registers
func write_multiple_registers(s *C.modbus_session_t, start, count C.uint16_t, values *C.uint16_t) C.modbus_result_t {
	return cResult(bridge.Guard(func() bridge.Result {
		session := goSession(s)
		p := bridge.ToWriteMultiple(uint16(start), (*uint16)(unsafe.Pointer(values)), uint16(count))
		return bridge.WriteMultipleRegisters(session, p)
	}))
}

//export read_coils_cb
func read_coils_cb(s *C.modbus_session_t, start, count C.uint16_t, cb C.modbus_bits_cb, ctx unsafe.Pointer) {
	session := goSession(s)
	bridge.ReadCoilsCb(session, rangeOf(start, count), bitsCallback(cb), bridge.AssertThreadSafe(ctx))
}

//export read_discrete_inputs_cb
func read_discrete_inputs_cb(s *C.modbus_session_t, start, count C.uint16_t, cb C.modbus_bits_cb, ctx unsafe.Pointer) {
	session := goSession(s)
	bridge.ReadDiscreteInputsCb(session, rangeOf(start, count), bitsCallback(cb), bridge.AssertThreadSafe(ctx))
}

//export read_holding_registers_cb
func read_holding_registers_cb(s *C.modbus_session_t, start, count C.uint16_t, cb C.modbus_registers_cb, ctx unsafe.Pointer) {
	session := goSession(s)
	bridge.ReadHoldingRegistersCb(session, rangeOf(start, count), registersCallback(cb), bridge.AssertThreadSafe(ctx))
}

//export read_input_registers_cb
func read_input_registers_cb(s *C.modbus_session_t, start, count C.uint16_t, cb C.modbus_registers_cb, ctx unsafe.Pointer) {
	session := goSession(s)
	bridge.ReadInputRegistersCb(session, rangeOf(start, count), registersCallback(cb), bridge.AssertThreadSafe(ctx))
}

//export write_single_coil_cb
func write_single_coil_cb(s *C.modbus_session_t, index C.uint16_t, value C.bool, cb C.modbus_result_cb, ctx unsafe.Pointer) {
	session := goSession(s)
	bridge.WriteSingleCoilCb(session, uint16(index), bool(value), resultCallback(cb), bridge.AssertThreadSafe(ctx))
}

//export write_single_register_cb
func write_single_register_cb(s *C.modbus_session_t, index, value C.uint16_t, cb C.modbus_result_cb, ctx unsafe.Pointer) {
	session := goSession(s)
	bridge.WriteSingleRegisterCb(session, uint16(index), uint16(value), resultCallback(cb), bridge.AssertThreadSafe(ctx))
}

//export write_multiple_coils_cb
func write_multiple_coils_cb(s *C.modbus_session_t, start, count C.uint16_t, values *C.bool, cb C.modbus_result_cb, ctx unsafe.Pointer) {
	session := goSession(s)
	p := bridge.ToWriteMultiple(uint16(start), (*bool)(unsafe.Pointer(values)), uint16(count))
	bridge.WriteMultipleCoilsCb(session, p, resultCallback(cb), bridge.AssertThreadSafe(ctx))
}

//export write_multiple_registers_cb
func write_multiple_registers_cb(s *C.modbus_session_t, start, count C.uint16_t, values *C.uint16_t, cb C.modbus_result_cb, ctx unsafe.Pointer) {
	session := goSession(s)
	p := bridge.ToWriteMultiple(uint16(start), (*uint16)(unsafe.Pointer(values)), uint16(count))
	bridge.WriteMultipleRegistersCb(session, p, resultCallback(cb), bridge.AssertThreadSafe(ctx))
}

type bitsRead func(bridge.Session, protocol.AddressRange) ([]bool, bridge.Result)

type registersRead func(bridge.Session, protocol.AddressRange) ([]uint16, bridge.Result)

// readBits runs read and copies the values into out, which must hold count
// elements. out is untouched unless the read succeeds.
func readBits(s *C.modbus_session_t, start, count C.uint16_t, out *C.bool, read bitsRead) C.modbus_result_t {
	return cResult(bridge.Guard(func() bridge.Result {
		if out == nil && count > 0 {
			return nullBuffer
		}
		session := goSession(s)
		values, res := read(session, rangeOf(start, count))
		if res.IsOk() {
			copy(unsafe.Slice((*bool)(unsafe.Pointer(out)), len(values)), values)
		}
		return res
	}))
}

func readRegisters(s *C.modbus_session_t, start, count C.uint16_t, out *C.uint16_t, read registersRead) C.modbus_result_t {
	return cResult(bridge.Guard(func() bridge.Result {
		if out == nil && count > 0 {
			return nullBuffer
		}
		session := goSession(s)
		values, res := read(session, rangeOf(start, count))
		if res.IsOk() {
			copy(unsafe.Slice((*uint16)(unsafe.Pointer(out)), len(values)), values)
		}
		return res
	}))
}
