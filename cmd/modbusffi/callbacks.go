package main

/*
#include "modbusffi.h"

static inline void invoke_bits_cb(modbus_bits_cb cb, modbus_result_t r, const bool* v, size_t n, void* ctx) {
    cb(r, v, n, ctx);
}

static inline void invoke_registers_cb(modbus_registers_cb cb, modbus_result_t r, const uint16_t* v, size_t n, void* ctx) {
    cb(r, v, n, ctx);
}

static inline void invoke_result_cb(modbus_result_cb cb, modbus_result_t r, void* ctx) {
    cb(r, ctx);
}
*/
import "C"

import (
	"unsafe"

	"github.com/wippyai/modbus-bridge/bridge"
)

func cResult(r bridge.Result) C.modbus_result_t {
	return C.modbus_result_t{status: C.uint32_t(r.Status), exception: C.uint8_t(r.Exception)}
}

// bitsCallback adapts a C bits callback. A NULL function yields nil so the
// request still runs without a completion.
func bitsCallback(cb C.modbus_bits_cb) bridge.BitsCallback {
	if cb == nil {
		return nil
	}
	return func(res bridge.Result, values []bool, ctx bridge.Context) {
		var p *C.bool
		if len(values) > 0 {
			p = (*C.bool)(unsafe.Pointer(&values[0]))
		}
		C.invoke_bits_cb(cb, cResult(res), p, C.size_t(len(values)), ctx.Pointer())
	}
}

func registersCallback(cb C.modbus_registers_cb) bridge.RegistersCallback {
	if cb == nil {
		return nil
	}
	return func(res bridge.Result, values []uint16, ctx bridge.Context) {
		var p *C.uint16_t
		if len(values) > 0 {
			p = (*C.uint16_t)(unsafe.Pointer(&values[0]))
		}
		C.invoke_registers_cb(cb, cResult(res), p, C.size_t(len(values)), ctx.Pointer())
	}
}

func resultCallback(cb C.modbus_result_cb) bridge.ResultCallback {
	if cb == nil {
		return nil
	}
	return func(res bridge.Result, ctx bridge.Context) {
		C.invoke_result_cb(cb, cResult(res), ctx.Pointer())
	}
}
