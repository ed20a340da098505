package bridge

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/modbus-bridge/errors"
	"github.com/wippyai/modbus-bridge/protocol"
	"github.com/wippyai/modbus-bridge/resource"
	"github.com/wippyai/modbus-bridge/runtime"
)

// Callback types for asynchronous requests. They run on a worker of the
// session's runtime, or on the calling goroutine when the request could not
// be scheduled, and never concurrently with themselves for one request.
type (
	BitsCallback      func(Result, []bool, Context)
	RegistersCallback func(Result, []uint16, Context)
	ResultCallback    func(Result, Context)
)

// submit resolves the session's handles and queues req on its channel.
// The runtime is returned whenever it resolved, even if queueing failed.
func submit(s Session, req protocol.Request) (*runtime.Runtime, *runtime.Future[protocol.Response], error) {
	rt, ok := runtimes.Get(resource.Handle(s.Runtime))
	if !ok {
		return nil, nil, errors.New(errors.PhaseBoundary, errors.KindShutdown).
			Value(uint32(s.Runtime)).
			Detail("runtime handle is not live").
			Build()
	}
	ch, ok := channels.Get(resource.Handle(s.Channel))
	if !ok {
		return rt, nil, errors.New(errors.PhaseBoundary, errors.KindShutdown).
			Value(uint32(s.Channel)).
			Detail("channel handle is not live").
			Build()
	}

	timeout := time.Duration(s.TimeoutMs) * time.Millisecond
	f, err := ch.Submit(s.UnitID, timeout, req)
	return rt, f, err
}

// call runs req and blocks until it completes or the session's runtime is
// torn down.
func call(s Session, req protocol.Request) (protocol.Response, Result) {
	var resp protocol.Response
	res := Guard(func() Result {
		rt, f, err := submit(s, req)
		if err != nil {
			return ResultFromError(err)
		}
		resp, err = f.Wait(rt.Done())
		return ResultFromError(err)
	})
	if !res.IsOk() {
		return protocol.Response{}, res
	}
	return resp, res
}

// callAsync runs req and hands the outcome to deliver exactly once. A nil
// deliver still executes the request.
func callAsync[T any](s Session, req protocol.Request, extract func(protocol.Response) T, deliver func(Result, T)) {
	if deliver == nil {
		deliver = func(Result, T) {}
	}

	scheduled := false
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("recovered panic at boundary", zap.String("panic", fmt.Sprint(r)))
			if !scheduled {
				var zero T
				deliver(Result{Status: StatusInternalError}, zero)
			}
		}
	}()

	rt, f, err := submit(s, req)
	if err != nil {
		f = runtime.NewFuture[protocol.Response]()
		f.Fail(err)
	}

	scheduled = true
	f.OnComplete(rt, func(resp protocol.Response, err error) {
		var value T
		res := ResultFromError(err)
		if res.IsOk() {
			value = extract(resp)
		}
		deliver(res, value)
	})
}

func coils(r protocol.Response) []bool { return r.Coils }

func registers(r protocol.Response) []uint16 { return r.Registers }

func nothing(protocol.Response) struct{} { return struct{}{} }

func bitsDelivery(cb BitsCallback, ctx Context) func(Result, []bool) {
	if cb == nil {
		return nil
	}
	g := newDeliveryGuard()
	return func(res Result, values []bool) {
		g.deliver(ctx)
		cb(res, values, ctx)
	}
}

func registersDelivery(cb RegistersCallback, ctx Context) func(Result, []uint16) {
	if cb == nil {
		return nil
	}
	g := newDeliveryGuard()
	return func(res Result, values []uint16) {
		g.deliver(ctx)
		cb(res, values, ctx)
	}
}

func resultDelivery(cb ResultCallback, ctx Context) func(Result, struct{}) {
	if cb == nil {
		return nil
	}
	g := newDeliveryGuard()
	return func(res Result, _ struct{}) {
		g.deliver(ctx)
		cb(res, ctx)
	}
}

// ReadCoils reads r.Count coils starting at r.Start.
func ReadCoils(s Session, r protocol.AddressRange) ([]bool, Result) {
	resp, res := call(s, protocol.ReadCoils(r))
	return resp.Coils, res
}

// ReadDiscreteInputs reads r.Count discrete inputs starting at r.Start.
func ReadDiscreteInputs(s Session, r protocol.AddressRange) ([]bool, Result) {
	resp, res := call(s, protocol.ReadDiscreteInputs(r))
	return resp.Coils, res
}

// ReadHoldingRegisters reads r.Count holding registers starting at r.Start.
func ReadHoldingRegisters(s Session, r protocol.AddressRange) ([]uint16, Result) {
	resp, res := call(s, protocol.ReadHoldingRegisters(r))
	return resp.Registers, res
}

// ReadInputRegisters reads r.Count input registers starting at r.Start.
func ReadInputRegisters(s Session, r protocol.AddressRange) ([]uint16, Result) {
	resp, res := call(s, protocol.ReadInputRegisters(r))
	return resp.Registers, res
}

// WriteSingleCoil sets one coil.
func WriteSingleCoil(s Session, index uint16, value bool) Result {
	_, res := call(s, protocol.WriteSingleCoil(index, value))
	return res
}

// WriteSingleRegister sets one holding register.
func WriteSingleRegister(s Session, index uint16, value uint16) Result {
	_, res := call(s, protocol.WriteSingleRegister(index, value))
	return res
}

// WriteMultipleCoils sets a block of coils.
func WriteMultipleCoils(s Session, p protocol.WriteMultiple[bool]) Result {
	_, res := call(s, protocol.WriteMultipleCoils(p))
	return res
}

// WriteMultipleRegisters sets a block of holding registers.
func WriteMultipleRegisters(s Session, p protocol.WriteMultiple[uint16]) Result {
	_, res := call(s, protocol.WriteMultipleRegisters(p))
	return res
}

// ReadCoilsCb is the asynchronous form of ReadCoils.
func ReadCoilsCb(s Session, r protocol.AddressRange, cb BitsCallback, ctx Context) {
	callAsync(s, protocol.ReadCoils(r), coils, bitsDelivery(cb, ctx))
}

// ReadDiscreteInputsCb is the asynchronous form of ReadDiscreteInputs.
func ReadDiscreteInputsCb(s Session, r protocol.AddressRange, cb BitsCallback, ctx Context) {
	callAsync(s, protocol.ReadDiscreteInputs(r), coils, bitsDelivery(cb, ctx))
}

// ReadHoldingRegistersCb is the asynchronous form of ReadHoldingRegisters.
func ReadHoldingRegistersCb(s Session, r protocol.AddressRange, cb RegistersCallback, ctx Context) {
	callAsync(s, protocol.ReadHoldingRegisters(r), registers, registersDelivery(cb, ctx))
}

// ReadInputRegistersCb is the asynchronous form of ReadInputRegisters.
func ReadInputRegistersCb(s Session, r protocol.AddressRange, cb RegistersCallback, ctx Context) {
	callAsync(s, protocol.ReadInputRegisters(r), registers, registersDelivery(cb, ctx))
}

// WriteSingleCoilCb is the asynchronous form of WriteSingleCoil.
func WriteSingleCoilCb(s Session, index uint16, value bool, cb ResultCallback, ctx Context) {
	callAsync(s, protocol.WriteSingleCoil(index, value), nothing, resultDelivery(cb, ctx))
}

// WriteSingleRegisterCb is the asynchronous form of WriteSingleRegister.
func WriteSingleRegisterCb(s Session, index uint16, value uint16, cb ResultCallback, ctx Context) {
	callAsync(s, protocol.WriteSingleRegister(index, value), nothing, resultDelivery(cb, ctx))
}

// WriteMultipleCoilsCb is the asynchronous form of WriteMultipleCoils.
func WriteMultipleCoilsCb(s Session, p protocol.WriteMultiple[bool], cb ResultCallback, ctx Context) {
	callAsync(s, protocol.WriteMultipleCoils(p), nothing, resultDelivery(cb, ctx))
}

// WriteMultipleRegistersCb is the asynchronous form of WriteMultipleRegisters.
func WriteMultipleRegistersCb(s Session, p protocol.WriteMultiple[uint16], cb ResultCallback, ctx Context) {
	callAsync(s, protocol.WriteMultipleRegisters(p), nothing, resultDelivery(cb, ctx))
}
