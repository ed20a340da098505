package wasmhost

import (
	"context"
	"encoding/binary"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/modbus-bridge/bridge"
	"github.com/wippyai/modbus-bridge/protocol"
)

// ModuleName is the import module name guests use by default.
const ModuleName = "modbus"

// Flavors accepted by create_runtime.
const (
	FlavorMultiThread uint32 = 0
	FlavorBasic       uint32 = 1
)

// Option configures Instantiate.
type Option func(*options)

type options struct {
	name string
}

// WithModuleName registers the host module under name instead of ModuleName.
func WithModuleName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// hostFunc is one exported host function.
type hostFunc struct {
	fn      api.GoModuleFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}

var i32 = api.ValueTypeI32

func i32s(n int) []api.ValueType {
	types := make([]api.ValueType, n)
	for i := range types {
		types[i] = i32
	}
	return types
}

// functions lists the module's exports.
func functions() []hostFunc {
	return []hostFunc{
		{name: "create_runtime", fn: createRuntime, params: i32s(1), results: i32s(1)},
		{name: "destroy_runtime", fn: destroyRuntime, params: i32s(1)},
		{name: "create_tcp_client", fn: createTCPClient, params: i32s(4), results: i32s(1)},
		{name: "destroy_tcp_client", fn: destroyTCPClient, params: i32s(1)},
		{name: "read_coils", fn: readBits(bridge.ReadCoils), params: i32s(7), results: i32s(1)},
		{name: "read_discrete_inputs", fn: readBits(bridge.ReadDiscreteInputs), params: i32s(7), results: i32s(1)},
		{name: "read_holding_registers", fn: readRegisters(bridge.ReadHoldingRegisters), params: i32s(7), results: i32s(1)},
		{name: "read_input_registers", fn: readRegisters(bridge.ReadInputRegisters), params: i32s(7), results: i32s(1)},
		{name: "write_single_coil", fn: writeSingleCoil, params: i32s(6), results: i32s(1)},
		{name: "write_single_register", fn: writeSingleRegister, params: i32s(6), results: i32s(1)},
		{name: "write_multiple_coils", fn: writeMultipleCoils, params: i32s(7), results: i32s(1)},
		{name: "write_multiple_registers", fn: writeMultipleRegisters, params: i32s(7), results: i32s(1)},
	}
}

// Instantiate builds the host module into r. Guests importing it share the
// bridge's process-wide handle table.
func Instantiate(ctx context.Context, r wazero.Runtime, opts ...Option) (api.Module, error) {
	o := options{name: ModuleName}
	for _, opt := range opts {
		opt(&o)
	}

	builder := r.NewHostModuleBuilder(o.name)
	funcs := functions()
	for _, f := range funcs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			Export(f.name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	Logger().Debug("host module instantiated",
		zap.String("module", o.name),
		zap.Int("functions", len(funcs)))
	return mod, nil
}

// pack encodes a result as status | exception<<8.
func pack(res bridge.Result) uint64 {
	return api.EncodeU32(uint32(res.Status) | uint32(res.Exception)<<8)
}

var badRequest = bridge.Result{Status: bridge.StatusBadRequest}

// session decodes (rt, ch, unit, timeout) from the front of stack.
func session(stack []uint64) (bridge.Session, bool) {
	unit := api.DecodeU32(stack[2])
	if unit > 0xFF {
		return bridge.Session{}, false
	}
	return bridge.BuildSession(
		bridge.RuntimeHandle(api.DecodeU32(stack[0])),
		bridge.ChannelHandle(api.DecodeU32(stack[1])),
		uint8(unit),
		api.DecodeU32(stack[3]),
	), true
}

// addressRange decodes (start, count) and rejects values past 16 bits.
func addressRange(start, count uint64) (protocol.AddressRange, bool) {
	s, c := api.DecodeU32(start), api.DecodeU32(count)
	if s > 0xFFFF || c > 0xFFFF {
		return protocol.AddressRange{}, false
	}
	return protocol.AddressRange{Start: uint16(s), Count: uint16(c)}, true
}

// guestBuffer returns n bytes of guest memory at ptr, or false when the
// range does not fit.
func guestBuffer(mod api.Module, ptr, n uint32) ([]byte, bool) {
	mem := mod.Memory()
	if mem == nil {
		return nil, false
	}
	return mem.Read(ptr, n)
}

func createRuntime(_ context.Context, _ api.Module, stack []uint64) {
	var h bridge.RuntimeHandle
	switch api.DecodeU32(stack[0]) {
	case FlavorMultiThread:
		h = bridge.CreateMultithreadedRuntime()
	case FlavorBasic:
		h = bridge.CreateBasicRuntime()
	}
	stack[0] = api.EncodeU32(uint32(h))
}

func destroyRuntime(_ context.Context, _ api.Module, stack []uint64) {
	bridge.DestroyRuntime(bridge.RuntimeHandle(api.DecodeU32(stack[0])))
}

func createTCPClient(_ context.Context, mod api.Module, stack []uint64) {
	rt := bridge.RuntimeHandle(api.DecodeU32(stack[0]))
	addr, ok := guestBuffer(mod, api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	if !ok {
		Logger().Debug("create_tcp_client: address out of guest memory")
		stack[0] = 0
		return
	}
	maxQueued := int(api.DecodeI32(stack[3]))

	h := bridge.CreateTCPClient(rt, string(addr), maxQueued)
	stack[0] = api.EncodeU32(uint32(h))
}

func destroyTCPClient(_ context.Context, _ api.Module, stack []uint64) {
	bridge.DestroyTCPClient(bridge.ChannelHandle(api.DecodeU32(stack[0])))
}

type bitsRead func(bridge.Session, protocol.AddressRange) ([]bool, bridge.Result)

type registersRead func(bridge.Session, protocol.AddressRange) ([]uint16, bridge.Result)

// readBits adapts a bit read: (rt, ch, unit, timeout, start, count, out_ptr).
func readBits(read bitsRead) api.GoModuleFunc {
	return func(_ context.Context, mod api.Module, stack []uint64) {
		res := bridge.Guard(func() bridge.Result {
			s, ok := session(stack)
			if !ok {
				return badRequest
			}
			r, ok := addressRange(stack[4], stack[5])
			if !ok {
				return badRequest
			}
			out, ok := guestBuffer(mod, api.DecodeU32(stack[6]), uint32(r.Count))
			if !ok {
				return badRequest
			}

			values, res := read(s, r)
			if !res.IsOk() {
				return res
			}
			for i, v := range values {
				out[i] = 0
				if v {
					out[i] = 1
				}
			}
			return res
		})
		stack[0] = pack(res)
	}
}

// readRegisters adapts a register read: (rt, ch, unit, timeout, start, count, out_ptr).
func readRegisters(read registersRead) api.GoModuleFunc {
	return func(_ context.Context, mod api.Module, stack []uint64) {
		res := bridge.Guard(func() bridge.Result {
			s, ok := session(stack)
			if !ok {
				return badRequest
			}
			r, ok := addressRange(stack[4], stack[5])
			if !ok {
				return badRequest
			}
			out, ok := guestBuffer(mod, api.DecodeU32(stack[6]), 2*uint32(r.Count))
			if !ok {
				return badRequest
			}

			values, res := read(s, r)
			if !res.IsOk() {
				return res
			}
			for i, v := range values {
				binary.LittleEndian.PutUint16(out[2*i:], v)
			}
			return res
		})
		stack[0] = pack(res)
	}
}

// writeSingleCoil: (rt, ch, unit, timeout, index, value).
func writeSingleCoil(_ context.Context, _ api.Module, stack []uint64) {
	res := bridge.Guard(func() bridge.Result {
		s, ok := session(stack)
		index := api.DecodeU32(stack[4])
		if !ok || index > 0xFFFF {
			return badRequest
		}
		return bridge.WriteSingleCoil(s, uint16(index), api.DecodeU32(stack[5]) != 0)
	})
	stack[0] = pack(res)
}

// writeSingleRegister: (rt, ch, unit, timeout, index, value).
func writeSingleRegister(_ context.Context, _ api.Module, stack []uint64) {
	res := bridge.Guard(func() bridge.Result {
		s, ok := session(stack)
		index, value := api.DecodeU32(stack[4]), api.DecodeU32(stack[5])
		if !ok || index > 0xFFFF || value > 0xFFFF {
			return badRequest
		}
		return bridge.WriteSingleRegister(s, uint16(index), uint16(value))
	})
	stack[0] = pack(res)
}

// writeMultipleCoils: (rt, ch, unit, timeout, start, count, in_ptr).
func writeMultipleCoils(_ context.Context, mod api.Module, stack []uint64) {
	res := bridge.Guard(func() bridge.Result {
		s, ok := session(stack)
		if !ok {
			return badRequest
		}
		r, ok := addressRange(stack[4], stack[5])
		if !ok {
			return badRequest
		}
		in, ok := guestBuffer(mod, api.DecodeU32(stack[6]), uint32(r.Count))
		if !ok {
			return badRequest
		}

		values := make([]bool, len(in))
		for i, b := range in {
			values[i] = b != 0
		}
		return bridge.WriteMultipleCoils(s, protocol.NewWriteMultiple(r.Start, values))
	})
	stack[0] = pack(res)
}

// writeMultipleRegisters: (rt, ch, unit, timeout, start, count, in_ptr).
func writeMultipleRegisters(_ context.Context, mod api.Module, stack []uint64) {
	res := bridge.Guard(func() bridge.Result {
		s, ok := session(stack)
		if !ok {
			return badRequest
		}
		r, ok := addressRange(stack[4], stack[5])
		if !ok {
			return badRequest
		}
		in, ok := guestBuffer(mod, api.DecodeU32(stack[6]), 2*uint32(r.Count))
		if !ok {
			return badRequest
		}

		values := make([]uint16, r.Count)
		for i := range values {
			values[i] = binary.LittleEndian.Uint16(in[2*i:])
		}
		return bridge.WriteMultipleRegisters(s, protocol.NewWriteMultiple(r.Start, values))
	})
	stack[0] = pack(res)
}
