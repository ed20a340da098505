package protocol

import (
	"fmt"

	"github.com/wippyai/modbus-bridge/errors"
)

// Function is a Modbus function code.
type Function uint8

const (
	FuncReadCoils              Function = 0x01
	FuncReadDiscreteInputs     Function = 0x02
	FuncReadHoldingRegisters   Function = 0x03
	FuncReadInputRegisters     Function = 0x04
	FuncWriteSingleCoil        Function = 0x05
	FuncWriteSingleRegister    Function = 0x06
	FuncWriteMultipleCoils     Function = 0x0F
	FuncWriteMultipleRegisters Function = 0x10
)

// Per-request quantity limits imposed by the Modbus application protocol.
const (
	MaxReadCoils          = 2000
	MaxReadRegisters      = 125
	MaxWriteCoils         = 1968
	MaxWriteRegisters     = 123
	exceptionFunctionMask = 0x80
)

func (f Function) String() string {
	switch f {
	case FuncReadCoils:
		return "read_coils"
	case FuncReadDiscreteInputs:
		return "read_discrete_inputs"
	case FuncReadHoldingRegisters:
		return "read_holding_registers"
	case FuncReadInputRegisters:
		return "read_input_registers"
	case FuncWriteSingleCoil:
		return "write_single_coil"
	case FuncWriteSingleRegister:
		return "write_single_register"
	case FuncWriteMultipleCoils:
		return "write_multiple_coils"
	case FuncWriteMultipleRegisters:
		return "write_multiple_registers"
	default:
		return fmt.Sprintf("function_0x%02X", uint8(f))
	}
}

// limit returns the maximum quantity for f, or 0 for single-value functions.
func (f Function) limit() int {
	switch f {
	case FuncReadCoils, FuncReadDiscreteInputs:
		return MaxReadCoils
	case FuncReadHoldingRegisters, FuncReadInputRegisters:
		return MaxReadRegisters
	case FuncWriteMultipleCoils:
		return MaxWriteCoils
	case FuncWriteMultipleRegisters:
		return MaxWriteRegisters
	default:
		return 0
	}
}

// AddressRange is a contiguous block of addresses starting at Start.
type AddressRange struct {
	Start uint16
	Count uint16
}

// Validate checks that the range is non-empty, fits in the 16-bit address
// space and does not exceed max items.
func (r AddressRange) Validate(max int) error {
	if r.Count == 0 {
		return errors.BadRequest("count of zero")
	}
	if int(r.Start)+int(r.Count) > 0x10000 {
		return errors.BadRequest("start %d + count %d overflows the address space", r.Start, r.Count)
	}
	if max > 0 && int(r.Count) > max {
		return errors.BadRequest("count %d exceeds limit of %d", r.Count, max)
	}
	return nil
}

// Request is one Modbus operation ready to be queued on a channel.
// Exactly the fields relevant to Function are set.
type Request struct {
	Coils     []bool
	Registers []uint16
	Range     AddressRange
	Index     uint16
	Register  uint16
	Function  Function
	Coil      bool
}

// ReadCoils requests a block of coils.
func ReadCoils(r AddressRange) Request {
	return Request{Function: FuncReadCoils, Range: r}
}

// ReadDiscreteInputs requests a block of discrete inputs.
func ReadDiscreteInputs(r AddressRange) Request {
	return Request{Function: FuncReadDiscreteInputs, Range: r}
}

// ReadHoldingRegisters requests a block of holding registers.
func ReadHoldingRegisters(r AddressRange) Request {
	return Request{Function: FuncReadHoldingRegisters, Range: r}
}

// ReadInputRegisters requests a block of input registers.
func ReadInputRegisters(r AddressRange) Request {
	return Request{Function: FuncReadInputRegisters, Range: r}
}

// WriteSingleCoil sets one coil.
func WriteSingleCoil(index uint16, value bool) Request {
	return Request{Function: FuncWriteSingleCoil, Index: index, Coil: value}
}

// WriteSingleRegister sets one holding register.
func WriteSingleRegister(index uint16, value uint16) Request {
	return Request{Function: FuncWriteSingleRegister, Index: index, Register: value}
}

// WriteMultipleCoils sets a block of coils. The payload is used as is.
func WriteMultipleCoils(p WriteMultiple[bool]) Request {
	return Request{
		Function: FuncWriteMultipleCoils,
		Range:    p.Range(),
		Coils:    p.Values,
	}
}

// WriteMultipleRegisters sets a block of holding registers. The payload is used as is.
func WriteMultipleRegisters(p WriteMultiple[uint16]) Request {
	return Request{
		Function:  FuncWriteMultipleRegisters,
		Range:     p.Range(),
		Registers: p.Values,
	}
}

// Validate rejects requests that can never be valid on the wire.
func (r Request) Validate() error {
	switch r.Function {
	case FuncReadCoils, FuncReadDiscreteInputs, FuncReadHoldingRegisters, FuncReadInputRegisters:
		return r.Range.Validate(r.Function.limit())
	case FuncWriteSingleCoil, FuncWriteSingleRegister:
		return nil
	case FuncWriteMultipleCoils:
		if len(r.Coils) > 0xFFFF || int(r.Range.Count) != len(r.Coils) {
			return errors.BadRequest("count %d does not match %d values", r.Range.Count, len(r.Coils))
		}
		return r.Range.Validate(r.Function.limit())
	case FuncWriteMultipleRegisters:
		if len(r.Registers) > 0xFFFF || int(r.Range.Count) != len(r.Registers) {
			return errors.BadRequest("count %d does not match %d values", r.Range.Count, len(r.Registers))
		}
		return r.Range.Validate(r.Function.limit())
	default:
		return errors.BadRequest("unsupported function %s", r.Function)
	}
}

// Response carries the data returned by a read. Writes leave it empty.
type Response struct {
	Coils     []bool
	Registers []uint16
}
