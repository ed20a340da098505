package protocol

import (
	"encoding/binary"

	"github.com/wippyai/modbus-bridge/errors"
)

// Value is the element type of a write-multiple payload.
type Value interface {
	~bool | ~uint16
}

// WriteMultiple is an owned block of values to write starting at Start.
type WriteMultiple[T Value] struct {
	Values []T
	Start  uint16
}

// NewWriteMultiple copies values into a new payload; later changes to the
// caller's slice are not observed.
func NewWriteMultiple[T Value](start uint16, values []T) WriteMultiple[T] {
	owned := make([]T, len(values))
	copy(owned, values)
	return WriteMultiple[T]{Start: start, Values: owned}
}

// Range returns the address range the payload covers. Payloads longer
// than the address space report a count that fails validation.
func (w WriteMultiple[T]) Range() AddressRange {
	if len(w.Values) > 0xFFFF {
		return AddressRange{Start: w.Start}
	}
	return AddressRange{Start: w.Start, Count: uint16(len(w.Values))}
}

func packCoils(values []bool) []byte {
	out := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

func unpackCoils(data []byte, count uint16) ([]bool, error) {
	if len(data) != (int(count)+7)/8 {
		return nil, errors.New(errors.PhaseResponse, errors.KindBadResponse).
			Detail("%d bytes of bit data for %d values", len(data), count).
			Build()
	}
	out := make([]bool, count)
	for i := range out {
		out[i] = data[i/8]&(1<<(i%8)) != 0
	}
	return out, nil
}

func packRegisters(values []uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(out[2*i:], v)
	}
	return out
}

func unpackRegisters(data []byte, count uint16) ([]uint16, error) {
	if len(data) != 2*int(count) {
		return nil, errors.New(errors.PhaseResponse, errors.KindBadResponse).
			Detail("%d bytes of register data for %d values", len(data), count).
			Build()
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out, nil
}

func coilValue(on bool) uint16 {
	if on {
		return 0xFF00
	}
	return 0x0000
}
