package bridge

import (
	"unsafe"

	"github.com/wippyai/modbus-bridge/protocol"
)

// ToWriteMultiple copies count elements starting at values into an owned
// payload for a write starting at start. Order is preserved exactly.
//
// values must point to at least count readable elements; that is not
// checked. With count 0 values is never dereferenced, and a nil values
// yields an empty payload whatever count says, which later fails
// validation as BadRequest.
func ToWriteMultiple[T protocol.Value](start uint16, values *T, count uint16) protocol.WriteMultiple[T] {
	if count == 0 || values == nil {
		return protocol.NewWriteMultiple[T](start, nil)
	}
	return protocol.NewWriteMultiple(start, unsafe.Slice(values, count))
}
