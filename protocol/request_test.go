package protocol

import (
	"testing"

	"github.com/wippyai/modbus-bridge/errors"
)

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"read coils ok", ReadCoils(AddressRange{Start: 0, Count: MaxReadCoils}), false},
		{"read coils zero count", ReadCoils(AddressRange{Start: 0, Count: 0}), true},
		{"read coils over limit", ReadCoils(AddressRange{Start: 0, Count: MaxReadCoils + 1}), true},
		{"discrete inputs over limit", ReadDiscreteInputs(AddressRange{Count: MaxReadCoils + 1}), true},
		{"holding ok", ReadHoldingRegisters(AddressRange{Start: 1, Count: MaxReadRegisters}), false},
		{"holding over limit", ReadHoldingRegisters(AddressRange{Count: MaxReadRegisters + 1}), true},
		{"input over limit", ReadInputRegisters(AddressRange{Count: 126}), true},
		{"last address", ReadHoldingRegisters(AddressRange{Start: 0xFFFF, Count: 1}), false},
		{"range overflow", ReadHoldingRegisters(AddressRange{Start: 0xFFFF, Count: 2}), true},
		{"single coil", WriteSingleCoil(0xFFFF, true), false},
		{"single register", WriteSingleRegister(0, 0xFFFF), false},
		{"multiple coils ok", WriteMultipleCoils(NewWriteMultiple(0, make([]bool, MaxWriteCoils))), false},
		{"multiple coils over limit", WriteMultipleCoils(NewWriteMultiple(0, make([]bool, MaxWriteCoils+1))), true},
		{"multiple coils empty", WriteMultipleCoils(NewWriteMultiple[bool](0, nil)), true},
		{"multiple registers ok", WriteMultipleRegisters(NewWriteMultiple(10, []uint16{1, 2})), false},
		{"multiple registers over limit", WriteMultipleRegisters(NewWriteMultiple(0, make([]uint16, MaxWriteRegisters+1))), true},
		{"multiple registers overflow", WriteMultipleRegisters(NewWriteMultiple(0xFFFF, []uint16{1, 2})), true},
		{"unknown function", Request{Function: 0x2B}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if kind, _ := errors.KindOf(err); kind != errors.KindBadRequest {
					t.Fatalf("kind = %q, want bad_request", kind)
				}
			}
		})
	}
}

func TestNewWriteMultiple_Copies(t *testing.T) {
	src := []uint16{1, 2, 3}
	p := NewWriteMultiple(5, src)
	src[0] = 99

	if p.Values[0] != 1 {
		t.Fatal("payload aliases the caller's slice")
	}
	if r := p.Range(); r.Start != 5 || r.Count != 3 {
		t.Fatalf("Range() = %+v", r)
	}
}

func TestCoilPacking(t *testing.T) {
	values := []bool{true, false, true, true, false, false, false, false, false, true}
	packed := packCoils(values)
	if len(packed) != 2 || packed[0] != 0x0D || packed[1] != 0x02 {
		t.Fatalf("packCoils = %#v", packed)
	}

	unpacked, err := unpackCoils(packed, uint16(len(values)))
	if err != nil {
		t.Fatalf("unpackCoils: %v", err)
	}
	for i := range values {
		if unpacked[i] != values[i] {
			t.Fatalf("unpackCoils[%d] = %v, want %v", i, unpacked[i], values[i])
		}
	}

	if _, err := unpackCoils(packed, 20); err == nil {
		t.Fatal("unpackCoils accepted a short buffer")
	}
}

func TestRegisterPacking(t *testing.T) {
	packed := packRegisters([]uint16{0x0102, 0xA0B0})
	if len(packed) != 4 || packed[0] != 0x01 || packed[3] != 0xB0 {
		t.Fatalf("packRegisters = %#v", packed)
	}
	if _, err := unpackRegisters(packed[:3], 2); err == nil {
		t.Fatal("unpackRegisters accepted an odd buffer")
	}
}

func TestFunction_String(t *testing.T) {
	if FuncReadCoils.String() != "read_coils" {
		t.Fatalf("String() = %q", FuncReadCoils.String())
	}
	if Function(0x2B).String() != "function_0x2B" {
		t.Fatalf("String() = %q", Function(0x2B).String())
	}
}
