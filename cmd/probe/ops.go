package main

import (
	"fmt"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/modbus-bridge/bridge"
	"github.com/wippyai/modbus-bridge/protocol"
)

type paramInfo struct {
	witType wit.Type
	name    string
}

// operation is one request the probe can issue.
type operation struct {
	run    func(s bridge.Session, args []any) (string, bridge.Result)
	name   string
	help   string
	params []paramInfo
}

var (
	u16Param       = wit.U16{}
	boolParam      = wit.Bool{}
	coilsParam     = &wit.TypeDef{Kind: &wit.List{Type: wit.Bool{}}}
	registersParam = &wit.TypeDef{Kind: &wit.List{Type: wit.U16{}}}

	rangeParams = []paramInfo{{name: "start", witType: u16Param}, {name: "count", witType: u16Param}}
)

func addressRange(args []any) protocol.AddressRange {
	return protocol.AddressRange{Start: args[0].(uint16), Count: args[1].(uint16)}
}

func formatBits(values []bool) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = "0"
		if v {
			parts[i] = "1"
		}
	}
	return strings.Join(parts, " ")
}

func formatRegisters(start uint16, values []uint16) string {
	var b strings.Builder
	for i, v := range values {
		fmt.Fprintf(&b, "%5d: %5d (0x%04X)\n", int(start)+i, v, v)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

var operations = []operation{
	{
		name:   "read-coils",
		help:   "read coils (FC 01)",
		params: rangeParams,
		run: func(s bridge.Session, args []any) (string, bridge.Result) {
			values, res := bridge.ReadCoils(s, addressRange(args))
			return formatBits(values), res
		},
	},
	{
		name:   "read-discrete",
		help:   "read discrete inputs (FC 02)",
		params: rangeParams,
		run: func(s bridge.Session, args []any) (string, bridge.Result) {
			values, res := bridge.ReadDiscreteInputs(s, addressRange(args))
			return formatBits(values), res
		},
	},
	{
		name:   "read-holding",
		help:   "read holding registers (FC 03)",
		params: rangeParams,
		run: func(s bridge.Session, args []any) (string, bridge.Result) {
			r := addressRange(args)
			values, res := bridge.ReadHoldingRegisters(s, r)
			return formatRegisters(r.Start, values), res
		},
	},
	{
		name:   "read-input",
		help:   "read input registers (FC 04)",
		params: rangeParams,
		run: func(s bridge.Session, args []any) (string, bridge.Result) {
			r := addressRange(args)
			values, res := bridge.ReadInputRegisters(s, r)
			return formatRegisters(r.Start, values), res
		},
	},
	{
		name:   "write-coil",
		help:   "write single coil (FC 05)",
		params: []paramInfo{{name: "index", witType: u16Param}, {name: "value", witType: boolParam}},
		run: func(s bridge.Session, args []any) (string, bridge.Result) {
			return "", bridge.WriteSingleCoil(s, args[0].(uint16), args[1].(bool))
		},
	},
	{
		name:   "write-register",
		help:   "write single register (FC 06)",
		params: []paramInfo{{name: "index", witType: u16Param}, {name: "value", witType: u16Param}},
		run: func(s bridge.Session, args []any) (string, bridge.Result) {
			return "", bridge.WriteSingleRegister(s, args[0].(uint16), args[1].(uint16))
		},
	},
	{
		name:   "write-coils",
		help:   "write multiple coils (FC 15)",
		params: []paramInfo{{name: "start", witType: u16Param}, {name: "values", witType: coilsParam}},
		run: func(s bridge.Session, args []any) (string, bridge.Result) {
			p := protocol.NewWriteMultiple(args[0].(uint16), args[1].([]bool))
			return "", bridge.WriteMultipleCoils(s, p)
		},
	},
	{
		name:   "write-registers",
		help:   "write multiple registers (FC 16)",
		params: []paramInfo{{name: "start", witType: u16Param}, {name: "values", witType: registersParam}},
		run: func(s bridge.Session, args []any) (string, bridge.Result) {
			p := protocol.NewWriteMultiple(args[0].(uint16), args[1].([]uint16))
			return "", bridge.WriteMultipleRegisters(s, p)
		},
	},
}

func findOperation(name string) (operation, bool) {
	for _, op := range operations {
		if op.name == name {
			return op, true
		}
	}
	return operation{}, false
}

func operationNames() string {
	names := make([]string, len(operations))
	for i, op := range operations {
		names[i] = op.name
	}
	return strings.Join(names, ", ")
}

// parseArgs converts raw text into the values op.run expects.
func parseArgs(op operation, raw []string) ([]any, error) {
	if len(raw) != len(op.params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", op.name, len(op.params), len(raw))
	}
	args := make([]any, len(raw))
	for i, p := range op.params {
		v, err := parseArg(raw[i], p.witType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		args[i] = v
	}
	return args, nil
}

func parseArg(value string, t wit.Type) (any, error) {
	value = strings.TrimSpace(value)
	switch v := t.(type) {
	case wit.U16:
		n, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return nil, err
		}
		return uint16(n), nil
	case wit.Bool:
		switch strings.ToLower(value) {
		case "true", "1", "on":
			return true, nil
		case "false", "0", "off":
			return false, nil
		}
		return nil, fmt.Errorf("invalid bool %q", value)
	case *wit.TypeDef:
		list, ok := v.Kind.(*wit.List)
		if !ok {
			break
		}
		var fields []string
		if value != "" {
			fields = strings.Split(value, ",")
		}
		switch list.Type.(type) {
		case wit.Bool:
			out := make([]bool, len(fields))
			for i, f := range fields {
				b, err := parseArg(f, wit.Bool{})
				if err != nil {
					return nil, err
				}
				out[i] = b.(bool)
			}
			return out, nil
		case wit.U16:
			out := make([]uint16, len(fields))
			for i, f := range fields {
				n, err := parseArg(f, wit.U16{})
				if err != nil {
					return nil, err
				}
				out[i] = n.(uint16)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("unsupported parameter type %s", witTypeStr(t))
}

func witTypeStr(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U16:
		return "u16"
	case *wit.TypeDef:
		if list, ok := v.Kind.(*wit.List); ok {
			return "list<" + witTypeStr(list.Type) + ">"
		}
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}
