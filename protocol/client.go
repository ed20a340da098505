package protocol

import (
	"net"

	"github.com/goburrow/modbus"

	"github.com/wippyai/modbus-bridge/errors"
)

// Client executes requests over one connection at a time. It is not safe for
// concurrent use; a channel's connection task is its only caller.
type Client struct {
	handler   *modbus.TCPClientHandler
	transport *streamTransporter
	mb        modbus.Client
}

// NewClient returns a client with no connection attached.
func NewClient() *Client {
	handler := modbus.NewTCPClientHandler("")
	transport := &streamTransporter{}
	return &Client{
		handler:   handler,
		transport: transport,
		mb:        modbus.NewClient2(framer{handler}, transport),
	}
}

// Attach makes conn the connection used by subsequent requests.
func (c *Client) Attach(conn net.Conn) {
	c.transport.conn = conn
}

// Detach forgets the current connection and returns it, if any.
func (c *Client) Detach() net.Conn {
	conn := c.transport.conn
	c.transport.conn = nil
	return conn
}

// Conn returns the attached connection, or nil.
func (c *Client) Conn() net.Conn {
	return c.transport.conn
}

// Connected reports whether a connection is attached.
func (c *Client) Connected() bool {
	return c.transport.conn != nil
}

// Execute sends req to unit and waits for the response. The caller is
// expected to have validated req and set a deadline on the connection.
//
// Every error returned is an *errors.Error.
func (c *Client) Execute(unit uint8, req Request) (Response, error) {
	c.handler.SlaveId = unit

	var (
		resp Response
		data []byte
		err  error
	)
	switch req.Function {
	case FuncReadCoils:
		data, err = c.mb.ReadCoils(req.Range.Start, req.Range.Count)
		if err == nil {
			resp.Coils, err = unpackCoils(data, req.Range.Count)
		}
	case FuncReadDiscreteInputs:
		data, err = c.mb.ReadDiscreteInputs(req.Range.Start, req.Range.Count)
		if err == nil {
			resp.Coils, err = unpackCoils(data, req.Range.Count)
		}
	case FuncReadHoldingRegisters:
		data, err = c.mb.ReadHoldingRegisters(req.Range.Start, req.Range.Count)
		if err == nil {
			resp.Registers, err = unpackRegisters(data, req.Range.Count)
		}
	case FuncReadInputRegisters:
		data, err = c.mb.ReadInputRegisters(req.Range.Start, req.Range.Count)
		if err == nil {
			resp.Registers, err = unpackRegisters(data, req.Range.Count)
		}
	case FuncWriteSingleCoil:
		_, err = c.mb.WriteSingleCoil(req.Index, coilValue(req.Coil))
	case FuncWriteSingleRegister:
		_, err = c.mb.WriteSingleRegister(req.Index, req.Register)
	case FuncWriteMultipleCoils:
		_, err = c.mb.WriteMultipleCoils(req.Range.Start, req.Range.Count, packCoils(req.Coils))
	case FuncWriteMultipleRegisters:
		_, err = c.mb.WriteMultipleRegisters(req.Range.Start, req.Range.Count, packRegisters(req.Registers))
	default:
		return Response{}, errors.BadRequest("unsupported function %s", req.Function)
	}

	if err != nil {
		return Response{}, classify(req.Function, err)
	}
	return resp, nil
}

// classify maps an error surfaced by the modbus client onto the fault taxonomy.
// Errors from the transporter and framer are already classified; exception
// responses carry the server's code; anything else the client rejected is a
// malformed response.
func classify(fn Function, err error) error {
	var classified *errors.Error
	if errors.As(err, &classified) {
		return classified
	}

	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		if mbErr.FunctionCode == uint8(fn)|exceptionFunctionMask {
			return errors.Exception(uint8(fn), mbErr.ExceptionCode)
		}
		return errors.New(errors.PhaseResponse, errors.KindBadResponse).
			Cause(err).
			Detail("unexpected function 0x%02X in reply to %s", mbErr.FunctionCode, fn).
			Build()
	}

	return errors.BadResponse(err)
}

// framer wraps the TCP packager so header mismatches surface as framing errors.
type framer struct {
	*modbus.TCPClientHandler
}

func (f framer) Verify(request, response []byte) error {
	if err := f.TCPClientHandler.Verify(request, response); err != nil {
		return errors.New(errors.PhaseTransport, errors.KindBadFrame).
			Cause(err).
			Detail("header mismatch").
			Build()
	}
	return nil
}

func (f framer) Decode(adu []byte) (*modbus.ProtocolDataUnit, error) {
	pdu, err := f.TCPClientHandler.Decode(adu)
	if err != nil {
		return nil, errors.New(errors.PhaseTransport, errors.KindBadFrame).
			Cause(err).
			Detail("decode frame").
			Build()
	}
	return pdu, nil
}
