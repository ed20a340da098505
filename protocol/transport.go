package protocol

import (
	"encoding/binary"
	"io"
	"net"
	"os"

	"github.com/wippyai/modbus-bridge/errors"
)

const (
	mbapHeaderSize = 7
	maxPDULength   = 253
)

// streamTransporter implements modbus.Transporter over a connection owned by
// the caller. It only moves frames; deadlines are set by whoever owns conn.
type streamTransporter struct {
	conn net.Conn
}

// Send writes one request frame and reads exactly one response frame.
func (t *streamTransporter) Send(adu []byte) ([]byte, error) {
	if t.conn == nil {
		return nil, errors.NoConnection(nil)
	}

	if _, err := t.conn.Write(adu); err != nil {
		return nil, ioError(err)
	}

	header := make([]byte, mbapHeaderSize)
	if _, err := io.ReadFull(t.conn, header); err != nil {
		return nil, ioError(err)
	}

	if proto := binary.BigEndian.Uint16(header[2:]); proto != 0 {
		return nil, errors.BadFrame("protocol id %d", proto)
	}
	length := int(binary.BigEndian.Uint16(header[4:]))
	if length < 2 || length > maxPDULength+1 {
		return nil, errors.BadFrame("length field %d", length)
	}

	frame := make([]byte, mbapHeaderSize+length-1)
	copy(frame, header)
	if _, err := io.ReadFull(t.conn, frame[mbapHeaderSize:]); err != nil {
		return nil, ioError(err)
	}
	return frame, nil
}

// ioError classifies a connection error as a timeout or a stream failure.
func ioError(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.Timeout(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errors.Timeout(err)
	}
	return errors.IO(err)
}
