// Package modbustest provides an in-process Modbus TCP server for tests.
package modbustest

import (
	"encoding/binary"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"
)

// Mode controls how the server answers requests.
type Mode uint8

const (
	// Normal answers every request from the register banks.
	Normal Mode = iota
	// Silent reads requests and never answers.
	Silent
	// Garbage answers with a frame carrying a non-zero protocol id.
	Garbage
)

// Server is a minimal Modbus TCP server backed by four sparse banks.
type Server struct {
	ln         net.Listener
	coils      map[uint16]bool
	discrete   map[uint16]bool
	holding    map[uint16]uint16
	input      map[uint16]uint16
	exceptions map[uint8]uint8
	conns      map[net.Conn]struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	delay      time.Duration
	requests   int
	accepted   int
	mode       Mode
	closed     bool
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves until Close.
func Start(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln:         ln,
		coils:      map[uint16]bool{},
		discrete:   map[uint16]bool{},
		holding:    map[uint16]uint16{},
		input:      map[uint16]uint16{},
		exceptions: map[uint8]uint8{},
		conns:      map[net.Conn]struct{}{},
	}
	s.wg.Go(s.accept)
	return s, nil
}

// Addr returns the listening socket address.
func (s *Server) Addr() netip.AddrPort {
	return s.ln.Addr().(*net.TCPAddr).AddrPort()
}

// Close stops the listener, drops every connection and waits for handlers.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.ln.Close()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// DropConnections closes every open client connection but keeps listening.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

func (s *Server) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// SetDelay makes every answer wait d first.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// SetException makes requests for function fc fail with code.
// A code of zero clears it.
func (s *Server) SetException(fc, code uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == 0 {
		delete(s.exceptions, fc)
		return
	}
	s.exceptions[fc] = code
}

func (s *Server) SetCoils(start uint16, values ...bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range values {
		s.coils[start+uint16(i)] = v
	}
}

func (s *Server) SetDiscreteInputs(start uint16, values ...bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range values {
		s.discrete[start+uint16(i)] = v
	}
}

func (s *Server) SetHoldingRegisters(start uint16, values ...uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range values {
		s.holding[start+uint16(i)] = v
	}
}

func (s *Server) SetInputRegisters(start uint16, values ...uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range values {
		s.input[start+uint16(i)] = v
	}
}

func (s *Server) Coil(addr uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coils[addr]
}

func (s *Server) HoldingRegister(addr uint16) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holding[addr]
}

// Requests returns the number of request frames read so far.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *Server) accept() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.wg.Go(func() {
			s.serve(conn)
		})
	}
}

func (s *Server) serve(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	header := make([]byte, 7)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		length := int(binary.BigEndian.Uint16(header[4:]))
		if length < 2 {
			return
		}
		pdu := make([]byte, length-1)
		if _, err := io.ReadFull(conn, pdu); err != nil {
			return
		}

		s.mu.Lock()
		s.requests++
		mode, delay := s.mode, s.delay
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}

		var reply []byte
		switch mode {
		case Silent:
			continue
		case Garbage:
			reply = frame(header, []byte{pdu[0], 0})
			binary.BigEndian.PutUint16(reply[2:], 0x1234)
		default:
			reply = frame(header, s.handle(pdu))
		}
		if _, err := conn.Write(reply); err != nil {
			return
		}
	}
}

func frame(reqHeader, pdu []byte) []byte {
	out := make([]byte, 7+len(pdu))
	copy(out, reqHeader[:4])
	binary.BigEndian.PutUint16(out[4:], uint16(len(pdu)+1))
	out[6] = reqHeader[6]
	copy(out[7:], pdu)
	return out
}

func exception(fc, code uint8) []byte {
	return []byte{fc | 0x80, code}
}

func (s *Server) handle(pdu []byte) []byte {
	fc := pdu[0]
	data := pdu[1:]

	s.mu.Lock()
	defer s.mu.Unlock()

	if code, ok := s.exceptions[fc]; ok {
		return exception(fc, code)
	}
	if len(data) < 4 {
		return exception(fc, 0x03)
	}
	start := binary.BigEndian.Uint16(data)
	count := binary.BigEndian.Uint16(data[2:])

	switch fc {
	case 0x01, 0x02:
		bank := s.coils
		if fc == 0x02 {
			bank = s.discrete
		}
		out := make([]byte, 2+(int(count)+7)/8)
		out[0] = fc
		out[1] = byte((int(count) + 7) / 8)
		for i := range int(count) {
			if bank[start+uint16(i)] {
				out[2+i/8] |= 1 << (i % 8)
			}
		}
		return out
	case 0x03, 0x04:
		bank := s.holding
		if fc == 0x04 {
			bank = s.input
		}
		out := make([]byte, 2+2*int(count))
		out[0] = fc
		out[1] = byte(2 * int(count))
		for i := range int(count) {
			binary.BigEndian.PutUint16(out[2+2*i:], bank[start+uint16(i)])
		}
		return out
	case 0x05:
		s.coils[start] = count == 0xFF00
		return append([]byte{fc}, data[:4]...)
	case 0x06:
		s.holding[start] = count
		return append([]byte{fc}, data[:4]...)
	case 0x0F:
		values := data[5:]
		for i := range int(count) {
			s.coils[start+uint16(i)] = values[i/8]&(1<<(i%8)) != 0
		}
		return append([]byte{fc}, data[:4]...)
	case 0x10:
		values := data[5:]
		for i := range int(count) {
			s.holding[start+uint16(i)] = binary.BigEndian.Uint16(values[2*i:])
		}
		return append([]byte{fc}, data[:4]...)
	default:
		return exception(fc, 0x01)
	}
}
