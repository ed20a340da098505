// Package protocol adapts github.com/goburrow/modbus to the bridge.
//
// Requests are plain values built with ReadCoils, WriteMultipleRegisters and
// friends, and checked locally with Validate before anything is sent. A
// Client runs them over whatever connection is attached to it:
//
//	c := protocol.NewClient()
//	c.Attach(conn)
//	resp, err := c.Execute(unit, protocol.ReadHoldingRegisters(protocol.AddressRange{Start: 0, Count: 10}))
//
// Every error Execute returns carries an errors.Kind: Exception (with the
// server's code), BadResponse, BadFrame, IO or ResponseTimeout.
package protocol
