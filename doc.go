// Package modbusbridge exposes an asynchronous Modbus TCP client engine to
// callers that have no async model of their own: C programs through a
// shared library and WebAssembly guests through a wazero host module.
//
// # Architecture Overview
//
//	modbusbridge/
//	├── runtime/             Execution engine: task goroutines, worker pool, futures
//	├── channel/             Connection task per server: bounded queue, reconnect backoff, metrics
//	├── protocol/            Modbus requests, validation and the wire client
//	├── bridge/              Handle tables, sessions, result translation, sync and callback requests
//	├── wasmhost/            wazero host module over the bridge
//	├── resource/            Generation-checked handle table
//	├── errors/              Structured error types
//	├── config/              Environment configuration and logger construction
//	├── cmd/modbusffi/       C shared library
//	├── cmd/probe/           Command-line and TUI probe
//	└── internal/modbustest/ In-process Modbus TCP server for tests
//
// # Quick Start
//
// From Go, through the same surface the C library uses:
//
//	rt := bridge.CreateMultithreadedRuntime()
//	defer bridge.DestroyRuntime(rt)
//
//	ch := bridge.CreateTCPClient(rt, "127.0.0.1:502", 16)
//	defer bridge.DestroyTCPClient(ch)
//
//	s := bridge.BuildSession(rt, ch, 1, 1000)
//	regs, res := bridge.ReadHoldingRegisters(s, protocol.AddressRange{Start: 0, Count: 10})
//	if !res.IsOk() {
//		// res.Status, and res.Exception for server exceptions
//	}
//
// Channels must be destroyed before the runtime they were created on is
// relied upon to be gone; destroying a runtime first stops its channels,
// and requests on them then fail with Shutdown.
//
// # Logging
//
// Packages with background work log through zap and are silent by default.
// bridge.Configure installs one logger for all of them.
package modbusbridge
