// Package bridge exposes runtimes, channels and Modbus requests through a
// flat, handle-based surface for callers that cannot hold Go values.
//
// Runtimes and channels live in a process-wide handle table and are named
// by 32-bit handles; 0 is the null handle and a destroyed handle never
// resolves again, even after its slot is reused. Every request takes a
// Session by value and reports a Result. Synchronous requests block the
// caller until completion or teardown; the Cb variants deliver the outcome
// to a callback on a runtime worker, exactly once.
//
// No panic crosses the boundary: exported functions recover and report
// StatusInternalError, or a null handle from constructors.
package bridge
