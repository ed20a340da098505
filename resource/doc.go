// Package resource provides integer handle tables for objects that cross the
// foreign boundary.
//
// Foreign callers never see Go pointers. Every boundary object (an execution
// engine, a channel) is stored in a table and referred to by a Handle, a
// plain uint32 where 0 is the null handle.
//
// # Handle Table
//
// The UnifiedTable maps handles to Go values:
//
//	table := resource.NewTable()
//
//	handle := table.Insert(kind, value)
//	value, ok := table.Get(handle)
//	value, ok := table.Remove(handle)
//
// Typed wraps a shared table with a fixed kind so that a handle of one kind
// never resolves as another:
//
//	runtimes := resource.NewTyped[*runtime.Runtime](table, KindRuntime)
//	rt, ok := runtimes.Get(h)
//
// # Stale Handles
//
// Handles carry a slot generation. Once removed, a handle stops resolving for
// good even if its slot is reused, so a second destroy is a no-op and a
// request against a destroyed object fails cleanly instead of reaching the
// slot's new occupant.
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	table.Subscribe(observer)
//
// # Memory Management
//
// Values are not garbage collected while their handle is live. The host must
// remove handles explicitly; Close drops everything that remains, calling
// Drop on values that implement Dropper.
package resource
