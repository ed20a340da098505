package bridge

import "unsafe"

// Context carries a caller-owned opaque pointer through an asynchronous
// request to its callback.
//
// The pointer is never dereferenced, copied from or freed here. By creating
// a Context with AssertThreadSafe the caller promises that whatever it
// points to stays valid until the callback has run and may be used from
// any goroutine or OS thread, since callbacks run on runtime workers.
// Nothing checks that promise.
type Context struct {
	ptr unsafe.Pointer
}

// AssertThreadSafe wraps p for use as a callback context. See Context for
// the obligations the caller takes on.
func AssertThreadSafe(p unsafe.Pointer) Context {
	return Context{ptr: p}
}

// Pointer returns the wrapped pointer unchanged.
func (c Context) Pointer() unsafe.Pointer {
	return c.ptr
}
