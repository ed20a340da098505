// Package wasmhost exposes the bridge to WebAssembly guests as a wazero host
// module.
//
// Every function takes and returns i32 values. Handles are bridge handles.
// Request functions return a packed result, status | exception<<8, and
// block the calling guest until the request completes; there is no
// callback form because guests are single-threaded.
//
// Guest buffers are addressed by pointer and element count: coils as one
// byte per value (non-zero is on) and registers as little-endian u16. A
// buffer outside the guest's memory fails with StatusBadRequest before any
// request is queued.
package wasmhost
