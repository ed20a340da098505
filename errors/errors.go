package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRuntime   Phase = "runtime"   // execution engine lifecycle
	PhaseChannel   Phase = "channel"   // channel creation and queueing
	PhaseConnect   Phase = "connect"   // connection establishment
	PhaseRequest   Phase = "request"   // request validation
	PhaseTransport Phase = "transport" // reading and writing frames
	PhaseResponse  Phase = "response"  // response parsing
	PhaseBoundary  Phase = "boundary"  // foreign call boundary
	PhaseParse     Phase = "parse"     // address and config parsing
)

// Kind categorizes the error
type Kind string

const (
	KindInternal        Kind = "internal"
	KindNoConnection    Kind = "no_connection"
	KindBadFrame        Kind = "bad_frame"
	KindShutdown        Kind = "shutdown"
	KindResponseTimeout Kind = "response_timeout"
	KindBadRequest      Kind = "bad_request"
	KindException       Kind = "exception"
	KindIO              Kind = "io"
	KindBadResponse     Kind = "bad_response"
	KindQueueFull       Kind = "queue_full"
	KindInvalidInput    Kind = "invalid_input"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	Detail    string
	Exception uint8
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Kind == KindException {
		fmt.Fprintf(&b, " 0x%02X", e.Exception)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// KindOf returns the Kind of the first *Error in err's chain.
// ok is false when err carries no *Error.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ExceptionOf returns the server exception code carried by err, if any.
func ExceptionOf(err error) (uint8, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindException {
		return e.Exception, true
	}
	return 0, false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Exception sets the server exception code
func (b *Builder) Exception(code uint8) *Builder {
	b.err.Exception = code
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Internal creates an invariant violation error
func Internal(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInternal,
		Detail: detail,
	}
}

// NoConnection creates an error for a request made while no connection is available
func NoConnection(cause error) *Error {
	return &Error{
		Phase:  PhaseConnect,
		Kind:   KindNoConnection,
		Detail: "no connection available",
		Cause:  cause,
	}
}

// Shutdown creates an error for work abandoned because its engine or channel stopped
func Shutdown(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindShutdown,
		Detail: "shut down before the operation completed",
	}
}

// Timeout creates a response timeout error
func Timeout(cause error) *Error {
	return &Error{
		Phase:  PhaseTransport,
		Kind:   KindResponseTimeout,
		Detail: "no response before timeout",
		Cause:  cause,
	}
}

// BadRequest creates a local request validation error
func BadRequest(format string, args ...any) *Error {
	return &Error{
		Phase:  PhaseRequest,
		Kind:   KindBadRequest,
		Detail: fmt.Sprintf(format, args...),
	}
}

// BadResponse creates a response parsing error
func BadResponse(cause error) *Error {
	return &Error{
		Phase:  PhaseResponse,
		Kind:   KindBadResponse,
		Detail: "malformed response",
		Cause:  cause,
	}
}

// BadFrame creates a framing error
func BadFrame(format string, args ...any) *Error {
	return &Error{
		Phase:  PhaseTransport,
		Kind:   KindBadFrame,
		Detail: fmt.Sprintf(format, args...),
	}
}

// IO creates a transport I/O error
func IO(cause error) *Error {
	return &Error{
		Phase:  PhaseTransport,
		Kind:   KindIO,
		Detail: "stream failure",
		Cause:  cause,
	}
}

// Exception creates an error for a protocol exception returned by the server
func Exception(function, code uint8) *Error {
	return &Error{
		Phase:     PhaseResponse,
		Kind:      KindException,
		Detail:    fmt.Sprintf("function 0x%02X", function),
		Exception: code,
	}
}

// QueueFull creates a backpressure error for a channel whose queue is at capacity
func QueueFull(depth int, cause error) *Error {
	return &Error{
		Phase:  PhaseChannel,
		Kind:   KindQueueFull,
		Detail: fmt.Sprintf("request queue full (depth %d)", depth),
		Value:  depth,
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
