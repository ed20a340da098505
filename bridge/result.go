package bridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/modbus-bridge/errors"
)

// Status is the outcome of an operation as seen across the foreign boundary.
// The numeric values are part of the ABI and never change.
type Status uint32

const (
	StatusOk              Status = 0
	StatusShutdown        Status = 1
	StatusNoConnection    Status = 2
	StatusResponseTimeout Status = 3
	StatusBadRequest      Status = 4
	StatusBadResponse     Status = 5
	StatusIOError         Status = 6
	StatusBadFraming      Status = 7
	StatusException       Status = 8
	StatusInternalError   Status = 9
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusShutdown:
		return "shutdown"
	case StatusNoConnection:
		return "no_connection"
	case StatusResponseTimeout:
		return "response_timeout"
	case StatusBadRequest:
		return "bad_request"
	case StatusBadResponse:
		return "bad_response"
	case StatusIOError:
		return "io_error"
	case StatusBadFraming:
		return "bad_framing"
	case StatusException:
		return "exception"
	case StatusInternalError:
		return "internal_error"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// Result is the fixed-shape outcome returned by every request. Exception is
// the server's exception code when Status is StatusException and 0 otherwise.
type Result struct {
	Status    Status
	Exception uint8
}

// Ok is the result of a successful operation.
var Ok = Result{Status: StatusOk}

// IsOk reports whether the operation succeeded.
func (r Result) IsOk() bool {
	return r.Status == StatusOk
}

func (r Result) String() string {
	if r.Status == StatusException {
		return fmt.Sprintf("exception(0x%02X)", r.Exception)
	}
	return r.Status.String()
}

// ResultFromError translates any error into a Result. nil is Ok; errors
// outside the fault taxonomy, including a full queue, are InternalError.
func ResultFromError(err error) Result {
	if err == nil {
		return Ok
	}

	var e *errors.Error
	if !errors.As(err, &e) {
		return Result{Status: StatusInternalError}
	}

	switch e.Kind {
	case errors.KindInternal:
		return Result{Status: StatusInternalError}
	case errors.KindNoConnection:
		return Result{Status: StatusNoConnection}
	case errors.KindBadFrame:
		return Result{Status: StatusBadFraming}
	case errors.KindShutdown:
		return Result{Status: StatusShutdown}
	case errors.KindResponseTimeout:
		return Result{Status: StatusResponseTimeout}
	case errors.KindBadRequest:
		return Result{Status: StatusBadRequest}
	case errors.KindException:
		return Result{Status: StatusException, Exception: e.Exception}
	case errors.KindIO:
		return Result{Status: StatusIOError}
	case errors.KindBadResponse:
		return Result{Status: StatusBadResponse}
	default:
		return Result{Status: StatusInternalError}
	}
}

// Guard runs fn and turns a panic into InternalError so that no panic ever
// unwinds into foreign code.
func Guard(fn func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("recovered panic at boundary", zap.String("panic", fmt.Sprint(r)))
			res = Result{Status: StatusInternalError}
		}
	}()
	return fn()
}
