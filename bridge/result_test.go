package bridge

import (
	"fmt"
	"io"
	"testing"

	"github.com/wippyai/modbus-bridge/errors"
)

func TestResultFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Result
	}{
		{"nil", nil, Ok},
		{"internal", errors.Internal(errors.PhaseBoundary, "broken"), Result{Status: StatusInternalError}},
		{"no connection", errors.NoConnection(io.EOF), Result{Status: StatusNoConnection}},
		{"bad frame", errors.BadFrame("protocol id %d", 7), Result{Status: StatusBadFraming}},
		{"shutdown", errors.Shutdown(errors.PhaseChannel), Result{Status: StatusShutdown}},
		{"timeout", errors.Timeout(nil), Result{Status: StatusResponseTimeout}},
		{"bad request", errors.BadRequest("count of zero"), Result{Status: StatusBadRequest}},
		{"exception", errors.Exception(3, 2), Result{Status: StatusException, Exception: 2}},
		{"io", errors.IO(io.ErrUnexpectedEOF), Result{Status: StatusIOError}},
		{"bad response", errors.BadResponse(io.ErrShortBuffer), Result{Status: StatusBadResponse}},
		{"queue full", errors.QueueFull(8, nil), Result{Status: StatusInternalError}},
		{"invalid input", errors.InvalidInput(errors.PhaseChannel, "x"), Result{Status: StatusInternalError}},
		{"unknown kind", &errors.Error{Kind: "future"}, Result{Status: StatusInternalError}},
		{"foreign error", io.EOF, Result{Status: StatusInternalError}},
		{"wrapped", fmt.Errorf("call: %w", errors.Exception(6, 4)), Result{Status: StatusException, Exception: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResultFromError(tt.err); got != tt.want {
				t.Fatalf("ResultFromError(%v) = %+v, want %+v", tt.err, got, tt.want)
			}
		})
	}
}

func TestResultFromError_ExceptionByteOnlyForExceptions(t *testing.T) {
	e := errors.New(errors.PhaseResponse, errors.KindBadResponse).Exception(9).Build()
	if got := ResultFromError(e); got.Exception != 0 {
		t.Fatalf("exception byte = %d, want 0", got.Exception)
	}
}

func TestStatus_Values(t *testing.T) {
	tests := []struct {
		status Status
		value  uint32
		name   string
	}{
		{StatusOk, 0, "ok"},
		{StatusShutdown, 1, "shutdown"},
		{StatusNoConnection, 2, "no_connection"},
		{StatusResponseTimeout, 3, "response_timeout"},
		{StatusBadRequest, 4, "bad_request"},
		{StatusBadResponse, 5, "bad_response"},
		{StatusIOError, 6, "io_error"},
		{StatusBadFraming, 7, "bad_framing"},
		{StatusException, 8, "exception"},
		{StatusInternalError, 9, "internal_error"},
		{Status(42), 42, "status(42)"},
	}

	for _, tt := range tests {
		if uint32(tt.status) != tt.value {
			t.Errorf("%s = %d, want %d", tt.name, uint32(tt.status), tt.value)
		}
		if got := tt.status.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}

func TestResult_String(t *testing.T) {
	if got := (Result{Status: StatusException, Exception: 0x0B}).String(); got != "exception(0x0B)" {
		t.Fatalf("got %q", got)
	}
	if got := Ok.String(); got != "ok" {
		t.Fatalf("got %q", got)
	}
}

func TestGuard(t *testing.T) {
	if got := Guard(func() Result { return Result{Status: StatusBadRequest} }); got.Status != StatusBadRequest {
		t.Fatalf("Guard passed through %v", got)
	}

	got := Guard(func() Result {
		var m map[string]int
		m["x"] = 1
		return Ok
	})
	if got.Status != StatusInternalError {
		t.Fatalf("Guard after panic = %v, want internal_error", got)
	}
}
