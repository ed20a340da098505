// Package errors provides structured error types for the modbus bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Kind is the internal fault taxonomy that the bridge translates into the fixed-shape
// status returned across the foreign boundary.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResponse, errors.KindException).
//		Exception(0x02).
//		Detail("function 0x%02X", 0x03).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BadRequest("count %d exceeds %d", count, max)
//	err := errors.NoConnection(dialErr)
//
// All errors implement the standard error interface and support errors.Is/As.
// A target without a Phase matches any error of the same Kind:
//
//	errors.Is(err, &errors.Error{Kind: errors.KindShutdown})
package errors
