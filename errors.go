package formulacore

import "fmt"

// AppErrorCode represents gRPC-style error codes for application-level
// errors raised by the workbook API (not spreadsheet formula errors, which
// are represented by Value{Kind: KindError} instead).
type AppErrorCode int

const (
	OK                 AppErrorCode = 0
	Unknown            AppErrorCode = 2
	InvalidArgument    AppErrorCode = 3
	NotFound           AppErrorCode = 5
	AlreadyExists      AppErrorCode = 6
	ResourceExhausted  AppErrorCode = 8
	FailedPrecondition AppErrorCode = 9
	OutOfRange         AppErrorCode = 11
	Unimplemented      AppErrorCode = 12
	Internal           AppErrorCode = 13

	// Cancelled and DeadlineExceeded cover the scheduler's
	// context.Context cancellation paths.
	Cancelled        AppErrorCode = 1
	DeadlineExceeded AppErrorCode = 4
)

// AppError represents an application-level error: something wrong with the
// request itself (bad address, unknown sheet, cancelled recalculation), as
// opposed to a formula producing an in-grid #ERROR! value.
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string { return e.Message }

func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// EngineError is the richer application error the workbook API returns; it
// wraps AppError with the operation name and, where relevant, the address
// involved, attaching enough context for a caller to log without
// re-deriving it.
type EngineError struct {
	*AppError
	Op      string
	Address string
}

func (e *EngineError) Unwrap() error { return e.AppError }

func newEngineError(code AppErrorCode, op string, format string, args ...any) *EngineError {
	return &EngineError{
		AppError: NewApplicationError(code, fmt.Sprintf(format, args...)),
		Op:       op,
	}
}

func errNotFound(op, format string, args ...any) *EngineError {
	return newEngineError(NotFound, op, format, args...)
}

func errInvalidArgument(op, format string, args ...any) *EngineError {
	return newEngineError(InvalidArgument, op, format, args...)
}

func errAlreadyExists(op, format string, args ...any) *EngineError {
	return newEngineError(AlreadyExists, op, format, args...)
}

func errCancelled(op string) *EngineError {
	return newEngineError(Cancelled, op, "operation cancelled")
}

func errDeadlineExceeded(op string) *EngineError {
	return newEngineError(DeadlineExceeded, op, "deadline exceeded")
}

// lexError and parseError are internal compile-time failures. Parse returns
// them as Go errors and SetFormula reports them to its caller wrapped in an
// InvalidArgument *EngineError; no #NAME? or #REF! value is stored for a
// formula that fails to parse.
type lexError struct{ msg string }

func (e *lexError) Error() string { return e.msg }

func newLexError(format string, args ...any) error {
	return &lexError{msg: fmt.Sprintf(format, args...)}
}

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

func newParseError(format string, args ...any) error {
	return &parseError{msg: fmt.Sprintf(format, args...)}
}
