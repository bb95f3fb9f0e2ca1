package ledger

import (
	"errors"
	"fmt"
)

// Error codes exposed to API clients.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInvalidState    = "INVALID_STATE"
	CodeDuplicate       = "DUPLICATE_PAYMENT"
	CodeAlreadyReversed = "ALREADY_REVERSED"
)

// Error is a ledger failure carrying a stable code. errors.Is matches on the
// code, so wrapped and re-worded errors still compare equal to the sentinels.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrValidation       = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "resource not found"}
	ErrConflict         = &Error{Code: CodeConflict, Message: "resource was modified concurrently"}
	ErrInvalidState     = &Error{Code: CodeInvalidState, Message: "operation not allowed in current state"}
	ErrDuplicatePayment = &Error{Code: CodeDuplicate, Message: "payment already recorded"}
	ErrAlreadyReversed  = &Error{Code: CodeAlreadyReversed, Message: "payment already reversed"}
)

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newError(CodeValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(CodeNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(CodeConflict, format, args...)
}

func InvalidState(format string, args ...any) error {
	return newError(CodeInvalidState, format, args...)
}

func AlreadyReversed(format string, args ...any) error {
	return newError(CodeAlreadyReversed, format, args...)
}

// CodeOf returns the ledger code of err, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
