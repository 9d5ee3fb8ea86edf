package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess      Code = 0
	CodeInternal     Code = 1
	CodeUsage        Code = 2
	CodeValidation   Code = 3
	CodeConfig       Code = 4
	CodeQuery        Code = 10
	CodeExtraction   Code = 11
	CodeInvalidRange Code = 12
	CodeTimeout      Code = 13
	CodeDelivery     Code = 14
	CodeNoPositions  Code = 15
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeUsage:
		return "usage_error"
	case CodeValidation:
		return "validation_error"
	case CodeConfig:
		return "config_error"
	case CodeQuery:
		return "query_error"
	case CodeExtraction:
		return "extraction_error"
	case CodeInvalidRange:
		return "invalid_range"
	case CodeTimeout:
		return "timeout"
	case CodeDelivery:
		return "delivery_error"
	case CodeNoPositions:
		return "no_positions"
	default:
		return "internal_error"
	}
}

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is reports whether the outermost typed error in err's chain has code.
func Is(err error, code Code) bool {
	if e, ok := As(err); ok {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost typed error, or CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

func ExitCode(err error) int {
	return int(CodeOf(err))
}
