package lockmgr

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by lock managers. It carries a return code
// (of type RetCode), a message and an optional cause.
//
// Two *Error values match with errors.Is if their codes are equal, so the
// sentinels below can be used to test for a kind of failure:
//
//	if errors.Is(err, lockmgr.ErrAborted) { ... }
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
	Err  error   // The cause (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("LockManagerError (code %s): %s", e.Code, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new lock manager error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new lock manager error with the given code, message and cause.
func WrapError(code RetCode, msg string, cause error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  cause,
	}
}

// Sentinels for errors.Is
var (
	ErrAborted       = NewError(RetCAborted, "request aborted")
	ErrNotSupported  = NewError(RetCNotSupported, "request not supported")
	ErrStolen        = NewError(RetCStolen, "lock stolen")
	ErrInternalError = NewError(RetCInternalError, "internal error")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Request completed successfully.
	RetCInternalError                // 1: Request failed due to an internal error.
	RetCNotSupported                 // 2: Request (name or options) is not supported.
	RetCAborted                      // 3: Request was aborted before the lock was granted.
	RetCStolen                       // 4: Lock was taken over by a steal request.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCNotSupported:
		return "NotSupported"
	case RetCAborted:
		return "Aborted"
	case RetCStolen:
		return "Stolen"
	default:
		return "Unknown"
	}
}
