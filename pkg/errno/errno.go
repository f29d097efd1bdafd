package errno

import (
	"errors"
	"fmt"
)

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage returns a copy of the code with a request-specific message.
func (e Errno) WithMessage(msg string) Errno {
	e.Message = msg
	return e
}

// Err is an Errno carrying the underlying cause.
type Err struct {
	Errno
	Cause error
}

func (e *Err) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Err) Unwrap() error {
	return e.Cause
}

// Is matches on the code so errors.Is(err, errno.ErrChainNotFound) works for wrapped values.
func (e *Err) Is(target error) bool {
	switch t := target.(type) {
	case Errno:
		return t.Code == e.Code
	case *Errno:
		return t.Code == e.Code
	}
	return false
}

// Wrap attaches a cause to a code.
func Wrap(code Errno, cause error) error {
	return &Err{Errno: code, Cause: cause}
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var wrapped *Err
	if errors.As(err, &wrapped) {
		return wrapped.Code, wrapped.Error()
	}

	var plain Errno
	if errors.As(err, &plain) {
		return plain.Code, plain.Message
	}

	var ptr *Errno
	if errors.As(err, &ptr) {
		return ptr.Code, ptr.Message
	}

	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrInvalidParam     = Errno{Code: 10003, Message: "Invalid parameter"}
	ErrStorage          = Errno{Code: 10004, Message: "Storage error"}
)

// Review Errors (20000+)
var (
	ErrChainNotFound       = Errno{Code: 20101, Message: "chain not found"}
	ErrNonceUnavailable    = Errno{Code: 20102, Message: "Failed to resolve nonce"}
	ErrInvalidTransaction  = Errno{Code: 20103, Message: "Invalid transaction"}
	ErrSessionNotFound     = Errno{Code: 20104, Message: "Review session not found"}
	ErrNotSubmittable      = Errno{Code: 20105, Message: "Transaction can not be submitted"}
	ErrGasPriceRange       = Errno{Code: 20106, Message: "Gas price out of range"}
	ErrCannotProcess       = Errno{Code: 20107, Message: "Current account can not process this request"}
	ErrSecurityCheckNotMet = Errno{Code: 20108, Message: "Security check has not passed"}
)

// Risk finding and security engine codes, shared with the review UI.
const (
	CodeReservedGasInsufficient = 3001
	CodeNonceTooLow             = 3003
	CodeGasLimitLow             = 3004
	CodeGasLimitTooLow          = 3005
	CodeGasLimitBelowMinimum    = 3006
	CodeSecurityUnavailable     = 4000
)
