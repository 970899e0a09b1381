package status

import (
	"github.com/pkg/errors"
)

// Code is the closed set of error codes crossing the aggregation core
// boundary.
type Code int

const (
	Ok Code = iota
	InvalidArgument
	FailedPrecondition
	NotFound
	Unimplemented
	Internal
	Unavailable
)

var codeNames = []string{
	"OK",
	"INVALID_ARGUMENT",
	"FAILED_PRECONDITION",
	"NOT_FOUND",
	"UNIMPLEMENTED",
	"INTERNAL",
	"UNAVAILABLE",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return "UNKNOWN"
	}
	return codeNames[c]
}

// statusError carries a Code along a regular error value.
type statusError struct {
	code Code
	err  error
}

func (s *statusError) Error() string {
	return s.code.String() + ": " + s.err.Error()
}

// Cause for pkg/errors compatibility.
func (s *statusError) Cause() error {
	return s.err
}

// Error creates an error with the given code and message.
func Error(code Code, message string) error {
	return &statusError{code, errors.New(message)}
}

// Errorf creates an error with the given code and formatted message.
func Errorf(code Code, format string, args ...interface{}) error {
	return &statusError{code, errors.Errorf(format, args...)}
}

// Wrap annotates err with a code and a message. Returns nil if err is nil.
func Wrap(code Code, err error, message string) error {
	if err == nil {
		return nil
	}
	return &statusError{code, errors.Wrap(err, message)}
}

// CodeOf returns the code carried by err. A nil error maps to Ok, an
// error without a code to Internal.
func CodeOf(err error) Code {
	if err == nil {
		return Ok
	}
	for err != nil {
		if s, ok := err.(*statusError); ok {
			return s.code
		}
		causer, ok := err.(interface{ Cause() error })
		if !ok {
			break
		}
		err = causer.Cause()
	}
	return Internal
}
