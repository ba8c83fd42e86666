// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tdmaerr defines the error kinds raised across the solver: a
// configuration error, a numerical breakdown, a transport failure, and a
// programmer-misuse error.
package tdmaerr

import (
	"errors"
	"fmt"
)

// Error codes for the four kinds of failure a solve can report.
const (
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeNumericalBreakdown = "NUMERICAL_BREAKDOWN"
	CodeTransport          = "TRANSPORT_FAILURE"
	CodeProgrammer         = "PROGRAMMER_ERROR"
)

// Error is a structured error carrying one of the codes above plus an
// optional wrapped cause.
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an *Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an *Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err in an *Error of the given code.
func Wrap(code string, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Sentinel instances used with errors.Is to classify an error by kind
// without inspecting its message.
var (
	ErrConfiguration      = New(CodeConfiguration, "configuration error")
	ErrNumericalBreakdown = New(CodeNumericalBreakdown, "numerical breakdown")
	ErrTransport          = New(CodeTransport, "transport failure")
	ErrProgrammer         = New(CodeProgrammer, "programmer error")
)

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsNumericalBreakdown reports whether err is a numerical-breakdown error.
func IsNumericalBreakdown(err error) bool { return errors.Is(err, ErrNumericalBreakdown) }

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

// IsProgrammer reports whether err is a programmer-misuse error.
func IsProgrammer(err error) bool { return errors.Is(err, ErrProgrammer) }

// Code extracts the code of err, or "" if err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
