// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lsv2

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every error returned by the client.
type ErrorKind int

const (
	// KindTransport covers name resolution, connect and socket failures,
	// and contexts ending mid operation. The connection is unusable
	// afterwards unless the context ended between two telegrams; check
	// IsConnected.
	KindTransport ErrorKind = iota + 1
	// KindProtocol covers telegrams that violate the expected exchange.
	KindProtocol
	// KindApplication covers explicit error telegrams from the controller.
	// The session stays usable.
	KindApplication
	// KindDecode covers payloads that fail format validation.
	KindDecode
	// KindInput covers caller arguments rejected before anything is sent.
	KindInput
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindApplication:
		return "application"
	case KindDecode:
		return "decode"
	case KindInput:
		return "input"
	default:
		return "unknown"
	}
}

// Error is the error type returned by all client operations.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("lsv2: %s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("lsv2: %s: %s error: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			e.Op = op
		}
		return e
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// ApplicationError is an error telegram (T_ER or T_BD) sent by the controller.
type ApplicationError struct {
	Class   uint8
	Code    uint8
	Key     string
	Message string
}

// Error implements the error interface.
func (e *ApplicationError) Error() string {
	return fmt.Sprintf("controller error %d/%d: %s", e.Class, e.Code, e.Message)
}

// Is checks if the error matches the target.
func (e *ApplicationError) Is(target error) bool {
	switch target {
	case ErrFileNotFound:
		return e.Class == ErrorClassTelegram && e.Code == CodeNoFile
	case ErrFileExists:
		return e.Class == ErrorClassTelegram && e.Code == CodeFileExists
	}
	t, ok := target.(*ApplicationError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewApplicationError creates an ApplicationError with its message resolved.
func NewApplicationError(class, code uint8) *ApplicationError {
	key, msg := LookupError(class, code)
	return &ApplicationError{
		Class:   class,
		Code:    code,
		Key:     key,
		Message: msg,
	}
}

// Common errors.
var (
	ErrNotConnected       = errors.New("not connected")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrHostResolution     = errors.New("host resolution failed")
	ErrTelegramTooLarge   = errors.New("telegram exceeds buffer size")
	ErrInvalidFrame       = errors.New("invalid frame")
	ErrUnknownTelegram    = errors.New("unknown telegram type")
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrUnexpectedData     = errors.New("unexpected data in terminal response")
	ErrDecode             = errors.New("malformed payload")
	ErrInvalidInput       = errors.New("invalid input")
	ErrLoginNotAllowed    = errors.New("login not allowed")
	ErrCommandNotAllowed  = errors.New("system command not allowed")
	ErrFileNotFound       = errors.New("file not found")
	ErrFileExists         = errors.New("file already exists")
	ErrConfiguration      = errors.New("could not configure connection")
)

func decodeError(format string, args ...any) error {
	return &Error{Kind: KindDecode, Err: fmt.Errorf("%w: "+format, append([]any{ErrDecode}, args...)...)}
}

func inputError(format string, args ...any) error {
	return &Error{Kind: KindInput, Err: fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)}
}

func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsTransportError reports whether err is a socket failure or an ended
// context.
func IsTransportError(err error) bool {
	return kindOf(err) == KindTransport
}

// IsProtocolError reports whether err is an exchange violation.
func IsProtocolError(err error) bool {
	return kindOf(err) == KindProtocol
}

// IsDecodeError reports whether err is a payload format failure.
func IsDecodeError(err error) bool {
	return kindOf(err) == KindDecode
}

// IsInputError reports whether err was raised before sending anything.
func IsInputError(err error) bool {
	return kindOf(err) == KindInput
}

// IsApplicationError checks if err is a specific controller error.
func IsApplicationError(err error, class, code uint8) bool {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Class == class && appErr.Code == code
	}
	return false
}
