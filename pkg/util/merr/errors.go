// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Service related
	ErrServiceNotReady    = newXtrosError("service not ready", 1, true)
	ErrServiceUnavailable = newXtrosError("service unavailable", 2, true)
	ErrServiceInternal    = newXtrosError("service internal error", 5, false)

	// Stream related
	ErrStreamOverrun  = newXtrosError("stream overrun", 100, false)
	ErrStreamTrailing = newXtrosError("trailing bytes after message", 101, false)

	// Type related
	ErrTypeUnsupported = newXtrosError("element type unsupported", 200, false)
	ErrTypeMismatch    = newXtrosError("message type mismatch", 201, false)

	// Array related
	ErrShapeMismatch   = newXtrosError("shape mismatch", 300, false)
	ErrIndexOutOfRange = newXtrosError("index out of range", 301, false)

	// Codec related
	ErrCodecFailed    = newXtrosError("codec failed", 400, false)
	ErrFrameTooLarge  = newXtrosError("frame too large", 401, false)
	ErrFrameCorrupted = newXtrosError("frame corrupted", 402, false)

	// Topic related
	ErrTopicNotFound   = newXtrosError("topic not found", 500, true)
	ErrTopicClosed     = newXtrosError("topic closed", 501, false)
	ErrHandshakeFailed = newXtrosError("handshake failed", 502, false)

	// Session related
	ErrSessionClosed    = newXtrosError("session closed", 600, false)
	ErrSessionQueueFull = newXtrosError("session send queue full", 601, true)

	// IO related
	ErrIoKeyNotFound = newXtrosError("key not found", 1000, false)
	ErrIoFailed      = newXtrosError("IO failed", 1001, false)
	ErrIoUnexpectEOF = newXtrosError("unexpected EOF", 1002, true)

	// Parameter related
	ErrParameterInvalid  = newXtrosError("invalid parameter", 1100, false)
	ErrParameterMissing  = newXtrosError("missing parameter", 1101, false)
	ErrParameterTooLarge = newXtrosError("parameter too large", 1102, false)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to xtrosError
	errUnexpected = newXtrosError("unexpected error", (1<<16)-1, false)

	// General
	ErrOperationNotSupported = newXtrosError("unsupported operation", 3000, false)
)

type errorOption func(*xtrosError)

func WithDetail(detail string) errorOption {
	return func(err *xtrosError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *xtrosError) {
		err.errType = etype
	}
}

type xtrosError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newXtrosError(msg string, code int32, retriable bool, options ...errorOption) xtrosError {
	err := xtrosError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e xtrosError) code() int32 {
	return e.errCode
}

func (e xtrosError) Error() string {
	return e.msg
}

func (e xtrosError) Detail() string {
	return e.detail
}

func (e xtrosError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(xtrosError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
