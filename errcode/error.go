// Package errcode provides layered error codes shared by every cache engine module.
// Code format: MMBBBB (MM = module code, BBBB = business code).
package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

// LayeredError is an error carrying a module-scoped numeric code.
// Instances are immutable; every With* method returns a copy.
type LayeredError struct {
	module     string
	code       int
	msgKey     string
	msg        string
	httpStatus int
	data       map[string]any
	cause      error
}

// New creates a layered error.
// moduleCode: 10-99, businessCode: 1-9999, httpStatus defaults to 500.
func New(moduleCode, businessCode int, module, msgKey, msg string, httpStatus ...int) *LayeredError {
	status := http.StatusInternalServerError
	if len(httpStatus) > 0 {
		status = httpStatus[0]
	}
	return &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		msgKey:     msgKey,
		msg:        msg,
		httpStatus: status,
		data:       make(map[string]any),
	}
}

func (e *LayeredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Code returns the full MMBBBB code
func (e *LayeredError) Code() int { return e.code }

// Module returns the owning module name
func (e *LayeredError) Module() string { return e.module }

// MsgKey returns the message key (i18n lookup)
func (e *LayeredError) MsgKey() string { return e.msgKey }

// Message returns the message without the cause chain
func (e *LayeredError) Message() string { return e.msg }

// HTTPStatus returns the status the HTTP layer should answer with
func (e *LayeredError) HTTPStatus() int { return e.httpStatus }

// Data returns context data attached with WithData
func (e *LayeredError) Data() map[string]any { return e.data }

// Unwrap supports errors.Is / errors.As over the cause chain
func (e *LayeredError) Unwrap() error { return e.cause }

// WithMsg replaces the message
func (e *LayeredError) WithMsg(msg string) *LayeredError {
	clone := *e
	clone.msg = msg
	return &clone
}

// WithMsgf replaces the message using a format
func (e *LayeredError) WithMsgf(format string, args ...any) *LayeredError {
	clone := *e
	clone.msg = fmt.Sprintf(format, args...)
	return &clone
}

// WithData attaches one context value
func (e *LayeredError) WithData(key string, value any) *LayeredError {
	clone := *e
	clone.data = make(map[string]any, len(e.data)+1)
	for k, v := range e.data {
		clone.data[k] = v
	}
	clone.data[key] = value
	return &clone
}

// Wrap attaches a cause. A nil cause returns the receiver unchanged.
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	clone := *e
	clone.cause = cause
	return &clone
}

// Wrapf attaches a cause and replaces the message
func (e *LayeredError) Wrapf(cause error, format string, args ...any) *LayeredError {
	clone := e.WithMsgf(format, args...)
	clone.cause = cause
	return clone
}

// Is matches any LayeredError with the same code
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	if !ok {
		return false
	}
	return e.code == t.code
}

func (e *LayeredError) String() string {
	if e.cause != nil {
		return fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s, cause:%v}", e.code, e.module, e.msg, e.cause)
	}
	return fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s}", e.code, e.module, e.msg)
}

// As extracts the outermost LayeredError from an error chain
func As(err error) (*LayeredError, bool) {
	var le *LayeredError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost LayeredError, or 0
func CodeOf(err error) int {
	if le, ok := As(err); ok {
		return le.Code()
	}
	return 0
}
