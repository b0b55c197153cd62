// Package apperr defines the coded errors shared by the verifier, the graph
// store and the command interpreter.
package apperr

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a DomainError
type ErrorCode string

const (
	CodeConfig              ErrorCode = "CONFIG_ERROR"
	CodeSchemaDrift         ErrorCode = "SCHEMA_DRIFT"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeNameConflict        ErrorCode = "NAME_CONFLICT"
	CodeDuplicateConnection ErrorCode = "DUPLICATE_CONNECTION"
	CodeNoOpenFile          ErrorCode = "NO_OPEN_FILE"
	CodeNodesNotFound       ErrorCode = "NODES_NOT_FOUND"
	CodeSelfConnection      ErrorCode = "SELF_CONNECTION"
	CodeNotConnected        ErrorCode = "NOT_CONNECTED"
	CodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// Context keys
const (
	CtxName          = "name"
	CtxID            = "id"
	CtxDiscriminator = "discriminator"
	CtxTable         = "table"
	CtxMatches       = "matches"
)

// DomainError is an error carrying a code and optional context
type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]any
}

// WithContext attaches a key/value pair and returns the same error
func (e *DomainError) WithContext(key string, value any) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// New creates a DomainError
func New(code ErrorCode, msg string) *DomainError {
	return &DomainError{Code: code, Message: msg}
}

// Newf creates a DomainError with a formatted message
func Newf(code ErrorCode, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a DomainError around err
func Wrap(err error, code ErrorCode, msg string) *DomainError {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// IsCode reports whether the outermost DomainError in err's chain has code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// HasCode reports whether any DomainError in err's chain has code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the code of the outermost DomainError, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ContextValue returns the first value stored under key along the chain of
// DomainErrors.
func ContextValue(err error, key string) (any, bool) {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return nil, false
		}
		if v, ok := de.Context[key]; ok {
			return v, true
		}
		err = de.Err
	}
	return nil, false
}

// Recoverable reports whether err should be surfaced as a warning while the
// session keeps going.
func Recoverable(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeNameConflict, CodeDuplicateConnection, CodeNoOpenFile, CodeNodesNotFound, CodeSelfConnection:
		return true
	default:
		return false
	}
}
