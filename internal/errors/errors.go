// Package errors provides the structured error type shared by every stage of
// document generation. Callers branch on Code and show Message to users.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a stable, machine readable failure kind.
type Code string

const (
	CodeValidationFailed     Code = "ValidationFailed"
	CodeNormalizationError   Code = "NormalizationError"
	CodeTemplateNotFound     Code = "TemplateNotFound"
	CodeTemplateUnreadable   Code = "TemplateUnreadable"
	CodeTemplateNotAFile     Code = "TemplateNotAFile"
	CodeTemplateRenderFailed Code = "TemplateRenderFailed"
	CodeCompilerUnavailable  Code = "CompilerUnavailable"
	CodeSourceNotFound       Code = "SourceNotFound"
	CodeCompilationTimedOut  Code = "CompilationTimedOut"
	CodeCompilationFailed    Code = "CompilationFailed"
	CodeDirectoryUnwritable  Code = "DirectoryUnwritable"
	CodeInvalidInputType     Code = "InvalidInputType"
	CodeRecordNotFound       Code = "RecordNotFound"
	CodeFileWriteFailed      Code = "FileWriteFailed"
	CodeInternal             Code = "Internal"
)

// Recoverable reports whether the caller can fix its input and retry.
func (c Code) Recoverable() bool {
	switch c {
	case CodeValidationFailed, CodeTemplateNotFound, CodeTemplateUnreadable,
		CodeTemplateNotAFile, CodeTemplateRenderFailed, CodeInvalidInputType,
		CodeSourceNotFound, CodeRecordNotFound:
		return true
	default:
		return false
	}
}

// ContextFields carries structured context for an Error.
type ContextFields map[string]any

// Error is a structured failure with a taxonomy code, the pipeline stage it
// happened in, and optional remediation guidance.
type Error struct {
	Code     Code          `json:"code"`
	Stage    string        `json:"stage,omitempty"`
	Message  string        `json:"message"`
	Guidance string        `json:"guidance,omitempty"`
	Cause    error         `json:"-"`
	Context  ContextFields `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so sentinel-style comparisons work:
// errors.Is(err, &Error{Code: CodeSourceNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// WithStage records the pipeline stage the error surfaced in.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithGuidance attaches remediation text for the user.
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// New creates a new Error
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error that wraps an existing error
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf extracts the code from err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// Ensure returns err as an *Error, wrapping foreign errors under code.
func Ensure(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Wrap(err, code, message)
}
