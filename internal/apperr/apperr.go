// Package apperr defines the engine's single closed error taxonomy (spec
// §7). Every error the core surfaces is an *Error carrying one of the
// Code values below, so callers can switch on Code instead of matching
// strings or sentinel values scattered across packages.
package apperr

import (
	"errors"
	"fmt"
)

// Code tags which branch of the taxonomy an Error belongs to.
type Code string

const (
	CodeNodeNotFound           Code = "node_not_found"
	CodeInvalidFrame           Code = "invalid_frame"
	CodeUnauthorized           Code = "unauthorized"
	CodeConfigError            Code = "config_error"
	CodeProviderNotConfigured  Code = "provider_not_configured"
	CodeProviderRateLimit      Code = "provider_rate_limit"
	CodeProviderRequestFailed  Code = "provider_request_failed"
	CodeProviderError          Code = "provider_error"
	CodeGenerationFailed       Code = "generation_failed"
	CodeQueueFull              Code = "queue_full"
	CodeTimeout                Code = "timeout"
	CodeStorageError           Code = "storage_error"
)

// Error is the engine's tagged error value. Msg carries human-readable
// detail; Code is what callers should branch on.
type Error struct {
	Code Code
	Msg  string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, apperr.New(CodeX, "")) to match purely on Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// New builds an Error with no wrapped cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap builds an Error that wraps cause, formatting msg as context.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Err: cause}
}

// NodeNotFound builds a CodeNodeNotFound error for the given hex node id.
func NodeNotFound(nodeIDHex string) *Error {
	return New(CodeNodeNotFound, fmt.Sprintf("node not found: %s", nodeIDHex))
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsRetryable classifies the subset of error codes the generation queue
// retries automatically. ConfigError and ProviderNotConfigured are
// terminal; rate limits, request
// failures, generic provider errors, and anything outside the taxonomy
// (plain I/O errors bubbling up from a provider client) are retryable.
func IsRetryable(err error) bool {
	code, ok := CodeOf(err)
	if !ok {
		// Generic/untagged errors (e.g. network I/O) are retryable per spec.
		return true
	}
	switch code {
	case CodeConfigError, CodeProviderNotConfigured:
		return false
	case CodeProviderRateLimit, CodeProviderRequestFailed, CodeProviderError:
		return true
	default:
		return true
	}
}
