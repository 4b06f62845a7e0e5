package core

import (
	"context"
	"errors"
	"fmt"
)

// FetchErrorKind is the machine-readable class of an upstream failure
type FetchErrorKind string

const (
	KindRateLimited   FetchErrorKind = "rate_limited"
	KindTimeout       FetchErrorKind = "timeout"
	KindUpstreamError FetchErrorKind = "upstream_error"
	KindNetworkError  FetchErrorKind = "network_error"
)

// ErrorType is the public error taxonomy surfaced to callers
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "ValidationError"
	ErrorTypeUpstreamTransient ErrorType = "UpstreamTransientError"
	ErrorTypeRateLimited       ErrorType = "RateLimited"
	ErrorTypeInternal          ErrorType = "InternalError"
)

// ErrUnknownOperation is returned by the dispatcher for unsupported operations
var ErrUnknownOperation = errors.New("unknown operation")

// ValidationError reports malformed or out-of-bounds caller input
type ValidationError struct {
	Operation string
	Field     string
	Value     any
	Message   string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// FetchError reports an upstream call that did not produce a usable response
type FetchError struct {
	Kind     FetchErrorKind
	Status   int
	Endpoint Endpoint
	Message  string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// OperationError attaches the calling operation and drug to an error
type OperationError struct {
	Operation string
	Drug      string
	Err       error
}

func (e *OperationError) Error() string {
	if e.Drug == "" {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Operation, e.Drug, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func wrapOp(operation, drug string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, Drug: drug, Err: err}
}

// ErrorDescriptor is the structured error object returned across the public boundary
type ErrorDescriptor struct {
	Type      ErrorType `json:"type"`
	Kind      string    `json:"kind,omitempty"`
	Status    int       `json:"status,omitempty"`
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	Drug      string    `json:"drug,omitempty"`
	Operation string    `json:"operation,omitempty"`
}

func (d *ErrorDescriptor) Error() string {
	return d.Message
}

// Describe converts any error into an ErrorDescriptor
func Describe(err error) *ErrorDescriptor {
	if err == nil {
		return nil
	}

	var existing *ErrorDescriptor
	if errors.As(err, &existing) {
		return existing
	}

	var d ErrorDescriptor
	var opErr *OperationError
	if errors.As(err, &opErr) {
		d.Operation = opErr.Operation
		d.Drug = opErr.Drug
	}

	var valErr *ValidationError
	var fetchErr *FetchError
	switch {
	case errors.As(err, &valErr):
		d.Type = ErrorTypeValidation
		d.Kind = "validation_error"
		d.Field = valErr.Field
		d.Message = valErr.Message
		if d.Operation == "" {
			d.Operation = valErr.Operation
		}
	case errors.As(err, &fetchErr):
		d.Type = ErrorTypeUpstreamTransient
		if fetchErr.Kind == KindRateLimited {
			d.Type = ErrorTypeRateLimited
		}
		d.Kind = string(fetchErr.Kind)
		d.Status = fetchErr.Status
		d.Message = fetchErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		d.Type = ErrorTypeUpstreamTransient
		d.Kind = string(KindTimeout)
		d.Message = err.Error()
	default:
		d.Type = ErrorTypeInternal
		d.Message = err.Error()
	}

	return &d
}
