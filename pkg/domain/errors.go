package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no capability is registered under the requested name.
	ErrNotFound = errors.New("capability not found")
	// ErrInvalidParams is returned when parameters are missing or malformed.
	ErrInvalidParams = errors.New("invalid parameters")
	// ErrExecutionFailed is returned when a capability could not run for infrastructure reasons.
	ErrExecutionFailed = errors.New("execution failed")
	// ErrPermissionDenied is returned when a request is rejected by policy.
	ErrPermissionDenied = errors.New("permission denied")
)

// ErrorKind classifies a protocol error.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindInvalidParams
	KindExecutionFailed
	KindPermissionDenied
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidParams:
		return "invalid_params"
	case KindExecutionFailed:
		return "execution_failed"
	case KindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindInvalidParams:
		return ErrInvalidParams
	case KindExecutionFailed:
		return ErrExecutionFailed
	case KindPermissionDenied:
		return ErrPermissionDenied
	default:
		return nil
	}
}

// ToolError is a protocol error: the capability could not run at all.
// It matches its kind's sentinel with errors.Is, as well as any wrapped cause.
type ToolError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if s := e.Kind.sentinel(); s != nil {
		return s.Error() + ": " + e.Message
	}
	return e.Message
}

func (e *ToolError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newToolError(kind ErrorKind, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return &ToolError{Kind: kind, Message: err.Error(), Err: errors.Unwrap(err)}
}

// NotFound reports that name is not registered.
func NotFound(name string) error {
	return &ToolError{Kind: KindNotFound, Message: name}
}

// InvalidParams reports malformed or missing parameters. The format supports %w.
func InvalidParams(format string, args ...any) error {
	return newToolError(KindInvalidParams, format, args...)
}

// ExecutionFailed reports an infrastructure failure. The format supports %w.
func ExecutionFailed(format string, args ...any) error {
	return newToolError(KindExecutionFailed, format, args...)
}

// PermissionDenied reports a policy rejection. The format supports %w.
func PermissionDenied(format string, args ...any) error {
	return newToolError(KindPermissionDenied, format, args...)
}

// KindOf extracts the protocol error kind from err.
func KindOf(err error) (ErrorKind, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}
