package services

import (
	"errors"
	"fmt"

	"qwenbridge/internal/models"
)

// ErrorKind names one failure class from the dispatch taxonomy. Direct kinds
// are implementation detail converted to a fallback attempt; automation kinds
// are terminal and surface to the caller.
type ErrorKind string

const (
	KindDirectTimeout           ErrorKind = "direct_timeout"
	KindDirectAuthFailure       ErrorKind = "direct_auth_failure"
	KindDirectRateLimited       ErrorKind = "direct_rate_limited"
	KindDirectServerError       ErrorKind = "direct_server_error"
	KindDirectMalformedResponse ErrorKind = "direct_malformed_response"
	KindStreamReorderDetected   ErrorKind = "stream_reorder_detected"

	KindAutomationTimeout         ErrorKind = "automation_timeout"
	KindAutomationElementNotFound ErrorKind = "automation_element_not_found"
	KindAutomationCrashed         ErrorKind = "automation_crashed"
)

// DispatchError is a classified transport failure.
type DispatchError struct {
	Kind      ErrorKind
	Transport models.Transport
	Status    int // HTTP status for direct failures, 0 otherwise
	Message   string
	Err       error
}

func (e *DispatchError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func directError(kind ErrorKind, status int, msg string, err error) *DispatchError {
	return &DispatchError{Kind: kind, Transport: models.TransportDirect, Status: status, Message: msg, Err: err}
}

func automationError(kind ErrorKind, msg string, err error) *DispatchError {
	return &DispatchError{Kind: kind, Transport: models.TransportFallback, Message: msg, Err: err}
}

// KindOf extracts the taxonomy kind from an error chain, or "" if the error
// is not a classified dispatch failure.
func KindOf(err error) ErrorKind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsAuthFailure reports whether the error is a direct-path auth rejection.
func IsAuthFailure(err error) bool {
	return KindOf(err) == KindDirectAuthFailure
}
