package helpers

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks failures to reach the server at all.
	ErrNetwork = errors.New("network error")
	// ErrAPI marks error envelopes returned by the server.
	ErrAPI = errors.New("api error")
)

// NetworkError represents a network-related error
type NetworkError struct {
	Operation string
	Cause     error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("network error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("network error during %s", e.Operation)
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// APIError is the server's {"error": kind, "details": msg} envelope plus the status code.
type APIError struct {
	Status  int
	Kind    string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Details)
	}
	return fmt.Sprintf("%s (%d)", e.Kind, e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// NewNetworkError creates a new network error
func NewNetworkError(operation string, cause error) error {
	return &NetworkError{
		Operation: operation,
		Cause:     cause,
	}
}
