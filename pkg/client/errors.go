package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// HTTPError is a non-success response from hh.ru.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	ErrorClass ErrorClass
	Message    string

	// RetryAfter is the parsed Retry-After header, 0 if absent.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("hh.ru %s error (status %d) on %s: %s",
			e.ErrorClass, e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("hh.ru %s error (status %d) on %s",
		e.ErrorClass, e.StatusCode, e.Endpoint)
}

// RetryExhaustedError is returned when a retryable failure persisted for every attempt.
// It matches ErrRetryExhausted with errors.Is and exposes the last failure to errors.As.
type RetryExhaustedError struct {
	Endpoint string
	Attempts int
	Class    ErrorClass
	Last     error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts on %s: %v", ErrRetryExhausted, e.Attempts, e.Endpoint, e.Last)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RetryExhaustedError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Last}
}

// ParseError is returned when a response body is not the expected JSON.
type ParseError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response from %s: %v", e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx other than 429 will not change on retry
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classOf returns the error class carried by err. Errors that are not
// HTTP errors come from the transport and count as network errors.
func classOf(err error) ErrorClass {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.ErrorClass
	}
	return ErrorClassNetwork
}

// retryAfterOf returns the Retry-After hint carried by err, if any.
func retryAfterOf(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}
