// Package errors provides custom error types for the assistant backend client.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNetwork         = errors.New("network request failed")
	ErrStreamOpen      = errors.New("stream could not be opened")
	ErrStreamRead      = errors.New("stream read failed")
	ErrUpload          = errors.New("upload failed")
	ErrTimeout         = errors.New("request timed out")
	ErrNoBody          = errors.New("response has no body")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrClientClosed    = errors.New("client is closed")
)

// NetworkError is returned when a non-streaming request fails, either at the
// transport level or with a non-2xx status.
type NetworkError struct {
	Operation  string
	StatusCode int
	Endpoint   string
	Body       string
	Cause      error
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Operation)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s: HTTP %d", msg, e.StatusCode)
	}
	if e.Endpoint != "" {
		msg = fmt.Sprintf("%s at %s", msg, e.Endpoint)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	} else if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	return msg
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Is allows comparison with sentinel errors
func (e *NetworkError) Is(target error) bool {
	if target == ErrNetwork {
		return true
	}
	_, ok := target.(*NetworkError)
	return ok
}

// NewNetworkError creates a NetworkError for a transport failure
func NewNetworkError(operation, endpoint string, cause error) *NetworkError {
	return &NetworkError{Operation: operation, Endpoint: endpoint, Cause: cause}
}

// NewNetworkStatusError creates a NetworkError for a non-2xx response
func NewNetworkStatusError(operation, endpoint string, statusCode int, body string) *NetworkError {
	return &NetworkError{
		Operation:  operation,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Body:       body,
	}
}

// StreamOpenError is returned when the streaming request is rejected or has
// no readable body.
type StreamOpenError struct {
	StatusCode int
	Endpoint   string
	Body       string
	Cause      error
}

func (e *StreamOpenError) Error() string {
	switch {
	case e.StatusCode > 0:
		if e.Body != "" {
			return fmt.Sprintf("failed to open stream [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Body)
		}
		return fmt.Sprintf("failed to open stream [%d] at %s", e.StatusCode, e.Endpoint)
	case e.Cause != nil:
		return fmt.Sprintf("failed to open stream at %s: %v", e.Endpoint, e.Cause)
	default:
		return fmt.Sprintf("failed to open stream at %s", e.Endpoint)
	}
}

func (e *StreamOpenError) Unwrap() error {
	return e.Cause
}

// Is allows comparison with sentinel errors
func (e *StreamOpenError) Is(target error) bool {
	if target == ErrStreamOpen {
		return true
	}
	_, ok := target.(*StreamOpenError)
	return ok
}

// NewStreamOpenError creates a StreamOpenError
func NewStreamOpenError(statusCode int, endpoint, body string, cause error) *StreamOpenError {
	return &StreamOpenError{StatusCode: statusCode, Endpoint: endpoint, Body: body, Cause: cause}
}

// StreamReadError is returned when the body fails mid-stream.
type StreamReadError struct {
	Received int
	Cause    error
}

func (e *StreamReadError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("stream interrupted after %d bytes", e.Received)
	}
	return fmt.Sprintf("stream interrupted after %d bytes: %v", e.Received, e.Cause)
}

func (e *StreamReadError) Unwrap() error {
	return e.Cause
}

// Is allows comparison with sentinel errors
func (e *StreamReadError) Is(target error) bool {
	if target == ErrStreamRead {
		return true
	}
	_, ok := target.(*StreamReadError)
	return ok
}

// NewStreamReadError creates a StreamReadError
func NewStreamReadError(received int, cause error) *StreamReadError {
	return &StreamReadError{Received: received, Cause: cause}
}

// UploadError represents a failed attachment upload
type UploadError struct {
	FilePath   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("upload of %s failed", e.FilePath)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [%d]", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// Is allows comparison with sentinel errors
func (e *UploadError) Is(target error) bool {
	if target == ErrUpload {
		return true
	}
	_, ok := target.(*UploadError)
	return ok
}

// NewUploadError creates a new UploadError
func NewUploadError(filePath string, statusCode int, message string, cause error) *UploadError {
	return &UploadError{FilePath: filePath, StatusCode: statusCode, Message: message, Cause: cause}
}

// APIError represents a structured error reported by the backend
// ({"detail": ...}).
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// TimeoutError represents a request or stream idle timeout
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "request timed out"
	}
	return fmt.Sprintf("request timed out: %s", e.Message)
}

// Is allows comparison with sentinel errors
func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	_, ok := target.(*TimeoutError)
	return ok
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{Message: message}
}

// IsNetworkError reports whether err is a NetworkError
func IsNetworkError(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

// IsStreamOpenError reports whether err is a StreamOpenError
func IsStreamOpenError(err error) bool {
	var e *StreamOpenError
	return errors.As(err, &e)
}

// IsStreamReadError reports whether err is a StreamReadError
func IsStreamReadError(err error) bool {
	var e *StreamReadError
	return errors.As(err, &e)
}

// IsUploadError reports whether err is an UploadError
func IsUploadError(err error) bool {
	var e *UploadError
	return errors.As(err, &e)
}

// IsTimeoutError reports whether err is a TimeoutError
func IsTimeoutError(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// GetHTTPStatus extracts the HTTP status code carried by err, or 0.
func GetHTTPStatus(err error) int {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.StatusCode
	}
	var openErr *StreamOpenError
	if errors.As(err, &openErr) {
		return openErr.StatusCode
	}
	var upErr *UploadError
	if errors.As(err, &upErr) {
		return upErr.StatusCode
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// GetEndpoint extracts the endpoint carried by err, or "".
func GetEndpoint(err error) string {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Endpoint
	}
	var openErr *StreamOpenError
	if errors.As(err, &openErr) {
		return openErr.Endpoint
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Endpoint
	}
	return ""
}

// GetResponseBody extracts the response body snippet carried by err, or "".
func GetResponseBody(err error) string {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Body
	}
	var openErr *StreamOpenError
	if errors.As(err, &openErr) {
		return openErr.Body
	}
	return ""
}
