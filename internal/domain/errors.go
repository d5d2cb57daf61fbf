package domain

import (
	"errors"
	"fmt"
)

// maxBodyPreview caps the response-body excerpt carried by
// InvalidResponseError for diagnostics.
const maxBodyPreview = 300

// Sentinel errors for the analysis pipeline.
var (
	ErrNotFound         = errors.New("not found")
	ErrInsufficientData = errors.New("insufficient data for analysis")
)

// InsufficientDataError reports which required analysis inputs were
// missing. Gating the invocation is the caller's responsibility; this
// error is the backstop.
type InsufficientDataError struct {
	Missing []string `json:"missing"`
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for analysis: missing %v", e.Missing)
}

// Unwrap lets errors.Is match ErrInsufficientData.
func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// TransportFailureError wraps a network-level failure reaching the
// text-generation collaborator.
type TransportFailureError struct {
	Err error
}

func (e *TransportFailureError) Error() string {
	return fmt.Sprintf("text service transport failure: %v", e.Err)
}

func (e *TransportFailureError) Unwrap() error {
	return e.Err
}

// InvalidResponseError reports a non-2xx status or malformed body from
// the text-generation collaborator, with a truncated body preview.
type InvalidResponseError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("text service returned invalid response (status %d): %s", e.StatusCode, e.Message)
}

// NewInvalidResponseError builds an InvalidResponseError, capping the
// message preview at 300 characters.
func NewInvalidResponseError(statusCode int, body string) *InvalidResponseError {
	if len(body) > maxBodyPreview {
		body = body[:maxBodyPreview]
	}
	return &InvalidResponseError{StatusCode: statusCode, Message: body}
}

// ValidationError represents input validation errors.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
