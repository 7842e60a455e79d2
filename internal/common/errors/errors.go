package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodePoolFetchFailed      ErrorCode = "POOL_FETCH_FAILED"
	ErrCodeAnalyticsUnavailable ErrorCode = "ANALYTICS_UNAVAILABLE"
	ErrCodeWidgetNotFound       ErrorCode = "WIDGET_NOT_FOUND"
	ErrCodeEventNotFound        ErrorCode = "EVENT_NOT_FOUND"
	ErrCodeVersionConflict      ErrorCode = "VERSION_CONFLICT"
	ErrCodeLockNotAcquired      ErrorCode = "LOCK_NOT_ACQUIRED"
	ErrCodeStorageWriteFailed   ErrorCode = "STORAGE_WRITE_FAILED"
	ErrCodeStorageReadFailed    ErrorCode = "STORAGE_READ_FAILED"
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// BPMNError is the shape thrown back to Zeebe from job workers.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

func NewPoolFetchFailedError(widgetID string, err error) *StandardError {
	e := newError(ErrCodePoolFetchFailed, "Event pool fetch failed", err, true)
	e.Metadata = map[string]interface{}{"widgetId": widgetID}
	return e
}

func NewAnalyticsUnavailableError(widgetID string, err error) *StandardError {
	e := newError(ErrCodeAnalyticsUnavailable, "Analytics aggregator unavailable", err, true)
	e.Metadata = map[string]interface{}{"widgetId": widgetID}
	return e
}

func NewWidgetNotFoundError(widgetID string) *StandardError {
	e := newError(ErrCodeWidgetNotFound, "Widget not found", nil, false)
	e.Details = fmt.Sprintf("widgetId: %s", widgetID)
	return e
}

func NewEventNotFoundError(eventID string) *StandardError {
	e := newError(ErrCodeEventNotFound, "Notification event not found", nil, false)
	e.Details = fmt.Sprintf("eventId: %s", eventID)
	return e
}

func NewVersionConflictError(widgetID string, expected int64) *StandardError {
	e := newError(ErrCodeVersionConflict, "Widget configuration changed concurrently", nil, true)
	e.Details = fmt.Sprintf("widgetId: %s, expectedVersion: %d", widgetID, expected)
	return e
}

func NewLockNotAcquiredError(key string) *StandardError {
	e := newError(ErrCodeLockNotAcquired, "Graduation cycle already running", nil, true)
	e.Details = fmt.Sprintf("lock: %s", key)
	return e
}

func NewStorageWriteFailedError(op string, err error) *StandardError {
	e := newError(ErrCodeStorageWriteFailed, "Storage write failed", err, true)
	e.Metadata = map[string]interface{}{"operation": op}
	return e
}

func NewStorageReadFailedError(op string, err error) *StandardError {
	e := newError(ErrCodeStorageReadFailed, "Storage read failed", err, true)
	e.Metadata = map[string]interface{}{"operation": op}
	return e
}

func NewInvalidInputError(details string) *StandardError {
	e := newError(ErrCodeInvalidInput, "Invalid input", nil, false)
	e.Details = details
	return e
}

// CodeOf returns the code of the first StandardError in err's chain.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeAnalyticsUnavailable,
		ErrCodeStorageReadFailed,
		ErrCodeStorageWriteFailed,
		ErrCodePoolFetchFailed:
		return 3

	case ErrCodeVersionConflict,
		ErrCodeLockNotAcquired:
		return 1

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "STORAGE"), strings.HasPrefix(codeStr, "POOL"):
		return "STORAGE"
	case strings.HasPrefix(codeStr, "ANALYTICS"):
		return "ANALYTICS"
	case code == ErrCodeVersionConflict, code == ErrCodeLockNotAcquired:
		return "CONCURRENCY"
	case strings.HasSuffix(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.HasPrefix(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
