package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryClient   ErrorCategory = "client"
	CategoryServer   ErrorCategory = "server"
	CategoryExternal ErrorCategory = "external"
)

// Common error codes
const (
	// Client errors (4xx)
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidURL      = "INVALID_URL"
	CodeNotFound        = "NOT_FOUND"
	CodeJobNotFound     = "JOB_NOT_FOUND"
	CodeConflict        = "CONFLICT"

	// Orchestration errors
	CodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
	CodeExtractionFailed    = "EXTRACTION_FAILED"
	CodeSpawnError          = "SPAWN_ERROR"
	CodeProcessFailure      = "PROCESS_FAILURE"
	CodeParseAnomaly        = "PARSE_ANOMALY"
	CodeCancelledByUser     = "CANCELLED_BY_USER"

	// Server errors (5xx)
	CodeInternalError = "INTERNAL_ERROR"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeStorageError  = "STORAGE_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"-"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// WithCause sets the underlying cause of the error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// ErrorResponse is the JSON structure returned to clients
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// New creates a new AppError
func New(code string, message string, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Category:   category,
		HTTPStatus: httpStatus,
	}
}

// Client error constructors

func BadRequest(message string) *AppError {
	return New(CodeInvalidRequest, message, CategoryClient, http.StatusBadRequest)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message, CategoryClient, http.StatusBadRequest)
}

func InvalidURL(url string) *AppError {
	return New(CodeInvalidURL, fmt.Sprintf("not a downloadable media URL: %s", url), CategoryClient, http.StatusBadRequest)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), CategoryClient, http.StatusNotFound)
}

func JobNotFound() *AppError {
	return New(CodeJobNotFound, "job not found", CategoryClient, http.StatusNotFound)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, CategoryClient, http.StatusConflict)
}

// Orchestration error constructors. These carry the classification that
// decides whether a failed job attempt may be retried.

// UnsupportedPlatform means no embedded binary asset exists for the host.
// Fatal, never retried.
func UnsupportedPlatform(goos, goarch string) *AppError {
	return New(CodeUnsupportedPlatform,
		fmt.Sprintf("no embedded downloader binary for %s/%s", goos, goarch),
		CategoryServer, http.StatusNotImplemented)
}

// ExtractionFailed means the embedded binary could not be written, verified
// or probed in the cache directory.
func ExtractionFailed(message string) *AppError {
	return New(CodeExtractionFailed, message, CategoryServer, http.StatusInternalServerError)
}

// SpawnError means the resolved binary could not be launched at all.
func SpawnError(message string) *AppError {
	return New(CodeSpawnError, message, CategoryExternal, http.StatusBadGateway)
}

// ProcessFailure means the download process exited unsuccessfully.
func ProcessFailure(message string) *AppError {
	return New(CodeProcessFailure, message, CategoryExternal, http.StatusBadGateway)
}

// CancelledByUser marks a job the caller cancelled. Terminal, never retried.
func CancelledByUser() *AppError {
	return New(CodeCancelledByUser, "cancelled by user", CategoryClient, http.StatusConflict)
}

// Server error constructors

func InternalError(message string) *AppError {
	return New(CodeInternalError, message, CategoryServer, http.StatusInternalServerError)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message, CategoryServer, http.StatusInternalServerError)
}

// StorageError marks failures talking to object storage. It is external,
// so retry machinery treats it as transient.
func StorageError(message string) *AppError {
	return New(CodeStorageError, message, CategoryExternal, http.StatusBadGateway)
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, requestID string, err error) {
	var appErr *AppError

	switch e := err.(type) {
	case *AppError:
		appErr = e
	default:
		// Wrap unknown errors as internal errors
		appErr = InternalError("an unexpected error occurred").WithCause(err)
	}

	resp := ErrorResponse{
		Error: ErrorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
			Details:   appErr.Details,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a JSON response with the request ID header
func WriteJSON(w http.ResponseWriter, requestID string, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// IsRetryable returns true if a failed job attempt with this error may be
// resubmitted. Cancellation intent and missing platform assets are final;
// external failures (spawn errors, network-class process exits) are not.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	switch appErr.Code {
	case CodeUnsupportedPlatform, CodeCancelledByUser, CodeInvalidURL:
		return false
	}

	if appErr.Category == CategoryExternal {
		return true
	}

	if appErr.Category == CategoryServer {
		return appErr.Code == CodeExtractionFailed
	}

	return false
}

// Code extracts the machine classification from an error, defaulting to
// INTERNAL_ERROR for plain errors.
func Code(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// IsClientError returns true if the error is a client error
func IsClientError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryClient
}

// IsExternalError returns true if the error is an external service error
func IsExternalError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryExternal
}
