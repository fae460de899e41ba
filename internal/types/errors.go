package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants. All components use these constants instead
// of hardcoded strings so failure taxonomy stays consistent in logs and
// metrics.
const (
	// Validation rejections (permanent; never retried)
	ErrCodeValidationUnknownSource ErrorCode = "validation_unknown_source"
	ErrCodeValidationUnknownType   ErrorCode = "validation_unknown_event_type"
	ErrCodeValidationMalformed     ErrorCode = "validation_malformed_detail"
	ErrCodeValidationSchema        ErrorCode = "validation_schema_failed"
	ErrCodeValidationInvalidEmail  ErrorCode = "validation_invalid_email"

	// Message build failures (permanent for the event)
	ErrCodeBuildMissingField ErrorCode = "build_missing_required_field"
	ErrCodeBuildNoTemplate   ErrorCode = "build_no_template_config"

	// Upstream send failures (transient; trigger redelivery applies)
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeEmailRejected         ErrorCode = "email_rejected"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// AppError is the standard application error type used throughout the
// pipeline. Expressing failures as AppError gives the orchestrator a single
// way to decide between consume-without-retry and propagate-for-redelivery.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Permanent reports whether the error is terminal for the event: replaying
// the identical input cannot succeed, so the trigger should not redeliver.
func (e *AppError) Permanent() bool {
	switch e.Code {
	case ErrCodeValidationUnknownSource,
		ErrCodeValidationUnknownType,
		ErrCodeValidationMalformed,
		ErrCodeValidationSchema,
		ErrCodeValidationInvalidEmail,
		ErrCodeBuildMissingField,
		ErrCodeBuildNoTemplate,
		ErrCodeEmailRejected:
		return true
	}
	return false
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details,
// for rejection logs that need field names without payload contents.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
