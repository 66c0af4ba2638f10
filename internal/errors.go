package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different types of errors
type ErrorType int

const (
	ErrConfiguration ErrorType = iota
	ErrInvalidArgument
	ErrAPI
	ErrProtocol
	ErrUpload
	ErrNetwork
	ErrAuthRequired
	ErrFileNotFound
	ErrRateLimit
	ErrServer
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// TeraboxError represents a TeraBox-specific error with detailed information.
// For ErrAPI errors Code and Message are the upstream errno and errmsg, verbatim.
type TeraboxError struct {
	Code       int                    `json:"errno"`
	Message    string                 `json:"errmsg"`
	Type       ErrorType              `json:"type"`
	Severity   ErrorSeverity          `json:"severity"`
	URL        string                 `json:"url,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *TeraboxError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("terabox error (code: %d, type: %s)", e.Code, e.Type.String()))

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// DetailedError returns a detailed error message with all available information
func (e *TeraboxError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s Error", e.Severity.String(), e.Type.String()))

	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("Code: %d", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("Message: %s", e.Message))
	}

	// URLs carry jsToken and sign in the query, never print them
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("URL: %s", redactSensitiveURL(e.URL)))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "\n")
}

// String returns the string representation of ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrConfiguration:
		return "Configuration"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrAPI:
		return "API"
	case ErrProtocol:
		return "Protocol"
	case ErrUpload:
		return "Upload"
	case ErrNetwork:
		return "Network"
	case ErrAuthRequired:
		return "AuthRequired"
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrRateLimit:
		return "RateLimit"
	case ErrServer:
		return "Server"
	default:
		return "Unknown"
	}
}

// String returns the string representation of ErrorSeverity
func (es ErrorSeverity) String() string {
	switch es {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// NewTeraboxError creates a new TeraboxError with detailed information
func NewTeraboxError(code int, message string, errorType ErrorType) *TeraboxError {
	return &TeraboxError{
		Code:       code,
		Message:    message,
		Type:       errorType,
		Severity:   getDefaultSeverity(errorType),
		Suggestion: getDefaultSuggestion(errorType, code),
		Context:    make(map[string]interface{}),
	}
}

// NewAPIError wraps a non-zero envelope. The message is kept exactly as the
// server sent it; the errno table only contributes the suggestion.
func NewAPIError(errno int, errmsg string) *TeraboxError {
	err := NewTeraboxError(errno, errmsg, ErrAPI)
	if hint := DescribeErrno(errno); hint != "" {
		err.Suggestion = hint
	}
	return err
}

// NewConfigurationError creates an error for a missing or malformed credential
func NewConfigurationError(field, reason string) *TeraboxError {
	return NewTeraboxError(0, fmt.Sprintf("%s: %s", field, reason), ErrConfiguration).
		WithContext("field", field)
}

// NewArgumentError creates an error for a malformed operation argument
func NewArgumentError(argument, reason string) *TeraboxError {
	return NewTeraboxError(0, fmt.Sprintf("invalid %s: %s", argument, reason), ErrInvalidArgument).
		WithContext("argument", argument)
}

// NewProtocolError creates an error for a response missing an expected field
func NewProtocolError(endpoint, reason string) *TeraboxError {
	return NewTeraboxError(0, reason, ErrProtocol).
		WithContext("endpoint", endpoint)
}

// NewUploadError creates an error for a failed block transfer
func NewUploadError(reason string) *TeraboxError {
	return NewTeraboxError(0, reason, ErrUpload)
}

// WithSuggestion adds a custom suggestion to the error
func (e *TeraboxError) WithSuggestion(suggestion string) *TeraboxError {
	e.Suggestion = suggestion
	return e
}

// WithURL adds URL context to the error (will be redacted in logs)
func (e *TeraboxError) WithURL(url string) *TeraboxError {
	e.URL = url
	return e
}

// WithContext adds context information to the error
func (e *TeraboxError) WithContext(key string, value interface{}) *TeraboxError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause records the error that led to e
func (e *TeraboxError) WithCause(err error) *TeraboxError {
	e.Cause = err
	return e
}

// Unwrap returns the recorded cause, if any
func (e *TeraboxError) Unwrap() error {
	return e.Cause
}

// AsTeraboxError unwraps err into a *TeraboxError if one is in the chain.
func AsTeraboxError(err error) (*TeraboxError, bool) {
	var tbErr *TeraboxError
	if errors.As(err, &tbErr) {
		return tbErr, true
	}
	return nil, false
}

// IsType reports whether err carries a TeraboxError of the given type.
func IsType(err error, errorType ErrorType) bool {
	tbErr, ok := AsTeraboxError(err)
	return ok && tbErr.Type == errorType
}

// IsAPIError reports whether err was produced by a non-zero envelope.
func IsAPIError(err error) bool {
	return IsType(err, ErrAPI)
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field      string                 `json:"field"`
	Message    string                 `json:"message"`
	Value      interface{}            `json:"value,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := []string{fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// DetailedError returns a detailed validation error message
func (e *ValidationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Validation Error for field '%s'", e.Field))
	parts = append(parts, fmt.Sprintf("Message: %s", e.Message))

	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("Provided value: %v", e.Value))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "\n")
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewValidationErrorWithValue creates a ValidationError with the invalid value
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Context: make(map[string]interface{}),
	}
}

// WithSuggestion adds a suggestion to the validation error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

// WithContext adds context to the validation error
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// DescribeErrno maps well-known TeraBox errno values to a human hint.
// Unknown codes return "".
func DescribeErrno(errno int) string {
	switch errno {
	case -1:
		return "invalid request parameters"
	case -2:
		return "authentication required or invalid"
	case -3:
		return "access denied"
	case -4:
		return "file not found or share expired"
	case -6:
		return "session expired, capture a fresh ndus cookie"
	case -7:
		return "file name illegal or quota exceeded"
	case -8:
		return "a file with the same name already exists"
	case -9:
		return "file or folder not found"
	case -10:
		return "storage quota exceeded"
	case 2:
		return "parameter error"
	case 4:
		return "operation partially failed, nothing was changed for the failing entries"
	case 12:
		return "batch file operation failed"
	case 31023:
		return "streaming not available for this file or quality"
	case 31034:
		return "anti-crawler verification failed, slow down"
	case 31045:
		return "verification code required"
	case 31061:
		return "file download forbidden"
	case 31062:
		return "file access restricted"
	case 31066:
		return "file does not exist"
	case 400210:
		return "jsToken missing or expired"
	default:
		return ""
	}
}

// getDefaultSuggestion returns a default suggestion based on error type and code
func getDefaultSuggestion(errorType ErrorType, code int) string {
	switch errorType {
	case ErrConfiguration:
		return "Provide the ndus session cookie using --ndus, --cookies or TERABOX_NDUS"
	case ErrInvalidArgument:
		return "Check the arguments passed to the operation"
	case ErrAPI:
		return "The TeraBox API rejected the request, check the errno and message"
	case ErrProtocol:
		return "Unexpected response from server. The API might have changed"
	case ErrUpload:
		return "The upload server did not accept the block. Try again later"
	case ErrNetwork:
		return "Check your internet connection and try again. Consider using a proxy if needed"
	case ErrAuthRequired:
		return "Please provide a valid ndus cookie using --cookies or TERABOX_NDUS"
	case ErrFileNotFound:
		return "Verify the remote path or id still exists"
	case ErrRateLimit:
		return "Please wait before retrying"
	case ErrServer:
		if code >= 500 {
			return "Server error occurred. Please try again later"
		}
		return "Unexpected HTTP status from server"
	default:
		return "Please check the error details and try again"
	}
}

// getDefaultSeverity returns the default severity for an error type
func getDefaultSeverity(errorType ErrorType) ErrorSeverity {
	switch errorType {
	case ErrRateLimit, ErrNetwork:
		return SeverityWarning
	case ErrConfiguration, ErrAuthRequired:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// redactSensitiveURL redacts sensitive information from URLs
func redactSensitiveURL(url string) string {
	if strings.Contains(url, "?") {
		parts := strings.Split(url, "?")
		return parts[0] + "?[REDACTED]"
	}
	return url
}
