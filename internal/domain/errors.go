package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeLLM              = "LLM_ERROR"
)

// Validation errors
var (
	ErrInvalidRole          = NewDomainError(ErrCodeValidation, "invalid turn role")
	ErrEmptyTurnContent     = NewDomainError(ErrCodeValidation, "turn content cannot be empty")
	ErrInvalidChartColor    = NewDomainError(ErrCodeValidation, "invalid chart color")
	ErrInvalidActivityType  = NewDomainError(ErrCodeValidation, "invalid activity type")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrTurnNotFound         = NewDomainError(ErrCodeNotFound, "turn not found")
	ErrSourceNotFound       = NewDomainError(ErrCodeNotFound, "knowledge source not found")
	ErrStateNotFound        = NewDomainError(ErrCodeNotFound, "state document not found")
	ErrMediaNotFound        = NewDomainError(ErrCodeNotFound, "no media found for topic")
	ErrUserTokenNotFound    = NewDomainError(ErrCodeNotFound, "no user token available")
)

// Already exists errors
var (
	ErrSourceAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "knowledge source already exists")
)

// Authorization errors
var (
	ErrInvalidChannelToken = NewDomainError(ErrCodeUnauthorized, "invalid channel authorization token")
	ErrInvalidAdminKey     = NewDomainError(ErrCodeUnauthorized, "invalid admin api key")
)

// Operation errors
var (
	ErrToolNotFound  = NewDomainError(ErrCodeInvalidOperation, "tool not found")
	ErrDivideByZero  = NewDomainError(ErrCodeInvalidOperation, "division by zero")
	ErrAgentNotReady = NewDomainError(ErrCodeInvalidOperation, "agent has no completion backend configured")
)
