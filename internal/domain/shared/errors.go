package shared

import "fmt"

// Error codes shared by every layer. Handlers map them to HTTP status codes
// and the UI shows the message verbatim.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidState       = "INVALID_STATE"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeSyncConflict       = "SYNC_CONFLICT"
	CodeNetworkUnavailable = "NETWORK_UNAVAILABLE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeSchemaMismatch     = "SCHEMA_MISMATCH"
	CodePeriodFinalized    = "PERIOD_FINALIZED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so a
// detailed error still matches its sentinel with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a domain error with a formatted message
func Errorf(code, format string, args ...any) *DomainError {
	return NewDomainError(code, fmt.Sprintf(format, args...))
}

// Common domain errors
var (
	ErrNotFound           = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput       = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidState       = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrAlreadyExists      = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInsufficientStock  = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrSyncConflict       = NewDomainError(CodeSyncConflict, "Remote ledger rejected the change or a concurrent edit diverged")
	ErrNetworkUnavailable = NewDomainError(CodeNetworkUnavailable, "Remote ledger is unreachable")
	ErrRateLimited        = NewDomainError(CodeRateLimited, "Remote ledger is rate limiting requests")
	ErrSchemaMismatch     = NewDomainError(CodeSchemaMismatch, "Local and remote table shapes disagree; a migration is required")
	ErrPeriodFinalized    = NewDomainError(CodePeriodFinalized, "Duty period is finalized and can no longer change")
)
