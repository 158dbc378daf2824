package dto

import (
	"net/http"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
)

// Error codes raised by the HTTP layer itself. Domain errors keep the code
// they were created with so clients see it verbatim.
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"
	ErrCodeTimeout         = "REQUEST_TIMEOUT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeTooManyRequests: http.StatusTooManyRequests,
	ErrCodeTimeout:         http.StatusGatewayTimeout,

	shared.CodeNotFound:      http.StatusNotFound,
	shared.CodeInvalidInput:  http.StatusBadRequest,
	shared.CodeInvalidState:  http.StatusUnprocessableEntity,
	shared.CodeAlreadyExists: http.StatusConflict,
	// Over-demand is a business rule failure, not a malformed request
	shared.CodeInsufficientStock:  http.StatusUnprocessableEntity,
	shared.CodeSyncConflict:       http.StatusConflict,
	shared.CodeNetworkUnavailable: http.StatusServiceUnavailable,
	shared.CodeRateLimited:        http.StatusTooManyRequests,
	shared.CodeSchemaMismatch:     http.StatusConflict,
	shared.CodePeriodFinalized:    http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code, 500 for
// unknown codes.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
