package bybit

import (
	"fmt"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
)

// APIError is a non-zero retCode returned by the v5 API
type APIError struct {
	Code    int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("bybit error %d: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("bybit error %d: %s", e.Code, e.Message)
}

// Common v5 error codes
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeOrderNotFound       = 110001
	ErrCodeInvalidOrderType    = 110004
	ErrCodeInsufficientBalance = 110007
	ErrCodeSymbolNotFound      = 110009
	ErrCodeInvalidQuantity     = 110020
	ErrCodeInvalidPrice        = 110021
	ErrCodeMarketClosed        = 110043
)

// categorize maps an API error onto the bot error taxonomy.
func categorize(err *APIError, operation string) *boterrors.BotError {
	var cat boterrors.ErrorCategory
	switch err.Code {
	case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature:
		cat = boterrors.ErrorCategoryCredentials
	case ErrCodeInvalidTimestamp:
		cat = boterrors.ErrorCategoryTemporary
	case ErrCodeRateLimitExceeded:
		cat = boterrors.ErrorCategoryRateLimit
	case ErrCodeInsufficientBalance:
		return boterrors.NewOrderError("bybit", operation, err).WithRetryable(false)
	case ErrCodeInvalidOrderType, ErrCodeInvalidQuantity, ErrCodeInvalidPrice, ErrCodeSymbolNotFound:
		cat = boterrors.ErrorCategoryValidation
	case ErrCodeOrderNotFound, ErrCodeMarketClosed:
		return boterrors.NewOrderError("bybit", operation, err).WithRetryable(false)
	default:
		cat = boterrors.ErrorCategoryExchange
	}
	return boterrors.WrapError(err, cat, "bybit", operation)
}
