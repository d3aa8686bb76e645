// Package errors provides standardized error handling for the deal engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// External capability failures: always degrade, never fatal.
	ErrCodeCapabilityUnavailable ErrorCode = "CAPABILITY_UNAVAILABLE"
	ErrCodeCapabilityTimeout     ErrorCode = "CAPABILITY_TIMEOUT"
	ErrCodeMalformedResponse     ErrorCode = "MALFORMED_RESPONSE"

	// Market aggregation.
	ErrCodeMarketSearchFailed ErrorCode = "MARKET_SEARCH_FAILED"
	ErrCodeMarketTimeout      ErrorCode = "MARKET_TIMEOUT"

	// Persistence: reads degrade to empty history, writes are best-effort.
	ErrCodePersistenceError ErrorCode = "PERSISTENCE_ERROR"

	// Caller input.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Contract violations fail fast at the boundary.
	ErrCodeInvalidPrice ErrorCode = "INVALID_PRICE"
)

// StandardError is a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	var se *StandardError
	if errors.As(target, &se) {
		return se.Code == e.Code
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsDegradable reports whether err is an external-capability failure the
// pipeline handles by falling back to the heuristic path.
func IsDegradable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeCapabilityUnavailable, ErrCodeCapabilityTimeout, ErrCodeMalformedResponse:
		return true
	}
	return false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewCapabilityUnavailableError marks a text-generation or market capability
// as not configured. Never fatal.
func NewCapabilityUnavailableError(capability string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCapabilityUnavailable,
		Message:   "External capability is not available",
		Details:   fmt.Sprintf("capability: %s", capability),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCapabilityTimeoutError marks an external call that exceeded its timeout
// envelope and was cancelled.
func NewCapabilityTimeoutError(capability string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeCapabilityTimeout,
		Message:   "External capability call timed out",
		Details:   fmt.Sprintf("capability: %s, timeout: %s", capability, timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedResponseError marks AI output that survived every parse
// strategy without yielding structured data.
func NewMalformedResponseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   "External capability returned unparseable output",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMarketSearchFailedError wraps a single connector failure. The aggregator
// logs it and continues with the remaining markets.
func NewMarketSearchFailedError(market string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMarketSearchFailed,
		Message:   "Market connector search failed",
		Details:   fmt.Sprintf("market: %s, error: %v", market, err),
		Retryable: true,
		Metadata:  map[string]interface{}{"market": market},
		Timestamp: time.Now().UTC(),
	}
}

// NewMarketTimeoutError marks a connector that exceeded the per-market
// timeout and was treated as failed.
func NewMarketTimeoutError(market string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMarketTimeout,
		Message:   "Market connector timed out",
		Details:   fmt.Sprintf("market: %s", market),
		Retryable: true,
		Metadata:  map[string]interface{}{"market": market},
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError wraps a history or score-record read/write failure.
func NewPersistenceError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceError,
		Message:   "Persistence operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %v", operation, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError marks unusable caller input (e.g. empty query with no
// filters). Callers answer with an empty result, not a failure.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid search input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidPriceError marks a programming-level contract violation: prices
// must never be negative. This is the one error that propagates hard.
func NewInvalidPriceError(price float64) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPrice,
		Message:   "Price violates the non-negative contract",
		Details:   fmt.Sprintf("price: %f", price),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
