package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ActionError is the error taxonomy shared by every handler. Message is safe
// to return to callers; Err carries the underlying cause for logs only.
type ActionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	// validation
	ErrInvalidRecipient = "INVALID_RECIPIENT"
	ErrInvalidAmount    = "INVALID_AMOUNT"
	ErrInvalidAccount   = "INVALID_ACCOUNT"
	ErrInvalidMemo      = "INVALID_MEMO"
	ErrInvalidMint      = "INVALID_MINT"
	ErrInvalidPayload   = "INVALID_PAYLOAD"
	ErrUnknownAction    = "UNKNOWN_ACTION"

	// build
	ErrInsufficientForRentExemption = "INSUFFICIENT_FOR_RENT_EXEMPTION"
	ErrInvalidFeePayer              = "INVALID_FEE_PAYER"

	// chain
	ErrTransientChain = "TRANSIENT_CHAIN_ERROR"

	ErrInternal    = "INTERNAL_ERROR"
	ErrConfigError = "CONFIG_ERROR"
)

// NewError creates an ActionError without an underlying cause
func NewError(code, message string) *ActionError {
	return &ActionError{Code: code, Message: message}
}

// WrapError creates an ActionError that keeps err for logging
func WrapError(code, message string, err error) *ActionError {
	return &ActionError{Code: code, Message: message, Err: err}
}

// NewTransientChainError reports a failed or timed out RPC call. The call
// name is part of the message so logs show which read failed.
func NewTransientChainError(call string, err error) *ActionError {
	return &ActionError{
		Code:    ErrTransientChain,
		Message: fmt.Sprintf("chain request %s failed", call),
		Err:     err,
	}
}

// ErrorCode returns the taxonomy code of err, or ErrInternal for foreign errors.
func ErrorCode(err error) string {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Code
	}
	return ErrInternal
}

// IsTransient reports whether the caller may retry the request unchanged.
func IsTransient(err error) bool {
	return ErrorCode(err) == ErrTransientChain
}

// HTTPStatus maps err onto the status code returned at the HTTP boundary.
func HTTPStatus(err error) int {
	switch ErrorCode(err) {
	case ErrInvalidRecipient, ErrInvalidAmount, ErrInvalidAccount, ErrInvalidMemo,
		ErrInvalidMint, ErrInvalidPayload, ErrInsufficientForRentExemption, ErrInvalidFeePayer:
		return http.StatusBadRequest
	case ErrUnknownAction:
		return http.StatusNotFound
	case ErrTransientChain:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to an untrusted caller.
// Anything outside the taxonomy collapses to a generic message.
func PublicMessage(err error) string {
	var actionErr *ActionError
	if errors.As(err, &actionErr) && actionErr.Code != ErrInternal {
		return actionErr.Message
	}
	return "internal server error"
}
