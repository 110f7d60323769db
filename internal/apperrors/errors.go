// Package apperrors defines the marketplace's error taxonomy as a single typed error carried through every layer
// instead of ad-hoc string errors.
package apperrors

import (
	"fmt"
	"net/http"
	"time"
)

// Type categorizes an error for propagation and HTTP mapping purposes.
type Type string

const (
	Validation        Type = "VALIDATION"
	Authorization     Type = "AUTHORIZATION"
	CreditRejected    Type = "CREDIT_REJECTED"
	VendorUnavailable Type = "VENDOR_UNAVAILABLE"
	Transient         Type = "TRANSIENT"
	Permanent         Type = "PERMANENT"
	Conflict          Type = "CONFLICT"
)

// CreditReason enumerates the structured reasons a credit check can fail.
type CreditReason string

const (
	ReasonCreditLimitExceeded CreditReason = "CREDIT_LIMIT_EXCEEDED"
	ReasonOverdueBlock        CreditReason = "OVERDUE_BLOCK"
	ReasonAccountInactive     CreditReason = "ACCOUNT_INACTIVE"
	ReasonAccountNotApproved  CreditReason = "ACCOUNT_NOT_APPROVED"
	ReasonHighRiskAccount     CreditReason = "HIGH_RISK_ACCOUNT"
)

// Error is the typed error propagated across package boundaries.
type Error struct {
	Type       Type
	Code       string
	Message    string
	Retryable  bool
	HTTPStatus int
	ErrorID    string

	// CreditReason and Shortfall are populated only for Type == CreditRejected.
	CreditReason CreditReason
	Shortfall    *string

	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether err (if an *Error) is safe to retry.
func Retryable(err error) bool {
	var ae *Error
	if asError(err, &ae) {
		return ae.Retryable
	}
	return false
}

func asError(err error, target **Error) bool {
	ae, ok := err.(*Error)
	if ok {
		*target = ae
	}
	return ok
}

func newErr(t Type, code, msg string, status int, retryable bool, cause error) *Error {
	return &Error{
		Type:       t,
		Code:       code,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// NewValidation builds a VALIDATION error — caller-visible, fixable input.
func NewValidation(code, msg string) *Error {
	return newErr(Validation, code, msg, http.StatusBadRequest, false, nil)
}

// NewAuthorization builds an AUTHORIZATION error.
func NewAuthorization(code, msg string) *Error {
	return newErr(Authorization, code, msg, http.StatusForbidden, false, nil)
}

// NewCreditRejected builds the structured credit-rejection error.
func NewCreditRejected(reason CreditReason, shortfall *string) *Error {
	e := newErr(CreditRejected, string(reason), humanCreditMessage(reason), http.StatusUnprocessableEntity, false, nil)
	e.CreditReason = reason
	e.Shortfall = shortfall
	return e
}

func humanCreditMessage(reason CreditReason) string {
	switch reason {
	case ReasonCreditLimitExceeded:
		return "order exceeds available credit limit"
	case ReasonOverdueBlock:
		return "retailer has an overdue invoice past the block threshold"
	case ReasonAccountInactive:
		return "retailer account is inactive"
	case ReasonAccountNotApproved:
		return "retailer account is not approved"
	case ReasonHighRiskAccount:
		return "retailer risk score exceeds the high-risk threshold"
	default:
		return "credit validation failed"
	}
}

// NewVendorUnavailable builds a VENDOR_UNAVAILABLE error — the order stays PENDING.
func NewVendorUnavailable(code, msg string) *Error {
	return newErr(VendorUnavailable, code, msg, http.StatusConflict, true, nil)
}

// NewTransient builds a TRANSIENT error, retried by the worker/broker layer.
func NewTransient(code, msg string, cause error) *Error {
	return newErr(Transient, code, msg, http.StatusServiceUnavailable, true, cause)
}

// NewPermanent builds a PERMANENT error — surfaced to ops after recovery exhaustion.
func NewPermanent(code, msg string, cause error) *Error {
	e := newErr(Permanent, code, msg, http.StatusInternalServerError, false, cause)
	return e
}

// NewConflict builds a CONFLICT error representing an idempotency replay.
func NewConflict(code, msg string) *Error {
	return newErr(Conflict, code, msg, http.StatusConflict, false, nil)
}

// Envelope is the stable HTTP response shape.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the caller-visible error shape; it never carries internal
// stack traces or causes in production.
type ErrorBody struct {
	Code      string  `json:"code"`
	Message   string  `json:"message"`
	ErrorID   *string `json:"errorId,omitempty"`
	Retryable bool    `json:"retryable"`
}

// ToEnvelope renders err as the stable failure envelope. In production
// mode, 5xx errors only carry an errorId, never the raw message.
func ToEnvelope(err error, production bool) (int, Envelope) {
	ae, ok := err.(*Error)
	if !ok {
		ae = NewPermanent("INTERNAL_ERROR", "internal error", err)
	}

	body := &ErrorBody{Code: ae.Code, Message: ae.Message, Retryable: ae.Retryable}
	if ae.HTTPStatus >= 500 && production {
		id := generateErrorID()
		body.Message = "an internal error occurred"
		body.ErrorID = &id
	}
	return ae.HTTPStatus, Envelope{Success: false, Error: body}
}

func generateErrorID() string {
	return fmt.Sprintf("err_%d", time.Now().UnixNano())
}
