// Package apperr defines the error kinds surfaced by the escrow and auction core.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation           Kind = "validation"
	KindAuthorization        Kind = "authorization"
	KindNotFound             Kind = "not_found"
	KindInvalidTransition    Kind = "invalid_transition"
	KindVerification         Kind = "verification"
	KindPaymentWindowExpired Kind = "payment_window_expired"
	KindPaymentFailed        Kind = "payment_failed"
	KindAuctionClosed        Kind = "auction_closed"
	KindSelfBidNotAllowed    Kind = "self_bid_not_allowed"
	KindBidTooLow            Kind = "bid_too_low"
	KindInternal             Kind = "internal"
)

// Error carries a stable Kind and a reason that is safe to show to the caller.
// Err is the internal cause and is only ever logged.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrBidTooLow) works
// regardless of reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrAuthorization        = &Error{Kind: KindAuthorization}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition}
	ErrVerification         = &Error{Kind: KindVerification}
	ErrPaymentWindowExpired = &Error{Kind: KindPaymentWindowExpired}
	ErrPaymentFailed        = &Error{Kind: KindPaymentFailed}
	ErrAuctionClosed        = &Error{Kind: KindAuctionClosed}
	ErrSelfBidNotAllowed    = &Error{Kind: KindSelfBidNotAllowed}
	ErrBidTooLow            = &Error{Kind: KindBidTooLow}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches an internal cause that will not be shown to callers.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return New(KindInvalidTransition, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(KindAuthorization, format, args...)
}

// KindOf returns the kind of err, or KindInternal for anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public returns the kind and caller-safe reason for err. Non-core errors
// collapse to a generic internal reason so driver or adapter messages never leak.
func Public(err error) (Kind, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, e.Reason
	}
	return KindInternal, "internal error"
}

// HTTPStatus maps a kind to the status code used by the HTTP adapters.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindAuctionClosed:
		return http.StatusConflict
	case KindVerification, KindBidTooLow, KindSelfBidNotAllowed:
		return http.StatusUnprocessableEntity
	case KindPaymentWindowExpired:
		return http.StatusGone
	case KindPaymentFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
