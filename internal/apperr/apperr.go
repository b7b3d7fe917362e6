package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindGateway       Kind = "gateway"
	KindInternal      Kind = "internal"
)

// Error is the typed failure returned by every service. Code is stable and
// machine-checkable, Message is safe to show the caller.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg, Status: http.StatusBadRequest}
}

func Forbidden(code, msg string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: msg, Status: http.StatusForbidden}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg, Status: http.StatusNotFound}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg, Status: http.StatusConflict}
}

// Gateway wraps a payment gateway failure. The cause is kept for logs only.
func Gateway(msg string, cause error) *Error {
	return &Error{Kind: KindGateway, Code: "PAYMENT_GATEWAY_ERROR", Message: msg, Status: http.StatusBadGateway, Err: cause}
}

func InvalidSignature(cause error) *Error {
	return &Error{Kind: KindGateway, Code: "INVALID_SIGNATURE", Message: "webhook signature verification failed", Status: http.StatusBadRequest, Err: cause}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "an internal error occurred", Status: http.StatusInternalServerError, Err: cause}
}

// As extracts the typed error, wrapping anything unknown as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

func Is(err error, k Kind) bool { return KindOf(err) == k }
