// Package apperr carries the error kinds the HTTP layer renders.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	Unauthenticated
	Forbidden
	MissingRefreshToken
	InvalidRefreshToken
	RefreshRejected
	CsrfMissing
	CsrfMismatch
	InvalidCredentials
	Validation
	NotFound
	Conflict
	TooManyRequests
)

const (
	sessionExpiredMessage = "Session expired. Please log in again."
	csrfMessage           = "CSRF token missing or invalid. Refresh the page and try again."
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case Forbidden:
		return "FORBIDDEN"
	case MissingRefreshToken:
		return "MISSING_REFRESH_TOKEN"
	case InvalidRefreshToken:
		return "INVALID_REFRESH_TOKEN"
	case RefreshRejected:
		return "REFRESH_REJECTED"
	case CsrfMissing:
		return "CSRF_MISSING"
	case CsrfMismatch:
		return "CSRF_MISMATCH"
	case InvalidCredentials:
		return "INVALID_CREDENTIALS"
	case Validation:
		return "VALIDATION"
	case NotFound:
		return "NOT_FOUND"
	case Conflict:
		return "CONFLICT"
	case TooManyRequests:
		return "TOO_MANY_REQUESTS"
	default:
		return "INTERNAL"
	}
}

func (k Kind) Status() int {
	switch k {
	case Unauthenticated, MissingRefreshToken, InvalidRefreshToken, RefreshRejected, InvalidCredentials:
		return http.StatusUnauthorized
	case Forbidden, CsrfMissing, CsrfMismatch:
		return http.StatusForbidden
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicCode is the code clients see. The refresh kinds collapse into one so
// responses do not reveal why a refresh token was refused.
func (k Kind) PublicCode() string {
	switch k {
	case MissingRefreshToken, InvalidRefreshToken, RefreshRejected:
		return "SESSION_EXPIRED"
	default:
		return k.String()
	}
}

func (k Kind) IsRefreshFailure() bool {
	return k == MissingRefreshToken || k == InvalidRefreshToken || k == RefreshRejected
}

func (k Kind) IsCSRFFailure() bool {
	return k == CsrfMissing || k == CsrfMismatch
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PublicMessage is safe to send to clients.
func (e *Error) PublicMessage() string {
	switch {
	case e.Kind.IsRefreshFailure():
		return sessionExpiredMessage
	case e.Kind.IsCSRFFailure():
		return csrfMessage
	case e.Kind == Internal:
		return "Internal server error"
	case e.Message != "":
		return e.Message
	default:
		return http.StatusText(e.Kind.Status())
	}
}

func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
