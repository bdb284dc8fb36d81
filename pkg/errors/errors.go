package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error. Transport layers map kinds to their
// own status codes; the core never deals with HTTP.
type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalidGrant
	KindUnsupportedGrantType
	KindInvalidToken
	KindInvalidInput
	KindConflict
	KindNotFound
	KindUnauthorized
	KindTooManyRequests
)

// Standard sentinel errors, one per kind.
var (
	ErrInternal             = errors.New("internal error")
	ErrInvalidGrant         = errors.New("invalid grant")
	ErrUnsupportedGrantType = errors.New("unsupported grant type")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConflict             = errors.New("conflict")
	ErrNotFound             = errors.New("resource not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrTooManyRequests      = errors.New("too many requests")
)

var kindSentinels = map[Kind]error{
	KindInternal:             ErrInternal,
	KindInvalidGrant:         ErrInvalidGrant,
	KindUnsupportedGrantType: ErrUnsupportedGrantType,
	KindInvalidToken:         ErrInvalidToken,
	KindInvalidInput:         ErrInvalidInput,
	KindConflict:             ErrConflict,
	KindNotFound:             ErrNotFound,
	KindUnauthorized:         ErrUnauthorized,
	KindTooManyRequests:      ErrTooManyRequests,
}

var kindCodes = map[Kind]string{
	KindInternal:             "internal_error",
	KindInvalidGrant:         "invalid_grant",
	KindUnsupportedGrantType: "unsupported_grant_type",
	KindInvalidToken:         "invalid_token",
	KindInvalidInput:         "invalid_input",
	KindConflict:             "conflict",
	KindNotFound:             "not_found",
	KindUnauthorized:         "unauthorized",
	KindTooManyRequests:      "too_many_requests",
}

// Code returns the stable wire code for the kind.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return kindCodes[KindInternal]
}

func (k Kind) String() string { return k.Code() }

// AppError is a structured application error. Err holds the underlying
// cause, which is meant for logs only and never for clients.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *AppError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Code returns the wire code of the error kind.
func (e *AppError) Code() string {
	return e.Kind.Code()
}

// New creates an AppError of the given kind.
func New(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: cause}
}

// NotFound creates a not-found error for a resource.
func NotFound(resource, id string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s with id %s not found", resource, id), nil)
}

// Conflict creates a conflict error.
func Conflict(message string) *AppError {
	return New(KindConflict, message, nil)
}

// InvalidInput creates a bad request error.
func InvalidInput(message string) *AppError {
	return New(KindInvalidInput, message, nil)
}

// Unauthorized creates an authentication failure.
func Unauthorized(message string) *AppError {
	return New(KindUnauthorized, message, nil)
}

// InvalidGrant creates the single public grant failure. cause is kept for
// diagnostics.
func InvalidGrant(cause error) *AppError {
	return New(KindInvalidGrant, "the provided grant is invalid", cause)
}

// UnsupportedGrantType rejects an unknown grant_type value.
func UnsupportedGrantType(grantType string) *AppError {
	return New(KindUnsupportedGrantType, fmt.Sprintf("grant type %q is not supported", grantType), nil)
}

// InvalidToken creates an access token verification failure.
func InvalidToken(cause error) *AppError {
	return New(KindInvalidToken, "the access token is invalid", cause)
}

// TooManyRequests creates a throttling error.
func TooManyRequests(message string) *AppError {
	return New(KindTooManyRequests, message, nil)
}

// Internal creates an internal error.
func Internal(err error) *AppError {
	return New(KindInternal, "an internal error occurred", err)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf returns the kind of err. Plain sentinels are recognised; anything
// else is internal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}
