// Package auth implements the authentication core of the trainlog API:
// password policy and hashing, JWT issuance and validation, bearer header
// parsing, the role access relation and the request session.
package auth

import (
	"errors"
	"fmt"
)

// Kind enumerates every failure the auth core can report. The HTTP layer
// maps each kind to a status code and error_code exactly once.
type Kind int

const (
	KindMissingAuthHeader Kind = iota + 1
	KindInvalidAuthHeaderFormat
	KindTokenExpired
	KindInvalidToken
	KindInsufficientPermissions
	KindTooShort
	KindTooLong
	KindNoUppercase
	KindNoLowercase
	KindNoNumber
	KindNoSpecialChar
)

var kindCodes = map[Kind]string{
	KindMissingAuthHeader:       "MISSING_AUTH_HEADER",
	KindInvalidAuthHeaderFormat: "INVALID_AUTH_HEADER_FORMAT",
	KindTokenExpired:            "TOKEN_EXPIRED",
	KindInvalidToken:            "INVALID_TOKEN",
	KindInsufficientPermissions: "INSUFFICIENT_PERMISSIONS",
	KindTooShort:                "PASSWORD_TOO_SHORT",
	KindTooLong:                 "PASSWORD_TOO_LONG",
	KindNoUppercase:             "PASSWORD_NO_UPPERCASE",
	KindNoLowercase:             "PASSWORD_NO_LOWERCASE",
	KindNoNumber:                "PASSWORD_NO_NUMBER",
	KindNoSpecialChar:           "PASSWORD_NO_SPECIAL_CHAR",
}

var kindMessages = map[Kind]string{
	KindMissingAuthHeader:       "missing authorization header",
	KindInvalidAuthHeaderFormat: "invalid authorization header format",
	KindTokenExpired:            "token has expired",
	KindInvalidToken:            "invalid token",
	KindInsufficientPermissions: "insufficient permissions",
	KindTooShort:                "password is too short",
	KindTooLong:                 "password is too long",
	KindNoUppercase:             "password must contain at least one uppercase letter",
	KindNoLowercase:             "password must contain at least one lowercase letter",
	KindNoNumber:                "password must contain at least one number",
	KindNoSpecialChar:           "password must contain at least one special character",
}

// Code returns the stable machine-readable code for k.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return "AUTH_ERROR"
}

func (k Kind) String() string { return k.Code() }

// IsPasswordPolicy reports whether k is one of the password policy kinds.
func (k Kind) IsPasswordPolicy() bool {
	return k >= KindTooShort && k <= KindNoSpecialChar
}

// Error is the single error type returned by this package.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = kindMessages[e.Kind]
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Message is the text safe to show to API clients; it never includes the cause.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return kindMessages[e.Kind]
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package-level sentinels
// below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMissingAuthHeader       = &Error{Kind: KindMissingAuthHeader}
	ErrInvalidAuthHeaderFormat = &Error{Kind: KindInvalidAuthHeaderFormat}
	ErrTokenExpired            = &Error{Kind: KindTokenExpired}
	ErrInvalidToken            = &Error{Kind: KindInvalidToken}
	ErrInsufficientPermissions = &Error{Kind: KindInsufficientPermissions}
)

// KindOf extracts the auth failure kind from err.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func newError(k Kind, cause error) *Error {
	return &Error{Kind: k, Err: cause}
}
