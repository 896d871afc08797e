package apperrors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Token verification failures. Exactly one of these is reported per
	// failed parse, the first that applies.
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenWrongType        = errors.New("token type mismatch")

	// A refresh token that is unknown, already rotated or revoked.
	// A lost rotation race reports the same error on purpose: callers
	// must not be able to tell replay from double-submit.
	ErrRefreshRevokedOrUnknown = errors.New("refresh token revoked or unknown")
	ErrRefreshTokenExpired     = errors.New("refresh token is expired")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrAccountUnapproved  = errors.New("account is not approved")

	ErrPermissionDenied = errors.New("permission denied")
	ErrRateLimited      = errors.New("rate limited")
	ErrWeakPassword     = errors.New("weak password")
)

// WeakPasswordError reports which strength requirements a password failed.
// Unwraps to ErrWeakPassword.
type WeakPasswordError struct {
	Missing []string
}

func (e *WeakPasswordError) Error() string {
	return "weak password: missing " + strings.Join(e.Missing, ", ")
}

func (e *WeakPasswordError) Unwrap() error { return ErrWeakPassword }

// PermissionError carries the unsatisfied part of a requirement so the
// denial can be surfaced to the caller. Unwraps to ErrPermissionDenied.
type PermissionError struct {
	Kind    string // "permissions" or "roles"
	Mode    string // "all_of" or "any_of"
	Missing []string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s %s of %s missing", e.Mode, e.Kind, strings.Join(e.Missing, ", "))
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// RateLimitError reports which limit was hit and when to retry.
// Unwraps to ErrRateLimited.
type RateLimitError struct {
	Class      string
	Kind       string // window that was exceeded: "minute" or "hour"
	RetryAfter time.Duration
	Limit      int
	Remaining  int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: class=%s limit=%d per %s, retry after %s", e.Class, e.Limit, e.Kind, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
