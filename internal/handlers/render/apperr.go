package render

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/bilitade/hubbo/internal/apperrors"
)

// AppError renders a service level error with the status code its kind maps
// to. Rate limit denials additionally carry Retry-After and X-RateLimit-*
// headers. Unknown errors render as 500 without leaking their text.
func AppError(w http.ResponseWriter, err error) {
	var rateErr *apperrors.RateLimitError
	if errors.As(err, &rateErr) {
		seconds := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rateErr.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rateErr.Remaining))
		ServiceError(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	var permErr *apperrors.PermissionError
	if errors.As(err, &permErr) {
		JSONWithStatus(w, ErrorResponse{
			Error:   ServiceErrorType,
			Message: "Permission denied",
			Missing: permErr.Missing,
		}, http.StatusForbidden)
		return
	}

	var weakErr *apperrors.WeakPasswordError
	if errors.As(err, &weakErr) {
		JSONWithStatus(w, ErrorResponse{
			Error:   ServiceErrorType,
			Message: "Password is too weak",
			Missing: weakErr.Missing,
		}, http.StatusUnprocessableEntity)
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrAccountInactive):
		ServiceError(w, "Account is inactive", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrAccountUnapproved):
		ServiceError(w, "Account is not approved yet", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrTokenExpired):
		ServiceError(w, "Token expired", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrTokenMalformed),
		errors.Is(err, apperrors.ErrTokenSignatureInvalid),
		errors.Is(err, apperrors.ErrTokenWrongType):
		ServiceError(w, "Invalid token", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrRefreshTokenExpired):
		ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrRefreshRevokedOrUnknown):
		ServiceError(w, "Refresh token revoked or unknown", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrPermissionDenied):
		ServiceError(w, "Permission denied", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrRateLimited):
		ServiceError(w, "Too many requests", http.StatusTooManyRequests)
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		ServiceError(w, "User already exists", http.StatusConflict)
	case errors.Is(err, apperrors.ErrUserNotFound):
		ServiceError(w, "User not found", http.StatusNotFound)
	default:
		ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
