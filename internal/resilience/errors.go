package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
	"time"
)

// RateLimitError signals the upstream provider rejected a call for exceeding
// its rate limit. Safe to retry after a backoff.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration // 0 when the provider gave no hint
}

func (e *RateLimitError) Error() string {
	return e.Err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError wraps an error as a rate-limit rejection.
func NewRateLimitError(err error, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Err: err, RetryAfter: retryAfter}
}

// IsRateLimit reports whether any error in the chain is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// AuthError signals the upstream provider rejected our credentials. Never
// retried; the user has to re-authenticate.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError wraps an error as an authentication failure.
func NewAuthError(err error) *AuthError {
	return &AuthError{Err: err}
}

// IsAuth reports whether any error in the chain is an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// TransientError wraps an error that is safe to retry, e.g. a 5xx response
// from the provider.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP
// status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether the error looks safe to retry: an explicit
// transient or rate-limit rejection, a network timeout, or a
// connection-level failure. Auth errors are never transient.
func IsTransient(err error) bool {
	if err == nil || IsAuth(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	if IsRateLimit(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether an HTTP status code indicates a
// server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
