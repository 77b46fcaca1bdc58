package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// FailureKind classifies why an external call failed.
type FailureKind string

const (
	KindNone      FailureKind = ""
	KindTimeout   FailureKind = "timeout"
	KindRateLimit FailureKind = "rate_limit"
	KindNetwork   FailureKind = "network"
	KindServer    FailureKind = "server"
	// KindPermanent covers rejections that will fail again on retry.
	KindPermanent FailureKind = "permanent"
)

// Transient reports whether failures of this kind are worth retrying.
func (k FailureKind) Transient() bool {
	switch k {
	case KindTimeout, KindRateLimit, KindNetwork, KindServer:
		return true
	default:
		return false
	}
}

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
	Kind       FailureKind
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
// The kind is derived from the status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode, Kind: kindForStatus(statusCode)}
}

// PermanentError wraps an error that will not succeed on retry: a malformed
// response, an unsupported document, or a 4xx rejection.
type PermanentError struct {
	Err        error
	StatusCode int
	// Reason is a short machine-readable cause such as "schema" or "unsupported".
	Reason string
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err as permanent with the given reason.
func NewPermanentError(err error, reason string) *PermanentError {
	return &PermanentError{Err: err, Reason: reason}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// An explicit permanent marker wins over any heuristic.
	if IsPermanent(err) {
		return false
	}

	// Check for explicit TransientError in chain.
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Check for network-level transient errors.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection reset / refused / DNS.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	return matchesTransientPattern(err)
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// String-based heuristics for wrapped errors from HTTP clients.
func matchesTransientPattern(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504, // Gateway Timeout
		529: // Overloaded
		return true
	default:
		return false
	}
}

func kindForStatus(statusCode int) FailureKind {
	switch {
	case statusCode == 408:
		return KindTimeout
	case statusCode == 429:
		return KindRateLimit
	case statusCode >= 500:
		return KindServer
	default:
		return KindNetwork
	}
}

// WrapStatus classifies err by HTTP status code. Transient statuses become a
// TransientError and any other 4xx becomes a PermanentError.
func WrapStatus(err error, statusCode int) error {
	if err == nil {
		return nil
	}
	switch {
	case IsTransientHTTPStatus(statusCode):
		return NewTransientError(err, statusCode)
	case statusCode >= 400 && statusCode < 500:
		return &PermanentError{Err: err, StatusCode: statusCode, Reason: "rejected"}
	default:
		return err
	}
}
