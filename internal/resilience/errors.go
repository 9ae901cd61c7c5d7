package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Error classes recorded on run-log rows.
const (
	ClassTransient   = "transient"
	ClassPermanent   = "permanent"
	ClassCircuitOpen = "circuit_open"
	ClassCanceled    = "canceled"
)

// TransientError marks a failure caused by a temporary service condition
// (429, 5xx, network timeout). The pipeline does not retry these; the next
// scheduled run picks the work up again.
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

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientPatterns = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err (or anything in its chain) is a
// TransientError or a recognizable network-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	// Client packages report their own HTTP status classification.
	var marked interface{ Transient() bool }
	if errors.As(err, &marked) {
		return marked.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status code indicates a
// temporary server-side condition.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ClassifyError buckets err into one of the Class* constants. It returns ""
// for a nil error.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCircuitOpen):
		return ClassCircuitOpen
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case IsTransient(err):
		return ClassTransient
	default:
		return ClassPermanent
	}
}
