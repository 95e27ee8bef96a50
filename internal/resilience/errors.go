package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Class labels a failure in logs and the run log.
type Class string

const (
	Transient Class = "transient"
	Permanent Class = "permanent"
)

// StatusError is an API response outside the 2xx range.
type StatusError struct {
	Op   string
	Code int
}

// NewStatusError returns a StatusError for code. op may be empty.
func NewStatusError(op string, code int) *StatusError {
	return &StatusError{Op: op, Code: code}
}

func (e *StatusError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("%s: http status %d", e.Op, e.Code)
}

// Retryable reports whether the status may clear without any change on
// our side.
func (e *StatusError) Retryable() bool {
	return RetryableStatus(e.Code)
}

// RetryableStatus reports whether an HTTP status signals rate limiting or a
// server-side condition.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooEarly,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// StatusCode returns the HTTP status carried in err's chain, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

var networkPhrases = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
}

// Classify labels a non-nil error. Cancellation and malformed payloads are
// permanent; retryable statuses, timeouts and dropped connections are
// transient. Classify(nil) is "".
func Classify(err error) Class {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return Permanent
	}

	var se *StatusError
	if errors.As(err, &se) {
		if se.Retryable() {
			return Transient
		}
		return Permanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return Transient
	}

	msg := strings.ToLower(err.Error())
	for _, p := range networkPhrases {
		if strings.Contains(msg, p) {
			return Transient
		}
	}
	return Permanent
}

// IsTransient reports whether err is worth trying again later.
func IsTransient(err error) bool {
	return Classify(err) == Transient
}
