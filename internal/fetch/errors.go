package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// Kind classifies a failed chapter fetch.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindRateLimited   Kind = "rate_limited"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
	KindConnection    Kind = "connection"
	KindNetwork       Kind = "network"
	KindExtraction    Kind = "extraction"
)

// Error is the typed failure produced at the fetch boundary. Callers branch
// on Kind and never on the message text.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = defaultMessage(e.Kind)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindConfiguration:
		return "configuration error"
	case KindRateLimited:
		return "rate limit exceeded"
	case KindNotFound:
		return "chapter not found"
	case KindTimeout:
		return "request timeout"
	case KindConnection:
		return "connection error"
	case KindExtraction:
		return "extraction failed"
	default:
		return "network error"
	}
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// ConfigurationError reports a systemic misconfiguration that must fail the job.
func ConfigurationError(format string, args ...any) error {
	return newError(KindConfiguration, fmt.Sprintf(format, args...), nil)
}

// ExtractionError wraps a parse failure for one chapter payload.
func ExtractionError(cause error) error {
	return newError(KindExtraction, "", cause)
}

// KindOf returns the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

func isKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func IsRateLimited(err error) bool { return isKind(err, KindRateLimited) }
func IsNotFound(err error) bool    { return isKind(err, KindNotFound) }

// IsFatal reports whether err must abort the whole job.
func IsFatal(err error) bool { return isKind(err, KindConfiguration) }

var rateLimitPhrases = []string{"rate limit", "too many requests"}

// classifyStatus maps a non-2xx response to a typed error.
func classifyStatus(status int, statusText string, body []byte) *Error {
	switch {
	case status == 429:
		return &Error{Kind: KindRateLimited, Message: "rate limit exceeded (429)", StatusCode: status}
	case status == 404:
		return &Error{Kind: KindNotFound, Message: "chapter not found (404)", StatusCode: status}
	}
	msg := fmt.Sprintf("HTTP %d: %s", status, statusText)
	if containsRateLimitPhrase(statusText) || (len(body) < 2048 && containsRateLimitPhrase(string(body))) {
		return &Error{Kind: KindRateLimited, Message: msg, StatusCode: status}
	}
	return &Error{Kind: KindNetwork, Message: msg, StatusCode: status}
}

// classifyTransport maps an error returned by the transport itself.
func classifyTransport(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return newError(KindTimeout, "", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, "", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return newError(KindConnection, "", err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return newError(KindConnection, "", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return newError(KindConnection, "", err)
	}
	if containsRateLimitPhrase(err.Error()) {
		return newError(KindRateLimited, "", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return newError(KindNetwork, "", urlErr.Err)
	}
	return newError(KindNetwork, "", err)
}

func containsRateLimitPhrase(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
