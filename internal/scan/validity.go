// Package scan classifies existing raw payloads so interrupted downloads
// resume where they stopped.
package scan

import (
	"bytes"
	"encoding/json"
	"strings"

	"bibledownloader/internal/domain"
)

const (
	// MinPayloadBytes rejects empty and truncated files.
	MinPayloadBytes = 100
	// ShortPayloadBytes bounds the bodies searched for error keywords.
	ShortPayloadBytes = 1000
)

var errorKeywords = []string{
	"error",
	"not found",
	"404",
	"access denied",
	"forbidden",
	"service unavailable",
	"internal server error",
}

// Reason explains why a payload was rejected. The zero value means valid.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonMissing   Reason = "missing"
	ReasonTooSmall  Reason = "too small"
	ReasonNoMarker  Reason = "no document marker"
	ReasonErrorPage Reason = "error page"
)

// Validate applies the payload validity predicate.
func Validate(data []byte, kind domain.PayloadKind) Reason {
	if len(data) < MinPayloadBytes {
		return ReasonTooSmall
	}
	if !hasDocumentMarker(data, kind) {
		return ReasonNoMarker
	}
	if len(data) < ShortPayloadBytes {
		lower := strings.ToLower(string(data))
		for _, kw := range errorKeywords {
			if strings.Contains(lower, kw) {
				return ReasonErrorPage
			}
		}
	}
	return ReasonNone
}

func hasDocumentMarker(data []byte, kind domain.PayloadKind) bool {
	if bytes.Contains(data, []byte("<html")) || bytes.Contains(data, []byte("<!DOCTYPE")) {
		return true
	}
	if kind != domain.PayloadJSON {
		return false
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid(trimmed)
}
