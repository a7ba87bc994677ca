// Package out renders command results. JSON mode emits a stable envelope
// consumed by the host agent; human mode uses tab-aligned columns.
package out

import (
	"encoding/json"
	"io"
	"strings"
	"time"
)

// envelope is the JSON shape every command writes on stdout.
// Consumers parse the last line of output, so each write is a single line.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON writes a success envelope wrapping v as a single line.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(envelope{Success: true, Data: v})
}

// WriteErrorJSON writes a failure envelope for err as a single line.
func WriteErrorJSON(w io.Writer, err error) error {
	enc := json.NewEncoder(w)
	return enc.Encode(envelope{Success: false, Error: err.Error()})
}

// Truncate collapses newlines, trims whitespace, and cuts s to max runes,
// appending an ellipsis when something was cut. With max 1 the result is
// the first rune alone, without an ellipsis.
func Truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return string(r[:1])
	}
	return string(r[:max-1]) + "…"
}

// FormatTime renders t as RFC 3339 in UTC, or an empty string for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
