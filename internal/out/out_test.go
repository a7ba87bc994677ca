package out

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWriteJSON_Envelope(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, map[string]any{"messages_stored": 3}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "\n") {
		t.Errorf("envelope must be a single line, got %q", line)
	}

	var parsed struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if !parsed.Success {
		t.Error("success = false, want true")
	}
	if parsed.Data["messages_stored"] != float64(3) {
		t.Errorf("data.messages_stored = %v, want 3", parsed.Data["messages_stored"])
	}
}

func TestWriteErrorJSON_Envelope(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteErrorJSON(&buf, errors.New("boom")); err != nil {
		t.Fatalf("WriteErrorJSON: %v", err)
	}

	var parsed struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if parsed.Success {
		t.Error("success = true, want false")
	}
	if parsed.Error != "boom" {
		t.Errorf("error = %q, want %q", parsed.Error, "boom")
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 6, "hello…"},
		{"line1\nline2", 20, "line1 line2"},
		{"  padded  ", 20, "padded"},
		{"anything", 0, "anything"},
		{"ab", 1, "a"},
	}
	for _, c := range cases {
		if got := Truncate(c.in, c.max); got != c.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
	}
}

func TestFormatTime_UTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	got := FormatTime(time.Date(2024, 3, 1, 13, 0, 0, 0, loc))
	if got != "2024-03-01T12:00:00Z" {
		t.Errorf("FormatTime = %q, want UTC RFC3339", got)
	}
	if FormatTime(time.Time{}) != "" {
		t.Error("zero time should render empty")
	}
}
