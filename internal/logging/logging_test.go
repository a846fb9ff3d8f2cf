// ABOUTME: Tests for logger construction
// ABOUTME: Verifies level parsing, JSON formatting and level filtering
package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"DEBUG", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"info", log.InfoLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "info", Format: "json"})

	logger.Info("retrieval done", "concepts", 3)

	line := strings.TrimSpace(buf.String())
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, line = %q", err, line)
	}
	if fields["msg"] != "retrieval done" {
		t.Errorf("msg = %v, want retrieval done", fields["msg"])
	}
	if fields["concepts"] != float64(3) {
		t.Errorf("concepts = %v, want 3", fields["concepts"])
	}
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "warn"})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should be written at warn level")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nothing happens")
}
