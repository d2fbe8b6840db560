package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level.String() = %v, want %v", got, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel}, {"info", InfoLevel}, {"WARNING", WarnLevel},
		{"error", ErrorLevel}, {"invalid", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestFieldConstructors(t *testing.T) {
	if f := LSN("commit_lsn", 12345); f.Key != "commit_lsn" || f.Value != uint64(12345) {
		t.Errorf("LSN() = %+v", f)
	}
	if f := Term(7); f.Key != "term" || f.Value != uint64(7) {
		t.Errorf("Term() = %+v", f)
	}
	if f := PeerAddr("127.0.0.1:5000"); f.Key != "peer_addr" {
		t.Errorf("PeerAddr() = %+v", f)
	}
	if f := Error(nil); f.Key != "error" || f.Value != nil {
		t.Errorf("Error(nil) = %+v", f)
	}
	if f := Error(errors.New("boom")); f.Value != "boom" {
		t.Errorf("Error(err) = %+v", f)
	}
	if f := Duration("latency", 5*time.Second); f.Value != "5s" {
		t.Errorf("Duration() = %+v", f)
	}
}

func TestJSONLoggerBasicLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Info("test message", String("key", "value"))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Level != "INFO" || entry.Message != "test message" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["key"] != "value" {
		t.Errorf("Fields[key] = %v, want value", entry.Fields["key"])
	}
}

func TestJSONLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}
}

func TestJSONLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	child := logger.With(Component("broadcast"), PeerIndex(2))
	child.Info("dispatched", Seq(9))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Fields["component"] != "broadcast" {
		t.Errorf("component field = %v", entry.Fields["component"])
	}
	if entry.Fields["seq"] != float64(9) {
		t.Errorf("seq field = %v", entry.Fields["seq"])
	}
}

func TestJSONLoggerSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.SetLevel(ErrorLevel)
	logger.Info("swallowed")
	if buf.Len() != 0 {
		t.Error("expected no output below ErrorLevel")
	}
	logger.Error("kept")
	if buf.Len() == 0 {
		t.Error("expected output at ErrorLevel")
	}
}

func TestJSONLoggerNoFieldsOmitted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)
	logger.Info("no fields")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, exists := entry["fields"]; exists {
		t.Error("expected fields key to be omitted when empty")
	}
}
