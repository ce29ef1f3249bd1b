package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_OutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Info("test message", slog.String("key", "value"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

func TestSetup_DebugLevelSuppressed(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Debug("should not appear")

	if buf.Len() != 0 {
		t.Errorf("expected no output for debug level, got %q", buf.String())
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Info("global log")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if entry["msg"] != "global log" {
		t.Errorf("msg = %v, want %q", entry["msg"], "global log")
	}
}
