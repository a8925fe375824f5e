//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestBootstrap_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Bootstrap(&buf)
	l.Error().Str("path", "config.yaml").Msg("config")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "error" || entry["message"] != "config" || entry["path"] != "config.yaml" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("expected a timestamp, got %v", entry)
	}
}

func TestWith_AddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithSessID(WithUserID(WithTraceID(context.Background(), "tr-1"), "u1"), "chat-1")
	With(ctx, Bootstrap(&buf)).Error().Msg("x")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["trace_id"] != "tr-1" || entry["user_id"] != "u1" || entry["session_id"] != "chat-1" {
		t.Fatalf("missing context fields: %v", entry)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("user@example.com", false); got != "user...om" {
		t.Fatalf("Redact: got %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Fatalf("Redact short: got %q", got)
	}
	if got := Redact("user@example.com", true); got != "user@example.com" {
		t.Fatalf("Redact dev: got %q", got)
	}
}
