package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	ctx := WithRequestID(context.Background(), "req-42")
	if got := GetRequestID(ctx); got != "req-42" {
		t.Fatalf("GetRequestID = %q, want req-42", got)
	}

	WithContext(ctx).Info("hello")
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-42" {
		t.Errorf("request_id field = %v, want req-42", got)
	}
}

func TestWithContext_FallsBackToGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	WithContext(context.Background()).Debug("fallback")
	if logs.Len() != 1 {
		t.Errorf("expected global logger to receive entry, got %d", logs.Len())
	}
}

func TestSetLevel(t *testing.T) {
	SetLevel("debug")
	if !globalLevel.Enabled(zapcore.DebugLevel) {
		t.Error("expected debug to be enabled")
	}
	SetLevel("nonsense")
	if !globalLevel.Enabled(zapcore.DebugLevel) {
		t.Error("invalid level should be ignored")
	}
	SetLevel("warn")
	if globalLevel.Enabled(zapcore.InfoLevel) {
		t.Error("expected info to be disabled at warn")
	}
}

func TestInit_ConsoleAndJSON(t *testing.T) {
	defer SetLogger(nil)
	for _, format := range []string{"console", "json"} {
		if err := Init(Config{Level: "info", Format: format}); err != nil {
			t.Fatalf("Init(%s): %v", format, err)
		}
		if L() == nil {
			t.Fatalf("Init(%s) left no logger", format)
		}
	}
	SetLevel("warn")
}

func TestFieldHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Named("cli").Debug("upload polled", UploadID("up-1"), Route("logs.upload_status"), QueryKey(`["log-uploads","up-1","status"]`))
	entries := logs.FilterField(UploadID("up-1")).All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry tagged with the upload, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields[FieldRoute] != "logs.upload_status" {
		t.Errorf("route field = %v", fields[FieldRoute])
	}
	if entries[0].LoggerName != "cli" {
		t.Errorf("logger name = %q, want cli", entries[0].LoggerName)
	}
}
