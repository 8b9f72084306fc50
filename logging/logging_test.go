package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		"Error":   ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDefaultLoggerRoutesLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&out, &errOut, false)
	logger.SetLevel(InfoLevel)

	logger.Debug("hidden")
	logger.WithFields(Fields{"component": "result_cache"}).Info("cache opened")
	logger.Error(errors.New("disk full"), "write failed")

	if strings.Contains(out.String(), "hidden") {
		t.Fatal("debug message should be filtered at info level")
	}
	if !strings.Contains(out.String(), "[INFO] cache opened map[component:result_cache]") {
		t.Fatalf("unexpected stdout: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "[ERROR] write failed: disk full") {
		t.Fatalf("unexpected stderr: %q", errOut.String())
	}
}

func TestWithContextFields(t *testing.T) {
	var out bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&out, &out, false)

	ctx := ContextWithFields(context.Background(), Fields{"run_id": "abc"})
	ctx = ContextWithFields(ctx, Fields{"file": "a.wav"})
	logger.WithContext(ctx).Info("analyzing")

	if !strings.Contains(out.String(), "file:a.wav") || !strings.Contains(out.String(), "run_id:abc") {
		t.Fatalf("context fields missing: %q", out.String())
	}
}

func TestZapLoggerFields(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	logger.WithFields(Fields{"component": "key_engine"}).Warn("degraded", Fields{"hash": "ab"})
	logger.SetLevel(ErrorLevel)
	logger.Info("dropped")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Level != zapcore.WarnLevel || entry.Message != "degraded" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	ctx := entry.ContextMap()
	if ctx["component"] != "key_engine" || ctx["hash"] != "ab" {
		t.Fatalf("fields = %v", ctx)
	}
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)
	logger.Error(errors.New("boom"), "failed", Fields{"file": "x.wav"})
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["msg"] != "failed" || line["file"] != "x.wav" || line["error"] != "boom" {
		t.Fatalf("unexpected JSON line %v", line)
	}
}
