package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"quizbooth/internal/services"
)

func TestWithContextAttachesPipelineFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := services.WithStage(context.Background(), "loading")
	ctx = services.WithResultID(ctx, "res-42")
	ctx = services.WithRequestID(ctx, "req-abc")

	WithContext(ctx, logger).Info("photo submitted")

	line := buf.String()
	for _, want := range []string{"stage=loading", "result_id=res-42", "correlation_id=req-abc"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
}

func TestWithContextBareContextReturnsLoggerUnchanged(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := WithContext(context.Background(), logger); got != logger {
		t.Fatal("WithContext without fields should return the logger it was given")
	}
	if fields := ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("ContextFields on bare context = %v; want none", fields)
	}
}
