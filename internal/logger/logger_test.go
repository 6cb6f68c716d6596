package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Init(zap.New(core))
	t.Cleanup(func() { Init(zap.NewNop()) })

	ctx := WithRequestID(context.Background(), "req-1")
	FromContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-1" {
		t.Fatalf("request_id = %v, want req-1", got)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	l, err := New("nonsense", "json")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !l.Core().Enabled(zap.InfoLevel) || l.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected info level")
	}
}
