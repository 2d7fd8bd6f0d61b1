package tracing

import (
	"context"
	"testing"
)

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown must never be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown: %v", err)
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	// Not parallel: installs the global tracer provider.
	shutdown, err := Setup(context.Background(), Config{
		Endpoint:       "127.0.0.1:4318",
		Insecure:       true,
		ServiceVersion: "test",
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	// Nothing was exported, so shutdown has nothing to flush.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
