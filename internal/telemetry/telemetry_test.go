package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("expected no-op span without an endpoint")
	}
	span.End()
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	for _, ratio := range []float64{-0.1, 1.5} {
		if err := (Config{SampleRatio: ratio}).Validate(); err == nil {
			t.Errorf("ratio %v: expected error", ratio)
		}
	}
	if err := (Config{SampleRatio: 0.5}).Validate(); err != nil {
		t.Errorf("ratio 0.5: %v", err)
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{OTLPEndpoint: "127.0.0.1:1", Insecure: true}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "exported")
	if !span.SpanContext().IsValid() {
		t.Error("expected a recording span once a provider is installed")
	}
	span.End()

	// Export fails against the closed port; shutdown must still return.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
