// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ExporterType: "grpc"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if provider.tp != nil {
		t.Error("Expected noop provider (tp == nil)")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	if span.IsRecording() {
		t.Error("Expected noop tracer span to be non-recording")
	}
	span.End()
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "zipkin"})
	if err == nil {
		t.Fatal("Expected error for invalid exporter type")
	}
	want := "unsupported exporter type: zipkin (supported: grpc, http)"
	if err.Error() != want {
		t.Errorf("Expected error message %q, got %q", want, err.Error())
	}
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	// The exporter connects lazily, so no collector is needed.
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "vidref-test",
		ExporterType: "http",
		Endpoint:     "127.0.0.1:1",
		SamplingRate: 1,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	t.Cleanup(func() { _, _ = NewProvider(context.Background(), Config{}) })

	_, span := Tracer("test").Start(context.Background(), "recorded")
	if !span.IsRecording() {
		t.Error("expected a recording span with sampling rate 1")
	}
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = provider.Shutdown(ctx)
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0.0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased"},
	}
	for _, tt := range tests {
		got := newSampler(tt.rate).Description()
		if !strings.Contains(got, tt.want) {
			t.Errorf("newSampler(%v) = %q, want it to contain %q", tt.rate, got, tt.want)
		}
	}
}

func TestAttributes(t *testing.T) {
	attrs := PlatformAttributes("web", RefKindKey)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	verify(t, attrs, PlatformKey, attribute.StringValue("web"))
	verify(t, attrs, ReferenceKind, attribute.StringValue("key"))

	if n := len(PlatformAttributes("native", "")); n != 1 {
		t.Errorf("expected 1 attribute without a reference kind, got %d", n)
	}
	verify(t, ResolutionAttributes("playable"), StateKey, attribute.StringValue("playable"))
	verify(t, ErrorAttributes("blob_creation_failed"), ErrorKindKey, attribute.StringValue("blob_creation_failed"))
}

func verify(t *testing.T, attrs []attribute.KeyValue, key string, want attribute.Value) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if a.Value != want {
				t.Errorf("%s = %v, want %v", key, a.Value.Emit(), want.Emit())
			}
			return
		}
	}
	t.Errorf("attribute %s not found", key)
}
