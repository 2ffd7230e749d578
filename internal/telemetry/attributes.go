// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	PlatformKey   = "vidref.platform"
	StateKey      = "vidref.state"
	ReferenceKind = "vidref.reference_kind"
	ErrorKindKey  = "vidref.error_kind"
)

// Reference kinds.
const (
	RefKindKey = "key"
	RefKindURI = "uri"
)

// PlatformAttributes describes the capability handling a call.
func PlatformAttributes(platform, refKind string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(PlatformKey, platform)}
	if refKind != "" {
		attrs = append(attrs, attribute.String(ReferenceKind, refKind))
	}
	return attrs
}

// ResolutionAttributes describes where a resolution ended up.
func ResolutionAttributes(state string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(StateKey, state)}
}

// ErrorAttributes tags a span with an error kind.
func ErrorAttributes(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool("error", true),
		attribute.String(ErrorKindKey, kind),
	}
}
