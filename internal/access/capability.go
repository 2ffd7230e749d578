// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package access is the single entry point the UI uses to turn a picked file
// into a storable reference and, later, a reference into something playable.
// The capability is chosen once at startup for the running platform.
package access

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/vidref/internal/blob"
	"github.com/ManuGH/vidref/internal/fsaccess"
	"github.com/ManuGH/vidref/internal/metrics"
	"github.com/ManuGH/vidref/internal/permission"
	"github.com/ManuGH/vidref/internal/refstore"
	"github.com/ManuGH/vidref/internal/telemetry"
	"github.com/ManuGH/vidref/internal/thumbnail"
	"github.com/ManuGH/vidref/internal/video/refkey"
	"github.com/ManuGH/vidref/internal/video/validate"
)

// Platform names a storage model.
type Platform string

const (
	PlatformAuto   Platform = "auto"
	PlatformWeb    Platform = "web"
	PlatformNative Platform = "native"
)

// ErrUnknownPlatform is returned for an unsupported platform name.
var ErrUnknownPlatform = errors.New("access: unknown platform")

// ResolvePlatform maps a configured platform name onto web or native. "auto"
// selects native on mobile operating systems and web elsewhere.
func ResolvePlatform(name string) (Platform, error) {
	return resolvePlatform(name, runtime.GOOS)
}

func resolvePlatform(name, goos string) (Platform, error) {
	switch Platform(name) {
	case PlatformWeb, PlatformNative:
		return Platform(name), nil
	case PlatformAuto, "":
		if goos == "android" || goos == "ios" {
			return PlatformNative, nil
		}
		return PlatformWeb, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, name)
	}
}

// PickerResult is what a file picker hands over. Web pickers fill Path (the
// picked file on disk) and Name; native pickers fill URI.
type PickerResult struct {
	Name     string `json:"name,omitempty"`
	URI      string `json:"uri,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Path     string `json:"path,omitempty"`
}

// Upload is the result of a successful ResolveForUpload.
type Upload struct {
	// Reference is a video reference key on web and the URI itself on native.
	Reference  string          `json:"reference"`
	FileName   string          `json:"fileName,omitempty"`
	Validation validate.Result `json:"validation"`
}

// Capability is implemented once per platform.
type Capability interface {
	Platform() Platform
	// ResolveForUpload validates a picked file and returns the reference to
	// hand to the backend.
	ResolveForUpload(ctx context.Context, picked PickerResult, a fsaccess.Activation) (Upload, error)
	// ResolveForPlayback never prompts. A Playable result may carry a lease
	// the caller must release.
	ResolveForPlayback(ctx context.Context, reference string) Resolution
	// RequestAccess is the "grant access" user action.
	RequestAccess(ctx context.Context, reference string, a fsaccess.Activation) Resolution
	// Release forgets everything stored for reference.
	Release(ctx context.Context, reference string) error
	// Thumbnail returns a preview image path when one exists or can be made.
	Thumbnail(ctx context.Context, reference string) (string, bool)
}

// Deps are the collaborators a capability is built from. Web needs Host,
// Store, Gate and Blobs; native needs Thumbnails.
type Deps struct {
	Host       *fsaccess.Host
	Store      *refstore.Store
	Gate       *permission.Gate
	Blobs      *blob.Registry
	Keys       *refkey.Generator
	Thumbnails *thumbnail.Pipeline
	Tracer     trace.Tracer
}

// New returns the capability for platform p.
func New(p Platform, d Deps) (Capability, error) {
	if d.Tracer == nil {
		d.Tracer = telemetry.Tracer("vidref/access")
	}
	if d.Keys == nil {
		d.Keys = refkey.NewGenerator()
	}
	switch p {
	case PlatformWeb:
		if d.Host == nil || d.Store == nil || d.Gate == nil || d.Blobs == nil {
			return nil, errors.New("access: web capability needs host, store, gate and blobs")
		}
		return &web{deps: d}, nil
	case PlatformNative:
		if d.Thumbnails == nil {
			return nil, errors.New("access: native capability needs a thumbnail pipeline")
		}
		return &native{deps: d}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, p)
	}
}

// Validate classifies a candidate and records the outcome.
func Validate(c validate.Candidate) validate.Result {
	res := validate.Validate(c)
	switch {
	case res.IsValid:
		metrics.IncValidation("valid")
	case res.MIMEType != "":
		metrics.IncValidation("invalid_type")
	default:
		metrics.IncValidation("undetermined")
	}
	return res
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string, p Platform, reference string) (context.Context, trace.Span) {
	var kind string
	switch {
	case refkey.IsReferenceKey(reference):
		kind = telemetry.RefKindKey
	case reference != "":
		kind = telemetry.RefKindURI
	}
	return tracer.Start(ctx, name, trace.WithAttributes(telemetry.PlatformAttributes(string(p), kind)...))
}

func finish(span trace.Span, p Platform, res Resolution) Resolution {
	span.SetAttributes(telemetry.ResolutionAttributes(string(res.State))...)
	span.End()
	metrics.IncPlaybackResolution(string(p), string(res.State))
	return res
}
