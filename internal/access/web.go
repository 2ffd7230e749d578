// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package access

import (
	"context"
	"errors"
	"path/filepath"

	"go.opentelemetry.io/otel/codes"

	"github.com/ManuGH/vidref/internal/fsaccess"
	xglog "github.com/ManuGH/vidref/internal/log"
	"github.com/ManuGH/vidref/internal/metrics"
	"github.com/ManuGH/vidref/internal/permission"
	"github.com/ManuGH/vidref/internal/telemetry"
	"github.com/ManuGH/vidref/internal/video/refkey"
	"github.com/ManuGH/vidref/internal/video/validate"
)

const (
	msgNeedsPermission  = "Access to this video must be granted again."
	msgNeedsReselection = "Access to this video was denied. Please select the file again."
	msgNotFound         = "The video could not be found. Please select the file again."
	msgNoActivation     = "Granting access requires a user action."
)

// web stores wrapped file handles and gates every read on permission.
type web struct {
	deps Deps
}

func (w *web) Platform() Platform { return PlatformWeb }

func (w *web) ResolveForUpload(ctx context.Context, picked PickerResult, a fsaccess.Activation) (Upload, error) {
	ctx, span := startSpan(ctx, w.deps.Tracer, "access.ResolveForUpload", PlatformWeb, "")
	defer span.End()

	name := picked.Name
	if name == "" && picked.Path != "" {
		name = filepath.Base(picked.Path)
	}
	res := Validate(validate.Candidate{Name: name, URI: picked.URI, MIMEType: picked.MIMEType})
	if !res.IsValid {
		metrics.IncUpload(string(PlatformWeb), "validation_failed")
		return Upload{Validation: res}, newError(KindValidationFailed, res.ErrorMessage, nil)
	}

	handle, err := w.deps.Host.Pick(ctx, picked.Path, name, a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pick failed")
		metrics.IncUpload(string(PlatformWeb), "error")
		perr := pickError(err)
		span.SetAttributes(telemetry.ErrorAttributes(string(perr.Kind))...)
		return Upload{Validation: res}, perr
	}

	key := w.deps.Keys.Key(name)
	if err := w.deps.Store.Put(ctx, key, handle, name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		span.SetAttributes(telemetry.ErrorAttributes(string(KindStorageFailed))...)
		metrics.IncUpload(string(PlatformWeb), "storage_failed")
		return Upload{Validation: res}, newError(KindStorageFailed, "the video reference could not be saved", err)
	}

	metrics.IncUpload(string(PlatformWeb), "success")
	xglog.FromContext(ctx).Info().
		Str(xglog.FieldEvent, "access.upload_resolved").
		Str(xglog.FieldPlatform, string(PlatformWeb)).
		Str(xglog.FieldReference, key).
		Msg("video reference stored")
	return Upload{Reference: key, FileName: name, Validation: res}, nil
}

func pickError(err error) *Error {
	switch {
	case errors.Is(err, fsaccess.ErrNoUserActivation):
		return newError(KindPermissionPending, msgNoActivation, err)
	case errors.Is(err, fsaccess.ErrAccessDenied):
		return newError(KindPermissionDenied, "the selected file cannot be read", err)
	default:
		return newError(KindHandleNotFound, "the selected file could not be opened", err)
	}
}

func (w *web) ResolveForPlayback(ctx context.Context, reference string) Resolution {
	ctx, span := startSpan(ctx, w.deps.Tracer, "access.ResolveForPlayback", PlatformWeb, reference)
	if reference == "" {
		return finish(span, PlatformWeb, withState(StateNotFound, msgNotFound))
	}
	if !refkey.IsReferenceKey(reference) {
		return finish(span, PlatformWeb, playable(reference, "", nil))
	}

	handle, ok := w.lookup(ctx, reference)
	if !ok {
		return finish(span, PlatformWeb, withState(StateNotFound, msgNotFound))
	}

	switch w.deps.Gate.Query(ctx, handle) {
	case permission.Granted:
		return finish(span, PlatformWeb, w.mint(ctx, handle))
	case permission.Prompt:
		return finish(span, PlatformWeb, withState(StateNeedsPermission, msgNeedsPermission))
	case permission.Denied:
		return finish(span, PlatformWeb, withState(StateNeedsReselection, msgNeedsReselection))
	default:
		return finish(span, PlatformWeb, withState(StateNotFound, msgNotFound))
	}
}

func (w *web) RequestAccess(ctx context.Context, reference string, a fsaccess.Activation) Resolution {
	if !refkey.IsReferenceKey(reference) {
		return w.ResolveForPlayback(ctx, reference)
	}
	ctx, span := startSpan(ctx, w.deps.Tracer, "access.RequestAccess", PlatformWeb, reference)

	handle, ok := w.lookup(ctx, reference)
	if !ok {
		metrics.IncPermissionRequest(string(permission.NotFound))
		return finish(span, PlatformWeb, withState(StateNotFound, msgNotFound))
	}

	state, err := w.deps.Gate.Request(ctx, handle, a)
	if errors.Is(err, fsaccess.ErrNoUserActivation) {
		metrics.IncPermissionRequest("no_activation")
		return finish(span, PlatformWeb, withState(StateNeedsPermission, msgNoActivation))
	}
	if err != nil {
		span.RecordError(err)
	}
	metrics.IncPermissionRequest(string(state))

	switch state {
	case permission.Granted:
		return finish(span, PlatformWeb, w.mint(ctx, handle))
	case permission.NotFound:
		return finish(span, PlatformWeb, withState(StateNotFound, msgNotFound))
	default:
		return finish(span, PlatformWeb, withState(StateNeedsReselection, msgNeedsReselection))
	}
}

func (w *web) Release(ctx context.Context, reference string) error {
	if !refkey.IsReferenceKey(reference) {
		return nil
	}
	if err := w.deps.Store.Delete(ctx, reference); err != nil {
		return newError(KindStorageFailed, "the video reference could not be removed", err)
	}
	return nil
}

// Thumbnail is never available on web.
func (w *web) Thumbnail(context.Context, string) (string, bool) { return "", false }

// lookup returns the stored handle. An unreachable store reads as "no handle".
func (w *web) lookup(ctx context.Context, reference string) (*fsaccess.FileHandle, bool) {
	handle, err := w.deps.Store.Get(ctx, reference)
	if err != nil {
		xglog.FromContext(ctx).Warn().
			Str(xglog.FieldEvent, "access.lookup_failed").
			Str(xglog.FieldReference, reference).
			Err(err).
			Msg("reference store unavailable; treating handle as not found")
		return nil, false
	}
	return handle, handle != nil
}

func (w *web) mint(ctx context.Context, handle *fsaccess.FileHandle) Resolution {
	lease, err := w.deps.Blobs.Acquire(ctx, handle)
	if err != nil {
		e := newError(KindBlobCreationFailed, "the video could not be opened for playback", err)
		xglog.FromContext(ctx).Warn().
			Str(xglog.FieldEvent, "access.blob_failed").
			Str(xglog.FieldFileName, handle.Name()).
			Err(e).
			Msg("blob url creation failed")
		return withState(StatePlaybackError, e.Message)
	}
	return playable(lease.URL(), handle.Name(), lease)
}
