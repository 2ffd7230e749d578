// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package access

import (
	"context"

	"github.com/ManuGH/vidref/internal/fsaccess"
	xglog "github.com/ManuGH/vidref/internal/log"
	"github.com/ManuGH/vidref/internal/metrics"
	"github.com/ManuGH/vidref/internal/video/refkey"
	"github.com/ManuGH/vidref/internal/video/validate"
)

// native passes durable picker URIs straight through and manages thumbnails.
type native struct {
	deps Deps
}

func (n *native) Platform() Platform { return PlatformNative }

func (n *native) ResolveForUpload(ctx context.Context, picked PickerResult, _ fsaccess.Activation) (Upload, error) {
	ctx, span := startSpan(ctx, n.deps.Tracer, "access.ResolveForUpload", PlatformNative, picked.URI)
	defer span.End()

	res := Validate(validate.Candidate{Name: picked.Name, URI: picked.URI, MIMEType: picked.MIMEType})
	if !res.IsValid {
		metrics.IncUpload(string(PlatformNative), "validation_failed")
		return Upload{Validation: res}, newError(KindValidationFailed, res.ErrorMessage, nil)
	}
	if picked.URI == "" {
		metrics.IncUpload(string(PlatformNative), "error")
		return Upload{Validation: res}, newError(KindHandleNotFound, "the picker returned no URI", nil)
	}

	uri := picked.URI
	logger := xglog.FromContext(ctx)
	err := n.deps.Thumbnails.GenerateAsync(ctx, uri, -1, func(path string, ok bool) {
		if !ok {
			logger.Debug().
				Str(xglog.FieldEvent, "access.thumbnail_absent").
				Str(xglog.FieldURI, uri).
				Msg("upload continues without thumbnail")
		}
	})
	if err != nil {
		logger.Debug().Err(err).Str(xglog.FieldURI, uri).Msg("thumbnail generation not scheduled")
	}

	metrics.IncUpload(string(PlatformNative), "success")
	return Upload{Reference: uri, FileName: picked.Name, Validation: res}, nil
}

func (n *native) ResolveForPlayback(ctx context.Context, reference string) Resolution {
	_, span := startSpan(ctx, n.deps.Tracer, "access.ResolveForPlayback", PlatformNative, reference)
	// Reference keys only exist on web; native cannot open them.
	if reference == "" || refkey.IsReferenceKey(reference) {
		return finish(span, PlatformNative, withState(StateNotFound, msgNotFound))
	}
	return finish(span, PlatformNative, playable(reference, "", nil))
}

// RequestAccess has nothing to negotiate on native.
func (n *native) RequestAccess(ctx context.Context, reference string, _ fsaccess.Activation) Resolution {
	return n.ResolveForPlayback(ctx, reference)
}

func (n *native) Release(ctx context.Context, reference string) error {
	if reference == "" {
		return nil
	}
	if err := n.deps.Thumbnails.Forget(ctx, reference); err != nil {
		xglog.FromContext(ctx).Warn().
			Str(xglog.FieldEvent, "access.thumbnail_cleanup_failed").
			Str(xglog.FieldURI, reference).
			Err(err).
			Msg("thumbnail cleanup failed")
	}
	return nil
}

func (n *native) Thumbnail(ctx context.Context, reference string) (string, bool) {
	if reference == "" || refkey.IsReferenceKey(reference) {
		return "", false
	}
	return n.deps.Thumbnails.Ensure(ctx, reference)
}
