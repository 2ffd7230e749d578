// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package access

import (
	"errors"
	"fmt"
)

// Kind classifies facade failures.
type Kind string

const (
	KindValidationFailed          Kind = "validation_failed"
	KindHandleNotFound            Kind = "handle_not_found"
	KindPermissionPending         Kind = "permission_pending"
	KindPermissionDenied          Kind = "permission_denied"
	KindThumbnailGenerationFailed Kind = "thumbnail_generation_failed"
	KindBlobCreationFailed        Kind = "blob_creation_failed"
	KindStorageFailed             Kind = "storage_failed"
)

// Error is returned by facade operations that fail outright.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
