// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldReference = "reference"
	FieldBlobID    = "blob_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPlatform  = "platform"
	FieldBackend   = "backend"

	// State fields
	FieldPermission = "permission"
	FieldState      = "state"
	FieldOldState   = "old_state"
	FieldNewState   = "new_state"

	// Path / URL fields
	FieldPath      = "path"
	FieldURI       = "uri"
	FieldFileName  = "file_name"
	FieldThumbnail = "thumbnail"
)
