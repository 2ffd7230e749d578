// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate classifies picked files as playable video by MIME type,
// falling back to the file extension when the picker did not declare one.
package validate

import (
	"fmt"
	"path"
	"strings"
)

// Candidate is a picker result. Web pickers fill Name and MIMEType; native pickers
// fill URI and optionally MIMEType. When both Name and URI are present, Name wins
// for extension extraction.
type Candidate struct {
	Name     string
	URI      string
	MIMEType string
}

// Result is the outcome of a single validation. Empty strings stand for "absent".
type Result struct {
	IsValid       bool   `json:"isValid"`
	MIMEType      string `json:"mimeType,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	FileExtension string `json:"fileExtension,omitempty"`
}

const msgUndetermined = "Unable to determine video file type. Please ensure the file is a valid video format."

// videoExtensions is the fallback allowlist used when no MIME type is declared.
var videoExtensions = map[string]string{
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"avi":  "video/avi",
	"mkv":  "video/mkv",
	"m4v":  "video/m4v",
	"3gp":  "video/3gp",
}

// Extensions returns the accepted fallback extensions.
func Extensions() []string {
	return []string{"mp4", "mov", "webm", "avi", "mkv", "m4v", "3gp"}
}

// Validate classifies c. It is pure.
func Validate(c Candidate) Result {
	source := c.Name
	if source == "" {
		source = c.URI
	}
	ext := Extension(source)
	mime := strings.TrimSpace(c.MIMEType)

	if mime == "" {
		if synthesized, ok := videoExtensions[ext]; ok {
			return Result{IsValid: true, MIMEType: synthesized, FileExtension: ext}
		}
		return Result{ErrorMessage: msgUndetermined, FileExtension: ext}
	}

	if !strings.HasPrefix(mime, "video/") {
		return Result{
			MIMEType:      mime,
			ErrorMessage:  fmt.Sprintf("Invalid file type: %s. Please select a video file.", mime),
			FileExtension: ext,
		}
	}

	return Result{IsValid: true, MIMEType: mime, FileExtension: ext}
}

// Extension returns the lower-cased last dot-segment of the final path segment of
// a file name or URI, or "" when there is none. Query strings and fragments are
// ignored so "clip.mp4?token=x" still yields "mp4".
func Extension(nameOrURI string) string {
	s := nameOrURI
	if i := strings.IndexAny(s, "?#"); i >= 0 && strings.Contains(s, "://") {
		s = s[:i]
	}
	s = path.Base(strings.ReplaceAll(s, "\\", "/"))
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 || dot == len(s)-1 {
		return ""
	}
	return strings.ToLower(s[dot+1:])
}
