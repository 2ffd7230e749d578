// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/vidref/internal/access"
	"github.com/ManuGH/vidref/internal/api/problem"
	"github.com/ManuGH/vidref/internal/fsaccess"
	xglog "github.com/ManuGH/vidref/internal/log"
	"github.com/ManuGH/vidref/internal/player"
	"github.com/ManuGH/vidref/internal/refstore"
	"github.com/ManuGH/vidref/internal/video/validate"
)

const maxBodyBytes = 64 << 10

type sessionResponse struct {
	ID string `json:"id"`
}

type thumbnailResponse struct {
	Reference string `json:"reference"`
	Path      string `json:"path"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var picked access.PickerResult
	if !decodeBody(w, r, &picked) {
		return
	}
	res := access.Validate(validate.Candidate{Name: picked.Name, URI: picked.URI, MIMEType: picked.MIMEType})
	writeJSON(w, http.StatusOK, res)
}

// handleUpload treats the request itself as the user gesture that picked the
// file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var picked access.PickerResult
	if !decodeBody(w, r, &picked) {
		return
	}
	up, err := s.deps.Capability.ResolveForUpload(r.Context(), picked, fsaccess.UserActivation(s.deps.Now()))
	if err != nil {
		writeAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, up)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	ref, ok := referenceParam(w, r)
	if !ok {
		return
	}
	if err := s.deps.Capability.Release(r.Context(), ref); err != nil {
		writeAccessError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	ref, ok := referenceParam(w, r)
	if !ok {
		return
	}
	path, found := s.deps.Capability.Thumbnail(r.Context(), ref)
	if !found {
		writeProblem(w, r, http.StatusNotFound, "video/thumbnail_not_found", "Thumbnail Not Found",
			"THUMBNAIL_NOT_FOUND", "no thumbnail is available for this reference")
		return
	}
	writeJSON(w, http.StatusOK, thumbnailResponse{Reference: ref, Path: path})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sess := s.deps.Sessions.Open()
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID()})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Sessions.Close(chi.URLParam(r, "id")) {
		sessionNotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	if ref == "" {
		// No reference returns the current state without resolving again.
		writeJSON(w, http.StatusOK, sess.Current())
		return
	}
	res := sess.Load(r.Context(), ref)
	logResolution(r, sess.ID(), res)
	writeJSON(w, http.StatusOK, res)
}

// handlePermission is the "grant access" button. The request is the gesture.
func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	if ref == "" && sess.Reference() == "" {
		problem.BadRequest(w, r, "ref is required when the session has no source")
		return
	}
	res := sess.Grant(r.Context(), ref, fsaccess.UserActivation(s.deps.Now()))
	logResolution(r, sess.ID(), res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*player.Session, bool) {
	sess, ok := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		sessionNotFound(w, r)
		return nil, false
	}
	return sess, true
}

func sessionNotFound(w http.ResponseWriter, r *http.Request) {
	writeProblem(w, r, http.StatusNotFound, "session/not_found", "Session Not Found",
		"SESSION_NOT_FOUND", "no player session with this id")
}

func referenceParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	if ref == "" {
		problem.BadRequest(w, r, "ref is required")
		return "", false
	}
	return ref, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			problem.BadRequest(w, r, "request body is empty")
		} else {
			problem.BadRequest(w, r, "invalid request body: "+err.Error())
		}
		return false
	}
	return true
}

func logResolution(r *http.Request, sessionID string, res access.Resolution) {
	logger := xglog.FromContext(r.Context())
	ev := logger.Debug()
	if res.State != access.StatePlayable {
		ev = logger.Info()
	}
	ev.Str(xglog.FieldEvent, "api.playback").
		Str(xglog.FieldSessionID, sessionID).
		Str(xglog.FieldState, string(res.State)).
		Msg("playback resolved")
}

// writeAccessError maps a facade error onto a problem response.
func writeAccessError(w http.ResponseWriter, r *http.Request, err error) {
	kind := access.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case access.KindValidationFailed:
		status = http.StatusUnprocessableEntity
	case access.KindHandleNotFound:
		status = http.StatusNotFound
	case access.KindPermissionPending, access.KindPermissionDenied:
		status = http.StatusForbidden
	case access.KindStorageFailed:
		status = http.StatusServiceUnavailable
	case "":
		if errors.Is(err, refstore.ErrUnavailable) {
			status = http.StatusServiceUnavailable
			kind = access.KindStorageFailed
		} else {
			kind = "internal"
		}
	}

	detail := err.Error()
	if status >= http.StatusInternalServerError {
		logger := xglog.FromContext(r.Context())
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "api.access_error").
			Str("kind", string(kind)).
			Msg("video access failed")
		var ae *access.Error
		if errors.As(err, &ae) && ae.Message != "" {
			detail = ae.Message
		} else {
			detail = "internal error"
		}
	}
	writeProblem(w, r, status, "video/"+string(kind), http.StatusText(status),
		strings.ToUpper(string(kind)), detail)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string) {
	problem.Write(w, r, status, problemType, title, code, detail)
}
