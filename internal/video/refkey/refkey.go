// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package refkey builds the opaque identifiers handed to the UI: video reference
// keys (video_<ms>_<name>) and persistent thumbnail file names (thumb_<ms>_<frag>.jpg).
package refkey

import (
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf16"
)

const (
	// KeyPrefix marks a string as a web video reference key.
	KeyPrefix = "video_"
	// ThumbPrefix marks a persistent thumbnail file.
	ThumbPrefix = "thumb_"
	// ThumbExt is the extension of every persisted thumbnail.
	ThumbExt = ".jpg"
)

// Sanitize replaces every UTF-16 code unit outside [A-Za-z0-9.-] with '_'.
// No normalisation is applied, so a combining mark gets its own '_' and a
// rune outside the BMP becomes "__". Keys minted by the web client match.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case utf16.RuneLen(r) == 2:
			b.WriteString("__")
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// IsReferenceKey reports whether ref has the shape video_<digits>_<name>.
func IsReferenceKey(ref string) bool {
	ms, _, ok := Parse(ref)
	return ok && ms > 0
}

// Parse splits a reference key into its timestamp and sanitized file name.
func Parse(ref string) (ms int64, name string, ok bool) {
	rest, found := strings.CutPrefix(ref, KeyPrefix)
	if !found {
		return 0, "", false
	}
	digits, name, found := strings.Cut(rest, "_")
	if !found || digits == "" || name == "" {
		return 0, "", false
	}
	ms, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return ms, name, true
}

// Generator hands out strictly increasing millisecond timestamps, so two keys
// minted in the same millisecond for the same file name still differ.
type Generator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewGenerator returns a Generator reading the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewGeneratorWithClock is for tests.
func NewGeneratorWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

func (g *Generator) tick() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return ms
}

// Key mints a reference key for the picked file name.
func (g *Generator) Key(fileName string) string {
	name := Sanitize(fileName)
	if name == "" {
		name = "video"
	}
	return KeyPrefix + strconv.FormatInt(g.tick(), 10) + "_" + name
}

// ThumbnailName mints a collision-resistant thumbnail file name derived from the
// last path segment of the source video URI.
func (g *Generator) ThumbnailName(sourceURI string) string {
	frag := sourceURI
	if i := strings.LastIndexByte(frag, '/'); i >= 0 {
		frag = frag[i+1:]
	}
	if frag == "" {
		frag = "video"
	}
	return ThumbPrefix + strconv.FormatInt(g.tick(), 10) + "_" + Sanitize(frag) + ThumbExt
}
