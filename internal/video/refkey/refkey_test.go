// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package refkey

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"clip.mp4":           "clip.mp4",
		"my holiday.mov":     "my_holiday.mov",
		"a/b\\c:d.mkv":       "a_b_c_d.mkv",
		"caf\u00e9.webm":     "caf_.webm",
		"cafe\u0301.webm":    "cafe_.webm",
		"cafe\u0301.mp4":     "cafe_.mp4",
		"clip\U0001F3AC.mp4": "clip__.mp4",
		"UPPER-lower.2.m4v":  "UPPER-lower.2.m4v",
	}
	for in, want := range tests {
		assert.Equal(t, want, Sanitize(in), "input %q", in)
	}
}

func TestGenerator_KeyFormat(t *testing.T) {
	g := NewGeneratorWithClock(fixedClock(1700000000123))
	key := g.Key("clip.mp4")
	assert.Equal(t, "video_1700000000123_clip.mp4", key)
	assert.Regexp(t, regexp.MustCompile(`^video_\d+_clip\.mp4$`), key)
	assert.True(t, IsReferenceKey(key))
}

func TestGenerator_MonotonicWithinSameMillisecond(t *testing.T) {
	g := NewGeneratorWithClock(fixedClock(1000))
	a := g.Key("clip.mp4")
	b := g.Key("clip.mp4")
	require.NotEqual(t, a, b)

	msA, _, ok := Parse(a)
	require.True(t, ok)
	msB, _, ok := Parse(b)
	require.True(t, ok)
	assert.Equal(t, msA+1, msB)
}

func TestGenerator_ClockGoingBackwards(t *testing.T) {
	now := int64(5000)
	g := NewGeneratorWithClock(func() time.Time { return time.UnixMilli(now) })
	first := g.Key("x.mp4")
	now = 4000
	second := g.Key("x.mp4")

	msFirst, _, _ := Parse(first)
	msSecond, _, _ := Parse(second)
	assert.Greater(t, msSecond, msFirst)
}

func TestThumbnailName(t *testing.T) {
	g := NewGeneratorWithClock(fixedClock(42))
	assert.Equal(t, "thumb_42_IMG_0001.MOV.jpg", g.ThumbnailName("file:///var/mobile/Media/IMG_0001.MOV"))
	assert.Equal(t, "thumb_43_video.jpg", g.ThumbnailName("content://media/"))
	assert.Equal(t, "thumb_44_123.jpg", g.ThumbnailName("content://media/external/video/123"))
}

func TestIsReferenceKey(t *testing.T) {
	assert.False(t, IsReferenceKey("file:///video_1_x.mp4"))
	assert.False(t, IsReferenceKey("video_abc_x.mp4"))
	assert.False(t, IsReferenceKey("video_123_"))
	assert.False(t, IsReferenceKey("video_123"))
	assert.True(t, IsReferenceKey("video_123_x"))
}
