// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/vidref/internal/procgroup"
)

var (
	// ErrExtractorUnavailable means no frame extractor is installed.
	ErrExtractorUnavailable = errors.New("thumbnail: frame extractor unavailable")
	// ErrUnsupportedSource means the extractor cannot read this kind of URI.
	ErrUnsupportedSource = errors.New("thumbnail: unsupported video source")
)

// Extractor writes one frame of videoURI, taken at offset, to a temporary
// JPEG and returns its path. The caller removes the file.
type Extractor interface {
	Extract(ctx context.Context, videoURI string, at time.Duration, quality float64) (string, error)
}

// UnavailableExtractor always fails; every thumbnail becomes absent.
type UnavailableExtractor struct {
	Reason string
}

func (u UnavailableExtractor) Extract(context.Context, string, time.Duration, float64) (string, error) {
	if u.Reason == "" {
		return "", ErrExtractorUnavailable
	}
	return "", fmt.Errorf("%w: %s", ErrExtractorUnavailable, u.Reason)
}

// FFmpegOptions configures FFmpegExtractor.
type FFmpegOptions struct {
	Bin     string
	TempDir string
	// Timeout bounds one extraction; the process group is killed after it.
	Timeout time.Duration
	// RatePerSecond throttles process spawns. Zero disables the limit.
	RatePerSecond float64
}

// FFmpegExtractor grabs a frame with an ffmpeg subprocess.
type FFmpegExtractor struct {
	bin     string
	tempDir string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewFFmpegExtractor resolves the ffmpeg binary. It returns
// ErrExtractorUnavailable when the binary cannot be found.
func NewFFmpegExtractor(opts FFmpegOptions) (*FFmpegExtractor, error) {
	bin := opts.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractorUnavailable, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &FFmpegExtractor{
		bin:     resolved,
		tempDir: opts.TempDir,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

func (e *FFmpegExtractor) Extract(ctx context.Context, videoURI string, at time.Duration, quality float64) (string, error) {
	input, err := ffmpegInput(videoURI)
	if err != nil {
		return "", err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(e.tempDir, "vidref-thumb-*.jpg")
	if err != nil {
		return "", fmt.Errorf("thumbnail: create temp file: %w", err)
	}
	out := tmp.Name()
	_ = tmp.Close()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// #nosec G204 -- bin comes from config and args are built, not interpolated
	cmd := exec.CommandContext(ctx, e.bin, buildArgs(input, out, at, quality)...)
	procgroup.Set(cmd)
	cmd.WaitDelay = 2 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		if ctx.Err() != nil {
			return "", fmt.Errorf("thumbnail: ffmpeg: %w", ctx.Err())
		}
		return "", fmt.Errorf("thumbnail: ffmpeg failed: %w (output: %s)", err, tail(stderr.String(), 512))
	}

	fi, err := os.Stat(out)
	if err != nil || fi.Size() == 0 {
		_ = os.Remove(out)
		return "", errors.New("thumbnail: ffmpeg produced no frame")
	}
	return out, nil
}

// buildArgs returns the ffmpeg command line for a single-frame JPEG grab.
// Seeking before -i makes ffmpeg jump to the nearest keyframe first.
func buildArgs(input, output string, at time.Duration, quality float64) []string {
	return []string{
		"-y",
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(jpegQScale(quality)),
		"-f", "image2",
		output,
	}
}

// jpegQScale maps quality in [0,1] onto ffmpeg's mjpeg scale, where 2 is best
// and 31 worst.
func jpegQScale(quality float64) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}
	return int(math.Round(2 + (1-quality)*29))
}

// ffmpegInput turns a picker URI into something ffmpeg can open.
func ffmpegInput(videoURI string) (string, error) {
	if filepath.IsAbs(videoURI) {
		return videoURI, nil
	}
	u, err := url.Parse(videoURI)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		if u.Path == "" {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedSource, videoURI)
		}
		return u.Path, nil
	case "http", "https":
		return videoURI, nil
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedSource, u.Scheme)
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
