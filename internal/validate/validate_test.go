// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid http", "http://127.0.0.1:8088", false},
		{"valid https", "https://example.com", false},
		{"empty url", "", true},
		{"no host", "http://", true},
		{"invalid scheme", "ftp://example.com", true},
		{"no scheme", "example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("public_url", tt.value, []string{"http", "https"})
			if tt.wantErr == v.IsValid() {
				t.Errorf("URL(%q): wantErr=%v, err=%v", tt.value, tt.wantErr, v.Err())
			}
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":8088", false},
		{"127.0.0.1:0", false},
		{"[::1]:443", false},
		{"8088", true},
		{"localhost:http", true},
		{":70000", true},
	}
	for _, tt := range tests {
		v := New()
		v.ListenAddr("listen_addr", tt.addr)
		if tt.wantErr == v.IsValid() {
			t.Errorf("ListenAddr(%q): wantErr=%v, err=%v", tt.addr, tt.wantErr, v.Err())
		}
	}
}

func TestValidator_Ranges(t *testing.T) {
	v := New()
	v.Range("concurrency", 0, 1, 16)
	v.FloatRange("quality", 1.5, 0.01, 1)
	v.Duration("grant_ttl", 0, time.Second)
	v.Positive("rps", -1)
	v.NonNegative("db", -2)
	if got := len(v.Errors()); got != 5 {
		t.Fatalf("expected 5 errors, got %d: %v", got, v.Err())
	}

	ok := New()
	ok.Range("concurrency", 2, 1, 16)
	ok.FloatRange("quality", 0.85, 0.01, 1)
	ok.Duration("grant_ttl", time.Hour, time.Second)
	ok.Positive("rps", 1)
	ok.NonNegative("db", 0)
	if err := ok.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidator_Directory(t *testing.T) {
	root := t.TempDir()

	v := New()
	created := filepath.Join(root, "data", "thumbnails")
	v.Directory("dir", created, false)
	if !v.IsValid() {
		t.Fatalf("unexpected error: %v", v.Err())
	}
	if fi, err := os.Stat(created); err != nil || !fi.IsDir() {
		t.Fatalf("directory was not created: %v", err)
	}

	file := filepath.Join(root, "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		path      string
		mustExist bool
	}{
		{"", false},
		{filepath.Join(root, "missing"), true},
		{file, false},
		{root + "/../escape", false},
	} {
		v := New()
		v.Directory("dir", tc.path, tc.mustExist)
		if v.IsValid() {
			t.Errorf("Directory(%q, %v): expected error", tc.path, tc.mustExist)
		}
	}
}

func TestValidator_OneOfAndNotEmpty(t *testing.T) {
	v := New()
	v.OneOf("platform", "desktop", []string{"auto", "web", "native"})
	v.NotEmpty("path", "  ")
	v.OneOf("platform", "web", []string{"auto", "web", "native"})
	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %v", v.Errors())
	}
}

func TestValidationError_Aggregates(t *testing.T) {
	v := New()
	v.AddError("a", "first", 1)
	v.AddError("b", "second", 2)
	err := v.Err()

	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(ve.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(ve.Errors()))
	}
	msg := err.Error()
	if !strings.Contains(msg, "validation failed for a: first") || !strings.Contains(msg, "; ") {
		t.Errorf("unexpected message: %s", msg)
	}

	v.AddError("c", "third", 3)
	if len(ve.Errors()) != 2 {
		t.Error("ValidationError must not alias the validator's slice")
	}
}
