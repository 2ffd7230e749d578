// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ManuGH/vidref/internal/config"
	"github.com/ManuGH/vidref/internal/kv"
	"github.com/ManuGH/vidref/internal/persistence/sqlite"
	"github.com/ManuGH/vidref/internal/refstore"
	"github.com/ManuGH/vidref/internal/version"
)

func runStorageCLI(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printStorageUsage(os.Stdout)
		return 0
	}

	switch args[0] {
	case "verify":
		return runStorageVerify(args[1:], os.Stdout, os.Stderr)
	case "keys":
		return runStorageKeys(args[1:], os.Stdout, os.Stderr)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", args[0])
		printStorageUsage(os.Stderr)
		return 2
	}
}

func printStorageUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  vidrefd storage verify [--path PATH] [--mode quick|full]")
	_, _ = fmt.Fprintln(w, "  vidrefd storage keys [--file config.yaml]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Subcommands:")
	_, _ = fmt.Fprintln(w, "  verify    Check SQLite store integrity (defaults to the configured store)")
	_, _ = fmt.Fprintln(w, "  keys      List stored video reference keys")
}

func runStorageVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vidrefd storage verify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var path, mode, file string
	fs.StringVar(&path, "path", "", "path to the SQLite database file")
	fs.StringVar(&mode, "mode", "quick", "verification mode: quick or full")
	fs.StringVar(&file, "file", "", "path to YAML configuration file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != "quick" && mode != "full" {
		_, _ = fmt.Fprintf(stderr, "Error: invalid mode %q. Use 'quick' or 'full'.\n", mode)
		return 2
	}

	if path == "" {
		cfg, err := loadConfig(file)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
			return 1
		}
		if cfg.Store.Backend != kv.BackendSQLite {
			_, _ = fmt.Fprintf(stderr, "Error: store backend is %q; --path is required to verify a SQLite file\n", cfg.Store.Backend)
			return 2
		}
		path = cfg.StorePath()
	}
	if _, err := os.Stat(path); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stderr, "Verifying integrity of %s (mode: %s)...\n", path, mode)
	issues, err := sqlite.VerifyIntegrity(context.Background(), path, mode == "full")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Verification interrupted by system error: %v\n", err)
		return 1
	}
	if len(issues) > 0 {
		_, _ = fmt.Fprintln(stderr, "CORRUPTION DETECTED!")
		for _, issue := range issues {
			_, _ = fmt.Fprintf(stderr, "  - %s\n", issue)
		}
		return 1
	}

	_, _ = fmt.Fprintln(stdout, "Integrity verified: ok")
	return 0
}

func runStorageKeys(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vidrefd storage keys", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	backend, err := kv.Open(ctx, cfg.KVOptions())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = backend.Close() }()

	keys, err := refstore.New(backend).Keys(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintln(stdout, k)
	}
	return 0
}

func loadConfig(file string) (config.AppConfig, error) {
	path := strings.TrimSpace(file)
	if path == "" {
		path = resolveDefaultConfigPath()
	}
	return config.NewLoader(path, version.Version).Load()
}
