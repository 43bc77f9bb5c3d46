package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ludex/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	plainFile := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(plainFile, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		wantPass bool
	}{
		{"writable directory", t.TempDir(), true},
		{"missing directory", filepath.Join(t.TempDir(), "nope"), false},
		{"regular file", plainFile, false},
		{"blank path", "  ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckDirectoryAccess("test", tt.path)
			if result.Passed != tt.wantPass {
				t.Fatalf("Passed = %v, want %v (detail: %s)", result.Passed, tt.wantPass, result.Detail)
			}
			if result.Detail == "" {
				t.Fatal("Detail is empty")
			}
		})
	}
}

func TestCheckFreeSpace(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		minGB    int
		wantPass bool
	}{
		{"no threshold", t.TempDir(), 0, true},
		{"exabyte threshold", t.TempDir(), 1 << 30, false},
		{"missing path", filepath.Join(t.TempDir(), "nope"), 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckFreeSpace("test", tt.path, tt.minGB)
			if result.Passed != tt.wantPass {
				t.Fatalf("Passed = %v, want %v (detail: %s)", result.Passed, tt.wantPass, result.Detail)
			}
			if result.Detail == "" {
				t.Fatal("Detail is empty")
			}
		})
	}
}

func TestCheckDatabase_OK(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := CheckDatabase(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("fresh database did not pass: %s", result.Detail)
	}
}

func TestCheckDatabase_UnusablePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Paths.DataDir = filepath.Join(blocker, "data")

	result := CheckDatabase(context.Background(), cfg)
	if result.Passed {
		t.Fatal("database check passed although the data dir cannot be created")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("RunAll(nil) = %v, want nil", results)
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LibraryRoots[0]} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(context.Background(), cfg)
	// Data dir + one library root + database
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("%s did not pass: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesOrganizedChecksWhenEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOrganizeOnAccept(true))
	cfg.Library.MinFreeGB = 1
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LibraryRoots[0], cfg.Paths.OrganizedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(context.Background(), cfg)
	names := make(map[string]bool, len(results))
	for _, r := range results {
		names[r.Name] = true
	}
	if !names["Organized directory"] {
		t.Error("expected organized directory check")
	}
	if !names["Organized free space"] {
		t.Error("expected free space check")
	}
}
