package fsops

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ludex/internal/services"
)

func seedDir(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, contents := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Celeste", "Celeste"},
		{"  DOOM: Eternal  ", "DOOM- Eternal"},
		{"What?", "What"},
		{"a/b\\c", "a-b-c"},
		{"<Game|Title>", "GameTitle"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SanitizeName(tc.in); got != tc.want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEnsureSafePath(t *testing.T) {
	base := t.TempDir()

	path, err := EnsureSafePath(base, "DOOM: Eternal")
	if err != nil {
		t.Fatalf("EnsureSafePath failed: %v", err)
	}
	if path != filepath.Join(base, "DOOM- Eternal") {
		t.Fatalf("unexpected path: %q", path)
	}

	if _, err := EnsureSafePath(base, "../escape"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for traversal, got %v", err)
	}
	if _, err := EnsureSafePath(base, "   "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, err := EnsureSafePath("", "name"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for blank base, got %v", err)
	}
}

func TestNextAvailable(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "Celeste")

	got, err := NextAvailable(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Fatalf("expected free path returned as-is, got %q", got)
	}

	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err = NextAvailable(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != path+" (2)" {
		t.Fatalf("expected suffixed path, got %q", got)
	}
}

func TestAtomicMoveRenames(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "library", "Celeste")
	target := filepath.Join(base, "organized", "Celeste")
	seedDir(t, source, map[string]string{
		"game.exe":        "binary",
		"saves/slot1":     "save data",
		"assets/bg.png":   "image",
		"steam_appid.txt": "504230",
	})

	if err := AtomicMove(source, target); err != nil {
		t.Fatalf("AtomicMove failed: %v", err)
	}
	if _, err := os.Stat(source); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source gone, got %v", err)
	}
	got, err := os.ReadFile(filepath.Join(target, "saves", "slot1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "save data" {
		t.Fatalf("content mismatch after move: %q", got)
	}
}

func TestAtomicMoveRefusesExistingTarget(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "src")
	target := filepath.Join(base, "dst")
	seedDir(t, source, map[string]string{"a": "1"})
	seedDir(t, target, map[string]string{"b": "2"})

	if err := AtomicMove(source, target); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict for existing target, got %v", err)
	}
}

func TestAtomicMoveRequiresDirectory(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "file.txt")
	if err := os.WriteFile(source, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := AtomicMove(source, filepath.Join(base, "dst")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for file source, got %v", err)
	}
	if err := AtomicMove(filepath.Join(base, "missing"), filepath.Join(base, "dst")); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error for missing source, got %v", err)
	}
}

func TestRollbackMoveRestores(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "library", "Hades")
	target := filepath.Join(base, "organized", "Hades")
	seedDir(t, source, map[string]string{"game.exe": "binary"})

	if err := AtomicMove(source, target); err != nil {
		t.Fatalf("AtomicMove failed: %v", err)
	}
	if err := RollbackMove(source, target); err != nil {
		t.Fatalf("RollbackMove failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(source, "game.exe"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "binary" {
		t.Fatalf("content mismatch after rollback: %q", got)
	}
	if _, err := os.Stat(target); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected target gone after rollback, got %v", err)
	}
}

func TestCopyDirVerified(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "src")
	target := filepath.Join(base, "dst")
	seedDir(t, source, map[string]string{
		"readme.txt":       "notes",
		"nested/deep/file": "payload",
	})
	if err := os.Symlink("readme.txt", filepath.Join(source, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if err := CopyDirVerified(source, target); err != nil {
		t.Fatalf("CopyDirVerified failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(target, "nested", "deep", "file"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("content mismatch: %q", got)
	}
	link, err := os.Readlink(filepath.Join(target, "link"))
	if err != nil {
		t.Fatal(err)
	}
	if link != "readme.txt" {
		t.Fatalf("unexpected symlink target: %q", link)
	}
}
