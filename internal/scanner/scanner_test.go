package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/testsupport"
)

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hollow_knight", "Hollow Knight"},
		{"Stardew.Valley", "Stardew Valley"},
		{"DOOM-Eternal", "Doom Eternal"},
		{"celeste", "Celeste"},
		{"!!!", "Unknown Game"},
	}
	for _, tc := range cases {
		if got := DeriveTitle(tc.in); got != tc.want {
			t.Fatalf("DeriveTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInspectFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := cfg.Paths.LibraryRoots[0]
	folder := testsupport.SeedGameFolder(t, root, "Celeste (2018)", map[string]string{
		"celeste.exe":     "binary",
		"cover.png":       "art",
		"steam_appid.txt": "504230\n",
	})

	scanned := inspectFolder(folder, "Celeste (2018)")
	if scanned.Title != "Celeste" {
		t.Fatalf("expected year stripped from title, got %q", scanned.Title)
	}
	if scanned.CoverPath != filepath.Join(folder, "cover.png") {
		t.Fatalf("unexpected cover: %q", scanned.CoverPath)
	}
	wantTags := map[string]bool{"year:2018": true, "steam:504230": true}
	if len(scanned.Tags) != len(wantTags) {
		t.Fatalf("unexpected tags: %v", scanned.Tags)
	}
	for _, tag := range scanned.Tags {
		if !wantTags[tag] {
			t.Fatalf("unexpected tag %q in %v", tag, scanned.Tags)
		}
	}
}

func TestInspectFolderIgnoresMalformedAppID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := cfg.Paths.LibraryRoots[0]
	folder := testsupport.SeedGameFolder(t, root, "Oddity", map[string]string{
		"steam_appid.txt": "not-a-number\n",
	})

	scanned := inspectFolder(folder, "Oddity")
	if len(scanned.Tags) != 0 {
		t.Fatalf("expected no tags, got %v", scanned.Tags)
	}
}

func TestScanDiscoversAndRefreshes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Paths.LibraryRoots[0]

	testsupport.SeedGameFolder(t, root, "hollow_knight", map[string]string{"game.exe": "x"})
	testsupport.SeedGameFolder(t, root, "Stardew Valley", map[string]string{"game.exe": "x"})
	testsupport.WriteFile(t, filepath.Join(root, "stray-file.txt"), "not a game")
	if err := os.MkdirAll(filepath.Join(root, ".hidden"), 0o755); err != nil {
		t.Fatal(err)
	}

	scan := New(cfg, store, logging.NewNop())
	ctx := context.Background()

	first, err := scan.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if first.Seen != 2 || first.New != 2 {
		t.Fatalf("unexpected first summary: %+v", first)
	}

	instance, err := store.InstanceByPath(ctx, filepath.Join(root, "hollow_knight"))
	if err != nil {
		t.Fatalf("InstanceByPath failed: %v", err)
	}
	if instance == nil || instance.Title != "Hollow Knight" {
		t.Fatalf("unexpected instance: %#v", instance)
	}

	second, err := scan.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan failed: %v", err)
	}
	if second.Seen != 2 || second.New != 0 || second.Missing != 0 {
		t.Fatalf("expected idempotent rescan, got %+v", second)
	}
}

func TestScanMarksMissingAndReactivates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Paths.LibraryRoots[0]

	folder := testsupport.SeedGameFolder(t, root, "celeste", map[string]string{"game.exe": "x"})
	scan := New(cfg, store, logging.NewNop())
	ctx := context.Background()

	if _, err := scan.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if err := os.RemoveAll(folder); err != nil {
		t.Fatal(err)
	}

	summary, err := scan.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Missing != 1 {
		t.Fatalf("expected 1 missing, got %+v", summary)
	}
	instance, err := store.InstanceByPath(ctx, folder)
	if err != nil {
		t.Fatalf("InstanceByPath failed: %v", err)
	}
	if instance.Status != library.InstanceMissing {
		t.Fatalf("expected missing status, got %s", instance.Status)
	}

	testsupport.SeedGameFolder(t, root, "celeste", map[string]string{"game.exe": "x"})
	if _, err := scan.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	instance, err = store.InstanceByPath(ctx, folder)
	if err != nil {
		t.Fatalf("InstanceByPath failed: %v", err)
	}
	if instance.Status != library.InstanceActive {
		t.Fatalf("expected reactivated instance, got %s", instance.Status)
	}
}

func TestScanCoversOrganizedDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// Accepted games live one level deeper: organized/<Title>/<folder>.
	titleDir := filepath.Join(cfg.Paths.OrganizedDir, "Celeste")
	testsupport.SeedGameFolder(t, titleDir, "GameA_JP", map[string]string{"game.exe": "x"})

	scan := New(cfg, store, logging.NewNop())
	ctx := context.Background()
	summary, err := scan.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Seen != 1 {
		t.Fatalf("expected organized instance seen, got %+v", summary)
	}
	instance, err := store.InstanceByPath(ctx, filepath.Join(titleDir, "GameA_JP"))
	if err != nil {
		t.Fatalf("InstanceByPath failed: %v", err)
	}
	if instance == nil {
		t.Fatal("expected organized instance recorded")
	}
}

func TestScanSkipsUnreadableRootWithoutMissingSweep(t *testing.T) {
	extra := filepath.Join(t.TempDir(), "absent-share")
	cfg := testsupport.NewConfig(t, testsupport.WithLibraryRoot(extra))
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Paths.LibraryRoots[0]

	testsupport.SeedGameFolder(t, root, "celeste", map[string]string{"game.exe": "x"})
	scan := New(cfg, store, logging.NewNop())
	ctx := context.Background()
	if _, err := scan.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// A root that exists but cannot be read must suppress the missing sweep.
	if err := os.MkdirAll(extra, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(extra, 0o755) })
	if err := os.RemoveAll(filepath.Join(root, "celeste")); err != nil {
		t.Fatal(err)
	}

	summary, err := scan.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(summary.SkippedRoots) != 1 {
		t.Skipf("root unexpectedly readable (running as root?): %+v", summary)
	}
	if summary.Missing != 0 {
		t.Fatalf("expected missing sweep suppressed, got %+v", summary)
	}
	instance, err := store.InstanceByPath(ctx, filepath.Join(root, "celeste"))
	if err != nil {
		t.Fatalf("InstanceByPath failed: %v", err)
	}
	if instance.Status != library.InstanceActive {
		t.Fatalf("expected instance untouched, got %s", instance.Status)
	}
}

func TestWatcherTriggersAfterDebounce(t *testing.T) {
	root := t.TempDir()
	fired := make(chan struct{}, 4)
	w, err := NewWatcher([]string{root}, 50*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.Start()
	t.Cleanup(func() { _ = w.Close() })

	if err := os.Mkdir(filepath.Join(root, "NewGame"), 0o755); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("expected trigger after folder creation")
	}
}

func TestWatcherRequiresWatchableRoot(t *testing.T) {
	_, err := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")}, time.Second, func() {}, logging.NewNop())
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}
