package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ludex/internal/config"
	"ludex/internal/library"
	"ludex/internal/logging"
)

// Scanner walks the library roots and records each game folder as an
// instance. One immediate subfolder per root is one instance; the organized
// directory is scanned one level deeper because accepted games live under a
// per-title parent there.
type Scanner struct {
	store  *library.Store
	cfg    *config.Config
	logger *slog.Logger
}

// Summary reports one pass over the library roots.
type Summary struct {
	Seen         int
	New          int
	Missing      int64
	SkippedRoots []string
}

// New constructs a scanner over the configured roots.
func New(cfg *config.Config, store *library.Store, logger *slog.Logger) *Scanner {
	return &Scanner{store: store, cfg: cfg, logger: logging.NewComponentLogger(logger, "scanner")}
}

// Scan performs a full pass: every discovered folder is upserted, then
// instances absent from every readable root are marked missing. Unreadable
// roots are skipped without marking their instances missing.
func (s *Scanner) Scan(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	var seen []string

	for _, root := range s.cfg.Paths.LibraryRoots {
		if err := s.scanRoot(ctx, root, 1, summary, &seen); err != nil {
			return summary, err
		}
	}
	organized := strings.TrimSpace(s.cfg.Paths.OrganizedDir)
	if organized != "" && !s.isLibraryRoot(organized) {
		if err := s.scanRoot(ctx, organized, 2, summary, &seen); err != nil {
			return summary, err
		}
	}

	if len(summary.SkippedRoots) > 0 {
		// A root that failed to read says nothing about its instances, so the
		// missing sweep is unsafe and skipped for this pass.
		s.logger.Warn(
			"skipping missing sweep, some roots were unreadable",
			logging.Int("skipped_roots", len(summary.SkippedRoots)),
		)
		return summary, nil
	}

	missing, err := s.store.MarkMissingExcept(ctx, seen)
	if err != nil {
		return summary, fmt.Errorf("mark missing instances: %w", err)
	}
	summary.Missing = missing

	s.logger.Info(
		"library scan complete",
		logging.Int("seen", summary.Seen),
		logging.Int("new", summary.New),
		logging.Int64("missing", summary.Missing),
	)
	return summary, nil
}

func (s *Scanner) scanRoot(ctx context.Context, root string, depth int, summary *Summary, seen *[]string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		summary.SkippedRoots = append(summary.SkippedRoots, root)
		s.logger.Warn("library root unreadable", logging.String("root", root), logging.Error(err))
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		folder := filepath.Join(root, entry.Name())
		if depth > 1 {
			if err := s.scanRoot(ctx, folder, depth-1, summary, seen); err != nil {
				return err
			}
			continue
		}

		scanned := inspectFolder(folder, entry.Name())
		instance, err := s.store.UpsertInstance(ctx, scanned)
		if err != nil {
			s.logger.Warn(
				"failed to record game folder",
				logging.String(logging.FieldInstancePath, folder),
				logging.Error(err),
			)
			continue
		}
		*seen = append(*seen, folder)
		summary.Seen++
		if instance.CreatedAt.Equal(instance.UpdatedAt) {
			summary.New++
		}
	}
	return nil
}

func (s *Scanner) isLibraryRoot(dir string) bool {
	for _, root := range s.cfg.Paths.LibraryRoots {
		if root == dir {
			return true
		}
	}
	return false
}

// coverNames lists recognized cover art basenames, checked per extension.
var coverNames = []string{"cover", "folder", "boxart"}

var coverExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// yearPattern matches a parenthesized release year in a folder name.
var yearPattern = regexp.MustCompile(`\((19|20)\d{2}\)`)

// inspectFolder derives the scanner-owned fields for one game folder: a
// display-friendly title from the folder name, optional cover art, and tags
// for a year hint or bundled steam_appid.txt.
func inspectFolder(folder, name string) library.ScannedInstance {
	scanned := library.ScannedInstance{FolderPath: folder}

	var tags []string
	if match := yearPattern.FindString(name); match != "" {
		year := strings.Trim(match, "()")
		tags = append(tags, "year:"+year)
		name = strings.Replace(name, match, " ", 1)
	}
	scanned.Title = DeriveTitle(name)

	if cover := findCover(folder); cover != "" {
		scanned.CoverPath = cover
	}
	if appID := readSteamAppID(folder); appID != "" {
		tags = append(tags, "steam:"+appID)
	}
	scanned.Tags = tags
	return scanned
}

// DeriveTitle turns a folder name into a readable title: separators become
// spaces, other punctuation is dropped, and the result is title-cased.
func DeriveTitle(name string) string {
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Unknown Game"
	}
	return cases.Title(language.Und).String(title)
}

func findCover(folder string) string {
	for _, base := range coverNames {
		for _, ext := range coverExtensions {
			candidate := filepath.Join(folder, base+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}

// readSteamAppID returns the numeric id from a steam_appid.txt shipped in the
// folder, or empty when absent or malformed.
func readSteamAppID(folder string) string {
	data, err := os.ReadFile(filepath.Join(folder, "steam_appid.txt"))
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	if line == "" {
		return ""
	}
	if _, err := strconv.ParseUint(line, 10, 64); err != nil {
		return ""
	}
	return line
}
