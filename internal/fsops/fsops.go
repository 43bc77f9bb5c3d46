// Package fsops provides the filesystem moves behind organize-on-accept.
// Moves prefer rename and fall back to a verified copy for cross-device
// targets, and every target path is containment-checked before use.
package fsops

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"ludex/internal/services"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeName replaces filesystem-unsafe characters in a folder name.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// EnsureSafePath joins a sanitized name onto base and verifies the result
// stays inside base. Dotfile names and traversal sequences are rejected.
func EnsureSafePath(base, name string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", services.Wrap(services.ErrValidation, "fsops", "ensure-safe-path", "base directory is required", nil)
	}
	sanitized := SanitizeName(name)
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		return "", services.Wrap(services.ErrValidation, "fsops", "ensure-safe-path", fmt.Sprintf("unusable folder name %q", name), nil)
	}
	candidate := filepath.Join(base, sanitized)
	rel, err := filepath.Rel(base, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", services.Wrap(
			services.ErrValidation,
			"fsops",
			"ensure-safe-path",
			fmt.Sprintf("%q escapes %q", candidate, base),
			err,
		)
	}
	return candidate, nil
}

// NextAvailable returns path if nothing exists there, otherwise the first
// free "path (N)" variant.
func NextAvailable(path string) (string, error) {
	const maxAttempts = 1000
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate := path
		if attempt > 1 {
			candidate = fmt.Sprintf("%s (%d)", path, attempt)
		}
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted folder name slots at %s", path)
}

// AtomicMove relocates a directory from source to target. Rename is tried
// first; cross-device moves fall back to a verified copy followed by source
// removal. The target must not exist.
func AtomicMove(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return services.Wrap(services.ErrTransient, "fsops", "move", fmt.Sprintf("stat source %s", source), err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "fsops", "move", fmt.Sprintf("%s is not a directory", source), nil)
	}
	if _, err := os.Stat(target); err == nil {
		return services.Wrap(services.ErrConflict, "fsops", "move", fmt.Sprintf("target %s already exists", target), nil)
	} else if !errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrTransient, "fsops", "move", fmt.Sprintf("stat target %s", target), err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "fsops", "move", fmt.Sprintf("ensure parent of %s", target), err)
	}

	renameErr := os.Rename(source, target)
	if renameErr == nil {
		return nil
	}
	var linkErr *os.LinkError
	if errors.As(renameErr, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := CopyDirVerified(source, target); err != nil {
			_ = os.RemoveAll(target)
			return services.Wrap(services.ErrTransient, "fsops", "move", fmt.Sprintf("copy %s across devices", source), err)
		}
		if err := os.RemoveAll(source); err != nil {
			return services.Wrap(services.ErrTransient, "fsops", "move", fmt.Sprintf("remove source %s after copy", source), err)
		}
		return nil
	}
	return services.Wrap(services.ErrTransient, "fsops", "move", fmt.Sprintf("move %s to %s", source, target), renameErr)
}

// RollbackMove reverses a completed AtomicMove, restoring target back to
// source. Used when the transaction recording a move fails after the
// filesystem already changed.
func RollbackMove(source, target string) error {
	if _, err := os.Stat(target); err != nil {
		return services.Wrap(services.ErrTransient, "fsops", "rollback-move", fmt.Sprintf("stat moved folder %s", target), err)
	}
	if err := os.MkdirAll(filepath.Dir(source), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "fsops", "rollback-move", fmt.Sprintf("ensure parent of %s", source), err)
	}
	renameErr := os.Rename(target, source)
	if renameErr == nil {
		return nil
	}
	var linkErr *os.LinkError
	if errors.As(renameErr, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := CopyDirVerified(target, source); err != nil {
			return services.Wrap(services.ErrTransient, "fsops", "rollback-move", fmt.Sprintf("copy %s back across devices", target), err)
		}
		if err := os.RemoveAll(target); err != nil {
			return services.Wrap(services.ErrTransient, "fsops", "rollback-move", fmt.Sprintf("remove %s after copy", target), err)
		}
		return nil
	}
	return services.Wrap(services.ErrTransient, "fsops", "rollback-move", fmt.Sprintf("restore %s to %s", target, source), renameErr)
}

// CopyDirVerified recursively copies a directory tree, verifying each regular
// file by size and content hash. Symlinks are recreated, other special files
// are skipped.
func CopyDirVerified(source, target string) error {
	return filepath.WalkDir(source, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(target, rel)

		switch {
		case entry.IsDir():
			info, err := entry.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(dst, info.Mode().Perm())
		case entry.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, dst)
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				return err
			}
			return copyFileVerified(path, dst, info.Mode().Perm())
		default:
			return nil
		}
	})
}

// copyFileVerified copies src to dst, then re-reads dst and compares the
// size and SHA256 of what landed on disk against what was read from the
// source. A mismatch removes dst.
func copyFileVerified(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	hasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, hasher))
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	wantSum := hasher.Sum(nil)

	gotSum, gotSize, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("verify %s: %w", dst, err)
	}
	if gotSize != written {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: wrote %d bytes, read back %d", written, gotSize)
	}
	if !bytes.Equal(wantSum, gotSum) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy checksum mismatch for %s", dst)
	}
	return nil
}

func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return nil, 0, err
	}
	return hasher.Sum(nil), size, nil
}
