package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"ludex/internal/config"
	"ludex/internal/library"
)

// CheckDirectoryAccess probes a directory for existence and read/write/list
// permission.
func CheckDirectoryAccess(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return Result{Name: name, Detail: fmt.Sprintf("%s (does not exist)", path)}
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("%s (stat: %v)", path, err)}
	case !info.IsDir():
		return Result{Name: name, Detail: fmt.Sprintf("%s (not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no read/write access: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minFreeGB gigabytes available.
func CheckFreeSpace(name, path string, minFreeGB int) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}

	available := stat.Bavail * uint64(stat.Bsize)
	availableGB := float64(available) / (1 << 30)
	if minFreeGB > 0 && available < uint64(minFreeGB)*(1<<30) {
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("%.1f GB free, need %d GB", availableGB, minFreeGB),
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%.1f GB free", availableGB)}
}

// CheckDatabase verifies that the library database opens and its schema is intact.
func CheckDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Library database"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := library.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open failed: %v", err)}
	}
	defer store.Close()

	health, err := store.CheckHealth(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed: %v", err)}
	}
	if !health.DatabaseReadable {
		return Result{Name: name, Detail: fmt.Sprintf("%s not readable", health.DBPath)}
	}
	if len(health.MissingTables) > 0 {
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("missing tables: %s", strings.Join(health.MissingTables, ", ")),
		}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%d instances)", health.DBPath, health.TotalInstances),
	}
}
