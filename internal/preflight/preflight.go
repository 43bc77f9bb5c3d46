package preflight

import (
	"context"

	"ludex/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Data directory (always checked; holds the database)
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))

	for _, root := range cfg.Paths.LibraryRoots {
		results = append(results, CheckDirectoryAccess("Library root", root))
	}

	if cfg.Library.OrganizeOnAccept {
		results = append(results, CheckDirectoryAccess("Organized directory", cfg.Paths.OrganizedDir))
		if cfg.Library.MinFreeGB > 0 {
			results = append(results, CheckFreeSpace("Organized free space", cfg.Paths.OrganizedDir, cfg.Library.MinFreeGB))
		}
	}

	results = append(results, CheckDatabase(ctx, cfg))

	return results
}
