package testsupport

import (
	"path/filepath"
	"testing"

	"ludex/internal/config"
)

// ConfigOption adjusts the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig returns a config rooted in a fresh t.TempDir, with every path
// pointed inside it, then applies opts.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryRoots = []string{filepath.Join(base, "library")}
	cfgVal.Paths.OrganizedDir = filepath.Join(base, "organized")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLibraryRoot appends an extra library root to the test config.
func WithLibraryRoot(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.LibraryRoots = append(b.cfg.Paths.LibraryRoots, path)
	}
}

// WithIGDB enables the IGDB catalog with the provided key and base URL.
func WithIGDB(key, baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalogs.IGDB.Enabled = true
		b.cfg.Catalogs.IGDB.APIKey = key
		if baseURL != "" {
			b.cfg.Catalogs.IGDB.BaseURL = baseURL
		}
	}
}

// WithAutoAccept toggles automatic acceptance of high-confidence clusters.
func WithAutoAccept(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Match.AutoAcceptEnabled = enabled
	}
}

// WithOrganizeOnAccept toggles folder relocation during accept.
func WithOrganizeOnAccept(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Library.OrganizeOnAccept = enabled
	}
}

// BaseDir recovers the temp root a NewConfig-built config lives under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
