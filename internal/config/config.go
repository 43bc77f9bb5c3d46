package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths holds directory locations and the daemon API bind address.
type Paths struct {
	LibraryRoots []string `toml:"library_roots"`
	OrganizedDir string   `toml:"organized_dir"`
	DataDir      string   `toml:"data_dir"`
	LogDir       string   `toml:"log_dir"`
	APIBind      string   `toml:"api_bind"`
}

// Match contains thresholds and policy for the match engine.
type Match struct {
	SuggestThreshold    float64 `toml:"suggest_threshold"`
	AutoAcceptThreshold float64 `toml:"auto_accept_threshold"`
	AutoAcceptEnabled   bool    `toml:"auto_accept_enabled"`
	RememberRejections  bool    `toml:"remember_rejections"`
}

// Library contains configuration for the organized library structure.
type Library struct {
	OrganizeOnAccept bool `toml:"organize_on_accept"`
	MinFreeGB        int  `toml:"min_free_gb"`
}

// Workflow controls daemon scheduling: scan cadence, filesystem watching,
// and shutdown grace.
type Workflow struct {
	ScanInterval    int  `toml:"scan_interval"`
	WatchLibrary    bool `toml:"watch_library"`
	WatchDebounce   int  `toml:"watch_debounce"`
	ShutdownTimeout int  `toml:"shutdown_timeout"`
}

// Catalog contains connection settings for one external game catalog.
type Catalog struct {
	Enabled       bool   `toml:"enabled"`
	APIKey        string `toml:"api_key"`
	BaseURL       string `toml:"base_url"`
	RatePerMinute int    `toml:"rate_per_minute"`
}

// Catalogs groups the supported external catalog sources.
type Catalogs struct {
	RequestTimeout int     `toml:"request_timeout"`
	IGDB           Catalog `toml:"igdb"`
	Steam          Catalog `toml:"steam"`
	GOG            Catalog `toml:"gog"`
}

// Notifications selects which ntfy push notifications are sent.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	ScanSummary    bool   `toml:"scan_summary"`
	Suggestions    bool   `toml:"suggestions"`
	Integrity      bool   `toml:"integrity"`
	Errors         bool   `toml:"errors"`
}

// Logging selects log output format and verbosity.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ludex, one section per
// subsystem:
//
//   - Paths: library roots, data/log directories, API bind address
//   - Match: similarity thresholds and cluster policy
//   - Library: organized layout behaviour and free-space floor
//   - Workflow: scan scheduling and filesystem watch settings
//   - Catalogs: external metadata sources and rate limits
//   - Notifications: ntfy push topics and toggles
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Match         Match         `toml:"match"`
	Library       Library       `toml:"library"`
	Workflow      Workflow      `toml:"workflow"`
	Catalogs      Catalogs      `toml:"catalogs"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the standard location for the configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ludex/config.toml")
}

// Load reads the configuration from disk, falling back to defaults when no
// file exists. Path fields come back expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		raw, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// resolveConfigPath picks the config location: an explicit path wins, then
// the LUDEX_CONFIG environment variable, then the user config directory,
// then a ludex.toml in the working directory.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		switch _, err := os.Stat(expanded); {
		case err == nil:
			return expanded, true, nil
		case errors.Is(err, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}

	if value := strings.TrimSpace(os.Getenv("LUDEX_CONFIG")); value != "" {
		expanded, err := expandPath(value)
		if err != nil {
			return "", false, err
		}
		return expanded, regularFileExists(expanded), nil
	}

	defaultPath, err := expandPath("~/.config/ludex/config.toml")
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("ludex.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if regularFileExists(candidate) {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

func regularFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureDirectories creates the directories the daemon needs at runtime.
// Library roots are created best-effort so startup survives external storage
// being temporarily offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, root := range c.Paths.LibraryRoots {
		if strings.TrimSpace(root) != "" {
			_ = os.MkdirAll(root, 0o755)
		}
	}
	if c.Library.OrganizeOnAccept && strings.TrimSpace(c.Paths.OrganizedDir) != "" {
		if err := os.MkdirAll(c.Paths.OrganizedDir, 0o755); err != nil {
			return fmt.Errorf("create organized directory %q: %w", c.Paths.OrganizedDir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "ludex.db")
}

// LockPath returns the daemon lock file location inside the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "ludex.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	expanded := pathValue
	if expanded == "~" || strings.HasPrefix(expanded, "~/") || strings.HasPrefix(expanded, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if expanded == "~" {
			expanded = home
		} else {
			expanded = filepath.Join(home, expanded[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(expanded))
	if err != nil {
		return "", fmt.Errorf("make %q absolute: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath applies the same tilde and absolute-path expansion Load uses.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
