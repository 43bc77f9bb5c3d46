package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMatch()
	c.normalizeWorkflow()
	c.normalizeCatalogs()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	roots := make([]string, 0, len(c.Paths.LibraryRoots))
	seen := make(map[string]struct{}, len(c.Paths.LibraryRoots))
	for _, root := range c.Paths.LibraryRoots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("paths.library_roots: %w", err)
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		roots = append(roots, expanded)
	}
	c.Paths.LibraryRoots = roots

	if strings.TrimSpace(c.Paths.OrganizedDir) == "" {
		c.Paths.OrganizedDir = defaultOrganizedDir
	}
	if c.Paths.OrganizedDir, err = expandPath(c.Paths.OrganizedDir); err != nil {
		return fmt.Errorf("paths.organized_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeMatch() {
	if c.Match.SuggestThreshold == 0 {
		c.Match.SuggestThreshold = defaultSuggestThreshold
	}
	if c.Match.AutoAcceptThreshold == 0 {
		c.Match.AutoAcceptThreshold = defaultAutoAcceptThreshold
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.ScanInterval <= 0 {
		c.Workflow.ScanInterval = defaultScanInterval
	}
	if c.Workflow.WatchDebounce <= 0 {
		c.Workflow.WatchDebounce = defaultWatchDebounce
	}
	if c.Workflow.ShutdownTimeout <= 0 {
		c.Workflow.ShutdownTimeout = defaultShutdownTimeout
	}
}

func (c *Config) normalizeCatalogs() {
	if c.Catalogs.RequestTimeout <= 0 {
		c.Catalogs.RequestTimeout = defaultCatalogTimeout
	}
	normalizeCatalog(&c.Catalogs.IGDB, defaultIGDBBaseURL, defaultIGDBRatePerMinute, "IGDB_API_KEY")
	normalizeCatalog(&c.Catalogs.Steam, defaultSteamBaseURL, defaultSteamRatePerMinute, "STEAM_API_KEY")
	normalizeCatalog(&c.Catalogs.GOG, defaultGOGBaseURL, defaultGOGRatePerMinute, "GOG_API_KEY")
}

func normalizeCatalog(c *Catalog, baseURL string, rate int, envKey string) {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = rate
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIKey == "" {
		if value, ok := os.LookupEnv(envKey); ok {
			c.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
