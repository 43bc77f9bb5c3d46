package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMatch(); err != nil {
		return err
	}
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateCatalogs(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if len(c.Paths.LibraryRoots) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/ludex/config.toml"
		}
		return fmt.Errorf("paths.library_roots must list at least one directory. Edit %s (create with 'ludex config init')", defaultPath)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateMatch() error {
	if c.Match.SuggestThreshold < 0 || c.Match.SuggestThreshold > 1 {
		return errors.New("match.suggest_threshold must be between 0 and 1")
	}
	if c.Match.AutoAcceptThreshold < 0 || c.Match.AutoAcceptThreshold > 1 {
		return errors.New("match.auto_accept_threshold must be between 0 and 1")
	}
	if c.Match.AutoAcceptThreshold < c.Match.SuggestThreshold {
		return errors.New("match.auto_accept_threshold must be at least match.suggest_threshold")
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if c.Library.OrganizeOnAccept && strings.TrimSpace(c.Paths.OrganizedDir) == "" {
		return errors.New("paths.organized_dir must be set when library.organize_on_accept is true")
	}
	if c.Library.MinFreeGB < 0 {
		return errors.New("library.min_free_gb must not be negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.scan_interval":    c.Workflow.ScanInterval,
		"workflow.watch_debounce":   c.Workflow.WatchDebounce,
		"workflow.shutdown_timeout": c.Workflow.ShutdownTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCatalogs() error {
	if c.Catalogs.RequestTimeout <= 0 {
		return errors.New("catalogs.request_timeout must be positive (seconds)")
	}
	if c.Catalogs.IGDB.Enabled && c.Catalogs.IGDB.APIKey == "" {
		return errors.New("catalogs.igdb.api_key must be set when catalogs.igdb.enabled is true. Set IGDB_API_KEY env var or edit the config file")
	}
	for name, catalog := range map[string]Catalog{
		"catalogs.igdb":  c.Catalogs.IGDB,
		"catalogs.steam": c.Catalogs.Steam,
		"catalogs.gog":   c.Catalogs.GOG,
	} {
		if !catalog.Enabled {
			continue
		}
		if strings.TrimSpace(catalog.BaseURL) == "" {
			return fmt.Errorf("%s.base_url must be set when enabled", name)
		}
		if catalog.RatePerMinute <= 0 {
			return fmt.Errorf("%s.rate_per_minute must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
