package config

const (
	defaultLibraryRoot          = "~/games"
	defaultOrganizedDir         = "~/games/organized"
	defaultDataDir              = "~/.local/share/ludex"
	defaultLogDir               = "~/.local/share/ludex/logs"
	defaultAPIBind              = "127.0.0.1:7474"
	defaultSuggestThreshold     = 0.80
	defaultAutoAcceptThreshold  = 0.95
	defaultMinFreeGB            = 1
	defaultScanInterval         = 900
	defaultWatchDebounce        = 5
	defaultShutdownTimeout      = 10
	defaultCatalogTimeout       = 15
	defaultIGDBBaseURL          = "https://api.igdb.com/v4"
	defaultIGDBRatePerMinute    = 240
	defaultSteamBaseURL         = "https://store.steampowered.com/api"
	defaultSteamRatePerMinute   = 60
	defaultGOGBaseURL           = "https://api.gog.com"
	defaultGOGRatePerMinute     = 60
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryRoots: []string{defaultLibraryRoot},
			OrganizedDir: defaultOrganizedDir,
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Match: Match{
			SuggestThreshold:    defaultSuggestThreshold,
			AutoAcceptThreshold: defaultAutoAcceptThreshold,
			AutoAcceptEnabled:   true,
			RememberRejections:  false,
		},
		Library: Library{
			OrganizeOnAccept: false,
			MinFreeGB:        defaultMinFreeGB,
		},
		Workflow: Workflow{
			ScanInterval:    defaultScanInterval,
			WatchLibrary:    true,
			WatchDebounce:   defaultWatchDebounce,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Catalogs: Catalogs{
			RequestTimeout: defaultCatalogTimeout,
			IGDB: Catalog{
				BaseURL:       defaultIGDBBaseURL,
				RatePerMinute: defaultIGDBRatePerMinute,
			},
			Steam: Catalog{
				BaseURL:       defaultSteamBaseURL,
				RatePerMinute: defaultSteamRatePerMinute,
			},
			GOG: Catalog{
				BaseURL:       defaultGOGBaseURL,
				RatePerMinute: defaultGOGRatePerMinute,
			},
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			ScanSummary:    true,
			Suggestions:    true,
			Integrity:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
