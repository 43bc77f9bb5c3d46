package catalogs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"ludex/internal/config"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/metadata"
	"ludex/internal/services"
)

// Normalized is the source-independent shape of one catalog entry. Fetchers
// translate their API payloads into this before anything downstream sees them.
type Normalized struct {
	SourceType  library.SourceType
	ExternalID  string
	Title       string
	ReleaseDate string
	Developer   string
	CoverURL    string
	ExternalURL string
	Metadata    metadata.Bag
}

// Fetcher retrieves one catalog entry by its external identifier.
type Fetcher interface {
	Source() library.SourceType
	Fetch(ctx context.Context, externalID string) (*Normalized, error)
}

// Registry dispatches catalog lookups to the configured fetchers, applying a
// per-source rate limit and request timeout.
type Registry struct {
	fetchers map[library.SourceType]Fetcher
	limiters map[library.SourceType]*rate.Limiter
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRegistry builds a registry containing a fetcher for every enabled
// catalog in the configuration. A catalog that fails to construct is logged
// and left out rather than failing the whole registry.
func NewRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	registryLogger := logging.NewComponentLogger(logger, "catalogs")
	registry := &Registry{
		fetchers: make(map[library.SourceType]Fetcher),
		limiters: make(map[library.SourceType]*rate.Limiter),
		timeout:  time.Duration(cfg.Catalogs.RequestTimeout) * time.Second,
		logger:   registryLogger,
	}

	if cfg.Catalogs.IGDB.Enabled {
		if fetcher, err := NewIGDB(cfg.Catalogs.IGDB.APIKey, cfg.Catalogs.IGDB.BaseURL); err == nil {
			registry.Register(fetcher, cfg.Catalogs.IGDB.RatePerMinute)
		} else {
			registryLogger.Warn("igdb catalog unavailable", logging.Error(err))
		}
	}
	if cfg.Catalogs.Steam.Enabled {
		if fetcher, err := NewSteam(cfg.Catalogs.Steam.BaseURL); err == nil {
			registry.Register(fetcher, cfg.Catalogs.Steam.RatePerMinute)
		} else {
			registryLogger.Warn("steam catalog unavailable", logging.Error(err))
		}
	}
	if cfg.Catalogs.GOG.Enabled {
		if fetcher, err := NewGOG(cfg.Catalogs.GOG.BaseURL); err == nil {
			registry.Register(fetcher, cfg.Catalogs.GOG.RatePerMinute)
		} else {
			registryLogger.Warn("gog catalog unavailable", logging.Error(err))
		}
	}
	return registry
}

// Register adds a fetcher with a per-minute rate budget. A non-positive
// budget means unlimited.
func (r *Registry) Register(fetcher Fetcher, perMinute int) {
	source := fetcher.Source()
	r.fetchers[source] = fetcher
	if perMinute > 0 {
		r.limiters[source] = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
	}
}

// Sources lists the registered catalog sources in stable order.
func (r *Registry) Sources() []library.SourceType {
	sources := make([]library.SourceType, 0, len(r.fetchers))
	for source := range r.fetchers {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

// Enabled reports whether any catalog is registered.
func (r *Registry) Enabled() bool {
	return len(r.fetchers) > 0
}

// Fetch looks up one entry, waiting on the source's rate budget first.
func (r *Registry) Fetch(ctx context.Context, source library.SourceType, externalID string) (*Normalized, error) {
	fetcher, ok := r.fetchers[source]
	if !ok {
		return nil, services.Wrap(
			services.ErrConfiguration,
			"catalogs",
			"fetch",
			fmt.Sprintf("no catalog registered for source %s", source),
			nil,
		)
	}
	if limiter, ok := r.limiters[source]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return nil, services.Wrap(services.ErrTransient, "catalogs", "fetch", "rate limit wait interrupted", err)
		}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	normalized, err := fetcher.Fetch(ctx, externalID)
	if err != nil {
		return nil, err
	}
	normalized.SourceType = source
	normalized.ExternalID = externalID
	return normalized, nil
}
