package catalogs

import (
	"context"
	"fmt"
	"log/slog"

	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/metadata"
	"ludex/internal/services"
)

// Enricher walks identity links source by source, refreshes each link's
// stored snapshot, and fills empty descriptive fields on the linked
// canonical game. Existing canonical values are never overwritten.
type Enricher struct {
	store    *library.Store
	registry *Registry
	logger   *slog.Logger
}

// RefreshSummary reports the outcome of one enrichment pass.
type RefreshSummary struct {
	Links     int
	Refreshed int
	Enriched  int
	Failed    int
}

// NewEnricher creates an enricher over the given store and catalog registry.
func NewEnricher(store *library.Store, registry *Registry, logger *slog.Logger) *Enricher {
	return &Enricher{
		store:    store,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "enricher"),
	}
}

// Refresh runs one enrichment pass over every link of every registered
// source. A failing link is logged and skipped; the pass keeps going.
func (e *Enricher) Refresh(ctx context.Context) (*RefreshSummary, error) {
	summary := &RefreshSummary{}
	for _, source := range e.registry.Sources() {
		links, err := e.store.ListLinksBySource(ctx, source)
		if err != nil {
			return summary, err
		}
		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			summary.Links++
			enriched, err := e.refreshLink(ctx, link)
			if err != nil {
				summary.Failed++
				e.logger.Warn("link refresh failed",
					logging.String("source", string(link.SourceType)),
					logging.String("external_id", link.ExternalID),
					logging.String("canonical_id", link.CanonicalID),
					logging.Error(err))
				continue
			}
			summary.Refreshed++
			if enriched {
				summary.Enriched++
			}
		}
	}
	e.logger.Info("enrichment pass complete",
		logging.Int("links", summary.Links),
		logging.Int("refreshed", summary.Refreshed),
		logging.Int("enriched", summary.Enriched),
		logging.Int("failed", summary.Failed))
	return summary, nil
}

func (e *Enricher) refreshLink(ctx context.Context, link *library.IdentityLink) (bool, error) {
	entry, err := e.registry.Fetch(ctx, link.SourceType, link.ExternalID)
	if err != nil {
		return false, err
	}
	externalURL := entry.ExternalURL
	if externalURL == "" {
		externalURL = link.ExternalURL
	}
	if err := e.store.UpdateLinkSnapshot(ctx, link.ID, externalURL, entry.Metadata); err != nil {
		return false, err
	}
	return e.fillCanonical(ctx, link.CanonicalID, entry)
}

// fillCanonical copies catalog fields onto the canonical game wherever the
// canonical side is still empty.
func (e *Enricher) fillCanonical(ctx context.Context, canonicalID string, entry *Normalized) (bool, error) {
	changed := false
	err := e.store.WithTx(ctx, func(tx *library.Tx) error {
		game, err := tx.Canonical(canonicalID)
		if err != nil {
			return err
		}
		if game == nil {
			return services.Wrap(services.ErrNotFound, "enricher", "fill",
				fmt.Sprintf("canonical %s not found", canonicalID), nil)
		}
		if game.ReleaseDate == "" && entry.ReleaseDate != "" {
			game.ReleaseDate = entry.ReleaseDate
			changed = true
		}
		if game.Developer == "" && entry.Developer != "" {
			game.Developer = entry.Developer
			changed = true
		}
		if game.CoverURL == "" && entry.CoverURL != "" {
			game.CoverURL = entry.CoverURL
			changed = true
		}
		if game.Metadata == nil {
			game.Metadata = metadata.Bag{}
		}
		if game.Metadata.Merge(entry.Metadata) {
			changed = true
		}
		if !changed {
			return nil
		}
		return tx.UpdateCanonical(game)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
