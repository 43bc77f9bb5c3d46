package catalogs_test

import (
	"context"
	"testing"

	"ludex/internal/catalogs"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/metadata"
	"ludex/internal/services"
	"ludex/internal/testsupport"
)

func TestEnricherFillsEmptyCanonicalFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewCanonical(t, store, "can-celeste", "Celeste")
	if _, err := store.CreateIdentityLink(ctx, library.IdentityLink{
		CanonicalID: "can-celeste",
		SourceType:  library.SourceIGDB,
		ExternalID:  "26226",
	}); err != nil {
		t.Fatalf("CreateIdentityLink: %v", err)
	}

	registry := catalogs.NewRegistry(cfg, logging.NewNop())
	registry.Register(&stubFetcher{
		source: library.SourceIGDB,
		entries: map[string]*catalogs.Normalized{
			"26226": {
				Title:       "Celeste",
				ReleaseDate: "2018-01-25",
				Developer:   "Extremely OK Games",
				CoverURL:    "https://images.example.com/cover.jpg",
				ExternalURL: "https://www.igdb.com/games/celeste",
				Metadata:    metadata.Bag{"genres": "Platform, Indie"},
			},
		},
	}, 0)

	enricher := catalogs.NewEnricher(store, registry, logging.NewNop())
	summary, err := enricher.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if summary.Links != 1 || summary.Refreshed != 1 || summary.Enriched != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	game, err := store.Canonical(ctx, "can-celeste")
	if err != nil {
		t.Fatalf("store.Canonical: %v", err)
	}
	if game.ReleaseDate != "2018-01-25" {
		t.Fatalf("expected release date filled, got %q", game.ReleaseDate)
	}
	if game.Developer != "Extremely OK Games" {
		t.Fatalf("expected developer filled, got %q", game.Developer)
	}
	if game.CoverURL != "https://images.example.com/cover.jpg" {
		t.Fatalf("expected cover filled, got %q", game.CoverURL)
	}
	if game.Metadata.Get("genres") != "Platform, Indie" {
		t.Fatalf("expected metadata merged, got %#v", game.Metadata)
	}

	link, err := store.FindLink(ctx, library.SourceIGDB, "26226")
	if err != nil {
		t.Fatalf("store.FindLink: %v", err)
	}
	if link == nil || link.ExternalURL != "https://www.igdb.com/games/celeste" {
		t.Fatalf("expected link snapshot refreshed, got %#v", link)
	}
	if link.Metadata.Get("genres") != "Platform, Indie" {
		t.Fatalf("expected link metadata refreshed, got %#v", link.Metadata)
	}
}

func TestEnricherKeepsExistingCanonicalValues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.CreateCanonical(&library.CanonicalGame{
			ID:           "can-celeste",
			DisplayTitle: "Celeste",
			ReleaseDate:  "2018-01-25",
			Developer:    "Extremely OK Games",
			CoverURL:     "https://images.example.com/cover.jpg",
			Metadata:     metadata.Bag{"genres": "Platform"},
		})
	})
	if err != nil {
		t.Fatalf("create canonical: %v", err)
	}
	if _, err := store.CreateIdentityLink(ctx, library.IdentityLink{
		CanonicalID: "can-celeste",
		SourceType:  library.SourceSteam,
		ExternalID:  "504230",
	}); err != nil {
		t.Fatalf("CreateIdentityLink: %v", err)
	}

	registry := catalogs.NewRegistry(cfg, logging.NewNop())
	registry.Register(&stubFetcher{
		source: library.SourceSteam,
		entries: map[string]*catalogs.Normalized{
			"504230": {
				Title:       "Celeste",
				ReleaseDate: "2018-12-31",
				Developer:   "Somebody Else",
				CoverURL:    "https://cdn.example.com/other.jpg",
				Metadata:    metadata.Bag{"genres": "Action"},
			},
		},
	}, 0)

	enricher := catalogs.NewEnricher(store, registry, logging.NewNop())
	summary, err := enricher.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if summary.Refreshed != 1 || summary.Enriched != 0 {
		t.Fatalf("expected refresh without enrichment, got %+v", summary)
	}

	game, err := store.Canonical(ctx, "can-celeste")
	if err != nil {
		t.Fatalf("store.Canonical: %v", err)
	}
	if game.ReleaseDate != "2018-01-25" || game.Developer != "Extremely OK Games" {
		t.Fatalf("expected canonical values preserved, got %#v", game)
	}
	if game.CoverURL != "https://images.example.com/cover.jpg" {
		t.Fatalf("expected cover preserved, got %q", game.CoverURL)
	}
	if game.Metadata.Get("genres") != "Platform" {
		t.Fatalf("expected metadata preserved, got %#v", game.Metadata)
	}
}

func TestEnricherIsolatesFailingLinks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewCanonical(t, store, "can-a", "Game A")
	testsupport.NewCanonical(t, store, "can-b", "Game B")
	for id, canonical := range map[string]string{"1": "can-a", "2": "can-b"} {
		if _, err := store.CreateIdentityLink(ctx, library.IdentityLink{
			CanonicalID: canonical,
			SourceType:  library.SourceIGDB,
			ExternalID:  id,
		}); err != nil {
			t.Fatalf("CreateIdentityLink(%s): %v", id, err)
		}
	}

	registry := catalogs.NewRegistry(cfg, logging.NewNop())
	registry.Register(&stubFetcher{
		source: library.SourceIGDB,
		errs: map[string]error{
			"1": services.Wrap(services.ErrTransient, "stub", "fetch", "catalog down", nil),
		},
		entries: map[string]*catalogs.Normalized{
			"2": {Title: "Game B", Developer: "Studio B"},
		},
	}, 0)

	enricher := catalogs.NewEnricher(store, registry, logging.NewNop())
	summary, err := enricher.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if summary.Links != 2 || summary.Refreshed != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	gameB, err := store.Canonical(ctx, "can-b")
	if err != nil {
		t.Fatalf("store.Canonical: %v", err)
	}
	if gameB.Developer != "Studio B" {
		t.Fatalf("expected surviving link to enrich, got %#v", gameB)
	}
	gameA, err := store.Canonical(ctx, "can-a")
	if err != nil {
		t.Fatalf("store.Canonical: %v", err)
	}
	if gameA.Developer != "" {
		t.Fatalf("expected failed link to leave canonical untouched, got %#v", gameA)
	}
}
