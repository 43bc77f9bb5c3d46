package catalogs_test

import (
	"context"
	"errors"
	"testing"

	"ludex/internal/catalogs"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/services"
	"ludex/internal/testsupport"
)

// stubFetcher serves canned entries keyed by external id.
type stubFetcher struct {
	source  library.SourceType
	entries map[string]*catalogs.Normalized
	errs    map[string]error
	calls   int
}

func (s *stubFetcher) Source() library.SourceType { return s.source }

func (s *stubFetcher) Fetch(_ context.Context, externalID string) (*catalogs.Normalized, error) {
	s.calls++
	if err, ok := s.errs[externalID]; ok {
		return nil, err
	}
	entry, ok := s.entries[externalID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "stub", "fetch", "no entry for "+externalID, nil)
	}
	clone := *entry
	clone.Metadata = entry.Metadata.Clone()
	return &clone, nil
}

func TestNewRegistryBuildsEnabledSources(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithIGDB("key", ""))
	cfg.Catalogs.Steam.Enabled = true
	cfg.Catalogs.GOG.Enabled = true

	registry := catalogs.NewRegistry(cfg, logging.NewNop())
	if !registry.Enabled() {
		t.Fatal("expected registry to have sources")
	}
	sources := registry.Sources()
	want := []library.SourceType{library.SourceGOG, library.SourceIGDB, library.SourceSteam}
	if len(sources) != len(want) {
		t.Fatalf("unexpected sources %v", sources)
	}
	for i, source := range want {
		if sources[i] != source {
			t.Fatalf("unexpected sources %v", sources)
		}
	}
}

func TestNewRegistrySkipsKeylessIGDB(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Catalogs.IGDB.Enabled = true

	registry := catalogs.NewRegistry(cfg, logging.NewNop())
	if registry.Enabled() {
		t.Fatal("expected keyless IGDB catalog to be skipped")
	}
}

func TestRegistryFetchUnknownSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := catalogs.NewRegistry(cfg, logging.NewNop())
	if registry.Enabled() {
		t.Fatal("expected registry with no catalogs enabled")
	}
	if _, err := registry.Fetch(context.Background(), library.SourceIGDB, "1"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRegistryFetchStampsIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := catalogs.NewRegistry(cfg, logging.NewNop())
	stub := &stubFetcher{
		source:  library.SourceSteam,
		entries: map[string]*catalogs.Normalized{"504230": {Title: "Celeste"}},
	}
	registry.Register(stub, 0)

	entry, err := registry.Fetch(context.Background(), library.SourceSteam, "504230")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if entry.SourceType != library.SourceSteam || entry.ExternalID != "504230" {
		t.Fatalf("expected source identity stamped on entry, got %#v", entry)
	}
	if stub.calls != 1 {
		t.Fatalf("expected one fetch, got %d", stub.calls)
	}
}
