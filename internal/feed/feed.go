package feed

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ludex/internal/library"
	"ludex/internal/metadata"
	"ludex/internal/scanner"
	"ludex/internal/services"
)

// EntryType discriminates rows of the unified library view.
type EntryType string

const (
	EntryCanonical EntryType = "canonical"
	EntrySuggested EntryType = "suggested"
	EntryOrphan    EntryType = "orphan"
)

// Entry is one row of the unified library view. Confidence is meaningful only
// for suggested entries; FolderPath only for orphans, where it is the handle
// commands act on.
type Entry struct {
	ID            string
	Type          EntryType
	DisplayTitle  string
	Cover         string
	Metadata      metadata.Bag
	ClusterID     int64
	CanonicalID   string
	FolderPath    string
	InstanceCount int
	Confidence    float64
	CreatedAt     time.Time
}

// Query filters and pages the unified view. A zero Type selects every kind;
// Search matches display titles case-insensitively; Limit of zero or less
// means no limit.
type Query struct {
	Type   EntryType
	Search string
	Limit  int
	Offset int
}

func (q Query) validate() error {
	switch q.Type {
	case "", EntryCanonical, EntrySuggested, EntryOrphan:
		return nil
	default:
		return services.Wrap(services.ErrValidation, "feed", "entries", fmt.Sprintf("unknown entry type %q", q.Type), nil)
	}
}

func (q Query) wants(t EntryType) bool {
	return q.Type == "" || q.Type == t
}

// Suggestion pairs a pending cluster with its members, primary first.
type Suggestion struct {
	Cluster *library.Cluster
	Members []*library.ClusterMember
}

// Service composes read models from the store. It takes no locks and never
// writes; every call sees SQLite read consistency.
type Service struct {
	store *library.Store
}

// New creates the read model compositor.
func New(store *library.Store) *Service {
	return &Service{store: store}
}

// Entries returns the unified library view: canonical games, suggested
// clusters, and orphans merged, sorted case-insensitively by display title
// with created-at breaking ties, then filtered and paged per the query.
func (s *Service) Entries(ctx context.Context, query Query) ([]*Entry, error) {
	if err := query.validate(); err != nil {
		return nil, err
	}

	var entries []*Entry
	if query.wants(EntryCanonical) {
		part, err := s.canonicalEntries(ctx)
		if err != nil {
			return nil, err
		}
		entries = append(entries, part...)
	}
	if query.wants(EntrySuggested) {
		part, err := s.suggestedEntries(ctx)
		if err != nil {
			return nil, err
		}
		entries = append(entries, part...)
	}
	if query.wants(EntryOrphan) {
		part, err := s.orphanEntries(ctx)
		if err != nil {
			return nil, err
		}
		entries = append(entries, part...)
	}

	if search := strings.ToLower(strings.TrimSpace(query.Search)); search != "" {
		filtered := entries[:0]
		for _, entry := range entries {
			if strings.Contains(strings.ToLower(entry.DisplayTitle), search) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	sort.Slice(entries, func(i, j int) bool {
		ti := strings.ToLower(entries[i].DisplayTitle)
		tj := strings.ToLower(entries[j].DisplayTitle)
		if ti != tj {
			return ti < tj
		}
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})

	return page(entries, query.Offset, query.Limit), nil
}

// Suggestions returns pending clusters with at least one member, ordered by
// descending confidence, then ascending creation time and id.
func (s *Service) Suggestions(ctx context.Context) ([]*Suggestion, error) {
	clusters, err := s.store.ListClusters(ctx, library.ClusterSuggested)
	if err != nil {
		return nil, err
	}
	members, err := s.store.MembersByClusterStatus(ctx, library.ClusterSuggested)
	if err != nil {
		return nil, err
	}
	byCluster := groupMembers(members)

	suggestions := make([]*Suggestion, 0, len(clusters))
	for _, cluster := range clusters {
		group := byCluster[cluster.ID]
		if len(group) == 0 {
			continue
		}
		suggestions = append(suggestions, &Suggestion{Cluster: cluster, Members: group})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i].Cluster, suggestions[j].Cluster
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return suggestions, nil
}

func (s *Service) canonicalEntries(ctx context.Context) ([]*Entry, error) {
	games, err := s.store.ListCanonicalWithCounts(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(games))
	for _, game := range games {
		entries = append(entries, &Entry{
			ID:            fmt.Sprintf("canonical:%s", game.ID),
			Type:          EntryCanonical,
			DisplayTitle:  game.DisplayTitle,
			Cover:         game.CoverURL,
			Metadata:      game.Metadata,
			CanonicalID:   game.ID,
			InstanceCount: game.InstanceCount,
			CreatedAt:     game.CreatedAt,
		})
	}
	return entries, nil
}

func (s *Service) suggestedEntries(ctx context.Context) ([]*Entry, error) {
	suggestions, err := s.Suggestions(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(suggestions))
	for _, suggestion := range suggestions {
		cluster := suggestion.Cluster
		primaryPath := suggestion.Members[0].InstancePath
		primary, err := s.store.InstanceByPath(ctx, primaryPath)
		if err != nil {
			return nil, err
		}

		title := strings.TrimSpace(cluster.SuggestedTitle)
		cover := ""
		if primary != nil {
			cover = primary.CoverPath
			if title == "" {
				title = strings.TrimSpace(primary.Title)
			}
		}
		if title == "" {
			title = scanner.DeriveTitle(filepath.Base(primaryPath))
		}

		entries = append(entries, &Entry{
			ID:            fmt.Sprintf("cluster:%d", cluster.ID),
			Type:          EntrySuggested,
			DisplayTitle:  title,
			Cover:         cover,
			Metadata:      cluster.Metadata,
			ClusterID:     cluster.ID,
			CanonicalID:   cluster.SuggestedCanonicalID,
			InstanceCount: len(suggestion.Members),
			Confidence:    cluster.Confidence,
			CreatedAt:     cluster.CreatedAt,
		})
	}
	return entries, nil
}

func (s *Service) orphanEntries(ctx context.Context) ([]*Entry, error) {
	orphans, err := s.store.ListOrphans(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(orphans))
	for _, orphan := range orphans {
		title := strings.TrimSpace(orphan.Title)
		if title == "" {
			title = scanner.DeriveTitle(filepath.Base(orphan.FolderPath))
		}
		entries = append(entries, &Entry{
			ID:            fmt.Sprintf("orphan:%d", orphan.ID),
			Type:          EntryOrphan,
			DisplayTitle:  title,
			Cover:         orphan.CoverPath,
			FolderPath:    orphan.FolderPath,
			InstanceCount: 1,
			CreatedAt:     orphan.CreatedAt,
		})
	}
	return entries, nil
}

func groupMembers(members []*library.ClusterMember) map[int64][]*library.ClusterMember {
	grouped := make(map[int64][]*library.ClusterMember)
	for _, member := range members {
		grouped[member.ClusterID] = append(grouped[member.ClusterID], member)
	}
	return grouped
}

func page(entries []*Entry, offset, limit int) []*Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
