package api

import (
	"time"

	"ludex/internal/catalogs"
	"ludex/internal/feed"
	"ludex/internal/library"
	"ludex/internal/match"
	"ludex/internal/metadata"
	"ludex/internal/preflight"
	"ludex/internal/scanner"
)

// FromEntry converts a feed entry to its API representation.
func FromEntry(entry *feed.Entry) LibraryEntry {
	if entry == nil {
		return LibraryEntry{}
	}
	return LibraryEntry{
		ID:            entry.ID,
		Type:          string(entry.Type),
		DisplayTitle:  entry.DisplayTitle,
		Cover:         entry.Cover,
		Metadata:      bagMap(entry.Metadata),
		ClusterID:     entry.ClusterID,
		CanonicalID:   entry.CanonicalID,
		FolderPath:    entry.FolderPath,
		InstanceCount: entry.InstanceCount,
		Confidence:    entry.Confidence,
		CreatedAt:     formatTime(entry.CreatedAt),
	}
}

// FromEntries converts a slice of feed entries into API DTOs.
func FromEntries(entries []*feed.Entry) []LibraryEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]LibraryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromInstance converts an instance record to its API representation.
func FromInstance(instance *library.Instance) Instance {
	if instance == nil {
		return Instance{}
	}
	dto := Instance{
		ID:          instance.ID,
		FolderPath:  instance.FolderPath,
		Title:       instance.Title,
		CoverPath:   instance.CoverPath,
		Status:      string(instance.Status),
		CanonicalID: instance.CanonicalID,
		CreatedAt:   formatTime(instance.CreatedAt),
		UpdatedAt:   formatTime(instance.UpdatedAt),
	}
	if instance.Rating != nil {
		rating := *instance.Rating
		dto.Rating = &rating
	}
	if len(instance.Tags) > 0 {
		dto.Tags = append([]string(nil), instance.Tags...)
	}
	return dto
}

// FromInstances converts a slice of instances into API DTOs.
func FromInstances(instances []*library.Instance) []Instance {
	if len(instances) == 0 {
		return nil
	}
	out := make([]Instance, 0, len(instances))
	for _, instance := range instances {
		out = append(out, FromInstance(instance))
	}
	return out
}

// FromCanonical converts a canonical game record to its API representation.
func FromCanonical(game *library.CanonicalGame) CanonicalGame {
	if game == nil {
		return CanonicalGame{}
	}
	return CanonicalGame{
		ID:           game.ID,
		DisplayTitle: game.DisplayTitle,
		ReleaseDate:  game.ReleaseDate,
		Developer:    game.Developer,
		CoverURL:     game.CoverURL,
		Metadata:     bagMap(game.Metadata),
		CreatedAt:    formatTime(game.CreatedAt),
		UpdatedAt:    formatTime(game.UpdatedAt),
	}
}

// FromLink converts an identity link to its API representation.
func FromLink(link *library.IdentityLink) IdentityLink {
	if link == nil {
		return IdentityLink{}
	}
	return IdentityLink{
		SourceType:  string(link.SourceType),
		ExternalID:  link.ExternalID,
		ExternalURL: link.ExternalURL,
		Metadata:    bagMap(link.Metadata),
		UpdatedAt:   formatTime(link.UpdatedAt),
	}
}

// FromCanonicalDetail assembles the canonical detail payload.
func FromCanonicalDetail(game *library.CanonicalGame, instances []*library.Instance, links []*library.IdentityLink) CanonicalDetail {
	detail := CanonicalDetail{
		Game:      FromCanonical(game),
		Instances: FromInstances(instances),
	}
	for _, link := range links {
		detail.Links = append(detail.Links, FromLink(link))
	}
	return detail
}

// FromMember converts a cluster membership row to its API representation.
func FromMember(member *library.ClusterMember) ClusterMember {
	if member == nil {
		return ClusterMember{}
	}
	return ClusterMember{
		InstancePath: member.InstancePath,
		IsPrimary:    member.IsPrimary,
		AddedAt:      formatTime(member.AddedAt),
	}
}

// FromSuggestion converts a pending cluster with members to its API representation.
func FromSuggestion(suggestion *feed.Suggestion) Suggestion {
	if suggestion == nil || suggestion.Cluster == nil {
		return Suggestion{}
	}
	dto := Suggestion{
		ClusterID:            suggestion.Cluster.ID,
		SuggestedTitle:       suggestion.Cluster.SuggestedTitle,
		SuggestedCanonicalID: suggestion.Cluster.SuggestedCanonicalID,
		Confidence:           suggestion.Cluster.Confidence,
		CreatedAt:            formatTime(suggestion.Cluster.CreatedAt),
	}
	for _, member := range suggestion.Members {
		dto.Members = append(dto.Members, FromMember(member))
	}
	return dto
}

// FromSuggestions converts a slice of suggestions into API DTOs.
func FromSuggestions(suggestions []*feed.Suggestion) []Suggestion {
	if len(suggestions) == 0 {
		return nil
	}
	out := make([]Suggestion, 0, len(suggestions))
	for _, suggestion := range suggestions {
		out = append(out, FromSuggestion(suggestion))
	}
	return out
}

// FromScan combines a scanner summary and a match report into one result.
func FromScan(summary scanner.Summary, report match.ScanReport, duration time.Duration) ScanResult {
	return ScanResult{
		FoldersSeen:  summary.Seen,
		NewInstances: summary.New,
		Missing:      int(summary.Missing),
		SkippedRoots: summary.SkippedRoots,
		Unresolved:   report.Unresolved,
		Suggested:    report.Suggested,
		AutoLinked:   report.AutoLinked,
		Skipped:      report.Skipped,
		Failed:       report.Failed,
		DurationMs:   duration.Milliseconds(),
	}
}

// FromRefresh converts an enrichment summary into the API payload.
func FromRefresh(summary catalogs.RefreshSummary, duration time.Duration) RefreshResult {
	return RefreshResult{
		Links:      summary.Links,
		Refreshed:  summary.Refreshed,
		Enriched:   summary.Enriched,
		Failed:     summary.Failed,
		DurationMs: duration.Milliseconds(),
	}
}

// FromHealthSummary converts aggregated library counts to the API payload.
func FromHealthSummary(summary library.HealthSummary) LibraryStats {
	return LibraryStats{
		Instances:  summary.Instances,
		Active:     summary.Active,
		Missing:    summary.Missing,
		Linked:     summary.Linked,
		Clustered:  summary.Clustered,
		Orphans:    summary.Orphans,
		Canonicals: summary.Canonicals,
		Links:      summary.Links,
		Suggested:  summary.Suggested,
		Accepted:   summary.Accepted,
		Rejected:   summary.Rejected,
	}
}

// FromPreflight converts preflight results to API check payloads.
func FromPreflight(results []preflight.Result) []CheckResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]CheckResult, 0, len(results))
	for _, result := range results {
		out = append(out, CheckResult{
			Name:   result.Name,
			Passed: result.Passed,
			Detail: result.Detail,
		})
	}
	return out
}

func bagMap(bag metadata.Bag) map[string]string {
	if len(bag) == 0 {
		return nil
	}
	return map[string]string(bag.Clone())
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
