package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// LibraryEntry describes one row of the unified library view.
type LibraryEntry struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	DisplayTitle  string            `json:"displayTitle"`
	Cover         string            `json:"cover,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ClusterID     int64             `json:"clusterId,omitempty"`
	CanonicalID   string            `json:"canonicalId,omitempty"`
	FolderPath    string            `json:"folderPath,omitempty"`
	InstanceCount int               `json:"instanceCount"`
	Confidence    float64           `json:"confidence,omitempty"`
	CreatedAt     string            `json:"createdAt,omitempty"`
}

// Instance describes one scanned game folder.
type Instance struct {
	ID          int64    `json:"id"`
	FolderPath  string   `json:"folderPath"`
	Title       string   `json:"title,omitempty"`
	CoverPath   string   `json:"coverPath,omitempty"`
	Status      string   `json:"status"`
	Rating      *float64 `json:"rating,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CanonicalID string   `json:"canonicalId,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

// CanonicalGame describes a curated game identity.
type CanonicalGame struct {
	ID           string            `json:"id"`
	DisplayTitle string            `json:"displayTitle"`
	ReleaseDate  string            `json:"releaseDate,omitempty"`
	Developer    string            `json:"developer,omitempty"`
	CoverURL     string            `json:"coverUrl,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    string            `json:"createdAt,omitempty"`
	UpdatedAt    string            `json:"updatedAt,omitempty"`
}

// IdentityLink connects a canonical game to one external catalog entry.
type IdentityLink struct {
	SourceType  string            `json:"sourceType"`
	ExternalID  string            `json:"externalId"`
	ExternalURL string            `json:"externalUrl,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	UpdatedAt   string            `json:"updatedAt,omitempty"`
}

// CanonicalDetail aggregates a canonical game with its instances and links.
type CanonicalDetail struct {
	Game      CanonicalGame  `json:"game"`
	Instances []Instance     `json:"instances"`
	Links     []IdentityLink `json:"links"`
}

// ClusterMember is one instance's membership in a suggested cluster.
type ClusterMember struct {
	InstancePath string `json:"instancePath"`
	IsPrimary    bool   `json:"isPrimary"`
	AddedAt      string `json:"addedAt,omitempty"`
}

// Suggestion describes a pending match cluster awaiting review.
type Suggestion struct {
	ClusterID            int64           `json:"clusterId"`
	SuggestedTitle       string          `json:"suggestedTitle,omitempty"`
	SuggestedCanonicalID string          `json:"suggestedCanonicalId,omitempty"`
	Confidence           float64         `json:"confidence"`
	Members              []ClusterMember `json:"members"`
	CreatedAt            string          `json:"createdAt,omitempty"`
}

// ScanResult summarizes one library scan plus the match pass that followed.
type ScanResult struct {
	FoldersSeen  int      `json:"foldersSeen"`
	NewInstances int      `json:"newInstances"`
	Missing      int      `json:"missing"`
	SkippedRoots []string `json:"skippedRoots,omitempty"`
	Unresolved   int      `json:"unresolved"`
	Suggested    int      `json:"suggested"`
	AutoLinked   int      `json:"autoLinked"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	DurationMs   int64    `json:"durationMs"`
}

// RefreshResult summarizes one catalog enrichment pass.
type RefreshResult struct {
	Links      int   `json:"links"`
	Refreshed  int   `json:"refreshed"`
	Enriched   int   `json:"enriched"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"durationMs"`
}

// LibraryStats aggregates library counts per resolution state.
type LibraryStats struct {
	Instances  int `json:"instances"`
	Active     int `json:"active"`
	Missing    int `json:"missing"`
	Linked     int `json:"linked"`
	Clustered  int `json:"clustered"`
	Orphans    int `json:"orphans"`
	Canonicals int `json:"canonicals"`
	Links      int `json:"links"`
	Suggested  int `json:"suggested"`
	Accepted   int `json:"accepted"`
	Rejected   int `json:"rejected"`
}

// CheckResult captures one preflight check outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	DBPath       string        `json:"dbPath"`
	LockFilePath string        `json:"lockFilePath"`
	Stats        LibraryStats  `json:"stats"`
	Checks       []CheckResult `json:"checks,omitempty"`
}

// AcceptRequest carries the optional explicit canonical target for an accept.
type AcceptRequest struct {
	CanonicalID string `json:"canonicalId,omitempty"`
}

// PromoteRequest asks for an orphan instance to become its own canonical game.
type PromoteRequest struct {
	FolderPath string `json:"folderPath"`
	Title      string `json:"title,omitempty"`
}

// UnmergeRequest detaches an instance from its canonical or suggested cluster.
type UnmergeRequest struct {
	FolderPath string `json:"folderPath"`
}

// EntriesResponse wraps the unified library view.
type EntriesResponse struct {
	Entries []LibraryEntry `json:"entries"`
}

// SuggestionsResponse wraps the pending suggestion list.
type SuggestionsResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// PromoteResponse reports the canonical created by a promote.
type PromoteResponse struct {
	Game CanonicalGame `json:"game"`
}

// OKResponse acknowledges a state-changing command with no payload.
type OKResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries a transport-level failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}
