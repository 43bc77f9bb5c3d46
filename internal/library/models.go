package library

import (
	"time"

	"ludex/internal/metadata"
)

// InstanceStatus tracks whether a scanned folder is still present on disk.
type InstanceStatus string

const (
	InstanceActive  InstanceStatus = "active"
	InstanceMissing InstanceStatus = "missing"
)

// ClusterStatus represents the lifecycle of a match cluster.
type ClusterStatus string

const (
	ClusterSuggested ClusterStatus = "suggested"
	ClusterAccepted  ClusterStatus = "accepted"
	ClusterRejected  ClusterStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s ClusterStatus) Terminal() bool {
	return s == ClusterAccepted || s == ClusterRejected
}

// SourceType identifies an external catalog. The set is open: any lowercase
// token is storable, these are the sources ludex ships fetchers for.
type SourceType string

const (
	SourceIGDB  SourceType = "igdb"
	SourceSteam SourceType = "steam"
	SourceGOG   SourceType = "gog"
)

// Instance represents one game folder found under a library root.
type Instance struct {
	ID          int64
	FolderPath  string
	Title       string
	CoverPath   string
	Status      InstanceStatus
	Rating      *float64
	Tags        []string
	CanonicalID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Linked reports whether the instance is attached to a canonical game.
func (i *Instance) Linked() bool {
	return i != nil && i.CanonicalID != ""
}

// ScannedInstance carries the fields the scanner derives from a folder.
type ScannedInstance struct {
	FolderPath string
	Title      string
	CoverPath  string
	Tags       []string
}

// CanonicalGame is the curated identity a set of instances resolves to.
type CanonicalGame struct {
	ID           string
	DisplayTitle string
	ReleaseDate  string
	Developer    string
	CoverURL     string
	Metadata     metadata.Bag
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanonicalWithCount pairs a canonical game with its linked instance count.
type CanonicalWithCount struct {
	CanonicalGame
	InstanceCount int
}

// IdentityLink connects a canonical game to one external catalog entry.
type IdentityLink struct {
	ID          int64
	CanonicalID string
	SourceType  SourceType
	ExternalID  string
	ExternalURL string
	Metadata    metadata.Bag
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Cluster groups instances the match engine believes are the same game.
type Cluster struct {
	ID                   int64
	Status               ClusterStatus
	SuggestedTitle       string
	SuggestedCanonicalID string
	Confidence           float64
	Metadata             metadata.Bag
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ClusterMember is one instance's membership in a cluster, keyed by folder
// path so rejected clusters keep their audit trail even if instances vanish.
type ClusterMember struct {
	ClusterID    int64
	InstancePath string
	IsPrimary    bool
	AddedAt      time.Time
}

// ClusterProposal is the match engine's input for a new suggested cluster.
type ClusterProposal struct {
	SuggestedTitle       string
	SuggestedCanonicalID string
	Confidence           float64
	Metadata             metadata.Bag
	MemberPaths          []string
	PrimaryPath          string
}

// HealthSummary describes aggregated library counts per key resolution states.
type HealthSummary struct {
	Instances  int
	Active     int
	Missing    int
	Linked     int
	Clustered  int
	Orphans    int
	Canonicals int
	Links      int
	Suggested  int
	Accepted   int
	Rejected   int
}

// DatabaseHealth captures diagnostic information about the library database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalInstances   int
	Error            string
}

// Violation is one detected breach of the resolution invariants. Violations
// are reported, never auto-corrected.
type Violation struct {
	Kind         string
	InstancePath string
	ClusterID    int64
	CanonicalID  string
	Detail       string
}

const (
	// ViolationLinkedAndClustered flags a linked instance still holding
	// suggested-cluster membership.
	ViolationLinkedAndClustered = "linked_and_clustered"
	// ViolationMultipleClusters flags an instance in more than one suggested
	// cluster.
	ViolationMultipleClusters = "multiple_suggested_clusters"
	// ViolationStaleAcceptedMember flags an accepted-cluster member whose
	// instance is no longer linked.
	ViolationStaleAcceptedMember = "stale_accepted_member"
	// ViolationPrimaryCount flags a non-rejected cluster without exactly one
	// primary member.
	ViolationPrimaryCount = "primary_count"
	// ViolationDanglingCanonical flags an instance pointing at a canonical id
	// with no canonical row.
	ViolationDanglingCanonical = "dangling_canonical"
)
