package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ludex/internal/metadata"
	"ludex/internal/services"
)

const clusterColumns = "id, status, suggested_title, suggested_canonical_id, confidence, metadata, created_at, updated_at"

func scanCluster(scanner interface{ Scan(dest ...any) error }) (*Cluster, error) {
	var (
		id                   int64
		statusStr            string
		suggestedTitle       sql.NullString
		suggestedCanonicalID sql.NullString
		confidence           float64
		meta                 sql.NullString
		createdRaw           sql.NullString
		updatedRaw           sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&suggestedTitle,
		&suggestedCanonicalID,
		&confidence,
		&meta,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	cluster := &Cluster{
		ID:                   id,
		Status:               ClusterStatus(statusStr),
		SuggestedTitle:       suggestedTitle.String,
		SuggestedCanonicalID: suggestedCanonicalID.String,
		Confidence:           confidence,
		Metadata:             metadata.MustParse(meta.String),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		cluster.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		cluster.UpdatedAt = updated
	}
	return cluster, nil
}

const memberColumns = "cluster_id, instance_path, is_primary, added_at"

func scanMember(scanner interface{ Scan(dest ...any) error }) (*ClusterMember, error) {
	var (
		clusterID    int64
		instancePath string
		isPrimary    sql.NullInt64
		addedRaw     sql.NullString
	)

	if err := scanner.Scan(&clusterID, &instancePath, &isPrimary, &addedRaw); err != nil {
		return nil, err
	}

	member := &ClusterMember{
		ClusterID:    clusterID,
		InstancePath: instancePath,
	}
	if isPrimary.Valid {
		member.IsPrimary = isPrimary.Int64 != 0
	}
	if added, err := parseTimeString(addedRaw.String); err == nil {
		member.AddedAt = added
	}
	return member, nil
}

func validateProposal(proposal ClusterProposal) error {
	if len(proposal.MemberPaths) == 0 {
		return services.Wrap(services.ErrValidation, "library", "insert-cluster", "cluster needs at least one member", nil)
	}
	if proposal.Confidence < 0 || proposal.Confidence > 1 {
		return services.Wrap(services.ErrValidation, "library", "insert-cluster", "confidence must be between 0 and 1", nil)
	}
	primary := strings.TrimSpace(proposal.PrimaryPath)
	if primary == "" {
		return services.Wrap(services.ErrValidation, "library", "insert-cluster", "primary member is required", nil)
	}
	found := false
	seen := make(map[string]struct{}, len(proposal.MemberPaths))
	for _, path := range proposal.MemberPaths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			return services.Wrap(services.ErrValidation, "library", "insert-cluster", "member paths must not be blank", nil)
		}
		if _, dup := seen[trimmed]; dup {
			return services.Wrap(services.ErrValidation, "library", "insert-cluster", fmt.Sprintf("duplicate member %s", trimmed), nil)
		}
		seen[trimmed] = struct{}{}
		if trimmed == primary {
			found = true
		}
	}
	if !found {
		return services.Wrap(services.ErrValidation, "library", "insert-cluster", "primary must be one of the members", nil)
	}
	return nil
}

// InsertSuggestedCluster commits a new suggested cluster and its membership
// rows in a single transaction.
func (s *Store) InsertSuggestedCluster(ctx context.Context, proposal ClusterProposal) (*Cluster, error) {
	if err := validateProposal(proposal); err != nil {
		return nil, err
	}

	var clusterID int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		id, err := tx.InsertCluster(&Cluster{
			Status:               ClusterSuggested,
			SuggestedTitle:       proposal.SuggestedTitle,
			SuggestedCanonicalID: proposal.SuggestedCanonicalID,
			Confidence:           proposal.Confidence,
			Metadata:             proposal.Metadata,
		})
		if err != nil {
			return err
		}
		for _, path := range proposal.MemberPaths {
			trimmed := strings.TrimSpace(path)
			if err := tx.InsertMember(id, trimmed, trimmed == proposal.PrimaryPath); err != nil {
				return err
			}
		}
		clusterID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ClusterByID(ctx, clusterID)
}

// ClusterByID fetches a cluster by identifier.
func (s *Store) ClusterByID(ctx context.Context, id int64) (*Cluster, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clusterColumns+` FROM match_clusters WHERE id = ?`, id)
	cluster, err := scanCluster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cluster: %w", err)
	}
	return cluster, nil
}

// ClusterMembers returns a cluster's membership rows, primary first.
func (s *Store) ClusterMembers(ctx context.Context, clusterID int64) ([]*ClusterMember, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+memberColumns+` FROM match_cluster_members
         WHERE cluster_id = ? ORDER BY is_primary DESC, added_at, instance_path`,
		clusterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list cluster members: %w", err)
	}
	defer rows.Close()

	return collectMembers(rows)
}

// ListClusters returns clusters filtered by status set, oldest first.
func (s *Store) ListClusters(ctx context.Context, statuses ...ClusterStatus) ([]*Cluster, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + clusterColumns + ` FROM match_clusters`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*Cluster
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}
	return clusters, rows.Err()
}

// MembersByClusterStatus returns every membership row whose cluster carries
// the given status, grouped consumption left to the caller.
func (s *Store) MembersByClusterStatus(ctx context.Context, status ClusterStatus) ([]*ClusterMember, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT m.cluster_id, m.instance_path, m.is_primary, m.added_at
         FROM match_cluster_members m
         JOIN match_clusters c ON c.id = m.cluster_id
         WHERE c.status = ?
         ORDER BY m.cluster_id, m.is_primary DESC, m.added_at, m.instance_path`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("list members by status: %w", err)
	}
	defer rows.Close()

	return collectMembers(rows)
}

// SuggestedMembershipExists reports whether an instance path currently belongs
// to any suggested cluster.
func (s *Store) SuggestedMembershipExists(ctx context.Context, path string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM match_cluster_members m
         JOIN match_clusters c ON c.id = m.cluster_id
         WHERE m.instance_path = ? AND c.status = ?`,
		path,
		ClusterSuggested,
	)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("count suggested membership: %w", err)
	}
	return count > 0, nil
}

// RejectedProposalExists reports whether a rejected cluster already carries
// exactly this member set and suggested target. Used by the rejection-memory
// policy to suppress re-proposals.
func (s *Store) RejectedProposalExists(ctx context.Context, memberPaths []string, suggestedCanonicalID string) (bool, error) {
	if len(memberPaths) == 0 {
		return false, nil
	}
	wanted := append([]string(nil), memberPaths...)
	sort.Strings(wanted)

	clusters, err := s.ListClusters(ctx, ClusterRejected)
	if err != nil {
		return false, err
	}
	for _, cluster := range clusters {
		if cluster.SuggestedCanonicalID != suggestedCanonicalID {
			continue
		}
		members, err := s.ClusterMembers(ctx, cluster.ID)
		if err != nil {
			return false, err
		}
		if len(members) != len(wanted) {
			continue
		}
		paths := make([]string, 0, len(members))
		for _, member := range members {
			paths = append(paths, member.InstancePath)
		}
		sort.Strings(paths)
		match := true
		for i := range paths {
			if paths[i] != wanted[i] {
				match = false
				break
			}
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func collectMembers(rows *sql.Rows) ([]*ClusterMember, error) {
	var members []*ClusterMember
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}
