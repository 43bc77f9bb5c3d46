package library

import (
	"context"
	"fmt"
)

// CheckIntegrity audits the resolution invariants and reports violations
// without correcting them. A healthy library returns an empty slice.
//
// Checks:
//   - no active instance is both linked and a suggested-cluster member
//   - no instance belongs to more than one suggested cluster
//   - accepted-cluster members are still linked instances
//   - every non-rejected cluster with members has exactly one primary
//   - no instance references a canonical id without a canonical row
func (s *Store) CheckIntegrity(ctx context.Context) ([]Violation, error) {
	var violations []Violation

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT i.folder_path, i.canonical_id, m.cluster_id
         FROM instances i
         JOIN match_cluster_members m ON m.instance_path = i.folder_path
         JOIN match_clusters c ON c.id = m.cluster_id
         WHERE i.canonical_id IS NOT NULL AND c.status = ?`,
		ClusterSuggested,
	)
	if err != nil {
		return nil, fmt.Errorf("query linked-and-clustered: %w", err)
	}
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.InstancePath, &v.CanonicalID, &v.ClusterID); err != nil {
			rows.Close()
			return nil, err
		}
		v.Kind = ViolationLinkedAndClustered
		v.Detail = fmt.Sprintf("linked to %s while member of suggested cluster %d", v.CanonicalID, v.ClusterID)
		violations = append(violations, v)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(
		ctx,
		`SELECT m.instance_path, COUNT(1)
         FROM match_cluster_members m
         JOIN match_clusters c ON c.id = m.cluster_id
         WHERE c.status = ?
         GROUP BY m.instance_path
         HAVING COUNT(1) > 1`,
		ClusterSuggested,
	)
	if err != nil {
		return nil, fmt.Errorf("query multiple clusters: %w", err)
	}
	for rows.Next() {
		var v Violation
		var count int
		if err := rows.Scan(&v.InstancePath, &count); err != nil {
			rows.Close()
			return nil, err
		}
		v.Kind = ViolationMultipleClusters
		v.Detail = fmt.Sprintf("member of %d suggested clusters", count)
		violations = append(violations, v)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(
		ctx,
		`SELECT m.instance_path, m.cluster_id
         FROM match_cluster_members m
         JOIN match_clusters c ON c.id = m.cluster_id
         LEFT JOIN instances i ON i.folder_path = m.instance_path
         WHERE c.status = ? AND (i.id IS NULL OR i.canonical_id IS NULL)`,
		ClusterAccepted,
	)
	if err != nil {
		return nil, fmt.Errorf("query stale accepted members: %w", err)
	}
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.InstancePath, &v.ClusterID); err != nil {
			rows.Close()
			return nil, err
		}
		v.Kind = ViolationStaleAcceptedMember
		v.Detail = fmt.Sprintf("accepted cluster %d member is not a linked instance", v.ClusterID)
		violations = append(violations, v)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(
		ctx,
		`SELECT c.id, COALESCE(SUM(m.is_primary), 0), COUNT(m.instance_path)
         FROM match_clusters c
         LEFT JOIN match_cluster_members m ON m.cluster_id = c.id
         WHERE c.status IN (?, ?)
         GROUP BY c.id
         HAVING COUNT(m.instance_path) > 0 AND COALESCE(SUM(m.is_primary), 0) != 1`,
		ClusterSuggested,
		ClusterAccepted,
	)
	if err != nil {
		return nil, fmt.Errorf("query primary counts: %w", err)
	}
	for rows.Next() {
		var v Violation
		var primaries, members int
		if err := rows.Scan(&v.ClusterID, &primaries, &members); err != nil {
			rows.Close()
			return nil, err
		}
		v.Kind = ViolationPrimaryCount
		v.Detail = fmt.Sprintf("cluster has %d primary members out of %d", primaries, members)
		violations = append(violations, v)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(
		ctx,
		`SELECT i.folder_path, i.canonical_id
         FROM instances i
         LEFT JOIN canonical_games g ON g.id = i.canonical_id
         WHERE i.canonical_id IS NOT NULL AND g.id IS NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dangling canonicals: %w", err)
	}
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.InstancePath, &v.CanonicalID); err != nil {
			rows.Close()
			return nil, err
		}
		v.Kind = ViolationDanglingCanonical
		v.Detail = fmt.Sprintf("canonical %s does not exist", v.CanonicalID)
		violations = append(violations, v)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return violations, nil
}

func closeRows(rows interface {
	Close() error
	Err() error
}) error {
	err := rows.Err()
	if closeErr := rows.Close(); err == nil {
		err = closeErr
	}
	return err
}
