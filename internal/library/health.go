package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Health aggregates library counts for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	health := HealthSummary{}

	instanceRows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM instances GROUP BY status`)
	if err != nil {
		return health, fmt.Errorf("instance stats: %w", err)
	}
	defer instanceRows.Close()
	for instanceRows.Next() {
		var status InstanceStatus
		var count int
		if err := instanceRows.Scan(&status, &count); err != nil {
			return health, err
		}
		health.Instances += count
		switch status {
		case InstanceActive:
			health.Active += count
		case InstanceMissing:
			health.Missing += count
		}
	}
	if err := instanceRows.Err(); err != nil {
		return health, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM instances WHERE canonical_id IS NOT NULL`)
	if err := row.Scan(&health.Linked); err != nil {
		return health, fmt.Errorf("count linked: %w", err)
	}

	row = s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(DISTINCT m.instance_path)
         FROM match_cluster_members m
         JOIN match_clusters c ON c.id = m.cluster_id
         JOIN instances i ON i.folder_path = m.instance_path
         WHERE c.status = ? AND i.canonical_id IS NULL AND i.status = ?`,
		ClusterSuggested,
		InstanceActive,
	)
	if err := row.Scan(&health.Clustered); err != nil {
		return health, fmt.Errorf("count clustered: %w", err)
	}

	orphans, err := s.ListOrphans(ctx)
	if err != nil {
		return health, err
	}
	health.Orphans = len(orphans)

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM canonical_games`)
	if err := row.Scan(&health.Canonicals); err != nil {
		return health, fmt.Errorf("count canonicals: %w", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM identity_links`)
	if err := row.Scan(&health.Links); err != nil {
		return health, fmt.Errorf("count links: %w", err)
	}

	clusterRows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM match_clusters GROUP BY status`)
	if err != nil {
		return health, fmt.Errorf("cluster stats: %w", err)
	}
	defer clusterRows.Close()
	for clusterRows.Next() {
		var status ClusterStatus
		var count int
		if err := clusterRows.Scan(&status, &count); err != nil {
			return health, err
		}
		switch status {
		case ClusterSuggested:
			health.Suggested += count
		case ClusterAccepted:
			health.Accepted += count
		case ClusterRejected:
			health.Rejected += count
		}
	}
	return health, clusterRows.Err()
}

// CheckHealth returns diagnostic information about the library database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: "current",
	}

	if s.path == "" {
		return health, errors.New("library database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat library database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("library database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("library database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping library database: %w", err)
	}
	health.DatabaseReadable = true

	expected := []string{"instances", "canonical_games", "identity_links", "match_clusters", "match_cluster_members"}
	missing := make(map[string]struct{}, len(expected))
	for _, table := range expected {
		missing[table] = struct{}{}
	}

	tableRows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	defer tableRows.Close()
	for tableRows.Next() {
		var name string
		if err := tableRows.Scan(&name); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("scan table info: %w", err)
		}
		if _, ok := missing[name]; ok {
			health.TablesPresent = append(health.TablesPresent, name)
			delete(missing, name)
		}
	}
	if err := tableRows.Err(); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("iterate table info: %w", err)
	}
	for table := range missing {
		health.MissingTables = append(health.MissingTables, table)
	}

	if len(health.MissingTables) == 0 {
		row := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM instances")
		if err := row.Scan(&health.TotalInstances); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count instances: %w", err)
		}
	}

	var integrityResult string
	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
