package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ludex/internal/services"
)

const instanceColumns = "id, folder_path, title, cover_path, status, rating, tags, canonical_id, created_at, updated_at"

func scanInstance(scanner interface{ Scan(dest ...any) error }) (*Instance, error) {
	var (
		id          int64
		folderPath  string
		title       sql.NullString
		coverPath   sql.NullString
		statusStr   string
		rating      sql.NullFloat64
		tags        sql.NullString
		canonicalID sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&folderPath,
		&title,
		&coverPath,
		&statusStr,
		&rating,
		&tags,
		&canonicalID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	instance := &Instance{
		ID:          id,
		FolderPath:  folderPath,
		Title:       title.String,
		CoverPath:   coverPath.String,
		Status:      InstanceStatus(statusStr),
		Tags:        parseTags(tags.String),
		CanonicalID: canonicalID.String,
	}
	if rating.Valid {
		value := rating.Float64
		instance.Rating = &value
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		instance.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		instance.UpdatedAt = updated
	}
	return instance, nil
}

// UpsertInstance records a scanned folder, keyed by folder path. Existing rows
// keep their identity, linkage, rating, and user tags; scanner-derived fields
// are refreshed and the row is reactivated.
func (s *Store) UpsertInstance(ctx context.Context, scanned ScannedInstance) (*Instance, error) {
	path := strings.TrimSpace(scanned.FolderPath)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "library", "upsert-instance", "folder path is required", nil)
	}

	existing, err := s.InstanceByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	now := timestamp(time.Now())
	if existing == nil {
		_, err := s.execWithRetry(
			ctx,
			`INSERT INTO instances (folder_path, title, cover_path, status, tags, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			path,
			nullableString(scanned.Title),
			nullableString(scanned.CoverPath),
			InstanceActive,
			encodeTags(scanned.Tags),
			now,
			now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert instance: %w", err)
		}
		return s.InstanceByPath(ctx, path)
	}

	_, err = s.execWithRetry(
		ctx,
		`UPDATE instances SET title = ?, cover_path = ?, status = ?, tags = ?, updated_at = ? WHERE folder_path = ?`,
		nullableString(scanned.Title),
		nullableString(scanned.CoverPath),
		InstanceActive,
		encodeTags(mergeTags(existing.Tags, scanned.Tags)),
		now,
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("update instance: %w", err)
	}
	return s.InstanceByPath(ctx, path)
}

// InstanceByPath fetches an instance by its folder path.
func (s *Store) InstanceByPath(ctx context.Context, path string) (*Instance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE folder_path = ?`, path)
	instance, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return instance, nil
}

// InstanceByID fetches an instance by identifier.
func (s *Store) InstanceByID(ctx context.Context, id int64) (*Instance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id)
	instance, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return instance, nil
}

// ListInstances returns instances filtered by status set (or all instances
// when no status is provided), ordered by folder path.
func (s *Store) ListInstances(ctx context.Context, statuses ...InstanceStatus) ([]*Instance, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + instanceColumns + ` FROM instances`
	orderClause := ` ORDER BY folder_path`

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
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	return collectInstances(rows)
}

// ListLinkedInstances returns the instances currently linked to a canonical game.
func (s *Store) ListLinkedInstances(ctx context.Context, canonicalID string) ([]*Instance, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE canonical_id = ? ORDER BY folder_path`,
		canonicalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list linked instances: %w", err)
	}
	defer rows.Close()

	return collectInstances(rows)
}

// ListOrphans returns active instances that are neither linked nor members of
// a suggested cluster, ordered by creation time.
func (s *Store) ListOrphans(ctx context.Context) ([]*Instance, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+instanceColumns+` FROM instances i
         WHERE i.status = ? AND i.canonical_id IS NULL
           AND NOT EXISTS (
               SELECT 1 FROM match_cluster_members m
               JOIN match_clusters c ON c.id = m.cluster_id
               WHERE m.instance_path = i.folder_path AND c.status = ?
           )
         ORDER BY i.created_at, i.id`,
		InstanceActive,
		ClusterSuggested,
	)
	if err != nil {
		return nil, fmt.Errorf("list orphans: %w", err)
	}
	defer rows.Close()

	return collectInstances(rows)
}

// MarkMissingExcept flips active instances whose paths are absent from the
// seen set to missing. Returns the number of rows changed.
func (s *Store) MarkMissingExcept(ctx context.Context, seenPaths []string) (int64, error) {
	now := timestamp(time.Now())
	if len(seenPaths) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE instances SET status = ?, updated_at = ? WHERE status = ?`,
			InstanceMissing,
			now,
			InstanceActive,
		)
		if err != nil {
			return 0, fmt.Errorf("mark missing: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(seenPaths))
	args := make([]any, 0, len(seenPaths)+3)
	args = append(args, InstanceMissing, now, InstanceActive)
	for _, path := range seenPaths {
		args = append(args, path)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE instances SET status = ?, updated_at = ?
         WHERE status = ? AND folder_path NOT IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("mark missing: %w", err)
	}
	return res.RowsAffected()
}

// SetInstanceRating stores a user rating, or clears it when rating is nil.
func (s *Store) SetInstanceRating(ctx context.Context, path string, rating *float64) error {
	if rating != nil && (*rating < 0 || *rating > 10) {
		return services.Wrap(services.ErrValidation, "library", "set-rating", "rating must be between 0 and 10", nil)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE instances SET rating = ?, updated_at = ? WHERE folder_path = ?`,
		nullableFloat(rating),
		timestamp(time.Now()),
		path,
	)
	if err != nil {
		return fmt.Errorf("set rating: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "library", "set-rating", fmt.Sprintf("no instance at %s", path), nil)
	}
	return nil
}

func collectInstances(rows *sql.Rows) ([]*Instance, error) {
	var instances []*Instance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}
