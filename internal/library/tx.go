package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ludex/internal/metadata"
	"ludex/internal/services"
)

// Tx exposes the mutation surface available inside a store transaction.
// Lifecycle transitions (accept, reject, promote, unmerge) run entirely
// through one Tx so cluster status, membership, canonical upserts, and
// instance linkage commit or roll back together.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
	now string
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error. Busy errors retry the whole transaction, so fn must only issue
// database mutations.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	ctx = ensureContext(ctx)
	return withBusyRetry(ctx, func() error {
		return s.runTx(ctx, fn)
	})
}

func (s *Store) runTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{tx: sqlTx, ctx: ctx, now: timestamp(time.Now())}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		_ = sqlTx.Rollback()
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Cluster fetches a cluster inside the transaction.
func (t *Tx) Cluster(id int64) (*Cluster, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+clusterColumns+` FROM match_clusters WHERE id = ?`, id)
	cluster, err := scanCluster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cluster: %w", err)
	}
	return cluster, nil
}

// Members returns a cluster's membership rows, primary first.
func (t *Tx) Members(clusterID int64) ([]*ClusterMember, error) {
	rows, err := t.tx.QueryContext(
		t.ctx,
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

// InsertCluster creates a cluster row and returns its identifier.
func (t *Tx) InsertCluster(cluster *Cluster) (int64, error) {
	meta := cluster.Metadata
	if meta == nil {
		meta = metadata.Bag{}
	}
	res, err := t.tx.ExecContext(
		t.ctx,
		`INSERT INTO match_clusters (status, suggested_title, suggested_canonical_id, confidence, metadata, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cluster.Status,
		nullableString(cluster.SuggestedTitle),
		nullableString(cluster.SuggestedCanonicalID),
		cluster.Confidence,
		meta.Encode(),
		t.now,
		t.now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert cluster: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// InsertMember adds an instance path to a cluster.
func (t *Tx) InsertMember(clusterID int64, path string, isPrimary bool) error {
	_, err := t.tx.ExecContext(
		t.ctx,
		`INSERT INTO match_cluster_members (cluster_id, instance_path, is_primary, added_at) VALUES (?, ?, ?, ?)`,
		clusterID,
		path,
		boolToInt(isPrimary),
		t.now,
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// SetClusterStatus transitions a cluster, refusing to leave terminal states.
func (t *Tx) SetClusterStatus(id int64, status ClusterStatus) error {
	cluster, err := t.Cluster(id)
	if err != nil {
		return err
	}
	if cluster == nil {
		return services.Wrap(services.ErrNotFound, "library", "set-cluster-status", fmt.Sprintf("cluster %d not found", id), nil)
	}
	if cluster.Status.Terminal() {
		return services.Wrap(
			services.ErrConflict,
			"library",
			"set-cluster-status",
			fmt.Sprintf("cluster %d is %s and cannot transition to %s", id, cluster.Status, status),
			nil,
		)
	}
	_, err = t.tx.ExecContext(
		t.ctx,
		`UPDATE match_clusters SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		t.now,
		id,
	)
	if err != nil {
		return fmt.Errorf("set cluster status: %w", err)
	}
	return nil
}

// Instance fetches an instance by folder path inside the transaction.
func (t *Tx) Instance(path string) (*Instance, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+instanceColumns+` FROM instances WHERE folder_path = ?`, path)
	instance, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return instance, nil
}

// LinkInstance attaches an instance to a canonical game. The partition
// invariant is validated first: the instance must not be linked elsewhere and
// must hold no suggested-cluster membership outside viaCluster. Violations
// abort the transaction with an integrity error.
func (t *Tx) LinkInstance(path, canonicalID string, viaCluster int64) error {
	instance, err := t.Instance(path)
	if err != nil {
		return err
	}
	if instance == nil {
		return services.Wrap(services.ErrNotFound, "library", "link-instance", fmt.Sprintf("no instance at %s", path), nil)
	}
	if instance.CanonicalID != "" && instance.CanonicalID != canonicalID {
		return services.Wrap(
			services.ErrIntegrity,
			"library",
			"link-instance",
			fmt.Sprintf("%s already linked to canonical %s", path, instance.CanonicalID),
			nil,
		)
	}

	var foreign int
	row := t.tx.QueryRowContext(
		t.ctx,
		`SELECT COUNT(1) FROM match_cluster_members m
         JOIN match_clusters c ON c.id = m.cluster_id
         WHERE m.instance_path = ? AND c.status = ? AND c.id != ?`,
		path,
		ClusterSuggested,
		viaCluster,
	)
	if err := row.Scan(&foreign); err != nil {
		return fmt.Errorf("count foreign membership: %w", err)
	}
	if foreign > 0 {
		return services.Wrap(
			services.ErrIntegrity,
			"library",
			"link-instance",
			fmt.Sprintf("%s holds membership in another suggested cluster", path),
			nil,
		)
	}

	_, err = t.tx.ExecContext(
		t.ctx,
		`UPDATE instances SET canonical_id = ?, updated_at = ? WHERE folder_path = ?`,
		canonicalID,
		t.now,
		path,
	)
	if err != nil {
		return fmt.Errorf("link instance: %w", err)
	}
	return nil
}

// UnlinkInstance clears an instance's canonical linkage.
func (t *Tx) UnlinkInstance(path string) error {
	res, err := t.tx.ExecContext(
		t.ctx,
		`UPDATE instances SET canonical_id = NULL, updated_at = ? WHERE folder_path = ?`,
		t.now,
		path,
	)
	if err != nil {
		return fmt.Errorf("unlink instance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "library", "unlink-instance", fmt.Sprintf("no instance at %s", path), nil)
	}
	return nil
}

// UpdateInstancePath rewrites an instance's folder path and every membership
// row that references it. Used when accept relocates folders; the move and
// the rewrite commit together.
func (t *Tx) UpdateInstancePath(oldPath, newPath string) error {
	res, err := t.tx.ExecContext(
		t.ctx,
		`UPDATE instances SET folder_path = ?, updated_at = ? WHERE folder_path = ?`,
		newPath,
		t.now,
		oldPath,
	)
	if err != nil {
		return fmt.Errorf("update instance path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "library", "update-instance-path", fmt.Sprintf("no instance at %s", oldPath), nil)
	}
	if _, err := t.tx.ExecContext(
		t.ctx,
		`UPDATE match_cluster_members SET instance_path = ? WHERE instance_path = ?`,
		newPath,
		oldPath,
	); err != nil {
		return fmt.Errorf("update membership paths: %w", err)
	}
	return nil
}

// Canonical fetches a canonical game inside the transaction.
func (t *Tx) Canonical(id string) (*CanonicalGame, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+canonicalColumns+` FROM canonical_games WHERE id = ?`, id)
	game, err := scanCanonical(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get canonical: %w", err)
	}
	return game, nil
}

// CreateCanonical inserts a canonical game with a caller-generated identifier.
func (t *Tx) CreateCanonical(game *CanonicalGame) error {
	if game.ID == "" {
		return services.Wrap(services.ErrValidation, "library", "create-canonical", "canonical id is required", nil)
	}
	if game.DisplayTitle == "" {
		return services.Wrap(services.ErrValidation, "library", "create-canonical", "display title is required", nil)
	}
	meta := game.Metadata
	if meta == nil {
		meta = metadata.Bag{}
	}
	_, err := t.tx.ExecContext(
		t.ctx,
		`INSERT INTO canonical_games (id, display_title, release_date, developer, cover_url, metadata, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		game.ID,
		game.DisplayTitle,
		nullableString(game.ReleaseDate),
		nullableString(game.Developer),
		nullableString(game.CoverURL),
		meta.Encode(),
		t.now,
		t.now,
	)
	if err != nil {
		return fmt.Errorf("insert canonical: %w", err)
	}
	return nil
}

// UpdateCanonical persists descriptive fields and metadata for a canonical game.
func (t *Tx) UpdateCanonical(game *CanonicalGame) error {
	meta := game.Metadata
	if meta == nil {
		meta = metadata.Bag{}
	}
	res, err := t.tx.ExecContext(
		t.ctx,
		`UPDATE canonical_games
         SET display_title = ?, release_date = ?, developer = ?, cover_url = ?, metadata = ?, updated_at = ?
         WHERE id = ?`,
		game.DisplayTitle,
		nullableString(game.ReleaseDate),
		nullableString(game.Developer),
		nullableString(game.CoverURL),
		meta.Encode(),
		t.now,
		game.ID,
	)
	if err != nil {
		return fmt.Errorf("update canonical: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "library", "update-canonical", fmt.Sprintf("canonical %s not found", game.ID), nil)
	}
	return nil
}

// RemoveMember deletes one membership row.
func (t *Tx) RemoveMember(clusterID int64, path string) error {
	_, err := t.tx.ExecContext(
		t.ctx,
		`DELETE FROM match_cluster_members WHERE cluster_id = ? AND instance_path = ?`,
		clusterID,
		path,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// RemoveMembershipsByStatus deletes an instance's membership rows in clusters
// carrying the given status. Returns the affected cluster ids.
func (t *Tx) RemoveMembershipsByStatus(path string, status ClusterStatus) ([]int64, error) {
	rows, err := t.tx.QueryContext(
		t.ctx,
		`SELECT m.cluster_id FROM match_cluster_members m
         JOIN match_clusters c ON c.id = m.cluster_id
         WHERE m.instance_path = ? AND c.status = ?`,
		path,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	var clusterIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		clusterIDs = append(clusterIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, clusterID := range clusterIDs {
		if err := t.RemoveMember(clusterID, path); err != nil {
			return nil, err
		}
	}
	return clusterIDs, nil
}

// CountMembers returns how many members a cluster holds.
func (t *Tx) CountMembers(clusterID int64) (int, error) {
	var count int
	row := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(1) FROM match_cluster_members WHERE cluster_id = ?`, clusterID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// SetPrimary makes path the cluster's single primary member.
func (t *Tx) SetPrimary(clusterID int64, path string) error {
	if _, err := t.tx.ExecContext(
		t.ctx,
		`UPDATE match_cluster_members SET is_primary = 0 WHERE cluster_id = ?`,
		clusterID,
	); err != nil {
		return fmt.Errorf("clear primary: %w", err)
	}
	res, err := t.tx.ExecContext(
		t.ctx,
		`UPDATE match_cluster_members SET is_primary = 1 WHERE cluster_id = ? AND instance_path = ?`,
		clusterID,
		path,
	)
	if err != nil {
		return fmt.Errorf("set primary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "library", "set-primary", fmt.Sprintf("%s is not a member of cluster %d", path, clusterID), nil)
	}
	return nil
}

// OldestMember returns the earliest-added member, path order breaking ties.
func (t *Tx) OldestMember(clusterID int64) (*ClusterMember, error) {
	row := t.tx.QueryRowContext(
		t.ctx,
		`SELECT `+memberColumns+` FROM match_cluster_members
         WHERE cluster_id = ? ORDER BY added_at, instance_path LIMIT 1`,
		clusterID,
	)
	member, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("oldest member: %w", err)
	}
	return member, nil
}

// CountLinked returns how many instances are linked to a canonical game.
func (t *Tx) CountLinked(canonicalID string) (int, error) {
	var count int
	row := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(1) FROM instances WHERE canonical_id = ?`, canonicalID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count linked: %w", err)
	}
	return count, nil
}
