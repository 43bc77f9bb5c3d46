package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ludex/internal/metadata"
)

const canonicalColumns = "id, display_title, release_date, developer, cover_url, metadata, created_at, updated_at"

func scanCanonical(scanner interface{ Scan(dest ...any) error }) (*CanonicalGame, error) {
	var (
		id          string
		title       string
		releaseDate sql.NullString
		developer   sql.NullString
		coverURL    sql.NullString
		meta        sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&releaseDate,
		&developer,
		&coverURL,
		&meta,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	game := &CanonicalGame{
		ID:           id,
		DisplayTitle: title,
		ReleaseDate:  releaseDate.String,
		Developer:    developer.String,
		CoverURL:     coverURL.String,
		Metadata:     metadata.MustParse(meta.String),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		game.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		game.UpdatedAt = updated
	}
	return game, nil
}

// Canonical fetches a canonical game by identifier.
func (s *Store) Canonical(ctx context.Context, id string) (*CanonicalGame, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+canonicalColumns+` FROM canonical_games WHERE id = ?`, id)
	game, err := scanCanonical(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get canonical: %w", err)
	}
	return game, nil
}

// ListCanonical returns every canonical game ordered by display title.
func (s *Store) ListCanonical(ctx context.Context) ([]*CanonicalGame, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+canonicalColumns+` FROM canonical_games ORDER BY display_title COLLATE NOCASE, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list canonical: %w", err)
	}
	defer rows.Close()

	var games []*CanonicalGame
	for rows.Next() {
		game, err := scanCanonical(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

// ListCanonicalWithCounts returns every canonical game joined with its linked
// instance count. Zero-instance canonicals are included.
func (s *Store) ListCanonicalWithCounts(ctx context.Context) ([]*CanonicalWithCount, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT g.id, g.display_title, g.release_date, g.developer, g.cover_url, g.metadata,
                g.created_at, g.updated_at, COUNT(i.id)
         FROM canonical_games g
         LEFT JOIN instances i ON i.canonical_id = g.id
         GROUP BY g.id
         ORDER BY g.display_title COLLATE NOCASE, g.created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list canonical with counts: %w", err)
	}
	defer rows.Close()

	var games []*CanonicalWithCount
	for rows.Next() {
		var (
			entry       CanonicalWithCount
			releaseDate sql.NullString
			developer   sql.NullString
			coverURL    sql.NullString
			meta        sql.NullString
			createdRaw  sql.NullString
			updatedRaw  sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.DisplayTitle,
			&releaseDate,
			&developer,
			&coverURL,
			&meta,
			&createdRaw,
			&updatedRaw,
			&entry.InstanceCount,
		); err != nil {
			return nil, err
		}
		entry.ReleaseDate = releaseDate.String
		entry.Developer = developer.String
		entry.CoverURL = coverURL.String
		entry.Metadata = metadata.MustParse(meta.String)
		if created, err := parseTimeString(createdRaw.String); err == nil {
			entry.CreatedAt = created
		}
		if updated, err := parseTimeString(updatedRaw.String); err == nil {
			entry.UpdatedAt = updated
		}
		games = append(games, &entry)
	}
	return games, rows.Err()
}
