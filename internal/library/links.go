package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ludex/internal/metadata"
	"ludex/internal/services"
)

const linkColumns = "id, canonical_id, source_type, external_id, external_url, metadata, created_at, updated_at"

func scanLink(scanner interface{ Scan(dest ...any) error }) (*IdentityLink, error) {
	var (
		id          int64
		canonicalID string
		sourceType  string
		externalID  string
		externalURL sql.NullString
		meta        sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&canonicalID,
		&sourceType,
		&externalID,
		&externalURL,
		&meta,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	link := &IdentityLink{
		ID:          id,
		CanonicalID: canonicalID,
		SourceType:  SourceType(sourceType),
		ExternalID:  externalID,
		ExternalURL: externalURL.String,
		Metadata:    metadata.MustParse(meta.String),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		link.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		link.UpdatedAt = updated
	}
	return link, nil
}

// CreateIdentityLink attaches an external catalog entry to a canonical game.
// The (source_type, external_id) pair is globally unique: re-linking the same
// pair to the same canonical refreshes the stored snapshot, while linking it
// to a different canonical is a conflict.
func (s *Store) CreateIdentityLink(ctx context.Context, link IdentityLink) (*IdentityLink, error) {
	source := SourceType(strings.ToLower(strings.TrimSpace(string(link.SourceType))))
	externalID := strings.TrimSpace(link.ExternalID)
	if source == "" || externalID == "" {
		return nil, services.Wrap(services.ErrValidation, "library", "create-link", "source type and external id are required", nil)
	}
	if strings.TrimSpace(link.CanonicalID) == "" {
		return nil, services.Wrap(services.ErrValidation, "library", "create-link", "canonical id is required", nil)
	}

	if game, err := s.Canonical(ctx, link.CanonicalID); err != nil {
		return nil, err
	} else if game == nil {
		return nil, services.Wrap(services.ErrNotFound, "library", "create-link", fmt.Sprintf("canonical %s not found", link.CanonicalID), nil)
	}

	existing, err := s.FindLink(ctx, source, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.CanonicalID != link.CanonicalID {
			return nil, services.Wrap(
				services.ErrConflict,
				"library",
				"create-link",
				fmt.Sprintf("%s:%s already linked to canonical %s", source, externalID, existing.CanonicalID),
				nil,
			)
		}
		if err := s.UpdateLinkSnapshot(ctx, existing.ID, link.ExternalURL, link.Metadata); err != nil {
			return nil, err
		}
		return s.FindLink(ctx, source, externalID)
	}

	now := timestamp(time.Now())
	meta := link.Metadata
	if meta == nil {
		meta = metadata.Bag{}
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO identity_links (canonical_id, source_type, external_id, external_url, metadata, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.CanonicalID,
		string(source),
		externalID,
		nullableString(link.ExternalURL),
		meta.Encode(),
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, services.Wrap(
				services.ErrConflict,
				"library",
				"create-link",
				fmt.Sprintf("%s:%s already linked", source, externalID),
				err,
			)
		}
		return nil, fmt.Errorf("insert identity link: %w", err)
	}

	return s.FindLink(ctx, source, externalID)
}

// FindLink fetches a link by its external identity.
func (s *Store) FindLink(ctx context.Context, source SourceType, externalID string) (*IdentityLink, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE source_type = ? AND external_id = ?`,
		string(source),
		externalID,
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find link: %w", err)
	}
	return link, nil
}

// ListLinks returns the identity links attached to a canonical game.
func (s *Store) ListLinks(ctx context.Context, canonicalID string) ([]*IdentityLink, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE canonical_id = ? ORDER BY source_type, external_id`,
		canonicalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	return collectLinks(rows)
}

// ListLinksBySource returns every link for one catalog source, oldest first.
// The enricher walks this set when refreshing snapshots.
func (s *Store) ListLinksBySource(ctx context.Context, source SourceType) ([]*IdentityLink, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE source_type = ? ORDER BY updated_at, id`,
		string(source),
	)
	if err != nil {
		return nil, fmt.Errorf("list links by source: %w", err)
	}
	defer rows.Close()

	return collectLinks(rows)
}

// UpdateLinkSnapshot refreshes the stored external URL and metadata for a link.
func (s *Store) UpdateLinkSnapshot(ctx context.Context, id int64, externalURL string, meta metadata.Bag) error {
	if meta == nil {
		meta = metadata.Bag{}
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE identity_links SET external_url = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		nullableString(externalURL),
		meta.Encode(),
		timestamp(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update link snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "library", "update-link", fmt.Sprintf("link %d not found", id), nil)
	}
	return nil
}

func collectLinks(rows *sql.Rows) ([]*IdentityLink, error) {
	var links []*IdentityLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed")
}
