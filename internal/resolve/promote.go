package resolve

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/metadata"
	"ludex/internal/scanner"
	"ludex/internal/services"
)

// PromoteOrphan turns one unresolved instance into its own canonical game,
// recording the decision as a synthetic single-member cluster accepted at
// full confidence. An explicit title overrides the scanned one.
func (s *Service) PromoteOrphan(ctx context.Context, folderPath, title string) (*library.CanonicalGame, error) {
	path := strings.TrimSpace(folderPath)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "resolve", "promote", "folder path is required", nil)
	}
	instance, err := s.store.InstanceByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, services.Wrap(services.ErrNotFound, "resolve", "promote", fmt.Sprintf("no instance at %s", path), nil)
	}
	ctx = services.WithOperation(services.WithInstancePath(ctx, path), "promote")
	if instance.Linked() {
		return nil, services.Wrap(
			services.ErrConflict,
			"resolve",
			"promote",
			fmt.Sprintf("%s is already linked to canonical %s", path, instance.CanonicalID),
			nil,
		)
	}

	display := strings.TrimSpace(title)
	if display == "" {
		display = strings.TrimSpace(instance.Title)
	}
	if display == "" {
		display = scanner.DeriveTitle(filepath.Base(path))
	}

	member := &library.ClusterMember{InstancePath: path}
	moves, err := s.relocate([]*library.ClusterMember{member}, display)
	if err != nil {
		return nil, err
	}
	finalPath := path
	if len(moves) > 0 {
		finalPath = moves[0].target
	}

	game := &library.CanonicalGame{
		ID:           uuid.NewString(),
		DisplayTitle: display,
		CoverURL:     instance.CoverPath,
		Metadata:     metadata.Bag{},
	}

	var clusterID int64
	err = s.store.WithTx(ctx, func(tx *library.Tx) error {
		id, err := tx.InsertCluster(&library.Cluster{
			Status:         library.ClusterSuggested,
			SuggestedTitle: display,
			Confidence:     1.0,
			Metadata:       metadata.Bag{},
		})
		if err != nil {
			return err
		}
		clusterID = id
		if err := tx.InsertMember(id, path, true); err != nil {
			return err
		}
		if err := tx.SetClusterStatus(id, library.ClusterAccepted); err != nil {
			return err
		}
		for _, move := range moves {
			if err := tx.UpdateInstancePath(move.source, move.target); err != nil {
				return err
			}
		}
		if err := tx.CreateCanonical(game); err != nil {
			return err
		}
		return tx.LinkInstance(finalPath, game.ID, id)
	})
	if err != nil {
		s.rollback(moves)
		return nil, err
	}

	logging.WithContext(ctx, s.logger).Info("orphan promoted",
		logging.String("canonical_id", game.ID),
		logging.Int64("cluster_id", clusterID))
	return game, nil
}
