package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ludex/internal/config"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/match"
	"ludex/internal/scanner"
	"ludex/internal/services"
)

// Service owns every cluster lifecycle transition. Each transition runs in a
// single store transaction; terminal clusters never move again. Canonical
// games are only written here, whether the request came from the CLI, the
// API, or the match engine's auto-accept.
type Service struct {
	store  *library.Store
	cfg    *config.Config
	logger *slog.Logger
}

var _ match.Resolver = (*Service)(nil)

// New creates the lifecycle service.
func New(cfg *config.Config, store *library.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "resolve"),
	}
}

// Accept transitions a suggested cluster to accepted and links every member
// to the target canonical game. An empty canonicalID falls back to the
// cluster's suggested target; with neither, a new canonical game is created
// from the cluster seed. When organize-on-accept is enabled, member folders
// move under the organized directory before the transaction commits and are
// moved back if it fails.
func (s *Service) Accept(ctx context.Context, clusterID int64, canonicalID string) error {
	ctx = services.WithOperation(services.WithClusterID(ctx, clusterID), "accept")
	cluster, members, err := s.suggestedCluster(ctx, clusterID)
	if err != nil {
		return err
	}
	primary, err := s.store.InstanceByPath(ctx, members[0].InstancePath)
	if err != nil {
		return err
	}

	targetID := strings.TrimSpace(canonicalID)
	if targetID == "" {
		targetID = cluster.SuggestedCanonicalID
	}
	create := targetID == ""

	var title string
	if create {
		targetID = uuid.NewString()
		title = seedTitle(cluster, primary, members[0].InstancePath)
	} else {
		game, err := s.store.Canonical(ctx, targetID)
		if err != nil {
			return err
		}
		if game == nil {
			return services.Wrap(services.ErrNotFound, "resolve", "accept", fmt.Sprintf("canonical %s not found", targetID), nil)
		}
		title = game.DisplayTitle
	}

	moves, err := s.relocate(members, title)
	if err != nil {
		return err
	}
	paths := finalPaths(members, moves)

	err = s.store.WithTx(ctx, func(tx *library.Tx) error {
		if err := tx.SetClusterStatus(clusterID, library.ClusterAccepted); err != nil {
			return err
		}
		for _, move := range moves {
			if err := tx.UpdateInstancePath(move.source, move.target); err != nil {
				return err
			}
		}
		primaryInstance, err := tx.Instance(paths[0])
		if err != nil {
			return err
		}
		if create {
			game := &library.CanonicalGame{
				ID:           targetID,
				DisplayTitle: title,
				Metadata:     cluster.Metadata.Clone(),
			}
			if primaryInstance != nil {
				game.CoverURL = primaryInstance.CoverPath
			}
			if err := tx.CreateCanonical(game); err != nil {
				return err
			}
		} else if err := mergeIntoCanonical(tx, targetID, cluster, primaryInstance); err != nil {
			return err
		}
		for _, path := range paths {
			if err := tx.LinkInstance(path, targetID, clusterID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.rollback(moves)
		return err
	}

	logging.WithContext(ctx, s.logger).Info("cluster accepted",
		logging.String("canonical_id", targetID),
		logging.Int("members", len(paths)),
		logging.Bool("created_canonical", create))
	return nil
}

// Reject marks a suggested cluster rejected. Membership rows stay so the
// rejection memory can recognize the same proposal later; the members return
// to the orphan pool.
func (s *Service) Reject(ctx context.Context, clusterID int64) error {
	ctx = services.WithOperation(services.WithClusterID(ctx, clusterID), "reject")
	err := s.store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.SetClusterStatus(clusterID, library.ClusterRejected)
	})
	if err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("cluster rejected")
	return nil
}

// suggestedCluster loads a cluster with its members and requires it to still
// be suggested. The transaction re-checks the status, so this is a fast
// fail, not the guard.
func (s *Service) suggestedCluster(ctx context.Context, clusterID int64) (*library.Cluster, []*library.ClusterMember, error) {
	cluster, err := s.store.ClusterByID(ctx, clusterID)
	if err != nil {
		return nil, nil, err
	}
	if cluster == nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "resolve", "load-cluster", fmt.Sprintf("cluster %d not found", clusterID), nil)
	}
	if cluster.Status != library.ClusterSuggested {
		return nil, nil, services.Wrap(
			services.ErrConflict,
			"resolve",
			"load-cluster",
			fmt.Sprintf("cluster %d is %s and cannot transition", clusterID, cluster.Status),
			nil,
		)
	}
	members, err := s.store.ClusterMembers(ctx, clusterID)
	if err != nil {
		return nil, nil, err
	}
	if len(members) == 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "resolve", "load-cluster", fmt.Sprintf("cluster %d has no members", clusterID), nil)
	}
	return cluster, members, nil
}

// mergeIntoCanonical folds cluster metadata into an existing canonical game.
// Existing non-empty canonical values always win; the cover fills from the
// primary member only when the canonical has none.
func mergeIntoCanonical(tx *library.Tx, canonicalID string, cluster *library.Cluster, primary *library.Instance) error {
	game, err := tx.Canonical(canonicalID)
	if err != nil {
		return err
	}
	if game == nil {
		return services.Wrap(services.ErrNotFound, "resolve", "accept", fmt.Sprintf("canonical %s not found", canonicalID), nil)
	}
	changed := game.Metadata.Merge(cluster.Metadata)
	if game.CoverURL == "" && primary != nil && primary.CoverPath != "" {
		game.CoverURL = primary.CoverPath
		changed = true
	}
	if !changed {
		return nil
	}
	return tx.UpdateCanonical(game)
}

// seedTitle picks the display title for a canonical created from a cluster:
// suggested title, then the primary member's scanned title, then a readable
// form of the primary folder name. Never the raw path.
func seedTitle(cluster *library.Cluster, primary *library.Instance, primaryPath string) string {
	if title := strings.TrimSpace(cluster.SuggestedTitle); title != "" {
		return title
	}
	if primary != nil {
		if title := strings.TrimSpace(primary.Title); title != "" {
			return title
		}
	}
	return scanner.DeriveTitle(filepath.Base(primaryPath))
}
