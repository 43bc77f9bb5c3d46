package resolve

import (
	"context"
	"fmt"
	"strings"

	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/services"
)

// Unmerge detaches one instance from its resolution. A linked instance loses
// its canonical link and its accepted-cluster membership rows; an instance
// that only sits in suggested clusters leaves them, with the primary
// reassigned to the oldest remaining member. The canonical game stays even at
// zero linked instances.
func (s *Service) Unmerge(ctx context.Context, folderPath string) error {
	path := strings.TrimSpace(folderPath)
	if path == "" {
		return services.Wrap(services.ErrValidation, "resolve", "unmerge", "folder path is required", nil)
	}
	ctx = services.WithOperation(services.WithInstancePath(ctx, path), "unmerge")

	var detachedFrom string
	var remainingLinks int
	var leftClusters int
	err := s.store.WithTx(ctx, func(tx *library.Tx) error {
		instance, err := tx.Instance(path)
		if err != nil {
			return err
		}
		if instance == nil {
			return services.Wrap(services.ErrNotFound, "resolve", "unmerge", fmt.Sprintf("no instance at %s", path), nil)
		}

		if instance.CanonicalID != "" {
			detachedFrom = instance.CanonicalID
			if err := tx.UnlinkInstance(path); err != nil {
				return err
			}
			if _, err := tx.RemoveMembershipsByStatus(path, library.ClusterAccepted); err != nil {
				return err
			}
			remainingLinks, err = tx.CountLinked(instance.CanonicalID)
			return err
		}

		clusterIDs, err := tx.RemoveMembershipsByStatus(path, library.ClusterSuggested)
		if err != nil {
			return err
		}
		if len(clusterIDs) == 0 {
			return services.Wrap(
				services.ErrValidation,
				"resolve",
				"unmerge",
				fmt.Sprintf("%s is neither linked nor clustered", path),
				nil,
			)
		}
		leftClusters = len(clusterIDs)
		for _, clusterID := range clusterIDs {
			if err := reassignPrimary(tx, clusterID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if detachedFrom != "" {
		logging.WithContext(ctx, s.logger).Info("instance unmerged",
			logging.String("canonical_id", detachedFrom),
			logging.Int("remaining_links", remainingLinks))
		return nil
	}
	logging.WithContext(ctx, s.logger).Info("instance left suggested clusters",
		logging.Int("clusters", leftClusters))
	return nil
}

// reassignPrimary promotes the oldest remaining member when a cluster loses
// its primary. A member-less cluster is left alone; it simply stops
// rendering.
func reassignPrimary(tx *library.Tx, clusterID int64) error {
	members, err := tx.Members(clusterID)
	if err != nil {
		return err
	}
	if len(members) == 0 || members[0].IsPrimary {
		return nil
	}
	oldest, err := tx.OldestMember(clusterID)
	if err != nil {
		return err
	}
	return tx.SetPrimary(clusterID, oldest.InstancePath)
}
