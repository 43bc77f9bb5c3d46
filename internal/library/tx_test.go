package library_test

import (
	"context"
	"errors"
	"testing"

	"ludex/internal/library"
	"ludex/internal/services"
	"ludex/internal/testsupport"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sentinel := errors.New("boom")
	err := store.WithTx(ctx, func(tx *library.Tx) error {
		if err := tx.CreateCanonical(&library.CanonicalGame{ID: "can-x", DisplayTitle: "X"}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	game, err := store.Canonical(ctx, "can-x")
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	if game != nil {
		t.Fatalf("expected rollback to discard canonical, got %#v", game)
	}
}

func TestSetClusterStatusRefusesTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewInstance(t, store, "/library/GameA", "GameA")
	cluster, err := store.InsertSuggestedCluster(ctx, library.ClusterProposal{
		SuggestedTitle: "GameA",
		Confidence:     0.9,
		MemberPaths:    []string{"/library/GameA"},
		PrimaryPath:    "/library/GameA",
	})
	if err != nil {
		t.Fatalf("InsertSuggestedCluster failed: %v", err)
	}

	if err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.SetClusterStatus(cluster.ID, library.ClusterAccepted)
	}); err != nil {
		t.Fatalf("SetClusterStatus failed: %v", err)
	}

	err = store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.SetClusterStatus(cluster.ID, library.ClusterRejected)
	})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict on terminal cluster, got %v", err)
	}

	err = store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.SetClusterStatus(9999, library.ClusterAccepted)
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown cluster, got %v", err)
	}
}

func TestLinkInstanceEnforcesPartition(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewCanonical(t, store, "can-a", "Game A")
	testsupport.NewCanonical(t, store, "can-b", "Game B")
	testsupport.NewInstance(t, store, "/library/GameA", "GameA")
	testsupport.NewInstance(t, store, "/library/GameB", "GameB")

	if err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.LinkInstance("/library/GameA", "can-a", 0)
	}); err != nil {
		t.Fatalf("LinkInstance failed: %v", err)
	}

	err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.LinkInstance("/library/GameA", "can-b", 0)
	})
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity error for relink to different canonical, got %v", err)
	}

	// Relinking to the same canonical is a no-op, not a violation.
	if err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.LinkInstance("/library/GameA", "can-a", 0)
	}); err != nil {
		t.Fatalf("same-canonical relink failed: %v", err)
	}

	cluster, err := store.InsertSuggestedCluster(ctx, library.ClusterProposal{
		SuggestedTitle: "GameB",
		Confidence:     0.9,
		MemberPaths:    []string{"/library/GameB"},
		PrimaryPath:    "/library/GameB",
	})
	if err != nil {
		t.Fatalf("InsertSuggestedCluster failed: %v", err)
	}

	err = store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.LinkInstance("/library/GameB", "can-b", 0)
	})
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity error for clustered instance, got %v", err)
	}

	// Linking through the owning cluster is how accept resolves members.
	if err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.LinkInstance("/library/GameB", "can-b", cluster.ID)
	}); err != nil {
		t.Fatalf("LinkInstance via owning cluster failed: %v", err)
	}

	err = store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.LinkInstance("/library/NoSuch", "can-a", 0)
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown instance, got %v", err)
	}
}

func TestUnlinkInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewCanonical(t, store, "can-a", "Game A")
	testsupport.NewInstance(t, store, "/library/GameA", "GameA")

	if err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.LinkInstance("/library/GameA", "can-a", 0)
	}); err != nil {
		t.Fatalf("LinkInstance failed: %v", err)
	}
	if err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.UnlinkInstance("/library/GameA")
	}); err != nil {
		t.Fatalf("UnlinkInstance failed: %v", err)
	}

	instance, err := store.InstanceByPath(ctx, "/library/GameA")
	if err != nil {
		t.Fatalf("InstanceByPath failed: %v", err)
	}
	if instance.Linked() {
		t.Fatalf("expected unlinked instance, got %#v", instance)
	}

	err = store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.UnlinkInstance("/library/NoSuch")
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateInstancePathRewritesMemberships(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewInstance(t, store, "/library/GameA", "GameA")
	cluster, err := store.InsertSuggestedCluster(ctx, library.ClusterProposal{
		SuggestedTitle: "GameA",
		Confidence:     0.9,
		MemberPaths:    []string{"/library/GameA"},
		PrimaryPath:    "/library/GameA",
	})
	if err != nil {
		t.Fatalf("InsertSuggestedCluster failed: %v", err)
	}

	if err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.UpdateInstancePath("/library/GameA", "/organized/Game A")
	}); err != nil {
		t.Fatalf("UpdateInstancePath failed: %v", err)
	}

	moved, err := store.InstanceByPath(ctx, "/organized/Game A")
	if err != nil {
		t.Fatalf("InstanceByPath failed: %v", err)
	}
	if moved == nil {
		t.Fatal("expected instance at new path")
	}
	members, err := store.ClusterMembers(ctx, cluster.ID)
	if err != nil {
		t.Fatalf("ClusterMembers failed: %v", err)
	}
	if len(members) != 1 || members[0].InstancePath != "/organized/Game A" {
		t.Fatalf("expected membership path rewritten, got %#v", members)
	}
}

func TestSetPrimaryAndOldestMember(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewInstance(t, store, "/library/GameA", "GameA")
	testsupport.NewInstance(t, store, "/library/GameB", "GameB")
	cluster, err := store.InsertSuggestedCluster(ctx, library.ClusterProposal{
		SuggestedTitle: "GameA",
		Confidence:     0.9,
		MemberPaths:    []string{"/library/GameA", "/library/GameB"},
		PrimaryPath:    "/library/GameA",
	})
	if err != nil {
		t.Fatalf("InsertSuggestedCluster failed: %v", err)
	}

	if err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.SetPrimary(cluster.ID, "/library/GameB")
	}); err != nil {
		t.Fatalf("SetPrimary failed: %v", err)
	}
	members, err := store.ClusterMembers(ctx, cluster.ID)
	if err != nil {
		t.Fatalf("ClusterMembers failed: %v", err)
	}
	if members[0].InstancePath != "/library/GameB" || !members[0].IsPrimary {
		t.Fatalf("expected GameB primary, got %#v", members[0])
	}

	err = store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.SetPrimary(cluster.ID, "/library/NoSuch")
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for non-member, got %v", err)
	}

	if err := store.WithTx(ctx, func(tx *library.Tx) error {
		if err := tx.RemoveMember(cluster.ID, "/library/GameA"); err != nil {
			return err
		}
		oldest, err := tx.OldestMember(cluster.ID)
		if err != nil {
			return err
		}
		if oldest == nil || oldest.InstancePath != "/library/GameB" {
			t.Fatalf("unexpected oldest member: %#v", oldest)
		}
		count, err := tx.CountMembers(cluster.ID)
		if err != nil {
			return err
		}
		if count != 1 {
			t.Fatalf("expected 1 member after removal, got %d", count)
		}
		return nil
	}); err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}
