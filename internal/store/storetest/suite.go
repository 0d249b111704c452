// Package storetest runs the behavioral contract of store.Store against
// any implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/lookupbot/internal/store"
)

// Run exercises s. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("CloneUpsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		mustAddClone(t, s, store.Clone{Token: "1:a", OwnerID: 10, Name: "alpha_bot"})
		mustAddClone(t, s, store.Clone{Token: "2:b", OwnerID: 20, Name: "beta_bot"})
		mustAddClone(t, s, store.Clone{Token: "1:a", OwnerID: 11, Name: "alpha2_bot"})

		all, err := s.ListClones(ctx, 0)
		if err != nil {
			t.Fatalf("ListClones: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("clones = %d, want 2", len(all))
		}
		if all[0].Token != "1:a" || all[0].OwnerID != 11 || all[0].Name != "alpha2_bot" {
			t.Errorf("upsert not applied: %+v", all[0])
		}
		if all[0].CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}

		mine, err := s.ListClones(ctx, 20)
		if err != nil || len(mine) != 1 || mine[0].Token != "2:b" {
			t.Errorf("ListClones(20) = %+v, %v", mine, err)
		}
	})

	t.Run("CloneRemove", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		mustAddClone(t, s, store.Clone{Token: "1:a", OwnerID: 10})
		if err := s.RemoveClone(ctx, "1:a"); err != nil {
			t.Fatalf("RemoveClone: %v", err)
		}
		if err := s.RemoveClone(ctx, "1:a"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("second remove: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("Broadcasts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id1, err := s.AddBroadcast(ctx, store.Broadcast{AdminID: 1, Message: "hello"})
		if err != nil {
			t.Fatalf("AddBroadcast: %v", err)
		}
		id2, err := s.AddBroadcast(ctx, store.Broadcast{AdminID: 1, Message: "again"})
		if err != nil {
			t.Fatalf("AddBroadcast: %v", err)
		}
		if id1 == id2 || id1 <= 0 {
			t.Fatalf("expected distinct positive IDs, got %d and %d", id1, id2)
		}

		if err := s.FinishBroadcast(ctx, id1, 3, 2); err != nil {
			t.Fatalf("FinishBroadcast: %v", err)
		}
		b, err := s.GetBroadcast(ctx, id1)
		if err != nil {
			t.Fatalf("GetBroadcast: %v", err)
		}
		if b.Message != "hello" || b.Attempted != 3 || b.Delivered != 2 || b.SentAt.IsZero() {
			t.Errorf("unexpected broadcast: %+v", b)
		}

		if _, err := s.GetBroadcast(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("missing broadcast: err = %v", err)
		}
		if err := s.FinishBroadcast(ctx, 9999, 1, 1); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("finish missing broadcast: err = %v", err)
		}
	})

	t.Run("ActivityLog", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		old := time.Now().Add(-48 * time.Hour).UTC()
		entries := []store.Activity{
			{UserID: 1, Action: "phone_lookup", Data: "9889662072", CreatedAt: old},
			{UserID: 2, Action: "aadhar_lookup", Data: "658014451208"},
			{UserID: 1, Action: "clone_created", Data: "@alpha_bot"},
		}
		for _, a := range entries {
			if err := s.LogActivity(ctx, a); err != nil {
				t.Fatalf("LogActivity: %v", err)
			}
		}

		recent, err := s.RecentActivity(ctx, 2)
		if err != nil {
			t.Fatalf("RecentActivity: %v", err)
		}
		if len(recent) != 2 || recent[0].Action != "clone_created" || recent[1].Action != "aadhar_lookup" {
			t.Errorf("RecentActivity = %+v", recent)
		}

		removed, err := s.PruneActivity(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("PruneActivity: %v", err)
		}
		if removed != 1 {
			t.Errorf("removed = %d, want 1", removed)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		mustAddClone(t, s, store.Clone{Token: "1:a", OwnerID: 10})
		mustAddClone(t, s, store.Clone{Token: "2:b", OwnerID: 10})
		mustAddClone(t, s, store.Clone{Token: "3:c", OwnerID: 30})
		if _, err := s.AddBroadcast(ctx, store.Broadcast{AdminID: 1, Message: "m"}); err != nil {
			t.Fatal(err)
		}
		if err := s.LogActivity(ctx, store.Activity{UserID: 5, Action: "start"}); err != nil {
			t.Fatal(err)
		}

		st, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		want := store.Stats{Clones: 3, Owners: 2, Broadcasts: 1, Activities: 1}
		if st != want {
			t.Errorf("Stats = %+v, want %+v", st, want)
		}
	})
}

func mustAddClone(t *testing.T, s store.Store, c store.Clone) {
	t.Helper()
	if err := s.AddClone(context.Background(), c); err != nil {
		t.Fatalf("AddClone(%s): %v", c.Token, err)
	}
}
