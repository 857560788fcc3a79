//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"pocket/internal/core"
	"pocket/internal/remote"
)

// Run with: POCKET_TEST_DATABASE_URL=postgres://... go test -tags=integration ./internal/remote/postgres

func openTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dsn := os.Getenv("POCKET_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("POCKET_TEST_DATABASE_URL not set, skipping integration test")
	}
	if err := Migrate(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestIntegration_TransactionsScopedAndUpserted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	store := remote.NewStore(s)
	user, other := "it-"+uuid.NewString(), "it-"+uuid.NewString()

	tx := core.Transfer{
		Meta: core.Meta{ID: uuid.NewString(), Amount: 42, Date: "2024-03-01", CreatedAt: time.Now().UTC().Truncate(time.Microsecond)},
		From: "Main",
		To:   "Uni",
	}
	if err := store.Insert(ctx, user, tx); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Upsert(ctx, user, []core.Transaction{tx}); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	got, err := store.List(ctx, user, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0] != core.Transaction(tx) {
		t.Fatalf("expected exactly the inserted transfer, got %+v", got)
	}
	if foreign, _ := store.List(ctx, other, nil); len(foreign) != 0 {
		t.Fatalf("rows leaked across users: %+v", foreign)
	}

	if err := store.DeleteByID(ctx, other, tx.ID); err != nil {
		t.Fatalf("foreign delete: %v", err)
	}
	if still, _ := store.List(ctx, user, nil); len(still) != 1 {
		t.Fatalf("delete must be scoped to the caller")
	}
	if err := store.DeleteByID(ctx, user, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestIntegration_ReplaceAccounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	user := "it-" + uuid.NewString()

	reg := core.NewRegistry(nil)
	reg.EnsureSeed()
	if err := s.ReplaceAccounts(ctx, user, reg.Accounts()); err != nil {
		t.Fatal(err)
	}
	reg.Remove("Gear")
	reg.SetPrimary("Uni")
	if err := s.ReplaceAccounts(ctx, user, reg.Accounts()); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListAccounts(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	back := core.NewRegistry(got)
	if p, _ := back.Primary(); back.Len() != 2 || p.Name != "Uni" {
		t.Fatalf("unexpected accounts %+v", got)
	}
}
