package worker

import (
	"context"
	"testing"
	"time"

	"pocket/internal/amqp"
	"pocket/internal/core"
	"pocket/internal/local"
	"pocket/internal/remote"
	"pocket/internal/remote/memory"
	"pocket/internal/storage"
)

func setup(t *testing.T) (*SyncWorker, *local.Pending, *memory.Backend, *remote.Store) {
	t.Helper()
	store := local.NewPending(storage.NewMemoryKV())
	backend := memory.New()
	rs := remote.NewStore(backend)
	return NewSyncWorker(store, rs, nil), store, backend, rs
}

func sampleTx(id string) core.Transaction {
	return core.Expense{
		Meta:     core.Meta{ID: id, Amount: 12.5, Date: "2024-03-02", CreatedAt: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)},
		Account:  "Main",
		Category: "Food",
	}
}

func TestHandleSync(t *testing.T) {
	ctx := context.Background()
	w, store, backend, rs := setup(t)
	if err := store.Add(ctx, "alice", sampleTx("tx-1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(ctx, "alice", sampleTx("tx-2")); err != nil {
		t.Fatal(err)
	}

	if err := w.HandleMessage(ctx, amqp.NewSyncMessage(amqp.OpSync, "alice", "tx-1")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	txs, err := rs.List(ctx, "alice", nil)
	if err != nil || len(txs) != 1 || txs[0].Base().ID != "tx-1" {
		t.Fatalf("expected tx-1 remotely, got %+v err=%v", txs, err)
	}
	if _, ok := store.Get(ctx, "alice", "tx-1"); ok {
		t.Fatal("synced transaction should be dropped locally")
	}
	if _, ok := store.Get(ctx, "alice", "tx-2"); !ok {
		t.Fatal("other local transactions must be kept")
	}

	// redelivery is a no-op
	if err := w.HandleMessage(ctx, amqp.NewSyncMessage(amqp.OpSync, "alice", "tx-1")); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if backend.Len("alice") != 1 {
		t.Fatalf("redelivery duplicated rows: %d", backend.Len("alice"))
	}
}

func TestHandleSyncRemoteFailureKeepsLocalCopy(t *testing.T) {
	ctx := context.Background()
	w, store, backend, _ := setup(t)
	if err := store.Add(ctx, "alice", sampleTx("tx-1")); err != nil {
		t.Fatal(err)
	}
	backend.Fail("upsert")

	if err := w.HandleMessage(ctx, amqp.NewSyncMessage(amqp.OpSync, "alice", "tx-1")); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if _, ok := store.Get(ctx, "alice", "tx-1"); !ok {
		t.Fatal("local copy must survive a failed sync")
	}
}

func TestHandleSyncUsesOwnersPendingList(t *testing.T) {
	ctx := context.Background()
	w, store, backend, _ := setup(t)
	if err := store.Add(ctx, "alice", sampleTx("tx-1")); err != nil {
		t.Fatal(err)
	}

	// a message naming another identity finds nothing to sync
	if err := w.HandleMessage(ctx, amqp.NewSyncMessage(amqp.OpSync, "bob", "tx-1")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if backend.Len("bob") != 0 {
		t.Fatalf("alice's transaction was uploaded for bob")
	}
	if _, ok := store.Get(ctx, "alice", "tx-1"); !ok {
		t.Fatal("alice's pending copy must be kept")
	}

	if err := w.HandleMessage(ctx, amqp.NewSyncMessage(amqp.OpSync, "alice", "tx-1")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if backend.Len("alice") != 1 {
		t.Fatalf("expected alice's row remotely, have %d", backend.Len("alice"))
	}
}

func TestHandleDelete(t *testing.T) {
	ctx := context.Background()
	w, store, backend, rs := setup(t)
	if err := rs.Insert(ctx, "alice", sampleTx("tx-1")); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkDeleted(ctx, "alice", "tx-1"); err != nil {
		t.Fatal(err)
	}

	backend.Fail("delete")
	if err := w.HandleMessage(ctx, amqp.NewSyncMessage(amqp.OpDelete, "alice", "tx-1")); err == nil {
		t.Fatal("expected error while remote is down")
	}
	if !store.Deleted(ctx, "alice")["tx-1"] {
		t.Fatal("failed replay must keep the local delete marker")
	}
	backend.Recover()
	if err := w.HandleMessage(ctx, amqp.NewSyncMessage(amqp.OpDelete, "alice", "tx-1")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if backend.Len("alice") != 0 {
		t.Fatalf("expected remote row deleted, have %d", backend.Len("alice"))
	}
	if len(store.Deleted(ctx, "alice")) != 0 {
		t.Fatal("replayed delete should clear the local marker")
	}
}

func TestHandleUnknownOperation(t *testing.T) {
	w, _, _, _ := setup(t)
	msg := &amqp.SyncMessage{Operation: "merge", UserID: "alice", TransactionID: "tx-1"}
	if err := w.HandleMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}
