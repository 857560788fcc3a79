package local

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"pocket/internal/core"
	"pocket/internal/storage"
)

func sample() []core.Transaction {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return []core.Transaction{
		core.Expense{Meta: core.Meta{ID: "b", Amount: 20, Note: "lunch", Date: "2024-03-02", CreatedAt: at.Add(time.Hour)}, Account: "Main", Category: "Food"},
		core.Income{Meta: core.Meta{ID: "a", Amount: 100, Date: "2024-03-01", CreatedAt: at}, Account: "Main", Category: "Salary"},
		core.Transfer{Meta: core.Meta{ID: "c", Amount: 5, Date: "2024-03-01", CreatedAt: at}, From: "Main", To: "Uni"},
	}
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Base().ID
	}
	return out
}

type failingKV struct{ storage.KV }

func (failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk gone")
}

func TestLoadFailsSoft(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"not json":     "{{{",
		"not an array": `{"id":"a"}`,
		"unknown type": `[{"id":"a","type":"loan","amount":1,"date":"2024-03-01"}]`,
		"null":         "null",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			kv := storage.NewMemoryKV()
			kv.Set(ctx, TransactionsKey, raw)
			if got := NewStore(kv).Load(ctx); len(got) != 0 {
				t.Fatalf("expected empty list, got %v", got)
			}
		})
	}
	if got := NewStore(failingKV{storage.NewMemoryKV()}).Load(ctx); len(got) != 0 {
		t.Fatalf("expected empty list on read failure, got %v", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := NewStore(kv)
	if err := s.Save(ctx, sample()); err != nil {
		t.Fatal(err)
	}
	before, _, _ := kv.Get(ctx, TransactionsKey)

	if err := s.Save(ctx, s.Load(ctx)); err != nil {
		t.Fatal(err)
	}
	after, _, _ := kv.Get(ctx, TransactionsKey)
	if before != after {
		t.Fatalf("save(load()) changed stored data:\n%s\n%s", before, after)
	}
	if got := ids(s.Load(ctx)); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("order not preserved: %v", got)
	}
}

func TestAddPrependsAndDeleteByID(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryKV())
	for i := len(sample()) - 1; i >= 0; i-- {
		if err := s.Add(ctx, sample()[i]); err != nil {
			t.Fatal(err)
		}
	}
	if got := ids(s.Load(ctx)); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("expected newest first, got %v", got)
	}

	n, err := s.DeleteByID(ctx, "a")
	if err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	got := s.Load(ctx)
	if !reflect.DeepEqual(ids(got), []string{"b", "c"}) {
		t.Fatalf("unexpected remaining %v", ids(got))
	}
	want := sample()
	if !reflect.DeepEqual(core.ToRecord(got[0]), core.ToRecord(want[0])) || !reflect.DeepEqual(core.ToRecord(got[1]), core.ToRecord(want[2])) {
		t.Fatalf("remaining entries changed")
	}
	if n, _ := s.DeleteByID(ctx, "missing"); n != 0 {
		t.Fatalf("expected nothing removed, got %d", n)
	}
	if _, ok := s.Get(ctx, "c"); !ok {
		t.Fatalf("expected c to be found")
	}
}

func TestConcurrentWritersKeepEveryAdd(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pocket.db")
	serverKV, err := storage.NewSQLiteKV(path)
	if err != nil {
		t.Fatal(err)
	}
	defer serverKV.Close()
	workerKV, err := storage.NewSQLiteKV(path)
	if err != nil {
		t.Fatal(err)
	}
	defer workerKV.Close()

	server, worker := NewPending(serverKV), NewPending(workerKV)
	const n = 20
	for i := range n {
		if err := server.Add(ctx, "alice", core.Income{Meta: core.Meta{ID: fmt.Sprintf("synced-%d", i), Amount: 1, Date: "2024-03-01"}, Account: "Main"}); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := worker.DeleteByID(ctx, "alice", fmt.Sprintf("synced-%d", i)); err != nil {
				t.Errorf("delete: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := server.Add(ctx, "alice", core.Income{Meta: core.Meta{ID: fmt.Sprintf("new-%d", i), Amount: 1, Date: "2024-03-01"}, Account: "Main"}); err != nil {
				t.Errorf("add: %v", err)
			}
		}()
	}
	wg.Wait()

	got := server.Load(ctx, "alice")
	if len(got) != n {
		t.Fatalf("expected %d pending transactions, got %v", n, ids(got))
	}
	for i := range n {
		if _, ok := server.Get(ctx, "alice", fmt.Sprintf("new-%d", i)); !ok {
			t.Fatalf("new-%d was lost", i)
		}
	}
}

func TestPendingIsPerIdentity(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	p := NewPending(kv)
	tx := sample()[0]
	if err := p.Add(ctx, "alice", tx); err != nil {
		t.Fatal(err)
	}

	if _, ok := p.Get(ctx, "alice", "b"); !ok {
		t.Fatal("alice's pending transaction not found")
	}
	if _, ok := p.Get(ctx, "bob", "b"); ok {
		t.Fatal("bob must not see alice's pending transaction")
	}
	if got := NewStore(kv).Load(ctx); len(got) != 0 {
		t.Fatalf("pending writes must stay out of the signed-out list, got %v", ids(got))
	}

	if err := p.MarkDeleted(ctx, "alice", "x"); err != nil {
		t.Fatal(err)
	}
	if err := p.MarkDeleted(ctx, "alice", "x"); err != nil {
		t.Fatal(err)
	}
	if d := p.Deleted(ctx, "alice"); len(d) != 1 || !d["x"] {
		t.Fatalf("unexpected deleted set %v", d)
	}
	if d := p.Deleted(ctx, "bob"); len(d) != 0 {
		t.Fatalf("deleted ids must be per identity, got %v", d)
	}
	if err := p.ClearDeleted(ctx, "alice", "x"); err != nil {
		t.Fatal(err)
	}
	if d := p.Deleted(ctx, "alice"); len(d) != 0 {
		t.Fatalf("expected empty deleted set, got %v", d)
	}
}

func TestFlags(t *testing.T) {
	ctx := context.Background()
	f := NewFlags(storage.NewMemoryKV())
	if done, err := f.Migrated(ctx, "u1"); err != nil || done {
		t.Fatalf("absent flag must read false, got %v %v", done, err)
	}
	if err := f.MarkMigrated(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if done, _ := f.Migrated(ctx, "u1"); !done {
		t.Fatalf("flag not persisted")
	}
	if done, _ := f.Migrated(ctx, "u2"); done {
		t.Fatalf("flags must be per identity")
	}
}

func TestRulesAndAccounts(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	rules := NewRules(kv)
	if got := rules.List(ctx); got != nil {
		t.Fatalf("expected no rules, got %v", got)
	}
	want := []core.CategoryRule{{ID: "1", Keyword: "uber", Category: "Transport"}}
	if err := rules.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	if got := rules.List(ctx); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	kv.Set(ctx, AccountsKey, "[1,2]")
	if got := NewAccounts(kv).List(ctx); got != nil {
		t.Fatalf("malformed accounts should read as none, got %v", got)
	}
}
