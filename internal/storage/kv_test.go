package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
)

func testKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, "a", "2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, ok, err := kv.Get(ctx, "a"); err != nil || !ok || v != "2" {
		t.Fatalf("expected 2, got %q ok=%v err=%v", v, ok, err)
	}
	if err := kv.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := kv.Delete(ctx, "a"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "a"); ok {
		t.Fatalf("key should be gone")
	}

	err := kv.Update(ctx, "n", func(v string, ok bool) (string, error) {
		if ok || v != "" {
			t.Fatalf("absent key passed as %q ok=%v", v, ok)
		}
		return "1", nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	boom := errors.New("boom")
	if err := kv.Update(ctx, "n", func(string, bool) (string, error) { return "x", boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if v, _, _ := kv.Get(ctx, "n"); v != "1" {
		t.Fatalf("failed update must not write, got %q", v)
	}
}

// increment bumps the counter under key n times from each of the given stores concurrently.
func increment(t *testing.T, stores []KV, n int) {
	t.Helper()
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, len(stores)*n)
	for _, kv := range stores {
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- kv.Update(ctx, "counter", func(v string, ok bool) (string, error) {
					cur := 0
					if ok {
						cur, _ = strconv.Atoi(v)
					}
					return strconv.Itoa(cur + 1), nil
				})
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	want := strconv.Itoa(len(stores) * n)
	if v, _, _ := stores[0].Get(ctx, "counter"); v != want {
		t.Fatalf("lost updates: counter=%s want %s", v, want)
	}
}

func TestMemoryKV(t *testing.T) {
	testKV(t, NewMemoryKV())
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pocket.db")
	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	testKV(t, kv)

	if err := kv.Set(context.Background(), "persist", "yes"); err != nil {
		t.Fatal(err)
	}
	kv.Close()

	reopened, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if v, ok, _ := reopened.Get(context.Background(), "persist"); !ok || v != "yes" {
		t.Fatalf("value did not survive reopen: %q %v", v, ok)
	}
}

func TestUpdateIsAtomic(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		increment(t, []KV{NewMemoryKV()}, 50)
	})

	t.Run("sqlite shared by two handles", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pocket.db")
		server, err := NewSQLiteKV(path)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer server.Close()
		worker, err := NewSQLiteKV(path)
		if err != nil {
			t.Fatalf("open second handle: %v", err)
		}
		defer worker.Close()
		increment(t, []KV{server, worker}, 25)
	})
}

func TestSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pocket.db")
	if v, _, err := SchemaVersion(path); err != nil || v != 0 {
		t.Fatalf("fresh database should be at version 0, got %d err=%v", v, err)
	}

	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	kv.Close()

	v, dirty, err := SchemaVersion(path)
	if err != nil || v != 1 || dirty {
		t.Fatalf("expected clean version 1, got %d dirty=%v err=%v", v, dirty, err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("re-running migrations should be a no-op: %v", err)
	}
}
