// Package memory is an in-process remote backend for tests and local development.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"pocket/internal/core"
	"pocket/internal/remote"
)

// ErrUnavailable is returned by every call while the backend is set to fail.
var ErrUnavailable = errors.New("remote unavailable")

var _ remote.Backend = (*Backend)(nil)

// Backend keeps rows and accounts per user in memory. Values are copied in and out.
type Backend struct {
	mu       sync.RWMutex
	rows     map[string]map[string]remote.Row
	order    map[string][]string
	accounts map[string][]core.Account
	fail     map[string]bool
	calls    map[string]int
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		rows:     make(map[string]map[string]remote.Row),
		order:    make(map[string][]string),
		accounts: make(map[string][]core.Account),
		fail:     make(map[string]bool),
		calls:    make(map[string]int),
	}
}

// Fail makes the named operations ("list", "insert", "delete", "upsert",
// "list_accounts", "replace_accounts", "ping") return ErrUnavailable.
// With no names every operation fails.
func (b *Backend) Fail(ops ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(ops) == 0 {
		ops = []string{"list", "insert", "delete", "upsert", "list_accounts", "replace_accounts", "ping"}
	}
	for _, op := range ops {
		b.fail[op] = true
	}
}

// Recover clears all injected failures.
func (b *Backend) Recover() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = make(map[string]bool)
}

func (b *Backend) enter(op string) error {
	b.calls[op]++
	if b.fail[op] {
		return ErrUnavailable
	}
	return nil
}

// Calls returns how many times op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.calls[op]
}

// Len returns how many rows userID has.
func (b *Backend) Len(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rows[userID])
}

func (b *Backend) ListRows(_ context.Context, userID string) ([]remote.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("list"); err != nil {
		return nil, err
	}
	out := make([]remote.Row, 0, len(b.rows[userID]))
	for _, id := range b.order[userID] {
		out = append(out, b.rows[userID][id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (b *Backend) put(r remote.Row) {
	if b.rows[r.UserID] == nil {
		b.rows[r.UserID] = make(map[string]remote.Row)
	}
	if _, ok := b.rows[r.UserID][r.ID]; !ok {
		b.order[r.UserID] = append(b.order[r.UserID], r.ID)
	}
	b.rows[r.UserID][r.ID] = r
}

func (b *Backend) InsertRow(_ context.Context, r remote.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("insert"); err != nil {
		return err
	}
	if _, exists := b.rows[r.UserID][r.ID]; exists {
		return errors.New("duplicate key value violates unique constraint")
	}
	b.put(r)
	return nil
}

func (b *Backend) DeleteRow(_ context.Context, userID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("delete"); err != nil {
		return err
	}
	if _, ok := b.rows[userID][id]; !ok {
		return nil
	}
	delete(b.rows[userID], id)
	order := b.order[userID]
	for i, v := range order {
		if v == id {
			b.order[userID] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	return nil
}

func (b *Backend) UpsertRows(_ context.Context, rows []remote.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("upsert"); err != nil {
		return err
	}
	for _, r := range rows {
		b.put(r)
	}
	return nil
}

func (b *Backend) ListAccounts(_ context.Context, userID string) ([]core.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("list_accounts"); err != nil {
		return nil, err
	}
	return append([]core.Account(nil), b.accounts[userID]...), nil
}

func (b *Backend) ReplaceAccounts(_ context.Context, userID string, accounts []core.Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("replace_accounts"); err != nil {
		return err
	}
	b.accounts[userID] = append([]core.Account(nil), accounts...)
	return nil
}

func (b *Backend) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enter("ping")
}
