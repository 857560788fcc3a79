package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"pocket/internal/core"
	"pocket/internal/storage"
)

// Pending holds a signed-in identity's writes that only reached this device
// while the remote store was unreachable. Each identity has its own list of
// saved transactions and its own set of deleted ids awaiting replay. Neither
// is part of the signed-out list, so migration never sees them.
type Pending struct {
	kv storage.KV
}

// NewPending returns Pending over kv.
func NewPending(kv storage.KV) *Pending {
	return &Pending{kv: kv}
}

func (p *Pending) list(userID string) *Store {
	return &Store{kv: p.kv, key: pendingPrefix + userID}
}

// Load returns userID's pending transactions newest first.
func (p *Pending) Load(ctx context.Context, userID string) []core.Transaction {
	return p.list(userID).Load(ctx)
}

// Add prepends tx to userID's pending list.
func (p *Pending) Add(ctx context.Context, userID string, tx core.Transaction) error {
	return p.list(userID).Add(ctx, tx)
}

// Get returns userID's pending transaction with id.
func (p *Pending) Get(ctx context.Context, userID, id string) (core.Transaction, bool) {
	return p.list(userID).Get(ctx, id)
}

// DeleteByID drops id from userID's pending list.
func (p *Pending) DeleteByID(ctx context.Context, userID, id string) (int, error) {
	return p.list(userID).DeleteByID(ctx, id)
}

// MarkDeleted records that id was deleted on this device and still has to be
// deleted remotely.
func (p *Pending) MarkDeleted(ctx context.Context, userID, id string) error {
	return p.updateDeleted(ctx, userID, func(ids []string) []string {
		if slices.Contains(ids, id) {
			return ids
		}
		return append(ids, id)
	})
}

// ClearDeleted forgets id once its remote delete went through.
func (p *Pending) ClearDeleted(ctx context.Context, userID, id string) error {
	return p.updateDeleted(ctx, userID, func(ids []string) []string {
		return slices.DeleteFunc(ids, func(v string) bool { return v == id })
	})
}

// Deleted returns the ids deleted on this device and not yet deleted remotely.
func (p *Pending) Deleted(ctx context.Context, userID string) map[string]bool {
	var ids []string
	if !loadJSON(ctx, p.kv, deletedPrefix+userID, &ids) {
		return nil
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func (p *Pending) updateDeleted(ctx context.Context, userID string, fn func([]string) []string) error {
	key := deletedPrefix + userID
	err := p.kv.Update(ctx, key, func(raw string, ok bool) (string, error) {
		var ids []string
		if ok {
			if err := json.Unmarshal([]byte(raw), &ids); err != nil {
				slog.WarnContext(ctx, "Local value malformed, ignoring", "key", key, "error", err)
				ids = nil
			}
		}
		data, err := json.Marshal(fn(ids))
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", key, err)
		}
		return string(data), nil
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}
