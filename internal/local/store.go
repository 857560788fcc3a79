// Package local keeps signed-out data in the on-device key-value namespace.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"pocket/internal/core"
	"pocket/internal/storage"
)

const (
	TransactionsKey = "pocket.txs"
	RulesKey        = "pocket.rules"
	AccountsKey     = "pocket.accounts"
	migratedPrefix  = "pocket.migrated."
	pendingPrefix   = "pocket.pending.txs."
	deletedPrefix   = "pocket.pending.deleted."
)

// Store is a transaction list kept newest-first under one key. Add and
// DeleteByID are atomic against other writers of the same key.
type Store struct {
	kv  storage.KV
	key string
}

// NewStore returns the signed-out list stored under TransactionsKey.
func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv, key: TransactionsKey}
}

// Load returns the stored list. Missing, unreadable or malformed data yields
// an empty list.
func (s *Store) Load(ctx context.Context) []core.Transaction {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		slog.WarnContext(ctx, "Local transactions unreadable", "key", s.key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return decode(ctx, s.key, raw)
}

func decode(ctx context.Context, key, raw string) []core.Transaction {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var records []core.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		slog.WarnContext(ctx, "Local transactions malformed, treating as empty", "key", key, "error", err)
		return nil
	}
	txs := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		tx, err := r.Transaction()
		if err != nil {
			slog.WarnContext(ctx, "Local transactions malformed, treating as empty", "key", key, "error", err)
			return nil
		}
		txs = append(txs, tx)
	}
	return txs
}

func encode(txs []core.Transaction) (string, error) {
	records := make([]core.Record, len(txs))
	for i, tx := range txs {
		records[i] = core.ToRecord(tx)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode transactions: %w", err)
	}
	return string(data), nil
}

// Save replaces the stored list with txs.
func (s *Store) Save(ctx context.Context, txs []core.Transaction) error {
	data, err := encode(txs)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, fn func([]core.Transaction) []core.Transaction) error {
	err := s.kv.Update(ctx, s.key, func(raw string, ok bool) (string, error) {
		var txs []core.Transaction
		if ok {
			txs = decode(ctx, s.key, raw)
		}
		return encode(fn(txs))
	})
	if err != nil {
		return fmt.Errorf("update transactions: %w", err)
	}
	return nil
}

// Add prepends tx.
func (s *Store) Add(ctx context.Context, tx core.Transaction) error {
	return s.update(ctx, func(txs []core.Transaction) []core.Transaction {
		return append([]core.Transaction{tx}, txs...)
	})
}

// DeleteByID removes every entry with id and reports how many were removed.
func (s *Store) DeleteByID(ctx context.Context, id string) (int, error) {
	var removed int
	err := s.update(ctx, func(txs []core.Transaction) []core.Transaction {
		kept := txs[:0:0]
		for _, tx := range txs {
			if tx.Base().ID != id {
				kept = append(kept, tx)
			}
		}
		removed = len(txs) - len(kept)
		return kept
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Get returns the transaction with id.
func (s *Store) Get(ctx context.Context, id string) (core.Transaction, bool) {
	for _, tx := range s.Load(ctx) {
		if tx.Base().ID == id {
			return tx, true
		}
	}
	return nil, false
}
