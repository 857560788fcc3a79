package local

import (
	"context"
	"fmt"

	"pocket/internal/storage"
)

// Flags records, per identity, that local data has been reconciled with the
// remote store. An absent flag means false; a set flag is never cleared.
type Flags struct {
	kv storage.KV
}

// NewFlags returns Flags over kv.
func NewFlags(kv storage.KV) *Flags {
	return &Flags{kv: kv}
}

func flagKey(userID string) string { return migratedPrefix + userID }

// Migrated reports whether the flag for userID is set.
func (f *Flags) Migrated(ctx context.Context, userID string) (bool, error) {
	v, ok, err := f.kv.Get(ctx, flagKey(userID))
	if err != nil {
		return false, fmt.Errorf("read migration flag: %w", err)
	}
	return ok && v == "1", nil
}

// MarkMigrated sets the flag for userID.
func (f *Flags) MarkMigrated(ctx context.Context, userID string) error {
	if err := f.kv.Set(ctx, flagKey(userID), "1"); err != nil {
		return fmt.Errorf("write migration flag: %w", err)
	}
	return nil
}
