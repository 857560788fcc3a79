package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"pocket/internal/core"
	"pocket/internal/storage"
)

// Rules persists the category rule list in order.
type Rules struct {
	kv storage.KV
}

// NewRules returns Rules over kv.
func NewRules(kv storage.KV) *Rules {
	return &Rules{kv: kv}
}

// List returns the stored rules, or none when the stored value is unreadable.
func (r *Rules) List(ctx context.Context) []core.CategoryRule {
	var rules []core.CategoryRule
	if !loadJSON(ctx, r.kv, RulesKey, &rules) {
		return nil
	}
	return rules
}

// Save replaces the stored rules.
func (r *Rules) Save(ctx context.Context, rules []core.CategoryRule) error {
	return saveJSON(ctx, r.kv, RulesKey, rules)
}

// Accounts persists the signed-out account registry.
type Accounts struct {
	kv storage.KV
}

// NewAccounts returns Accounts over kv.
func NewAccounts(kv storage.KV) *Accounts {
	return &Accounts{kv: kv}
}

// List returns the stored accounts.
func (a *Accounts) List(ctx context.Context) []core.Account {
	var accounts []core.Account
	if !loadJSON(ctx, a.kv, AccountsKey, &accounts) {
		return nil
	}
	return accounts
}

// Save replaces the stored accounts.
func (a *Accounts) Save(ctx context.Context, accounts []core.Account) error {
	return saveJSON(ctx, a.kv, AccountsKey, accounts)
}

func loadJSON(ctx context.Context, kv storage.KV, key string, dst any) bool {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Local value unreadable", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		slog.WarnContext(ctx, "Local value malformed, ignoring", "key", key, "error", err)
		return false
	}
	return true
}

func saveJSON(ctx context.Context, kv storage.KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
