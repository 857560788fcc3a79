// Package migration copies signed-out transactions to the remote store the
// first time an identity becomes active.
package migration

import (
	"context"
	"fmt"

	"pocket/internal/core"
	"pocket/internal/log"
	"pocket/internal/metrics"
)

// State is the outcome of one protocol run.
type State string

const (
	Unchecked State = "unchecked"
	NotNeeded State = "not_needed"
	Migrated  State = "migrated"
)

type (
	// LocalSource is the signed-out transaction list.
	LocalSource interface {
		Load(ctx context.Context) []core.Transaction
	}

	// FlagStore holds the per-identity "already reconciled" flag.
	FlagStore interface {
		Migrated(ctx context.Context, userID string) (bool, error)
		MarkMigrated(ctx context.Context, userID string) error
	}

	// RemoteTarget is the identity's remote transaction collection.
	RemoteTarget interface {
		List(ctx context.Context, userID string, defaults []string) ([]core.Transaction, error)
		Upsert(ctx context.Context, userID string, txs []core.Transaction) error
	}
)

// Error reports a failed run. The flag is left unset so the next activation retries.
type Error struct {
	UserID string
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("migrate %s: %v", e.UserID, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Protocol reconciles local data with the remote store once per identity.
type Protocol struct {
	local  LocalSource
	flags  FlagStore
	remote RemoteTarget
	logger *log.Logger
}

// New builds a Protocol.
func New(local LocalSource, flags FlagStore, remote RemoteTarget, logger *log.Logger) *Protocol {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Protocol{local: local, flags: flags, remote: remote, logger: logger.WithComponent(log.ComponentMigration)}
}

// Run evaluates the protocol for userID:
//
//  1. flag already set: Migrated, nothing else happens
//  2. local list empty: set flag, NotNeeded
//  3. remote already has rows: set flag, NotNeeded; local rows are not merged
//  4. otherwise upsert every local row by id and set the flag: Migrated
//
// Any failure returns Unchecked and an *Error without touching the flag.
// Repeating a successful run is a no-op; repeating a failed one is safe
// because rows are upserted by id.
func (p *Protocol) Run(ctx context.Context, userID string) (State, error) {
	state, err := p.run(ctx, userID)
	metrics.Migrations.WithLabelValues(string(state)).Inc()
	if err != nil {
		p.logger.ErrorContext(ctx, "Migration failed", log.FieldUserID, userID, log.FieldError, err)
		return Unchecked, &Error{UserID: userID, Err: err}
	}
	return state, nil
}

func (p *Protocol) run(ctx context.Context, userID string) (State, error) {
	done, err := p.flags.Migrated(ctx, userID)
	if err != nil {
		return Unchecked, err
	}
	if done {
		return Migrated, nil
	}

	txs := p.local.Load(ctx)
	if len(txs) == 0 {
		return p.finish(ctx, userID, NotNeeded)
	}

	existing, err := p.remote.List(ctx, userID, nil)
	if err != nil {
		return Unchecked, fmt.Errorf("list remote: %w", err)
	}
	if len(existing) > 0 {
		p.logger.WarnContext(ctx, "Remote already seeded, local transactions not migrated",
			log.FieldUserID, userID, log.FieldCount, len(txs))
		return p.finish(ctx, userID, NotNeeded)
	}

	if err := p.remote.Upsert(ctx, userID, txs); err != nil {
		return Unchecked, fmt.Errorf("upsert local transactions: %w", err)
	}
	p.logger.InfoContext(ctx, "Local transactions migrated", log.FieldUserID, userID, log.FieldCount, len(txs))
	return p.finish(ctx, userID, Migrated)
}

func (p *Protocol) finish(ctx context.Context, userID string, state State) (State, error) {
	if err := p.flags.MarkMigrated(ctx, userID); err != nil {
		return Unchecked, err
	}
	return state, nil
}
