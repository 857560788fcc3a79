package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pocket/internal/core"
	"pocket/internal/metrics"
)

type (
	// Collection is the per-user transaction table. Every call is scoped to one user.
	Collection interface {
		// ListRows returns the user's rows, newest created_at first.
		ListRows(ctx context.Context, userID string) ([]Row, error)
		InsertRow(ctx context.Context, row Row) error
		DeleteRow(ctx context.Context, userID, id string) error
		// UpsertRows inserts rows or replaces those whose id already exists.
		UpsertRows(ctx context.Context, rows []Row) error
	}

	// AccountStore is the per-user account registry table.
	AccountStore interface {
		ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
		ReplaceAccounts(ctx context.Context, userID string, accounts []core.Account) error
	}

	// Backend is a complete remote store.
	Backend interface {
		Collection
		AccountStore
		Ping(ctx context.Context) error
	}
)

// Error wraps any failure talking to the remote store.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("remote %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// IsRemote reports whether err came from the remote store.
func IsRemote(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

// Store translates between transactions and rows and records each call.
type Store struct {
	backend Backend
	now     func() time.Time
}

// NewStore wraps backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend, now: time.Now}
}

func (s *Store) observe(op string, err error, timer *prometheus.Timer) error {
	timer.ObserveDuration()
	metrics.RemoteRequests.WithLabelValues(op, metrics.Status(err)).Inc()
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	return nil
}

func timer(op string) *prometheus.Timer {
	return prometheus.NewTimer(metrics.RemoteLatency.WithLabelValues(op))
}

// List returns the user's transactions newest first. Rows of unknown type are
// skipped; accounts missing from a row default to the first entries of defaults.
func (s *Store) List(ctx context.Context, userID string, defaults []string) ([]core.Transaction, error) {
	t := timer("list")
	rows, err := s.backend.ListRows(ctx, userID)
	if err := s.observe("list", err, t); err != nil {
		return nil, err
	}
	now := s.now()
	txs := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := FromRow(r, defaults, now)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable remote row", "tx_id", r.ID, "error", err)
			continue
		}
		txs = append(txs, tx)
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Base().CreatedAt.After(txs[j].Base().CreatedAt)
	})
	return txs, nil
}

// Insert stores a single transaction.
func (s *Store) Insert(ctx context.Context, userID string, tx core.Transaction) error {
	t := timer("insert")
	return s.observe("insert", s.backend.InsertRow(ctx, ToRow(userID, tx)), t)
}

// DeleteByID removes the user's transaction with id.
func (s *Store) DeleteByID(ctx context.Context, userID, id string) error {
	t := timer("delete")
	return s.observe("delete", s.backend.DeleteRow(ctx, userID, id), t)
}

// Upsert stores txs keyed by id, so repeating it never duplicates rows.
func (s *Store) Upsert(ctx context.Context, userID string, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	rows := make([]Row, len(txs))
	for i, tx := range txs {
		rows[i] = ToRow(userID, tx)
	}
	t := timer("upsert")
	return s.observe("upsert", s.backend.UpsertRows(ctx, rows), t)
}

// Accounts returns the user's account registry.
func (s *Store) Accounts(ctx context.Context, userID string) (*core.Registry, error) {
	t := timer("list_accounts")
	accounts, err := s.backend.ListAccounts(ctx, userID)
	if err := s.observe("list_accounts", err, t); err != nil {
		return nil, err
	}
	return core.NewRegistry(accounts), nil
}

// SaveAccounts replaces the user's account registry.
func (s *Store) SaveAccounts(ctx context.Context, userID string, reg *core.Registry) error {
	t := timer("save_accounts")
	return s.observe("save_accounts", s.backend.ReplaceAccounts(ctx, userID, reg.Accounts()), t)
}

// Ping checks the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	t := timer("ping")
	return s.observe("ping", s.backend.Ping(ctx), t)
}
