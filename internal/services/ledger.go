package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pocket/internal/amqp"
	"pocket/internal/cache"
	"pocket/internal/core"
	"pocket/internal/local"
	"pocket/internal/log"
	"pocket/internal/metrics"
	"pocket/internal/migration"
	"pocket/internal/remote"
	"pocket/internal/storage"
)

// Source names the store that served a result.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Warnings surfaced when a remote failure was absorbed by local storage.
const (
	WarnReadFallback   = "Remote store unavailable, showing data saved on this device"
	WarnWriteFallback  = "Remote store unavailable, saved on this device only"
	WarnDeleteFallback = "Remote store unavailable, deleted on this device only"
)

const defaultRemoteTimeout = 7 * time.Second

var (
	ErrMissingID    = errors.New("missing transaction id")
	ErrRuleNotFound = errors.New("category rule not found")
)

type (
	// TransactionsResult is a transaction list with the store it came from.
	TransactionsResult struct {
		Transactions []core.Transaction
		Source       Source
		Warning      string
	}

	// WriteResult reports where a create or delete landed.
	WriteResult struct {
		Transaction core.Transaction
		Source      Source
		Warning     string
	}

	// SummaryResult is an aggregation with the store its input came from.
	SummaryResult struct {
		core.Summary
		Source  Source
		Warning string
	}
)

// Dependencies wires a LedgerService. Remote, Publisher and Summaries are optional.
type Dependencies struct {
	KV        storage.KV
	Remote    *remote.Store
	Publisher amqp.Publisher
	Summaries cache.Cache[core.Summary]
	Builder   core.Builder
	Timeout   time.Duration
	Logger    *log.Logger
}

// LedgerService serves one identity at a time from exactly one store: the local
// store when the identity is empty, the remote store otherwise. Remote write
// failures degrade to the identity's pending list on the device with a warning.
type LedgerService struct {
	local     *local.Store
	pending   *local.Pending
	accounts  *local.Accounts
	rules     *local.Rules
	remote    *remote.Store
	migrator  *migration.Protocol
	publisher amqp.Publisher
	summaries cache.Cache[core.Summary]
	builder   core.Builder
	timeout   time.Duration
	logger    *log.Logger

	// serializes account registry and rule edits on the device
	localMu sync.Mutex

	activations singleflight.Group
	activeMu    sync.RWMutex
	active      map[string]bool
}

func NewLedgerService(deps Dependencies) *LedgerService {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	kv := deps.KV
	if kv == nil {
		kv = storage.NewMemoryKV()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}

	s := &LedgerService{
		local:     local.NewStore(kv),
		pending:   local.NewPending(kv),
		accounts:  local.NewAccounts(kv),
		rules:     local.NewRules(kv),
		remote:    deps.Remote,
		publisher: deps.Publisher,
		summaries: deps.Summaries,
		builder:   deps.Builder,
		timeout:   timeout,
		logger:    logger.WithComponent(log.ComponentLedger),
		active:    make(map[string]bool),
	}
	if deps.Remote != nil {
		s.migrator = migration.New(s.local, local.NewFlags(kv), deps.Remote, logger)
	}
	return s
}

// RemoteEnabled reports whether signed-in identities are served remotely.
func (s *LedgerService) RemoteEnabled() bool { return s.remote != nil }

func (s *LedgerService) useRemote(userID string) bool {
	return s.remote != nil && userID != ""
}

func (s *LedgerService) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Activate runs the migration protocol for userID once per process. A failed
// run is logged and retried on the next activation; it never fails the caller.
// Concurrent activations of one identity share a single run, and identities
// already active never wait on another identity's run.
func (s *LedgerService) Activate(ctx context.Context, userID string) {
	if !s.useRemote(userID) || s.isActive(userID) {
		return
	}

	_, _, _ = s.activations.Do(userID, func() (any, error) {
		if s.isActive(userID) {
			return nil, nil
		}
		rctx, cancel := s.remoteCtx(ctx)
		defer cancel()
		state, err := s.migrator.Run(rctx, userID)
		if err != nil {
			// already logged by the protocol
			return nil, err
		}
		s.activeMu.Lock()
		s.active[userID] = true
		s.activeMu.Unlock()
		if state == migration.Migrated {
			s.invalidate(userID)
		}
		s.logger.DebugContext(ctx, "Identity activated", log.FieldUserID, userID, "state", state)
		return nil, nil
	})
}

func (s *LedgerService) isActive(userID string) bool {
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()
	return s.active[userID]
}

// List returns the identity's transactions newest first.
func (s *LedgerService) List(ctx context.Context, userID string) TransactionsResult {
	res, _ := s.list(ctx, userID)
	return res
}

func (s *LedgerService) list(ctx context.Context, userID string) (TransactionsResult, *core.Registry) {
	if !s.useRemote(userID) {
		reg, _, _ := s.registry(ctx, userID)
		return TransactionsResult{Transactions: s.local.Load(ctx), Source: SourceLocal}, reg
	}
	s.Activate(ctx, userID)

	reg, _, _ := s.registry(ctx, userID)
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	pending := s.pending.Load(ctx, userID)
	txs, err := s.remote.List(rctx, userID, reg.Names())
	if err != nil {
		s.fallback(ctx, log.OpList, userID, err)
		return TransactionsResult{Transactions: pending, Source: SourceLocal, Warning: WarnReadFallback}, reg
	}
	return TransactionsResult{Transactions: overlay(txs, pending, s.pending.Deleted(ctx, userID)), Source: SourceRemote}, reg
}

// overlay merges device-only writes into the remote list: pending rows not yet
// uploaded are added, and ids deleted on the device are hidden. The result is
// newest first.
func overlay(listed, pending []core.Transaction, deleted map[string]bool) []core.Transaction {
	if len(pending) == 0 && len(deleted) == 0 {
		return listed
	}
	seen := make(map[string]bool, len(listed))
	out := make([]core.Transaction, 0, len(listed)+len(pending))
	for _, tx := range listed {
		id := tx.Base().ID
		seen[id] = true
		if !deleted[id] {
			out = append(out, tx)
		}
	}
	for _, tx := range pending {
		if id := tx.Base().ID; !seen[id] && !deleted[id] {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Base().CreatedAt.After(out[j].Base().CreatedAt)
	})
	return out
}

// Create validates in, applies category rules and stores the new transaction.
// Every account it references must be in the identity's registry.
func (s *LedgerService) Create(ctx context.Context, userID string, in core.Input) (WriteResult, error) {
	if in.Kind != core.KindTransfer && strings.TrimSpace(in.Category) == "" {
		if cat, ok := core.MatchCategory(s.rules.List(ctx), in.Note); ok {
			in.Category = cat
		}
	}
	tx, err := s.builder.NewTransaction(in)
	if err != nil {
		return WriteResult{}, err
	}

	reg, _, err := s.registry(ctx, userID)
	if err != nil {
		return WriteResult{}, err
	}
	if tx, err = reg.Resolve(tx); err != nil {
		return WriteResult{}, err
	}

	defer s.invalidate(userID)

	if !s.useRemote(userID) {
		if err := s.local.Add(ctx, tx); err != nil {
			return WriteResult{}, fmt.Errorf("save transaction locally: %w", err)
		}
		s.logCreated(ctx, userID, tx, SourceLocal)
		return WriteResult{Transaction: tx, Source: SourceLocal}, nil
	}

	s.Activate(ctx, userID)
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	if err := s.remote.Insert(rctx, userID, tx); err != nil {
		s.fallback(ctx, log.OpCreate, userID, err)
		if err := s.pending.Add(ctx, userID, tx); err != nil {
			return WriteResult{}, fmt.Errorf("save transaction locally: %w", err)
		}
		s.publish(ctx, amqp.NewSyncMessage(amqp.OpSync, userID, tx.Base().ID))
		return WriteResult{Transaction: tx, Source: SourceLocal, Warning: WarnWriteFallback}, nil
	}
	s.logCreated(ctx, userID, tx, SourceRemote)
	return WriteResult{Transaction: tx, Source: SourceRemote}, nil
}

// Delete removes the transaction with id. Deleting an unknown id succeeds.
func (s *LedgerService) Delete(ctx context.Context, userID, id string) (WriteResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return WriteResult{}, ErrMissingID
	}
	defer s.invalidate(userID)

	if !s.useRemote(userID) {
		if _, err := s.local.DeleteByID(ctx, id); err != nil {
			return WriteResult{}, fmt.Errorf("delete transaction locally: %w", err)
		}
		return WriteResult{Source: SourceLocal}, nil
	}

	s.Activate(ctx, userID)
	// a copy that never reached the remote store goes either way
	if _, err := s.pending.DeleteByID(ctx, userID, id); err != nil {
		return WriteResult{}, fmt.Errorf("delete transaction locally: %w", err)
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	if err := s.remote.DeleteByID(rctx, userID, id); err != nil {
		s.fallback(ctx, log.OpDelete, userID, err)
		if err := s.pending.MarkDeleted(ctx, userID, id); err != nil {
			return WriteResult{}, fmt.Errorf("record delete locally: %w", err)
		}
		s.publish(ctx, amqp.NewSyncMessage(amqp.OpDelete, userID, id))
		return WriteResult{Source: SourceLocal, Warning: WarnDeleteFallback}, nil
	}
	fields := log.NewFields().WithOperation(log.OpDelete).WithUser(userID)
	fields[log.FieldTxID] = id
	fields[log.FieldSource] = SourceRemote
	s.logger.InfoContext(ctx, "Transaction deleted", fields.ToSlice()...)
	return WriteResult{Source: SourceRemote}, nil
}

// Summary aggregates month for the account filter. Results served without a
// warning are cached until the identity's next write.
func (s *LedgerService) Summary(ctx context.Context, userID, month, account string) (SummaryResult, error) {
	month = strings.TrimSpace(month)
	if !core.ValidMonth(month) {
		return SummaryResult{}, fmt.Errorf("month %q: %w", month, core.ErrInvalidDate)
	}
	account = strings.TrimSpace(account)
	if account == "" {
		account = core.AllAccounts
	}

	key := summaryKey(userID, month, account)
	if s.summaries != nil {
		if sum, ok := s.summaries.Get(key); ok {
			return SummaryResult{Summary: sum, Source: s.sourceFor(userID)}, nil
		}
	}

	listed, reg := s.list(ctx, userID)
	sum := core.Summarize(listed.Transactions, month, account, reg)
	if s.summaries != nil && listed.Warning == "" {
		s.summaries.Set(key, sum)
	}
	return SummaryResult{Summary: sum, Source: listed.Source, Warning: listed.Warning}, nil
}

// Ready checks the remote store when one is configured.
func (s *LedgerService) Ready(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	return s.remote.Ping(rctx)
}

func (s *LedgerService) sourceFor(userID string) Source {
	if s.useRemote(userID) {
		return SourceRemote
	}
	return SourceLocal
}

func (s *LedgerService) fallback(ctx context.Context, op, userID string, err error) {
	metrics.Fallbacks.WithLabelValues(op).Inc()
	s.logger.WarnContext(ctx, "Remote store failed, falling back to local storage",
		log.NewFields().WithOperation(op).WithUser(userID).WithError(err).ToSlice()...)
}

func (s *LedgerService) publish(ctx context.Context, msg *amqp.SyncMessage) {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP publisher not available, fallback write will not be replayed",
			log.FieldTxID, msg.TransactionID)
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldTxID, msg.TransactionID, log.FieldOperation, msg.Operation, log.FieldError, err)
	}
}

func (s *LedgerService) logCreated(ctx context.Context, userID string, tx core.Transaction, src Source) {
	fields := log.NewFields().
		WithOperation(log.OpCreate).
		WithUser(userID).
		WithTransaction(tx.Base().ID, string(tx.Kind()), tx.Base().Amount)
	fields[log.FieldSource] = src
	s.logger.InfoContext(ctx, "Transaction saved", fields.ToSlice()...)
}

func summaryKey(userID, month, account string) string {
	return identityPrefix(userID) + month + "|" + account
}

func identityPrefix(userID string) string {
	if userID == "" {
		return "local|"
	}
	return "user:" + userID + "|"
}

func (s *LedgerService) invalidate(userID string) {
	if s.summaries == nil {
		return
	}
	s.summaries.DeletePrefix(identityPrefix(userID))
}
