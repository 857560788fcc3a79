// Package worker replays writes that fell back to device storage while the
// remote store was unreachable.
package worker

import (
	"context"
	"fmt"

	"pocket/internal/amqp"
	"pocket/internal/core"
	"pocket/internal/log"
	"pocket/internal/metrics"
)

type (
	// LocalStore holds each identity's fallback writes on the device.
	LocalStore interface {
		Get(ctx context.Context, userID, id string) (core.Transaction, bool)
		DeleteByID(ctx context.Context, userID, id string) (int, error)
		ClearDeleted(ctx context.Context, userID, id string) error
	}

	// RemoteStore is the per-user remote collection.
	RemoteStore interface {
		Upsert(ctx context.Context, userID string, txs []core.Transaction) error
		DeleteByID(ctx context.Context, userID, id string) error
	}
)

// SyncWorker handles deferred sync messages. A returned error makes the
// consumer requeue the message.
type SyncWorker struct {
	local  LocalStore
	remote RemoteStore
	logger *log.Logger
}

func NewSyncWorker(local LocalStore, remote RemoteStore, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{local: local, remote: remote, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleMessage dispatches msg by operation.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	var err error
	switch msg.Operation {
	case amqp.OpSync:
		err = w.handleSync(ctx, msg)
	case amqp.OpDelete:
		err = w.handleDelete(ctx, msg)
	default:
		err = fmt.Errorf("unknown operation: %s", msg.Operation)
	}
	metrics.SyncMessages.WithLabelValues(string(msg.Operation), metrics.Status(err)).Inc()
	return err
}

// handleSync upserts the local copy remotely, then drops it from the device.
// A missing local copy means an earlier delivery already finished.
func (w *SyncWorker) handleSync(ctx context.Context, msg *amqp.SyncMessage) error {
	tx, ok := w.local.Get(ctx, msg.UserID, msg.TransactionID)
	if !ok {
		w.logger.InfoContext(ctx, "Transaction no longer stored locally, nothing to sync",
			log.FieldUserID, msg.UserID, log.FieldTxID, msg.TransactionID)
		return nil
	}

	if err := w.remote.Upsert(ctx, msg.UserID, []core.Transaction{tx}); err != nil {
		w.logger.WarnContext(ctx, "Failed to sync transaction",
			log.FieldUserID, msg.UserID, log.FieldTxID, msg.TransactionID, log.FieldError, err)
		return fmt.Errorf("upsert transaction: %w", err)
	}

	if _, err := w.local.DeleteByID(ctx, msg.UserID, msg.TransactionID); err != nil {
		// the remote copy is authoritative now; a leftover local copy is harmless
		w.logger.WarnContext(ctx, "Failed to drop synced transaction locally",
			log.FieldTxID, msg.TransactionID, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Transaction synced",
		log.FieldUserID, msg.UserID,
		log.FieldTxID, msg.TransactionID,
		log.FieldTxType, tx.Kind(),
		"queued_at", msg.Timestamp)
	return nil
}

func (w *SyncWorker) handleDelete(ctx context.Context, msg *amqp.SyncMessage) error {
	if err := w.remote.DeleteByID(ctx, msg.UserID, msg.TransactionID); err != nil {
		w.logger.WarnContext(ctx, "Failed to replay delete",
			log.FieldUserID, msg.UserID, log.FieldTxID, msg.TransactionID, log.FieldError, err)
		return fmt.Errorf("delete transaction: %w", err)
	}
	if err := w.local.ClearDeleted(ctx, msg.UserID, msg.TransactionID); err != nil {
		w.logger.WarnContext(ctx, "Failed to clear replayed delete locally",
			log.FieldUserID, msg.UserID, log.FieldTxID, msg.TransactionID, log.FieldError, err)
	}
	w.logger.InfoContext(ctx, "Delete replayed",
		log.FieldUserID, msg.UserID, log.FieldTxID, msg.TransactionID)
	return nil
}
