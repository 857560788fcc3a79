// Package postgres stores the remote collections in PostgreSQL. Every query is
// filtered by user_id.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pocket/internal/core"
	"pocket/internal/remote"
)

var _ remote.Backend = (*Store)(nil)

type Store struct {
	db *pgxpool.Pool
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: pool}, nil
}

// New wraps an existing pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const upsertTx = `
	INSERT INTO txs (id, user_id, type, account, from_account, to_account, category, amount, note, date, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		type = EXCLUDED.type,
		account = EXCLUDED.account,
		from_account = EXCLUDED.from_account,
		to_account = EXCLUDED.to_account,
		category = EXCLUDED.category,
		amount = EXCLUDED.amount,
		note = EXCLUDED.note,
		date = EXCLUDED.date,
		created_at = EXCLUDED.created_at
	WHERE txs.user_id = EXCLUDED.user_id`

func rowArgs(r remote.Row) []any {
	return []any{r.ID, r.UserID, r.Type, r.Account, r.FromAccount, r.ToAccount, r.Category, r.Amount, r.Note, r.Date, createdAt(r.CreatedAt)}
}

// createdAt parses the row instant; an unreadable value is stored as the current time.
func createdAt(s string) any {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

func (s *Store) ListRows(ctx context.Context, userID string) ([]remote.Row, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, type, account, from_account, to_account, category, amount, note, date, created_at
		FROM txs
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query txs: %w", err)
	}
	defer rows.Close()

	var out []remote.Row
	for rows.Next() {
		var r remote.Row
		var created time.Time
		if err := rows.Scan(&r.ID, &r.UserID, &r.Type, &r.Account, &r.FromAccount, &r.ToAccount, &r.Category, &r.Amount, &r.Note, &r.Date, &created); err != nil {
			return nil, fmt.Errorf("scan tx: %w", err)
		}
		r.CreatedAt = created.UTC().Format(time.RFC3339Nano)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate txs: %w", err)
	}
	return out, nil
}

func (s *Store) InsertRow(ctx context.Context, r remote.Row) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO txs (id, user_id, type, account, from_account, to_account, category, amount, note, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, rowArgs(r)...)
	if err != nil {
		return fmt.Errorf("insert tx: %w", err)
	}
	return nil
}

func (s *Store) DeleteRow(ctx context.Context, userID, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM txs WHERE user_id = $1 AND id = $2`, userID, id); err != nil {
		return fmt.Errorf("delete tx: %w", err)
	}
	return nil
}

// UpsertRows writes all rows in one transaction.
func (s *Store) UpsertRows(ctx context.Context, rows []remote.Row) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertTx, rowArgs(r)...)
	}
	br := tx.SendBatch(ctx, batch)
	for _, r := range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert tx %s: %w", r.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, sort_order, is_primary
		FROM accounts
		WHERE user_id = $1
		ORDER BY sort_order, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.Name, &a.SortOrder, &a.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

// ReplaceAccounts rewrites the user's registry. Surviving names keep their
// row and created_at.
func (s *Store) ReplaceAccounts(ctx context.Context, userID string, accounts []core.Account) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	names := make([]string, len(accounts))
	for i, a := range accounts {
		names[i] = a.Name
	}
	if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE user_id = $1 AND NOT (name = ANY($2))`, userID, names); err != nil {
		return fmt.Errorf("prune accounts: %w", err)
	}
	for _, a := range accounts {
		_, err := tx.Exec(ctx, `
			INSERT INTO accounts (user_id, name, sort_order, is_primary)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, name) DO UPDATE SET
				sort_order = EXCLUDED.sort_order,
				is_primary = EXCLUDED.is_primary`,
			userID, a.Name, a.SortOrder, a.IsPrimary)
		if err != nil {
			return fmt.Errorf("save account %s: %w", a.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit accounts: %w", err)
	}
	return nil
}
