// Package remote maps transactions to the per-user row collection and wraps
// the backends that store it.
package remote

import (
	"fmt"
	"strings"
	"time"

	"pocket/internal/core"
)

// Row is the flat remote form of a transaction. Exactly one of the
// Account/Category and FromAccount/ToAccount groups is set.
type Row struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Type        string  `json:"type"`
	Account     *string `json:"account"`
	FromAccount *string `json:"from_account"`
	ToAccount   *string `json:"to_account"`
	Category    *string `json:"category"`
	Amount      float64 `json:"amount"`
	Note        *string `json:"note"`
	Date        string  `json:"date"`
	CreatedAt   string  `json:"created_at"`
}

func ptr(s string) *string { return &s }

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// ToRow maps tx to its row for userID.
func ToRow(userID string, tx core.Transaction) Row {
	m := tx.Base()
	r := Row{
		ID:        m.ID,
		UserID:    userID,
		Type:      string(tx.Kind()),
		Amount:    m.Amount,
		Note:      optional(m.Note),
		Date:      m.Date,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	switch t := tx.(type) {
	case core.Income:
		r.Account, r.Category = ptr(t.Account), ptr(t.Category)
	case core.Expense:
		r.Account, r.Category = ptr(t.Account), ptr(t.Category)
	case core.Transfer:
		r.FromAccount, r.ToAccount = ptr(t.From), ptr(t.To)
	}
	return r
}

// FromRow maps r back to a transaction. An unparsable created_at becomes now;
// missing accounts fall back to the first and second of defaults.
func FromRow(r Row, defaults []string, now time.Time) (core.Transaction, error) {
	created, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(r.CreatedAt))
	if err != nil {
		created = now
	}
	first, second := defaultAccounts(defaults)
	meta := core.Meta{
		ID:        r.ID,
		Amount:    r.Amount,
		Note:      deref(r.Note),
		Date:      r.Date,
		CreatedAt: created,
	}

	kind, err := core.ParseKind(r.Type)
	if err != nil {
		return nil, fmt.Errorf("row %s: %w", r.ID, err)
	}
	switch kind {
	case core.KindIncome:
		return core.Income{Meta: meta, Account: orDefault(deref(r.Account), first), Category: core.NormalizeCategory(deref(r.Category))}, nil
	case core.KindExpense:
		return core.Expense{Meta: meta, Account: orDefault(deref(r.Account), first), Category: core.NormalizeCategory(deref(r.Category))}, nil
	case core.KindTransfer:
		return core.Transfer{Meta: meta, From: orDefault(deref(r.FromAccount), first), To: orDefault(deref(r.ToAccount), second)}, nil
	}
	return nil, fmt.Errorf("row %s: %w", r.ID, core.ErrInvalidKind)
}

func defaultAccounts(names []string) (string, string) {
	if len(names) < 2 {
		names = append(append([]string(nil), names...), core.DefaultAccounts[len(names):]...)
	}
	return names[0], names[1]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
