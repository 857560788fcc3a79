package core

import (
	"fmt"
	"time"
)

// Record is the flat JSON shape transactions are persisted in locally.
type Record struct {
	ID        string    `json:"id"`
	Type      Kind      `json:"type"`
	Amount    float64   `json:"amount"`
	Account   string    `json:"account,omitempty"`
	Category  string    `json:"category,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Note      string    `json:"note,omitempty"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToRecord flattens tx.
func ToRecord(tx Transaction) Record {
	m := tx.Base()
	r := Record{
		ID:        m.ID,
		Type:      tx.Kind(),
		Amount:    m.Amount,
		Note:      m.Note,
		Date:      m.Date,
		CreatedAt: m.CreatedAt,
	}
	switch t := tx.(type) {
	case Income:
		r.Account, r.Category = t.Account, t.Category
	case Expense:
		r.Account, r.Category = t.Account, t.Category
	case Transfer:
		r.From, r.To = t.From, t.To
	}
	return r
}

// Transaction rebuilds the tagged variant from r.
func (r Record) Transaction() (Transaction, error) {
	meta := Meta{ID: r.ID, Amount: r.Amount, Note: r.Note, Date: r.Date, CreatedAt: r.CreatedAt}
	switch r.Type {
	case KindIncome:
		return Income{Meta: meta, Account: r.Account, Category: NormalizeCategory(r.Category)}, nil
	case KindExpense:
		return Expense{Meta: meta, Account: r.Account, Category: NormalizeCategory(r.Category)}, nil
	case KindTransfer:
		return Transfer{Meta: meta, From: r.From, To: r.To}, nil
	}
	return nil, fmt.Errorf("record %s: %w", r.ID, ErrInvalidKind)
}
