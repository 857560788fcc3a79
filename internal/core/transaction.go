package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind tags the transaction variant.
type Kind string

const (
	KindIncome   Kind = "income"
	KindExpense  Kind = "expense"
	KindTransfer Kind = "transfer"

	// DefaultCategory is used for income and expense entries created without one.
	DefaultCategory = "Uncategorized"

	// DateLayout is the calendar-day format of Meta.Date.
	DateLayout = "2006-01-02"
	// MonthLayout is the format of aggregation months.
	MonthLayout = "2006-01"
)

var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidTransferAccounts = errors.New("transfer source and destination must differ")
	ErrInvalidDate             = errors.New("invalid date")
	ErrInvalidKind             = errors.New("invalid transaction type")
	ErrMissingAccount          = errors.New("missing account")
)

type (
	// Meta holds the fields shared by every transaction variant.
	Meta struct {
		ID        string
		Amount    float64
		Note      string // empty when absent
		Date      string // YYYY-MM-DD
		CreatedAt time.Time
	}

	Income struct {
		Meta
		Account  string
		Category string
	}

	Expense struct {
		Meta
		Account  string
		Category string
	}

	Transfer struct {
		Meta
		From string
		To   string
	}

	// Transaction is one of Income, Expense or Transfer.
	Transaction interface {
		Kind() Kind
		Base() Meta
		transaction()
	}
)

func (m Meta) Base() Meta { return m }

func (Income) Kind() Kind   { return KindIncome }
func (Expense) Kind() Kind  { return KindExpense }
func (Transfer) Kind() Kind { return KindTransfer }

func (Income) transaction()   {}
func (Expense) transaction()  {}
func (Transfer) transaction() {}

// ParseKind accepts the lower-case variant names.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindIncome, KindExpense, KindTransfer:
		return k, nil
	}
	return "", ErrInvalidKind
}

// Input is raw, unvalidated transaction data as entered by a user.
type Input struct {
	Kind     Kind
	Amount   string
	Account  string
	From     string
	To       string
	Category string
	Note     string
	Date     string
}

// Builder turns Input into validated transactions. The zero value uses
// random UUIDs and the wall clock.
type Builder struct {
	NewID func() string
	Now   func() time.Time
}

// NewTransaction validates in and returns the matching variant with a fresh id
// and creation instant.
func (b Builder) NewTransaction(in Input) (Transaction, error) {
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	now := b.now()
	date, err := normalizeDate(in.Date, now)
	if err != nil {
		return nil, err
	}
	meta := Meta{
		ID:        b.newID(),
		Amount:    amount,
		Note:      strings.TrimSpace(in.Note),
		Date:      date,
		CreatedAt: now,
	}

	switch in.Kind {
	case KindIncome, KindExpense:
		account := strings.TrimSpace(in.Account)
		if account == "" {
			return nil, ErrMissingAccount
		}
		category := NormalizeCategory(in.Category)
		if in.Kind == KindIncome {
			return Income{Meta: meta, Account: account, Category: category}, nil
		}
		return Expense{Meta: meta, Account: account, Category: category}, nil
	case KindTransfer:
		from, to := strings.TrimSpace(in.From), strings.TrimSpace(in.To)
		if from == "" || to == "" {
			return nil, ErrMissingAccount
		}
		if strings.EqualFold(from, to) {
			return nil, ErrInvalidTransferAccounts
		}
		return Transfer{Meta: meta, From: from, To: to}, nil
	default:
		return nil, ErrInvalidKind
	}
}

func (b Builder) newID() string {
	if b.NewID != nil {
		return b.NewID()
	}
	return uuid.NewString()
}

func (b Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}

// NormalizeCategory trims c and substitutes DefaultCategory when blank.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return DefaultCategory
	}
	return c
}

// normalizeDate validates a YYYY-MM-DD day. A blank date means the day of now.
func normalizeDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Format(DateLayout), nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", ErrInvalidDate
	}
	return d.Format(DateLayout), nil
}

// ValidMonth reports whether s is a YYYY-MM month.
func ValidMonth(s string) bool {
	_, err := time.Parse(MonthLayout, s)
	return err == nil
}

// Accounts returns the account names a transaction touches.
func Accounts(tx Transaction) []string {
	switch t := tx.(type) {
	case Income:
		return []string{t.Account}
	case Expense:
		return []string{t.Account}
	case Transfer:
		return []string{t.From, t.To}
	}
	return nil
}

// IsValidation reports whether err is a user input error rather than a storage failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidTransferAccounts, ErrInvalidDate, ErrInvalidKind,
		ErrMissingAccount, ErrDuplicateAccount, ErrCannotRemovePrimary,
		ErrEmptyAccountName, ErrEmptyKeyword, ErrUnknownAccount, ErrInvalidDirection,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
