package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDuplicateAccount    = errors.New("account already exists")
	ErrCannotRemovePrimary = errors.New("cannot remove the primary account")
	ErrAccountNotFound     = errors.New("account not found")
	ErrEmptyAccountName    = errors.New("empty account name")
	ErrUnknownAccount      = errors.New("account is not in the registry")
	ErrInvalidDirection    = errors.New("direction must be up or down")
)

// DefaultAccounts seeds an empty registry. The first entry becomes primary.
var DefaultAccounts = []string{"Main", "Uni", "Gear"}

// Account is a named bucket money is booked against.
type Account struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	IsPrimary bool   `json:"isPrimary"`
}

// Direction is the way Move shifts an account.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Registry is the ordered, case-insensitively unique set of a user's accounts.
// Whenever it is non-empty exactly one account is primary.
type Registry struct {
	accounts []Account
}

// NewRegistry orders accounts by SortOrder and repairs the primary flag:
// with none set the first account becomes primary, with several only the
// first keeps it.
func NewRegistry(accounts []Account) *Registry {
	r := &Registry{accounts: append([]Account(nil), accounts...)}
	sort.SliceStable(r.accounts, func(i, j int) bool {
		return r.accounts[i].SortOrder < r.accounts[j].SortOrder
	})
	r.normalizePrimary()
	return r
}

func (r *Registry) normalizePrimary() {
	if len(r.accounts) == 0 {
		return
	}
	found := false
	for i := range r.accounts {
		if r.accounts[i].IsPrimary {
			if found {
				r.accounts[i].IsPrimary = false
			}
			found = true
		}
	}
	if !found {
		r.accounts[0].IsPrimary = true
	}
}

// Accounts returns a copy of the accounts in display order.
func (r *Registry) Accounts() []Account {
	return append([]Account(nil), r.accounts...)
}

// Names returns the account names in display order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.accounts))
	for i, a := range r.accounts {
		names[i] = a.Name
	}
	return names
}

// Len returns the number of accounts.
func (r *Registry) Len() int { return len(r.accounts) }

// Primary returns the primary account, if any.
func (r *Registry) Primary() (Account, bool) {
	for _, a := range r.accounts {
		if a.IsPrimary {
			return a, true
		}
	}
	return Account{}, false
}

// Lookup finds an account by case-insensitive name.
func (r *Registry) Lookup(name string) (Account, bool) {
	i := r.index(name)
	if i < 0 {
		return Account{}, false
	}
	return r.accounts[i], true
}

// Resolve rewrites every account tx references to its registered spelling.
// Unknown accounts fail with ErrUnknownAccount, and a transfer whose ends
// resolve to one account fails with ErrInvalidTransferAccounts.
func (r *Registry) Resolve(tx Transaction) (Transaction, error) {
	name := func(s string) (string, error) {
		a, ok := r.Lookup(s)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownAccount, s)
		}
		return a.Name, nil
	}
	var err error
	switch t := tx.(type) {
	case Income:
		if t.Account, err = name(t.Account); err != nil {
			return nil, err
		}
		return t, nil
	case Expense:
		if t.Account, err = name(t.Account); err != nil {
			return nil, err
		}
		return t, nil
	case Transfer:
		if t.From, err = name(t.From); err != nil {
			return nil, err
		}
		if t.To, err = name(t.To); err != nil {
			return nil, err
		}
		if t.From == t.To {
			return nil, ErrInvalidTransferAccounts
		}
		return t, nil
	}
	return nil, ErrInvalidKind
}

func (r *Registry) index(name string) int {
	name = strings.TrimSpace(name)
	for i, a := range r.accounts {
		if strings.EqualFold(a.Name, name) {
			return i
		}
	}
	return -1
}

// Add appends a non-primary account after the current last one. The first
// account added to an empty registry becomes primary.
func (r *Registry) Add(name string) (Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Account{}, ErrEmptyAccountName
	}
	if r.index(name) >= 0 {
		return Account{}, ErrDuplicateAccount
	}
	next := 0
	for _, a := range r.accounts {
		if a.SortOrder >= next {
			next = a.SortOrder + 1
		}
	}
	a := Account{Name: name, SortOrder: next, IsPrimary: len(r.accounts) == 0}
	r.accounts = append(r.accounts, a)
	return a, nil
}

// Remove deletes a non-primary account.
func (r *Registry) Remove(name string) error {
	i := r.index(name)
	if i < 0 {
		return ErrAccountNotFound
	}
	if r.accounts[i].IsPrimary {
		return ErrCannotRemovePrimary
	}
	r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
	return nil
}

// SetPrimary moves the primary flag to name.
func (r *Registry) SetPrimary(name string) error {
	i := r.index(name)
	if i < 0 {
		return ErrAccountNotFound
	}
	for j := range r.accounts {
		r.accounts[j].IsPrimary = j == i
	}
	return nil
}

// Move swaps the sort order of name with its neighbour in dir. Moving past
// either end is a no-op.
func (r *Registry) Move(name string, dir Direction) error {
	if dir != Up && dir != Down {
		return ErrInvalidDirection
	}
	i := r.index(name)
	if i < 0 {
		return ErrAccountNotFound
	}
	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j < 0 || j >= len(r.accounts) {
		return nil
	}
	a, b := &r.accounts[i], &r.accounts[j]
	a.SortOrder, b.SortOrder = b.SortOrder, a.SortOrder
	if a.SortOrder == b.SortOrder {
		// equal orders would not survive a reload; spread them apart
		if dir == Down {
			a.SortOrder++
		} else {
			b.SortOrder++
		}
	}
	r.accounts[i], r.accounts[j] = r.accounts[j], r.accounts[i]
	return nil
}

// EnsureSeed fills an empty registry with DefaultAccounts and reports whether it did.
func (r *Registry) EnsureSeed() bool {
	if len(r.accounts) > 0 {
		return false
	}
	for i, name := range DefaultAccounts {
		r.accounts = append(r.accounts, Account{Name: name, SortOrder: i, IsPrimary: i == 0})
	}
	return true
}
