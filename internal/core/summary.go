package core

import (
	"sort"
	"strings"
)

const (
	// AllAccounts disables account filtering.
	AllAccounts = "All"
	// OthersCategory collects the categories beyond the top entries.
	OthersCategory = "Others"
	// TopCategories is the number of categories listed before "Others".
	TopCategories = 6
)

// Balances maps account name to running net balance.
type Balances map[string]float64

// Credit adds amount to account.
func (b Balances) Credit(account string, amount float64) { b[account] += amount }

// Debit subtracts amount from account.
func (b Balances) Debit(account string, amount float64) { b[account] -= amount }

// Apply books tx: income credits, expense debits, transfer moves between accounts.
func (b Balances) Apply(tx Transaction) {
	switch t := tx.(type) {
	case Income:
		b.Credit(t.Account, t.Amount)
	case Expense:
		b.Debit(t.Account, t.Amount)
	case Transfer:
		b.Debit(t.From, t.Amount)
		b.Credit(t.To, t.Amount)
	}
}

// Total returns the sum over all accounts.
func (b Balances) Total() float64 {
	var sum float64
	for _, v := range b {
		sum += v
	}
	return sum
}

type (
	// AccountBalance is one entry of the balance strip.
	AccountBalance struct {
		Account string  `json:"account"`
		Balance float64 `json:"balance"`
	}

	// CategoryShare is one expense category with its share of total expense, 0-100.
	CategoryShare struct {
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
		Percent  float64 `json:"percent"`
	}

	// Breakdown groups in-scope expenses by category.
	Breakdown struct {
		Total float64         `json:"total"`
		Top   []CategoryShare `json:"top"`
		All   []CategoryShare `json:"all"`
	}

	// Summary is everything displayed for one month and account filter.
	Summary struct {
		Month     string           `json:"month"`
		Account   string           `json:"account"`
		Income    float64          `json:"income"`
		Expense   float64          `json:"expense"`
		NetFlow   float64          `json:"netFlow"`
		Available float64          `json:"available"`
		Savings   float64          `json:"savings"`
		Balances  []AccountBalance `json:"balances"`
		Breakdown Breakdown        `json:"breakdown"`
	}
)

// InMonth reports whether tx falls in month (YYYY-MM).
func InMonth(tx Transaction, month string) bool {
	return strings.HasPrefix(tx.Base().Date, month)
}

// MatchesAccount reports whether tx touches account. AllAccounts matches everything.
func MatchesAccount(tx Transaction, account string) bool {
	if account == "" || account == AllAccounts {
		return true
	}
	for _, a := range Accounts(tx) {
		if a == account {
			return true
		}
	}
	return false
}

// Summarize reduces txs to the figures for month and the account filter.
// The result does not depend on the order of txs.
func Summarize(txs []Transaction, month, account string, registry *Registry) Summary {
	if account == "" {
		account = AllAccounts
	}
	if registry == nil {
		registry = NewRegistry(nil)
	}

	strip := Balances{}
	filtered := Balances{}
	var income, expense float64
	var expenses []Expense
	for _, tx := range txs {
		if !InMonth(tx, month) {
			continue
		}
		strip.Apply(tx)
		if !MatchesAccount(tx, account) {
			continue
		}
		filtered.Apply(tx)
		switch t := tx.(type) {
		case Income:
			income += t.Amount
		case Expense:
			expense += t.Amount
			expenses = append(expenses, t)
		}
	}

	s := Summary{
		Month:     month,
		Account:   account,
		Income:    income,
		Expense:   expense,
		NetFlow:   income - expense,
		Balances:  orderedBalances(strip, registry),
		Breakdown: BreakdownOf(expenses),
	}
	primary, hasPrimary := registry.Primary()
	for name, bal := range filtered {
		if hasPrimary && name == primary.Name {
			s.Available += bal
		} else {
			s.Savings += bal
		}
	}
	return s
}

// orderedBalances lists registry accounts first, in registry order, followed
// by accounts only seen in transactions, sorted by name.
func orderedBalances(b Balances, registry *Registry) []AccountBalance {
	out := make([]AccountBalance, 0, len(b)+registry.Len())
	seen := make(map[string]bool, len(b))
	for _, name := range registry.Names() {
		out = append(out, AccountBalance{Account: name, Balance: b[name]})
		seen[name] = true
	}
	var unknown []string
	for name := range b {
		if !seen[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		out = append(out, AccountBalance{Account: name, Balance: b[name]})
	}
	return out
}

// BreakdownOf groups expenses by category, largest first with ties ordered
// by name. Top holds at most TopCategories entries plus an "Others" entry
// when the remainder is positive.
func BreakdownOf(expenses []Expense) Breakdown {
	sums := map[string]float64{}
	var total float64
	for _, e := range expenses {
		sums[NormalizeCategory(e.Category)] += e.Amount
		total += e.Amount
	}

	all := make([]CategoryShare, 0, len(sums))
	for cat, sum := range sums {
		all = append(all, CategoryShare{Category: cat, Amount: sum, Percent: percent(sum, total)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Amount != all[j].Amount {
			return all[i].Amount > all[j].Amount
		}
		return all[i].Category < all[j].Category
	})

	top := all
	if len(all) > TopCategories {
		top = append([]CategoryShare(nil), all[:TopCategories]...)
		var rest float64
		for _, c := range all[TopCategories:] {
			rest += c.Amount
		}
		if rest > 0 {
			top = append(top, CategoryShare{Category: OthersCategory, Amount: rest, Percent: percent(rest, total)})
		}
	}
	return Breakdown{Total: total, Top: top, All: all}
}

func percent(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}
