package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"pocket/internal/core"
	"pocket/internal/remote"
)

// Column order of the transactions sheet.
var txHeader = []string{"id", "user_id", "type", "account", "from_account", "to_account", "category", "amount", "note", "date", "created_at"}

// Column order of the accounts sheet.
var accountHeader = []string{"user_id", "name", "sort_order", "is_primary"}

type parsedTx struct {
	index int // zero-based sheet row
	row   remote.Row
}

type rowKey struct {
	userID string
	id     string
}

// rowUpdate rewrites the sheet row at index.
type rowUpdate struct {
	index int
	row   remote.Row
}

// planUpsert splits rows into rewrites of existing sheet rows and rows to
// append. A row only replaces an existing row with the same owner and id;
// another user's row with that id is left alone.
func planUpsert(existing []parsedTx, rows []remote.Row) ([]rowUpdate, []remote.Row) {
	at := make(map[rowKey]int, len(existing))
	for _, p := range existing {
		at[rowKey{p.row.UserID, p.row.ID}] = p.index
	}
	var updates []rowUpdate
	var appends []remote.Row
	appended := map[rowKey]int{}
	for _, r := range rows {
		k := rowKey{r.UserID, r.ID}
		if i, ok := at[k]; ok {
			updates = append(updates, rowUpdate{index: i, row: r})
			continue
		}
		if i, ok := appended[k]; ok {
			appends[i] = r
			continue
		}
		appended[k] = len(appends)
		appends = append(appends, r)
	}
	return updates, appends
}

type parsedAccount struct {
	index   int
	userID  string
	account core.Account
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cell(s *string) any {
	if s == nil {
		return ""
	}
	return *s
}

func isHeader(cols []string, first string) bool {
	return len(cols) > 0 && strings.EqualFold(cols[0], first)
}

// parseAmount accepts both dot and comma decimals, as sheets may localize numbers.
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseTxRows reads the transactions sheet, skipping the header and rows
// without an id, user or readable amount.
func parseTxRows(values [][]any) []parsedTx {
	var out []parsedTx
	for i, raw := range values {
		cols := toStrings(raw)
		if isHeader(cols, txHeader[0]) {
			continue
		}
		id, user := safeGet(cols, 0), safeGet(cols, 1)
		if id == "" || user == "" {
			continue
		}
		amount, ok := parseAmount(safeGet(cols, 7))
		if !ok {
			continue
		}
		out = append(out, parsedTx{index: i, row: remote.Row{
			ID:          id,
			UserID:      user,
			Type:        safeGet(cols, 2),
			Account:     nullable(safeGet(cols, 3)),
			FromAccount: nullable(safeGet(cols, 4)),
			ToAccount:   nullable(safeGet(cols, 5)),
			Category:    nullable(safeGet(cols, 6)),
			Amount:      amount,
			Note:        nullable(safeGet(cols, 8)),
			Date:        safeGet(cols, 9),
			CreatedAt:   safeGet(cols, 10),
		}})
	}
	return out
}

func txValues(r remote.Row) []any {
	return []any{r.ID, r.UserID, r.Type, cell(r.Account), cell(r.FromAccount), cell(r.ToAccount), cell(r.Category), r.Amount, cell(r.Note), r.Date, r.CreatedAt}
}

func parseAccountRows(values [][]any) []parsedAccount {
	var out []parsedAccount
	for i, raw := range values {
		cols := toStrings(raw)
		if isHeader(cols, accountHeader[0]) {
			continue
		}
		user, name := safeGet(cols, 0), safeGet(cols, 1)
		if user == "" || name == "" {
			continue
		}
		order, _ := strconv.Atoi(safeGet(cols, 2))
		primary, _ := strconv.ParseBool(strings.ToLower(safeGet(cols, 3)))
		out = append(out, parsedAccount{index: i, userID: user, account: core.Account{Name: name, SortOrder: order, IsPrimary: primary}})
	}
	return out
}

func accountValues(userID string, a core.Account) []any {
	return []any{userID, a.Name, a.SortOrder, a.IsPrimary}
}
