package sheets

import (
	"reflect"
	"testing"

	"pocket/internal/core"
	"pocket/internal/remote"
)

func TestParseTxRows(t *testing.T) {
	values := [][]any{
		{"id", "user_id", "type", "account", "from_account", "to_account", "category", "amount", "note", "date", "created_at"},
		{"a", "u1", "expense", "Main", "", "", "Food", "12,5", "", "2024-03-01", "2024-03-01T10:00:00Z"},
		{"b", "u2", "transfer", "", "Main", "Uni", "", 30.0, "rent", "2024-03-02", "2024-03-02T10:00:00Z"},
		{"", "u1", "income"},
		{"c", "u1", "income", "Main", "", "", "", "n/a"},
	}
	rows := parseTxRows(values)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	a := rows[0]
	if a.index != 1 || a.row.Amount != 12.5 || *a.row.Account != "Main" || a.row.FromAccount != nil || a.row.Note != nil {
		t.Fatalf("unexpected first row %+v", a)
	}
	b := rows[1].row
	if *b.FromAccount != "Main" || *b.ToAccount != "Uni" || b.Account != nil || *b.Note != "rent" {
		t.Fatalf("unexpected transfer row %+v", b)
	}
}

func TestTxValuesRoundTrip(t *testing.T) {
	acct, cat := "Main", "Food"
	r := remote.Row{ID: "a", UserID: "u1", Type: "expense", Account: &acct, Category: &cat, Amount: 3.25, Date: "2024-03-01", CreatedAt: "2024-03-01T10:00:00Z"}
	got := parseTxRows([][]any{txValues(r)})
	if len(got) != 1 {
		t.Fatalf("expected one row")
	}
	g := got[0].row
	if g.ID != r.ID || g.Amount != r.Amount || *g.Account != acct || *g.Category != cat || g.ToAccount != nil || g.CreatedAt != r.CreatedAt {
		t.Fatalf("round trip mismatch %+v", g)
	}
}

func TestPlanUpsertMatchesOwnerAndID(t *testing.T) {
	values := [][]any{
		{"id", "user_id", "type", "account", "from_account", "to_account", "category", "amount", "note", "date", "created_at"},
		{"shared", "alice", "income", "Main", "", "", "", "10", "", "2024-03-01", "2024-03-01T10:00:00Z"},
		{"own", "bob", "income", "Main", "", "", "", "20", "", "2024-03-01", "2024-03-01T10:00:00Z"},
	}
	existing := parseTxRows(values)

	tests := []struct {
		name        string
		rows        []remote.Row
		wantUpdates []int
		wantAppends []string
	}{
		{"other user's id is appended", []remote.Row{{ID: "shared", UserID: "bob"}}, nil, []string{"bob/shared"}},
		{"own row is rewritten", []remote.Row{{ID: "own", UserID: "bob"}}, []int{2}, nil},
		{"owner rewrites shared id", []remote.Row{{ID: "shared", UserID: "alice"}}, []int{1}, nil},
		{"new row", []remote.Row{{ID: "fresh", UserID: "bob"}}, nil, []string{"bob/fresh"}},
		{"repeated new row appended once", []remote.Row{{ID: "fresh", UserID: "bob", Amount: 1}, {ID: "fresh", UserID: "bob", Amount: 2}}, nil, []string{"bob/fresh"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updates, appends := planUpsert(existing, tt.rows)
			var gotUpdates []int
			for _, u := range updates {
				if u.row.UserID != values[u.index][1] {
					t.Fatalf("row for %s would overwrite %v's row %d", u.row.UserID, values[u.index][1], u.index)
				}
				gotUpdates = append(gotUpdates, u.index)
			}
			var gotAppends []string
			for _, r := range appends {
				gotAppends = append(gotAppends, r.UserID+"/"+r.ID)
			}
			if !reflect.DeepEqual(gotUpdates, tt.wantUpdates) || !reflect.DeepEqual(gotAppends, tt.wantAppends) {
				t.Fatalf("updates=%v appends=%v, want %v %v", gotUpdates, gotAppends, tt.wantUpdates, tt.wantAppends)
			}
		})
	}

	_, appends := planUpsert(existing, []remote.Row{{ID: "fresh", UserID: "bob", Amount: 1}, {ID: "fresh", UserID: "bob", Amount: 2}})
	if appends[0].Amount != 2 {
		t.Fatalf("last write for a repeated row should win, got %v", appends[0].Amount)
	}
}

func TestParseAccountRows(t *testing.T) {
	values := [][]any{
		{"user_id", "name", "sort_order", "is_primary"},
		{"u1", "Main", "0", "TRUE"},
		{"u1", "Uni", 1, false},
		{"u2", "", "0", "true"},
	}
	got := parseAccountRows(values)
	if len(got) != 2 {
		t.Fatalf("expected 2 accounts, got %+v", got)
	}
	if got[0].account != (core.Account{Name: "Main", SortOrder: 0, IsPrimary: true}) || got[1].account.SortOrder != 1 || got[1].index != 2 {
		t.Fatalf("unexpected accounts %+v", got)
	}
}
