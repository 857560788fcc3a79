package core

import (
	"errors"
	"reflect"
	"testing"
)

func seeded(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(nil)
	if !r.EnsureSeed() {
		t.Fatalf("expected seed on empty registry")
	}
	return r
}

func primaryCount(r *Registry) int {
	n := 0
	for _, a := range r.Accounts() {
		if a.IsPrimary {
			n++
		}
	}
	return n
}

func TestEnsureSeed(t *testing.T) {
	r := seeded(t)
	if got := r.Names(); !reflect.DeepEqual(got, []string{"Main", "Uni", "Gear"}) {
		t.Fatalf("unexpected seed %v", got)
	}
	if p, _ := r.Primary(); p.Name != "Main" {
		t.Fatalf("expected Main primary, got %q", p.Name)
	}
	if r.EnsureSeed() {
		t.Fatalf("seed must not run twice")
	}
}

func TestRegistryAdd(t *testing.T) {
	r := seeded(t)
	a, err := r.Add(" Savings ")
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "Savings" || a.SortOrder != 3 || a.IsPrimary {
		t.Fatalf("unexpected account %+v", a)
	}
	if _, err := r.Add("uNi"); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
	if _, err := r.Add("  "); !errors.Is(err, ErrEmptyAccountName) {
		t.Fatalf("expected ErrEmptyAccountName, got %v", err)
	}

	empty := NewRegistry(nil)
	first, _ := empty.Add("Wallet")
	if !first.IsPrimary {
		t.Fatalf("first account of an empty registry must be primary")
	}
}

func TestRegistryRemove(t *testing.T) {
	r := seeded(t)
	if err := r.Remove("Main"); !errors.Is(err, ErrCannotRemovePrimary) {
		t.Fatalf("expected ErrCannotRemovePrimary, got %v", err)
	}
	if err := r.Remove("Nope"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := r.Remove("uni"); err != nil {
		t.Fatal(err)
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{"Main", "Gear"}) {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestRegistrySetPrimary(t *testing.T) {
	r := seeded(t)
	if err := r.SetPrimary("Gear"); err != nil {
		t.Fatal(err)
	}
	if p, _ := r.Primary(); p.Name != "Gear" || primaryCount(r) != 1 {
		t.Fatalf("expected single primary Gear, got %+v", r.Accounts())
	}
	if err := r.SetPrimary("Nope"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := r.Remove("Main"); err != nil {
		t.Fatalf("former primary should be removable: %v", err)
	}
}

func TestRegistryMove(t *testing.T) {
	cases := []struct {
		name string
		acct string
		dir  Direction
		want []string
	}{
		{"up", "Uni", Up, []string{"Uni", "Main", "Gear"}},
		{"down", "Uni", Down, []string{"Main", "Gear", "Uni"}},
		{"top boundary", "Main", Up, []string{"Main", "Uni", "Gear"}},
		{"bottom boundary", "Gear", Down, []string{"Main", "Uni", "Gear"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := seeded(t)
			if err := r.Move(tc.acct, tc.dir); err != nil {
				t.Fatal(err)
			}
			if got := r.Names(); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			// order must survive a reload from the persisted sort orders
			if got := NewRegistry(r.Accounts()).Names(); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("reloaded order %v, want %v", got, tc.want)
			}
		})
	}
	if err := seeded(t).Move("Nope", Up); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := seeded(t).Move("Uni", "sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestNewRegistryNormalizesPrimary(t *testing.T) {
	none := NewRegistry([]Account{{Name: "B", SortOrder: 2}, {Name: "A", SortOrder: 1}})
	if p, _ := none.Primary(); p.Name != "A" || primaryCount(none) != 1 {
		t.Fatalf("expected A primary, got %+v", none.Accounts())
	}
	many := NewRegistry([]Account{{Name: "A", SortOrder: 1, IsPrimary: true}, {Name: "B", SortOrder: 2, IsPrimary: true}})
	if p, _ := many.Primary(); p.Name != "A" || primaryCount(many) != 1 {
		t.Fatalf("expected only A primary, got %+v", many.Accounts())
	}
}

func TestRegistryResolve(t *testing.T) {
	r := seeded(t)
	meta := Meta{ID: "t", Amount: 5, Date: "2024-03-01"}
	tests := []struct {
		name string
		tx   Transaction
		want []string
		err  error
	}{
		{"income lower case", Income{Meta: meta, Account: "main"}, []string{"Main"}, nil},
		{"expense upper case", Expense{Meta: meta, Account: "GEAR"}, []string{"Gear"}, nil},
		{"transfer mixed case", Transfer{Meta: meta, From: "uni", To: "MAIN"}, []string{"Uni", "Main"}, nil},
		{"transfer to itself", Transfer{Meta: meta, From: "Main", To: "main"}, nil, ErrInvalidTransferAccounts},
		{"unknown account", Income{Meta: meta, Account: "Savings"}, nil, ErrUnknownAccount},
		{"unknown transfer target", Transfer{Meta: meta, From: "Main", To: "Nope"}, nil, ErrUnknownAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.tx)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if tt.err != nil {
				return
			}
			if names := Accounts(got); !reflect.DeepEqual(names, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, names)
			}
			if got.Base() != tt.tx.Base() {
				t.Fatalf("resolve changed shared fields: %+v", got.Base())
			}
		})
	}
}

func TestMatchCategory(t *testing.T) {
	rules := []CategoryRule{
		{ID: "1", Keyword: "uber", Category: "Transport"},
		{ID: "2", Keyword: "Uber Eats", Category: "Food"},
		{ID: "3", Keyword: "", Category: "Ignored"},
	}
	if got, ok := MatchCategory(rules, "UBER EATS dinner"); !ok || got != "Transport" {
		t.Fatalf("first match should win, got %q %v", got, ok)
	}
	if _, ok := MatchCategory(rules, "groceries"); ok {
		t.Fatalf("expected no match")
	}
	if _, ok := MatchCategory(rules, ""); ok {
		t.Fatalf("blank note must not match")
	}
}
