package core

import (
	"errors"
	"strings"
)

var ErrEmptyKeyword = errors.New("empty rule keyword")

// CategoryRule assigns Category to transactions whose note contains Keyword.
type CategoryRule struct {
	ID       string `json:"id"`
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
}

// MatchCategory returns the category of the first rule whose keyword occurs in
// note, ignoring case.
func MatchCategory(rules []CategoryRule, note string) (string, bool) {
	note = strings.ToLower(note)
	if strings.TrimSpace(note) == "" {
		return "", false
	}
	for _, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw != "" && strings.Contains(note, kw) {
			return NormalizeCategory(r.Category), true
		}
	}
	return "", false
}
