package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"pocket/internal/core"
)

// Category rules live on the device and apply to every identity.

// Rules returns the category rules in match order.
func (s *LedgerService) Rules(ctx context.Context) []core.CategoryRule {
	return s.rules.List(ctx)
}

// AddRule appends a rule; it matches after every existing rule.
func (s *LedgerService) AddRule(ctx context.Context, keyword, category string) (core.CategoryRule, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return core.CategoryRule{}, core.ErrEmptyKeyword
	}
	rule := core.CategoryRule{ID: uuid.NewString(), Keyword: keyword, Category: core.NormalizeCategory(category)}

	s.localMu.Lock()
	defer s.localMu.Unlock()
	if err := s.rules.Save(ctx, append(s.rules.List(ctx), rule)); err != nil {
		return core.CategoryRule{}, err
	}
	return rule, nil
}

// DeleteRule removes the rule with id.
func (s *LedgerService) DeleteRule(ctx context.Context, id string) error {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	rules := s.rules.List(ctx)
	kept := rules[:0:0]
	for _, r := range rules {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(rules) {
		return ErrRuleNotFound
	}
	return s.rules.Save(ctx, kept)
}
