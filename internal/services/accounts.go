package services

import (
	"context"
	"fmt"

	"pocket/internal/core"
	"pocket/internal/log"
)

// AccountsResult is the identity's registry in display order.
type AccountsResult struct {
	Accounts []core.Account
	Source   Source
	Warning  string
}

// Accounts returns the registry, seeding and persisting the defaults on first use.
func (s *LedgerService) Accounts(ctx context.Context, userID string) (AccountsResult, error) {
	reg, warning, err := s.registry(ctx, userID)
	if err != nil {
		return AccountsResult{}, err
	}
	src := s.sourceFor(userID)
	if warning != "" {
		src = SourceLocal
	}
	return AccountsResult{Accounts: reg.Accounts(), Source: src, Warning: warning}, nil
}

// AddAccount appends name to the registry.
func (s *LedgerService) AddAccount(ctx context.Context, userID, name string) (core.Account, error) {
	var added core.Account
	err := s.mutateRegistry(ctx, userID, func(r *core.Registry) error {
		a, err := r.Add(name)
		added = a
		return err
	})
	return added, err
}

// RemoveAccount deletes a non-primary account.
func (s *LedgerService) RemoveAccount(ctx context.Context, userID, name string) error {
	return s.mutateRegistry(ctx, userID, func(r *core.Registry) error { return r.Remove(name) })
}

// SetPrimaryAccount makes name the primary account.
func (s *LedgerService) SetPrimaryAccount(ctx context.Context, userID, name string) error {
	return s.mutateRegistry(ctx, userID, func(r *core.Registry) error { return r.SetPrimary(name) })
}

// MoveAccount swaps name with its neighbour in dir.
func (s *LedgerService) MoveAccount(ctx context.Context, userID, name string, dir core.Direction) error {
	return s.mutateRegistry(ctx, userID, func(r *core.Registry) error { return r.Move(name, dir) })
}

// registry loads the identity's registry. A remote read failure falls back to
// the device registry and returns a warning. The result is never nil.
func (s *LedgerService) registry(ctx context.Context, userID string) (*core.Registry, string, error) {
	if s.useRemote(userID) {
		rctx, cancel := s.remoteCtx(ctx)
		defer cancel()
		reg, err := s.remote.Accounts(rctx, userID)
		if err == nil {
			if reg.EnsureSeed() {
				if err := s.remote.SaveAccounts(rctx, userID, reg); err != nil {
					s.logger.WarnContext(ctx, "Failed to persist seeded accounts",
						log.FieldUserID, userID, log.FieldError, err)
				}
			}
			return reg, "", nil
		}
		s.fallback(ctx, "list_accounts", userID, err)
		reg, err = s.localRegistry(ctx)
		return reg, WarnReadFallback, err
	}
	reg, err := s.localRegistry(ctx)
	return reg, "", err
}

func (s *LedgerService) localRegistry(ctx context.Context) (*core.Registry, error) {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	reg := core.NewRegistry(s.accounts.List(ctx))
	if reg.EnsureSeed() {
		if err := s.accounts.Save(ctx, reg.Accounts()); err != nil {
			return reg, fmt.Errorf("seed accounts: %w", err)
		}
	}
	return reg, nil
}

// mutateRegistry applies fn and persists the result. Registry writes never
// fall back: a remote failure is returned to the caller.
func (s *LedgerService) mutateRegistry(ctx context.Context, userID string, fn func(*core.Registry) error) error {
	defer s.invalidate(userID)

	if !s.useRemote(userID) {
		s.localMu.Lock()
		defer s.localMu.Unlock()
		reg := core.NewRegistry(s.accounts.List(ctx))
		reg.EnsureSeed()
		if err := fn(reg); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, reg.Accounts()); err != nil {
			return fmt.Errorf("save accounts: %w", err)
		}
		return nil
	}

	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	reg, err := s.remote.Accounts(rctx, userID)
	if err != nil {
		return err
	}
	reg.EnsureSeed()
	if err := fn(reg); err != nil {
		return err
	}
	if err := s.remote.SaveAccounts(rctx, userID, reg); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Account registry updated", log.FieldUserID, userID, log.FieldCount, reg.Len())
	return nil
}
