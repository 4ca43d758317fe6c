package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glowcorner/identity-core/internal/auth"
	"github.com/glowcorner/identity-core/internal/models"
)

// SearchAccounts lists accounts whose full name contains fragment. Only staff
// and managers may search.
func (s *Service) SearchAccounts(ctx context.Context, actor auth.Claims, fragment string) ([]models.Account, error) {
	if _, err := s.requireActor(ctx, actor, models.Role.CanSearchAccounts); err != nil {
		return nil, err
	}
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	accounts, err := s.store.Stores().Accounts.FindByFullNameContaining(ctx, fragment)
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	return accounts, nil
}

// UpdateRole assigns role to the account. Only managers may change roles.
func (s *Service) UpdateRole(ctx context.Context, actor auth.Claims, accountID, role string) (models.Account, error) {
	isManager := func(r models.Role) bool { return r == models.RoleManager }
	if _, err := s.requireActor(ctx, actor, isManager); err != nil {
		return models.Account{}, err
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	accounts := s.store.Stores().Accounts
	account, err := accounts.FindByID(ctx, accountID)
	if err != nil {
		return models.Account{}, lookupErr("account", err)
	}
	account.Role = r
	if account, err = accounts.Save(ctx, account); err != nil {
		return models.Account{}, fmt.Errorf("save account: %w", err)
	}
	s.log.InfoContext(ctx, "role updated", "account_id", account.ID, "role", r, "by", actor.Email())
	return account, nil
}

// requireActor checks the stored role of the token's account, so a demoted
// account loses privileges before its token expires.
func (s *Service) requireActor(ctx context.Context, actor auth.Claims, allowed func(models.Role) bool) (models.Account, error) {
	account, err := s.Me(ctx, actor)
	if errors.Is(err, ErrNotFound) {
		return models.Account{}, ErrForbidden
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("resolve actor: %w", err)
	}
	if !allowed(account.Role) {
		return models.Account{}, ErrForbidden
	}
	return account, nil
}
