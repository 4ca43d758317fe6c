package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/glowcorner/identity-core/internal/models"
	"github.com/glowcorner/identity-core/internal/storage"
)

// ResetRequest describes an issued password reset. Token is the only copy
// of the plaintext token; the store keeps its hash.
type ResetRequest struct {
	AccountID string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// ForgotPassword resolves identifier (email first, then username), records a
// single-use reset token and hands it to the notifier.
func (s *Service) ForgotPassword(ctx context.Context, identifier string) (ResetRequest, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ResetRequest{}, fmt.Errorf("%w: email or username is required", ErrValidation)
	}
	account, err := s.resolveAccount(ctx, identifier)
	if err != nil {
		return ResetRequest{}, err
	}

	token := s.newID()
	req := ResetRequest{
		AccountID: account.ID,
		Email:     account.Email,
		Token:     token,
		ExpiresAt: s.now().Add(s.opts.ResetTokenTTL),
	}
	err = s.store.Stores().Resets.Create(ctx, models.PasswordReset{
		TokenHash: hashResetToken(token),
		AccountID: account.ID,
		Email:     account.Email,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return ResetRequest{}, fmt.Errorf("store reset token: %w", err)
	}
	if err := s.notifier.PasswordResetRequested(ctx, account, req); err != nil {
		return ResetRequest{}, fmt.Errorf("notify password reset: %w", err)
	}
	return req, nil
}

// ResetPassword consumes a reset token and sets a new password. Accounts
// provisioned through external sign-in get a credential whose username is
// their email.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: reset token is required", ErrValidation)
	}
	if err := validation.Validate(newPassword, passwordRules...); err != nil {
		return fmt.Errorf("%w: newPassword: %v", ErrValidation, err)
	}

	tokenHash := hashResetToken(token)
	reset, err := s.store.Stores().Resets.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: unknown reset token", ErrInvalidToken)
		}
		return fmt.Errorf("find reset token: %w", err)
	}
	if !reset.Usable(s.now()) {
		return fmt.Errorf("%w: reset token expired or used", ErrInvalidToken)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		if err := tx.Resets.MarkUsed(ctx, tokenHash); err != nil {
			return err
		}
		credential, err := tx.Credentials.FindByAccountID(ctx, reset.AccountID)
		switch {
		case err == nil:
			credential.PasswordHash = hash
		case errors.Is(err, storage.ErrNotFound):
			account, err := tx.Accounts.FindByID(ctx, reset.AccountID)
			if err != nil {
				return err
			}
			credential = models.Credential{
				ID:           s.newID(),
				AccountID:    account.ID,
				Username:     account.Email,
				PasswordHash: hash,
			}
		default:
			return err
		}
		_, err = tx.Credentials.Save(ctx, credential)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrAlreadyExists):
		return fmt.Errorf("username %w", ErrConflict)
	case errors.Is(err, storage.ErrNotFound):
		// token consumed concurrently or account removed
		return fmt.Errorf("%w: reset token expired or used", ErrInvalidToken)
	default:
		return fmt.Errorf("reset password: %w", err)
	}
	s.log.InfoContext(ctx, "password reset", "account_id", reset.AccountID)
	return nil
}

// resolveAccount finds an account by email, falling back to username.
func (s *Service) resolveAccount(ctx context.Context, identifier string) (models.Account, error) {
	st := s.store.Stores()
	account, err := st.Accounts.FindByEmail(ctx, normalizeEmail(identifier))
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.Account{}, fmt.Errorf("find account by email: %w", err)
	}
	credential, err := st.Credentials.FindByUsername(ctx, identifier)
	if err != nil {
		return models.Account{}, lookupErr("credential", err)
	}
	account, err = st.Accounts.FindByID(ctx, credential.AccountID)
	if err != nil {
		return models.Account{}, lookupErr("account", err)
	}
	return account, nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
