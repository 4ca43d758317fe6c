package storage

import (
	"context"
	"errors"

	"github.com/glowcorner/identity-core/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// AccountStore persists accounts. Email uniqueness is enforced here, not by callers.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
	FindByFullNameContaining(ctx context.Context, fragment string) ([]models.Account, error)
	// Save inserts the account or updates the row with the same ID.
	Save(ctx context.Context, account models.Account) (models.Account, error)
}

// CredentialStore persists password credentials, at most one per account.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (models.Credential, error)
	FindByAccountID(ctx context.Context, accountID string) (models.Credential, error)
	Save(ctx context.Context, credential models.Credential) (models.Credential, error)
}

// CartStore persists carts, at most one per account.
type CartStore interface {
	FindByAccountID(ctx context.Context, accountID string) (models.Cart, error)
	Save(ctx context.Context, cart models.Cart) (models.Cart, error)
}

// ResetStore persists password reset artifacts keyed by token hash.
type ResetStore interface {
	Create(ctx context.Context, reset models.PasswordReset) error
	FindByTokenHash(ctx context.Context, tokenHash string) (models.PasswordReset, error)
	MarkUsed(ctx context.Context, tokenHash string) error
}

// IDAllocator hands out monotonically increasing account identifiers.
type IDAllocator interface {
	NextAccountID(ctx context.Context) (string, error)
}

// Stores groups the repositories bound to one connection or transaction.
type Stores struct {
	Accounts    AccountStore
	Credentials CredentialStore
	Carts       CartStore
	Resets      ResetStore
	IDs         IDAllocator
}

// Store is the persistence boundary used by the identity service.
type Store interface {
	// Stores returns repositories that run outside any transaction.
	Stores() Stores
	// RunInTx runs fn against repositories bound to a single transaction.
	// Nothing written through them is visible unless fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
	Close()
}
