package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowcorner/identity-core/internal/models"
	"github.com/glowcorner/identity-core/internal/storage"
)

func TestAccounts_EmailUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New().Stores()

	_, err := s.Accounts.Save(ctx, models.Account{ID: "U001", Email: "a@example.com", FullName: "A", Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = s.Accounts.Save(ctx, models.Account{ID: "U002", Email: "a@example.com", FullName: "B", Role: models.RoleCustomer})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	// updating the owner keeps its email
	_, err = s.Accounts.Save(ctx, models.Account{ID: "U001", Email: "a@example.com", FullName: "A2", Role: models.RoleStaff})
	require.NoError(t, err)

	got, err := s.Accounts.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "A2", got.FullName)
	assert.Equal(t, models.RoleStaff, got.Role)
}

func TestAccounts_FindByFullNameContaining(t *testing.T) {
	ctx := context.Background()
	s := New().Stores()
	for _, a := range []models.Account{
		{ID: "U002", Email: "b@example.com", FullName: "Bob Alison"},
		{ID: "U001", Email: "a@example.com", FullName: "Alice"},
		{ID: "U003", Email: "c@example.com", FullName: "Carol"},
	} {
		_, err := s.Accounts.Save(ctx, a)
		require.NoError(t, err)
	}

	got, err := s.Accounts.FindByFullNameContaining(ctx, "ALI")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "U001", got[0].ID)
	assert.Equal(t, "U002", got[1].ID)
}

func TestCredentials_RequireAccountAndUniqueUsername(t *testing.T) {
	ctx := context.Background()
	s := New().Stores()

	_, err := s.Credentials.Save(ctx, models.Credential{ID: "c1", AccountID: "U404", Username: "ghost"})
	assert.Error(t, err)

	_, err = s.Accounts.Save(ctx, models.Account{ID: "U001", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = s.Accounts.Save(ctx, models.Account{ID: "U002", Email: "b@example.com"})
	require.NoError(t, err)

	_, err = s.Credentials.Save(ctx, models.Credential{ID: "c1", AccountID: "U001", Username: "alice"})
	require.NoError(t, err)
	_, err = s.Credentials.Save(ctx, models.Credential{ID: "c2", AccountID: "U002", Username: "alice"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	_, err = s.Credentials.Save(ctx, models.Credential{ID: "c3", AccountID: "U001", Username: "other"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	_, err = s.Credentials.FindByAccountID(ctx, "U002")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.RunInTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		id, err := tx.IDs.NextAccountID(ctx)
		require.NoError(t, err)
		_, err = tx.Accounts.Save(ctx, models.Account{ID: id, Email: "a@example.com"})
		require.NoError(t, err)
		_, err = tx.Carts.Save(ctx, models.NewCart("cart-1", id))
		require.NoError(t, err)
		return errors.New("boom")
	})
	require.Error(t, err)

	s := store.Stores()
	_, err = s.Accounts.FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.Carts.FindByAccountID(ctx, "U001")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	next, err := s.IDs.NextAccountID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "U002", next, "ids are not reused after rollback")
}

func TestRunInTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := New()

	assert.Panics(t, func() {
		_ = store.RunInTx(ctx, func(ctx context.Context, tx storage.Stores) error {
			_, _ = tx.Accounts.Save(ctx, models.Account{ID: "U001", Email: "a@example.com"})
			panic("kaput")
		})
	})

	_, err := store.Stores().Accounts.FindByID(ctx, "U001")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResets_MarkUsedOnce(t *testing.T) {
	ctx := context.Background()
	s := New().Stores()

	require.NoError(t, s.Resets.Create(ctx, models.PasswordReset{TokenHash: "h", AccountID: "U001"}))
	require.NoError(t, s.Resets.MarkUsed(ctx, "h"))
	assert.ErrorIs(t, s.Resets.MarkUsed(ctx, "h"), storage.ErrNotFound)

	got, err := s.Resets.FindByTokenHash(ctx, "h")
	require.NoError(t, err)
	assert.NotNil(t, got.UsedAt)
}
