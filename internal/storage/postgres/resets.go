package postgres

import (
	"context"

	"github.com/glowcorner/identity-core/internal/models"
	"github.com/glowcorner/identity-core/internal/storage"
)

type resetRepo struct {
	db dbtx
}

func (r *resetRepo) Create(ctx context.Context, p models.PasswordReset) error {
	const query = `
	INSERT INTO password_resets (token_hash, account_id, email, expires_at)
	VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, p.TokenHash, p.AccountID, p.Email, p.ExpiresAt)
	return mapError(err)
}

func (r *resetRepo) FindByTokenHash(ctx context.Context, tokenHash string) (models.PasswordReset, error) {
	const query = `
	SELECT token_hash, account_id, email, expires_at, used_at, created_at
	FROM password_resets WHERE token_hash = $1`
	var p models.PasswordReset
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(&p.TokenHash, &p.AccountID, &p.Email, &p.ExpiresAt, &p.UsedAt, &p.CreatedAt)
	if err != nil {
		return models.PasswordReset{}, mapError(err)
	}
	return p, nil
}

// MarkUsed consumes the reset. A reset already consumed reports ErrNotFound.
func (r *resetRepo) MarkUsed(ctx context.Context, tokenHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE password_resets SET used_at = NOW() WHERE token_hash = $1 AND used_at IS NULL`, tokenHash)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
