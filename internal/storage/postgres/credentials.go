package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/glowcorner/identity-core/internal/models"
)

type credentialRepo struct {
	db dbtx
}

func (r *credentialRepo) Save(ctx context.Context, c models.Credential) (models.Credential, error) {
	const query = `
	INSERT INTO credentials (id, account_id, username, password_hash)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		username = EXCLUDED.username,
		password_hash = EXCLUDED.password_hash
	RETURNING id, account_id, username, password_hash, created_at`
	saved, err := scanCredential(r.db.QueryRow(ctx, query, c.ID, c.AccountID, c.Username, c.PasswordHash))
	return saved, mapError(err)
}

func (r *credentialRepo) FindByUsername(ctx context.Context, username string) (models.Credential, error) {
	const query = `SELECT id, account_id, username, password_hash, created_at FROM credentials WHERE username = $1`
	c, err := scanCredential(r.db.QueryRow(ctx, query, username))
	return c, mapError(err)
}

func (r *credentialRepo) FindByAccountID(ctx context.Context, accountID string) (models.Credential, error) {
	const query = `SELECT id, account_id, username, password_hash, created_at FROM credentials WHERE account_id = $1`
	c, err := scanCredential(r.db.QueryRow(ctx, query, accountID))
	return c, mapError(err)
}

func scanCredential(row pgx.Row) (models.Credential, error) {
	var c models.Credential
	if err := row.Scan(&c.ID, &c.AccountID, &c.Username, &c.PasswordHash, &c.CreatedAt); err != nil {
		return models.Credential{}, err
	}
	return c, nil
}
