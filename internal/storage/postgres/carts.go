package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/glowcorner/identity-core/internal/models"
)

type cartRepo struct {
	db dbtx
}

func (r *cartRepo) Save(ctx context.Context, c models.Cart) (models.Cart, error) {
	items := c.Items
	if items == nil {
		items = []models.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return models.Cart{}, fmt.Errorf("encode cart items: %w", err)
	}
	const query = `
	INSERT INTO carts (id, account_id, items)
	VALUES ($1, $2, $3::jsonb)
	ON CONFLICT (id) DO UPDATE SET items = EXCLUDED.items
	RETURNING id, account_id, items, created_at`
	saved, err := scanCart(r.db.QueryRow(ctx, query, c.ID, c.AccountID, string(raw)))
	return saved, mapError(err)
}

func (r *cartRepo) FindByAccountID(ctx context.Context, accountID string) (models.Cart, error) {
	const query = `SELECT id, account_id, items, created_at FROM carts WHERE account_id = $1`
	c, err := scanCart(r.db.QueryRow(ctx, query, accountID))
	return c, mapError(err)
}

func scanCart(row pgx.Row) (models.Cart, error) {
	var c models.Cart
	var raw []byte
	if err := row.Scan(&c.ID, &c.AccountID, &raw, &c.CreatedAt); err != nil {
		return models.Cart{}, err
	}
	if err := json.Unmarshal(raw, &c.Items); err != nil {
		return models.Cart{}, fmt.Errorf("decode cart items: %w", err)
	}
	return c, nil
}
