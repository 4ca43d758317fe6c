package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/glowcorner/identity-core/internal/models"
)

const accountColumns = `id, full_name, email, phone, role, address, avatar_url, COALESCE(cart_id, ''), created_at`

type accountRepo struct {
	db dbtx
}

// Save inserts the account or updates the row with the same id.
func (r *accountRepo) Save(ctx context.Context, a models.Account) (models.Account, error) {
	query := `
	INSERT INTO accounts (id, full_name, email, phone, role, address, avatar_url, cart_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
	ON CONFLICT (id) DO UPDATE SET
		full_name = EXCLUDED.full_name,
		email = EXCLUDED.email,
		phone = EXCLUDED.phone,
		role = EXCLUDED.role,
		address = EXCLUDED.address,
		avatar_url = EXCLUDED.avatar_url,
		cart_id = EXCLUDED.cart_id
	RETURNING ` + accountColumns
	row := r.db.QueryRow(ctx, query, a.ID, a.FullName, a.Email, a.Phone, string(a.Role), a.Address, a.AvatarURL, a.CartID)
	saved, err := scanAccount(row)
	if err != nil {
		return models.Account{}, mapError(err)
	}
	return saved, nil
}

// FindByEmail fetches an account by email address.
func (r *accountRepo) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	a, err := scanAccount(row)
	return a, mapError(err)
}

// FindByID fetches an account by id.
func (r *accountRepo) FindByID(ctx context.Context, id string) (models.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	return a, mapError(err)
}

// FindByFullNameContaining matches fragment anywhere in the name, ignoring case.
func (r *accountRepo) FindByFullNameContaining(ctx context.Context, fragment string) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE full_name ILIKE '%' || $1 || '%' ESCAPE '\' ORDER BY id`
	rows, err := r.db.Query(ctx, query, escapeLike(fragment))
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var a models.Account
	var role string
	if err := row.Scan(&a.ID, &a.FullName, &a.Email, &a.Phone, &role, &a.Address, &a.AvatarURL, &a.CartID, &a.CreatedAt); err != nil {
		return models.Account{}, err
	}
	a.Role = models.Role(role)
	return a, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type idAllocator struct {
	db dbtx
}

// NextAccountID draws from account_id_seq. Rolled back transactions leave gaps.
func (a *idAllocator) NextAccountID(ctx context.Context) (string, error) {
	var n int64
	if err := a.db.QueryRow(ctx, `SELECT nextval('account_id_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("allocate account id: %w", err)
	}
	return models.FormatAccountID(n), nil
}
