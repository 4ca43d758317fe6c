// Package memory is a process-local storage.Store. It enforces the same
// uniqueness rules as the Postgres schema and gives RunInTx all-or-nothing
// visibility by holding the store lock and restoring a snapshot on failure.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/glowcorner/identity-core/internal/models"
	"github.com/glowcorner/identity-core/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps every record in maps guarded by one mutex.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

type state struct {
	accounts      map[string]models.Account
	emails        map[string]string
	credentials   map[string]models.Credential
	usernames     map[string]string
	credByAccount map[string]string
	carts         map[string]models.Cart
	cartByAccount map[string]string
	resets        map[string]models.PasswordReset
	seq           int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: &state{
			accounts:      map[string]models.Account{},
			emails:        map[string]string{},
			credentials:   map[string]models.Credential{},
			usernames:     map[string]string{},
			credByAccount: map[string]string{},
			carts:         map[string]models.Cart{},
			cartByAccount: map[string]string{},
			resets:        map[string]models.PasswordReset{},
		},
		now: time.Now,
	}
}

func (st *state) clone() *state {
	c := &state{
		accounts:      maps.Clone(st.accounts),
		emails:        maps.Clone(st.emails),
		credentials:   maps.Clone(st.credentials),
		usernames:     maps.Clone(st.usernames),
		credByAccount: maps.Clone(st.credByAccount),
		carts:         make(map[string]models.Cart, len(st.carts)),
		cartByAccount: maps.Clone(st.cartByAccount),
		resets:        maps.Clone(st.resets),
		seq:           st.seq,
	}
	for id, cart := range st.carts {
		cart.Items = slices.Clone(cart.Items)
		c.carts[id] = cart
	}
	return c
}

// Stores returns repositories that take the store lock per call.
func (s *Store) Stores() storage.Stores {
	return s.bind(false)
}

// RunInTx serializes fn against every other store call. When fn fails the
// records are restored; the id counter keeps advancing like a database sequence.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Stores) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s.bind(true))
}

func (s *Store) restore(snapshot *state) {
	seq := s.st.seq
	*s.st = *snapshot
	s.st.seq = seq
}

// Close is a no-op.
func (s *Store) Close() {}

func (s *Store) bind(inTx bool) storage.Stores {
	b := base{s: s, inTx: inTx}
	return storage.Stores{
		Accounts:    accounts{b},
		Credentials: credentials{b},
		Carts:       carts{b},
		Resets:      resets{b},
		IDs:         ids{b},
	}
}

type base struct {
	s    *Store
	inTx bool
}

// acquire takes the store lock unless the caller already holds it through RunInTx.
func (b base) acquire() func() {
	if b.inTx {
		return func() {}
	}
	b.s.mu.Lock()
	return b.s.mu.Unlock
}

type accounts struct{ base }

func (r accounts) FindByEmail(_ context.Context, email string) (models.Account, error) {
	defer r.acquire()()
	id, ok := r.s.st.emails[email]
	if !ok {
		return models.Account{}, storage.ErrNotFound
	}
	return r.s.st.accounts[id], nil
}

func (r accounts) FindByID(_ context.Context, id string) (models.Account, error) {
	defer r.acquire()()
	a, ok := r.s.st.accounts[id]
	if !ok {
		return models.Account{}, storage.ErrNotFound
	}
	return a, nil
}

func (r accounts) FindByFullNameContaining(_ context.Context, fragment string) ([]models.Account, error) {
	defer r.acquire()()
	needle := strings.ToLower(fragment)
	var out []models.Account
	for _, a := range r.s.st.accounts {
		if strings.Contains(strings.ToLower(a.FullName), needle) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r accounts) Save(_ context.Context, a models.Account) (models.Account, error) {
	defer r.acquire()()
	st := r.s.st
	if owner, ok := st.emails[a.Email]; ok && owner != a.ID {
		return models.Account{}, fmt.Errorf("%w: accounts_email_unique_idx", storage.ErrAlreadyExists)
	}
	if prev, ok := st.accounts[a.ID]; ok {
		delete(st.emails, prev.Email)
		a.CreatedAt = prev.CreatedAt
	} else if a.CreatedAt.IsZero() {
		a.CreatedAt = r.s.now()
	}
	st.accounts[a.ID] = a
	st.emails[a.Email] = a.ID
	return a, nil
}

type credentials struct{ base }

func (r credentials) FindByUsername(_ context.Context, username string) (models.Credential, error) {
	defer r.acquire()()
	id, ok := r.s.st.usernames[username]
	if !ok {
		return models.Credential{}, storage.ErrNotFound
	}
	return r.s.st.credentials[id], nil
}

func (r credentials) FindByAccountID(_ context.Context, accountID string) (models.Credential, error) {
	defer r.acquire()()
	id, ok := r.s.st.credByAccount[accountID]
	if !ok {
		return models.Credential{}, storage.ErrNotFound
	}
	return r.s.st.credentials[id], nil
}

func (r credentials) Save(_ context.Context, c models.Credential) (models.Credential, error) {
	defer r.acquire()()
	st := r.s.st
	if _, ok := st.accounts[c.AccountID]; !ok {
		return models.Credential{}, fmt.Errorf("credential references unknown account %q", c.AccountID)
	}
	if owner, ok := st.usernames[c.Username]; ok && owner != c.ID {
		return models.Credential{}, fmt.Errorf("%w: credentials_username_unique_idx", storage.ErrAlreadyExists)
	}
	if owner, ok := st.credByAccount[c.AccountID]; ok && owner != c.ID {
		return models.Credential{}, fmt.Errorf("%w: credentials_account_unique_idx", storage.ErrAlreadyExists)
	}
	if prev, ok := st.credentials[c.ID]; ok {
		delete(st.usernames, prev.Username)
		c.CreatedAt = prev.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = r.s.now()
	}
	st.credentials[c.ID] = c
	st.usernames[c.Username] = c.ID
	st.credByAccount[c.AccountID] = c.ID
	return c, nil
}

type carts struct{ base }

func (r carts) FindByAccountID(_ context.Context, accountID string) (models.Cart, error) {
	defer r.acquire()()
	id, ok := r.s.st.cartByAccount[accountID]
	if !ok {
		return models.Cart{}, storage.ErrNotFound
	}
	c := r.s.st.carts[id]
	c.Items = slices.Clone(c.Items)
	return c, nil
}

func (r carts) Save(_ context.Context, c models.Cart) (models.Cart, error) {
	defer r.acquire()()
	st := r.s.st
	if _, ok := st.accounts[c.AccountID]; !ok {
		return models.Cart{}, fmt.Errorf("cart references unknown account %q", c.AccountID)
	}
	if owner, ok := st.cartByAccount[c.AccountID]; ok && owner != c.ID {
		return models.Cart{}, fmt.Errorf("%w: carts_account_unique_idx", storage.ErrAlreadyExists)
	}
	if prev, ok := st.carts[c.ID]; ok {
		c.CreatedAt = prev.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = r.s.now()
	}
	c.Items = slices.Clone(c.Items)
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	st.carts[c.ID] = c
	st.cartByAccount[c.AccountID] = c.ID
	return c, nil
}

type resets struct{ base }

func (r resets) Create(_ context.Context, p models.PasswordReset) error {
	defer r.acquire()()
	if _, ok := r.s.st.resets[p.TokenHash]; ok {
		return fmt.Errorf("%w: password_resets_pkey", storage.ErrAlreadyExists)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.s.now()
	}
	r.s.st.resets[p.TokenHash] = p
	return nil
}

func (r resets) FindByTokenHash(_ context.Context, tokenHash string) (models.PasswordReset, error) {
	defer r.acquire()()
	p, ok := r.s.st.resets[tokenHash]
	if !ok {
		return models.PasswordReset{}, storage.ErrNotFound
	}
	return p, nil
}

func (r resets) MarkUsed(_ context.Context, tokenHash string) error {
	defer r.acquire()()
	p, ok := r.s.st.resets[tokenHash]
	if !ok || p.UsedAt != nil {
		return storage.ErrNotFound
	}
	now := r.s.now()
	p.UsedAt = &now
	r.s.st.resets[tokenHash] = p
	return nil
}

type ids struct{ base }

func (r ids) NextAccountID(_ context.Context) (string, error) {
	defer r.acquire()()
	r.s.st.seq++
	return models.FormatAccountID(r.s.st.seq), nil
}
