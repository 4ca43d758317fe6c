// Package identity implements login, signup, external sign-in and password
// management on top of the account, credential and cart stores. It owns the
// provisioning transaction that creates an account together with its cart
// (and credential, for password signups).
package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glowcorner/identity-core/internal/auth"
	"github.com/glowcorner/identity-core/internal/models"
	"github.com/glowcorner/identity-core/internal/oauth"
	"github.com/glowcorner/identity-core/internal/storage"
)

// TokenIssuer signs and validates session tokens.
type TokenIssuer interface {
	Issue(email string, role models.Role) (string, error)
	Validate(token string) (auth.Claims, error)
}

// PasswordHasher hashes and verifies plaintext passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Matches(plaintext, hash string) bool
}

// IdentityProvider resolves an authorization code into an external profile.
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (oauth.Profile, error)
}

// Session is a resolved account with a freshly issued token.
type Session struct {
	Account models.Account
	Token   string
	// Provisioned is set when the account was created by this call.
	Provisioned bool
}

// Options tunes Service behaviour.
type Options struct {
	FrontendCallbackURL string
	PhoneRegion         string
	ResetTokenTTL       time.Duration
}

// Option customizes a Service at construction.
type Option func(*Service)

// WithNotifier sets the collaborator told about password reset requests.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service composes the stores, token issuer, password hasher and identity
// provider. It keeps no per-request state and is safe for concurrent use.
type Service struct {
	store    storage.Store
	tokens   TokenIssuer
	hasher   PasswordHasher
	provider IdentityProvider
	notifier Notifier
	log      *slog.Logger
	opts     Options
	now      func() time.Time
	newID    func() string
}

// NewService wires a Service. provider may be nil when external sign-in is disabled.
func NewService(store storage.Store, tokens TokenIssuer, hasher PasswordHasher, provider IdentityProvider, opts Options, options ...Option) *Service {
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = 30 * time.Minute
	}
	s := &Service{
		store:    store,
		tokens:   tokens,
		hasher:   hasher,
		provider: provider,
		opts:     opts,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range options {
		o(s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Log: s.log}
	}
	return s
}

// Login authenticates identifier (an email or a username) with password.
func (s *Service) Login(ctx context.Context, identifier, password string) (Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return Session{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	account, credential, err := s.resolveForLogin(ctx, identifier)
	if err != nil {
		return Session{}, err
	}
	if !s.hasher.Matches(password, credential.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(account, false)
}

// resolveForLogin looks the identifier up as an account email first and only
// then as a credential username. An account without a credential cannot log
// in with a password and resolves to ErrNotFound.
func (s *Service) resolveForLogin(ctx context.Context, identifier string) (models.Account, models.Credential, error) {
	st := s.store.Stores()

	account, err := st.Accounts.FindByEmail(ctx, normalizeEmail(identifier))
	switch {
	case err == nil:
		credential, err := st.Credentials.FindByAccountID(ctx, account.ID)
		if err != nil {
			return models.Account{}, models.Credential{}, lookupErr("credential", err)
		}
		return account, credential, nil
	case !errors.Is(err, storage.ErrNotFound):
		return models.Account{}, models.Credential{}, fmt.Errorf("find account by email: %w", err)
	}

	credential, err := st.Credentials.FindByUsername(ctx, identifier)
	if err != nil {
		return models.Account{}, models.Credential{}, lookupErr("credential", err)
	}
	account, err = st.Accounts.FindByID(ctx, credential.AccountID)
	if err != nil {
		return models.Account{}, models.Credential{}, lookupErr("account", err)
	}
	return account, credential, nil
}

// Signup creates an account, its credential and an empty cart in one unit.
// No token is issued; the caller logs in separately.
func (s *Service) Signup(ctx context.Context, in SignupInput) (models.Account, error) {
	in, err := in.normalize(s.opts.PhoneRegion)
	if err != nil {
		return models.Account{}, err
	}

	st := s.store.Stores()
	if _, err := st.Credentials.FindByUsername(ctx, in.Username); err == nil {
		return models.Account{}, fmt.Errorf("username %w", ErrConflict)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return models.Account{}, fmt.Errorf("find credential by username: %w", err)
	}
	if _, err := st.Accounts.FindByEmail(ctx, in.Email); err == nil {
		return models.Account{}, fmt.Errorf("email %w", ErrConflict)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return models.Account{}, fmt.Errorf("find account by email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.provision(ctx, newAccount{
		email:    in.Email,
		fullName: in.FullName,
		phone:    in.Phone,
		username: in.Username,
		hash:     hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.Account{}, fmt.Errorf("username or email %w", ErrConflict)
		}
		return models.Account{}, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}
	s.log.InfoContext(ctx, "account provisioned", "account_id", account.ID, "source", "signup")
	return account, nil
}

// LoginWithEmail issues a token for an email already verified upstream. It
// never provisions.
func (s *Service) LoginWithEmail(ctx context.Context, email string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return Session{}, fmt.Errorf("%w: email is required", ErrValidation)
	}
	account, err := s.store.Stores().Accounts.FindByEmail(ctx, email)
	if err != nil {
		return Session{}, lookupErr("account", err)
	}
	return s.issue(account, false)
}

// OAuthCallback exchanges code with the identity provider, finds or
// provisions the matching account and issues a token. Provider failures
// never leave a partially provisioned account.
func (s *Service) OAuthCallback(ctx context.Context, code string) (Session, error) {
	if s.provider == nil {
		return Session{}, fmt.Errorf("%w: identity provider not configured", ErrExternalAuth)
	}
	accessToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return Session{}, externalErr(err)
	}
	profile, err := s.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		return Session{}, externalErr(err)
	}
	email := normalizeEmail(profile.Email)
	if email == "" {
		return Session{}, fmt.Errorf("%w: profile has no email", ErrExternalAuth)
	}

	account, created, err := s.findOrProvisionExternal(ctx, email, profile.Name)
	if err != nil {
		return Session{}, err
	}
	return s.issue(account, created)
}

func (s *Service) findOrProvisionExternal(ctx context.Context, email, name string) (models.Account, bool, error) {
	accounts := s.store.Stores().Accounts
	account, err := accounts.FindByEmail(ctx, email)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.Account{}, false, fmt.Errorf("find account by email: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name = oauth.UnknownName
	}
	account, err = s.provision(ctx, newAccount{email: email, fullName: name})
	if errors.Is(err, storage.ErrAlreadyExists) {
		// a concurrent callback won the insert; use its account
		account, err = accounts.FindByEmail(ctx, email)
		if err != nil {
			return models.Account{}, false, fmt.Errorf("%w: %v", ErrProvisioning, err)
		}
		return account, false, nil
	}
	if err != nil {
		return models.Account{}, false, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}
	s.log.InfoContext(ctx, "account provisioned", "account_id", account.ID, "source", "oauth")
	return account, true, nil
}

// CallbackRedirect builds the frontend URL that carries the session of an
// OAuth sign-in as percent-encoded query parameters.
func (s *Service) CallbackRedirect(session Session) (string, error) {
	u, err := url.Parse(s.opts.FrontendCallbackURL)
	if err != nil {
		return "", fmt.Errorf("parse frontend callback url: %w", err)
	}
	q := u.Query()
	q.Set("jwtToken", session.Token)
	q.Set("role", session.Account.Role.String())
	q.Set("email", session.Account.Email)
	q.Set("fullName", session.Account.FullName)
	q.Set("userID", session.Account.ID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ChangePassword replaces the stored hash after verifying the current password.
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	credentials := s.store.Stores().Credentials
	credential, err := credentials.FindByAccountID(ctx, in.UserID)
	if err != nil {
		return lookupErr("credential", err)
	}
	if !s.hasher.Matches(in.CurrentPassword, credential.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	credential.PasswordHash = hash
	if _, err := credentials.Save(ctx, credential); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	s.log.InfoContext(ctx, "password changed", "account_id", in.UserID)
	return nil
}

// Authenticate validates a bearer token.
func (s *Service) Authenticate(token string) (auth.Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return auth.Claims{}, err
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Me returns the account named by validated claims.
func (s *Service) Me(ctx context.Context, claims auth.Claims) (models.Account, error) {
	account, err := s.store.Stores().Accounts.FindByEmail(ctx, claims.Email())
	if err != nil {
		return models.Account{}, lookupErr("account", err)
	}
	return account, nil
}

func (s *Service) issue(account models.Account, provisioned bool) (Session, error) {
	token, err := s.tokens.Issue(account.Email, account.Role)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Account: account, Token: token, Provisioned: provisioned}, nil
}

type newAccount struct {
	email    string
	fullName string
	phone    string
	// username and hash are empty for external identities
	username string
	hash     string
}

// provision creates the account, optional credential and empty cart, then
// links the cart to the account, all inside one transaction.
func (s *Service) provision(ctx context.Context, n newAccount) (models.Account, error) {
	var created models.Account
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		id, err := tx.IDs.NextAccountID(ctx)
		if err != nil {
			return err
		}
		account, err := tx.Accounts.Save(ctx, models.Account{
			ID:       id,
			FullName: n.fullName,
			Email:    n.email,
			Phone:    n.phone,
			Role:     models.RoleCustomer,
		})
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		if n.username != "" {
			if _, err := tx.Credentials.Save(ctx, models.Credential{
				ID:           s.newID(),
				AccountID:    id,
				Username:     n.username,
				PasswordHash: n.hash,
			}); err != nil {
				return fmt.Errorf("create credential: %w", err)
			}
		}
		cart, err := tx.Carts.Save(ctx, models.NewCart(s.newID(), id))
		if err != nil {
			return fmt.Errorf("create cart: %w", err)
		}
		account.CartID = cart.ID
		if created, err = tx.Accounts.Save(ctx, account); err != nil {
			return fmt.Errorf("link cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Account{}, err
	}
	return created, nil
}

func lookupErr(what string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("find %s: %w", what, err)
}

func externalErr(err error) error {
	if errors.Is(err, ErrExternalAuth) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrExternalAuth, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
