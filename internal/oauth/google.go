// Package oauth resolves an authorization code issued by an external identity
// provider into a normalized profile. Calls are bounded by a timeout and never
// retried here.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultTimeout     = 10 * time.Second

	// UnknownName is used when the provider profile carries no display name.
	UnknownName = "N/A"
)

// ErrExternalAuth marks any failure of the provider exchange or profile fetch.
var ErrExternalAuth = errors.New("external authentication failed")

// Config holds the provider client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// DefaultScopes returns the scopes needed for email and name.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// Profile is the normalized external identity. Email is the only key the
// core uses to match accounts.
type Profile struct {
	Email string
	Name  string
}

// GoogleProvider performs the authorization-code exchange against Google.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	timeout     time.Duration
	httpClient  *http.Client
}

// NewGoogleProvider fills endpoint defaults and builds the HTTP client.
func NewGoogleProvider(cfg Config) *GoogleProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		timeout:     cfg.Timeout,
		httpClient:  client,
	}
}

// Configured reports whether client credentials were supplied.
func (p *GoogleProvider) Configured() bool {
	return p.oauth.ClientID != "" && p.oauth.ClientSecret != ""
}

// AuthCodeURL returns the consent page URL carrying state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// ExchangeCode trades an authorization code for the provider access token.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("%w: empty authorization code", ErrExternalAuth)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", fmt.Errorf("%w: token endpoint returned %d %s", ErrExternalAuth, retrieveErr.Response.StatusCode, retrieveErr.ErrorCode)
		}
		return "", fmt.Errorf("%w: exchange code: %v", ErrExternalAuth, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: missing access token", ErrExternalAuth)
	}
	return token.AccessToken, nil
}

type googleUserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// FetchProfile reads the profile endpoint with the provider access token.
func (p *GoogleProvider) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: build profile request: %v", ErrExternalAuth, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: profile request: %v", ErrExternalAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, fmt.Errorf("%w: read profile: %v", ErrExternalAuth, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: profile endpoint returned %d", ErrExternalAuth, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return Profile{}, fmt.Errorf("%w: decode profile: %v", ErrExternalAuth, err)
	}
	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" {
		return Profile{}, fmt.Errorf("%w: profile has no email", ErrExternalAuth)
	}
	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = UnknownName
	}
	return Profile{Email: email, Name: name}, nil
}
