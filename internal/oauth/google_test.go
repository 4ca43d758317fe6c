package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *GoogleProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGoogleProvider(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/oauth2/callback",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
		Timeout:      timeout,
	})
}

func TestExchangeCode_Success(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	}, time.Second)

	tok, err := p.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "at-123", tok)
}

func TestExchangeCode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "error response", status: http.StatusBadRequest, body: `{"error":"invalid_grant"}`},
		{name: "missing access token", status: http.StatusOK, body: `{"token_type":"Bearer"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, time.Second)

			_, err := p.ExchangeCode(context.Background(), "code")
			assert.ErrorIs(t, err, ErrExternalAuth)
		})
	}
}

func TestExchangeCode_EmptyCode(t *testing.T) {
	p := NewGoogleProvider(Config{ClientID: "id", ClientSecret: "secret"})
	_, err := p.ExchangeCode(context.Background(), " ")
	assert.ErrorIs(t, err, ErrExternalAuth)
}

func TestExchangeCode_Timeout(t *testing.T) {
	release := make(chan struct{})
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	start := time.Now()
	_, err := p.ExchangeCode(context.Background(), "code")
	assert.ErrorIs(t, err, ErrExternalAuth)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchProfile(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Profile
		wantErr bool
	}{
		{name: "full profile", status: http.StatusOK, body: `{"email":"Bob@Example.com","name":"Bob"}`, want: Profile{Email: "bob@example.com", Name: "Bob"}},
		{name: "missing name", status: http.StatusOK, body: `{"email":"bob@example.com"}`, want: Profile{Email: "bob@example.com", Name: UnknownName}},
		{name: "missing email", status: http.StatusOK, body: `{"name":"Bob"}`, wantErr: true},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"invalid_token"}`, wantErr: true},
		{name: "garbage", status: http.StatusOK, body: `<html>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, time.Second)

			got, err := p.FetchProfile(context.Background(), "at-123")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrExternalAuth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider(Config{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/cb"})
	assert.True(t, p.Configured())

	u, err := url.Parse(p.AuthCodeURL("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "id", q.Get("client_id"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))

	assert.False(t, NewGoogleProvider(Config{}).Configured())
}
