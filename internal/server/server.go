package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/glowcorner/identity-core/internal/auth"
	"github.com/glowcorner/identity-core/internal/config"
	"github.com/glowcorner/identity-core/internal/http/handlers"
	"github.com/glowcorner/identity-core/internal/identity"
	"github.com/glowcorner/identity-core/internal/middleware"
	"github.com/glowcorner/identity-core/internal/oauth"
	"github.com/glowcorner/identity-core/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up the identity service, middleware and routes, and returns a
// ready server.
func New(cfg config.Config, store storage.Store, logger *slog.Logger) *Server {
	google := oauth.NewGoogleProvider(oauth.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
		Scopes:       cfg.Google.Scopes,
		AuthURL:      cfg.Google.AuthURL,
		TokenURL:     cfg.Google.TokenURL,
		UserInfoURL:  cfg.Google.UserInfoURL,
		Timeout:      cfg.Google.Timeout,
	})
	var provider identity.IdentityProvider
	if google.Configured() {
		provider = google
	} else {
		logger.Warn("google sign-in disabled: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}

	svc := identity.NewService(store,
		auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL()),
		auth.NewHasher(cfg.BcryptCost),
		provider,
		identity.Options{
			FrontendCallbackURL: cfg.FrontendCallbackURL,
			PhoneRegion:         cfg.PhoneDefaultRegion,
			ResetTokenTTL:       cfg.ResetTokenTTL,
		},
		identity.WithLogger(logger),
	)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now()).Register(mux)
	handlers.NewAuthHandler(svc, google, logger).Register(mux)
	handlers.NewUsersHandler(svc, logger).Register(mux)

	handler := middleware.CORS(cfg.CORSOrigins, middleware.Logging(logger, mux))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// leaves room for the bounded provider calls in the OAuth callback
		WriteTimeout: cfg.Google.Timeout*2 + 10*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return &Server{inner: httpServer}
}

// Handler exposes the root handler.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
