package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/glowcorner/identity-core/internal/http/respond"
	"github.com/glowcorner/identity-core/internal/identity"
	"github.com/glowcorner/identity-core/internal/middleware"
	"github.com/glowcorner/identity-core/internal/models/dto"
)

const maxBodyBytes = 1 << 20

// ConsentURLBuilder builds the identity provider's consent page URL.
type ConsentURLBuilder interface {
	Configured() bool
	AuthCodeURL(state string) string
}

// AuthHandler owns the login, signup, OAuth and password endpoints.
type AuthHandler struct {
	svc     *identity.Service
	consent ConsentURLBuilder
	log     *slog.Logger
}

// NewAuthHandler constructs the handler. consent may be nil when external
// sign-in is disabled.
func NewAuthHandler(svc *identity.Service, consent ConsentURLBuilder, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, consent: consent, log: logger}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/login/google", h.handleEmailLogin)
	mux.HandleFunc("/auth/signup", h.handleSignup)
	mux.HandleFunc("/auth/register", h.handleSignup)
	mux.HandleFunc("/auth/oauth2/google", h.handleConsent)
	mux.HandleFunc("/auth/oauth2/callback", h.handleCallback)
	mux.HandleFunc("/auth/forgot-password", h.handleForgotPassword)
	mux.HandleFunc("/auth/reset-password", h.handleResetPassword)
	mux.HandleFunc("/auth/change-password", h.handleChangePassword)
	mux.Handle("/auth/me", middleware.RequireAuth(h.svc, http.HandlerFunc(h.handleMe)))
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req dto.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, http.StatusUnauthorized, "invalid JSON payload")
		return
	}
	// every login failure is a 401
	session, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeErrorOr(w, r, h.log, err, fallback{http.StatusUnauthorized, "login failed"},
			override{identity.ErrNotFound, http.StatusUnauthorized},
			override{identity.ErrValidation, http.StatusUnauthorized},
		)
		return
	}
	respond.JSON(w, http.StatusOK, "login successful", dto.LoginResponse{
		Email:    session.Account.Email,
		FullName: session.Account.FullName,
		Role:     session.Account.Role,
		UserID:   session.Account.ID,
		JWTToken: session.Token,
	})
}

func (h *AuthHandler) handleEmailLogin(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	session, err := h.svc.LoginWithEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, r, h.log, err,
			override{identity.ErrNotFound, http.StatusUnauthorized},
			override{identity.ErrValidation, http.StatusUnauthorized},
		)
		return
	}
	respond.JSON(w, http.StatusOK, "login successful", dto.EmailLoginResponse{
		Email:    session.Account.Email,
		FullName: session.Account.FullName,
		Role:     session.Account.Role,
		JWTToken: session.Token,
	})
}

func (h *AuthHandler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req dto.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	account, err := h.svc.Signup(r.Context(), identity.SignupInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		writeErrorOr(w, r, h.log, err, fallback{http.StatusBadRequest, "Failed to create user"},
			override{identity.ErrConflict, http.StatusBadRequest},
		)
		return
	}
	respond.JSON(w, http.StatusOK, "User created successfully", account)
}

func (h *AuthHandler) handleConsent(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if h.consent == nil || !h.consent.Configured() {
		respond.Error(w, http.StatusServiceUnavailable, "google sign-in is not configured")
		return
	}
	http.Redirect(w, r, h.consent.AuthCodeURL(uuid.NewString()), http.StatusFound)
}

// handleCallback finishes the OAuth flow. It never lets a failure escape as
// anything other than an envelope: provider failures are 401, the rest 500.
func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.ErrorContext(r.Context(), "oauth callback panic", "panic", fmt.Sprint(rec))
			respond.Error(w, http.StatusInternalServerError, "authentication failed")
		}
	}()
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		respond.Error(w, http.StatusUnauthorized, "authentication failed: "+reason)
		return
	}
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		respond.Error(w, http.StatusUnauthorized, "authentication failed: missing authorization code")
		return
	}

	session, err := h.svc.OAuthCallback(r.Context(), code)
	if err != nil {
		if errors.Is(err, identity.ErrExternalAuth) {
			h.log.WarnContext(r.Context(), "oauth exchange failed", "err", err)
			respond.Error(w, http.StatusUnauthorized, "authentication failed")
			return
		}
		h.log.ErrorContext(r.Context(), "oauth callback failed", "err", err)
		respond.Error(w, http.StatusInternalServerError, "authentication failed")
		return
	}
	target, err := h.svc.CallbackRedirect(session)
	if err != nil {
		h.log.ErrorContext(r.Context(), "build callback redirect", "err", err)
		respond.Error(w, http.StatusInternalServerError, "authentication failed")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *AuthHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req dto.ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	identifier := firstNonEmpty(req.Identifier, req.Email, req.Username)
	if _, err := h.svc.ForgotPassword(r.Context(), identifier); err != nil {
		writeErrorOr(w, r, h.log, err, fallback{http.StatusBadRequest, "failed to process password reset"},
			override{identity.ErrNotFound, http.StatusBadRequest},
		)
		return
	}
	respond.JSON(w, http.StatusOK, "password reset instructions sent", nil)
}

func (h *AuthHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req dto.ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeErrorOr(w, r, h.log, err, fallback{http.StatusBadRequest, "failed to reset password"},
			override{identity.ErrInvalidToken, http.StatusBadRequest},
			override{identity.ErrConflict, http.StatusBadRequest},
		)
		return
	}
	respond.JSON(w, http.StatusOK, "password has been reset", nil)
}

func (h *AuthHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req dto.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	err := h.svc.ChangePassword(r.Context(), identity.ChangePasswordInput{
		UserID:          req.UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeErrorOr(w, r, h.log, err, fallback{http.StatusBadRequest, "failed to change password"},
			override{identity.ErrNotFound, http.StatusBadRequest},
			override{identity.ErrInvalidCredentials, http.StatusBadRequest},
		)
		return
	}
	respond.JSON(w, http.StatusOK, "password changed successfully", nil)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	account, err := h.svc.Me(r.Context(), claims)
	if err != nil {
		writeError(w, r, h.log, err, override{identity.ErrNotFound, http.StatusUnauthorized})
		return
	}
	respond.JSON(w, http.StatusOK, "ok", account)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON body")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
