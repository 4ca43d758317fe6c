package identity

import (
	"errors"

	"github.com/glowcorner/identity-core/internal/auth"
	"github.com/glowcorner/identity-core/internal/oauth"
)

// Failure kinds surfaced by Service. Callers match them with errors.Is.
var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConflict           = errors.New("already exists")
	ErrProvisioning       = errors.New("account provisioning failed")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")

	ErrExternalAuth = oauth.ErrExternalAuth
	ErrInvalidToken = auth.ErrInvalidToken
)
