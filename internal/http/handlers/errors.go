package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/glowcorner/identity-core/internal/http/respond"
	"github.com/glowcorner/identity-core/internal/identity"
)

// statusFor is the default mapping from identity failures to HTTP statuses.
var statusFor = []struct {
	err    error
	status int
}{
	{identity.ErrValidation, http.StatusBadRequest},
	{identity.ErrConflict, http.StatusConflict},
	{identity.ErrNotFound, http.StatusNotFound},
	{identity.ErrInvalidCredentials, http.StatusUnauthorized},
	{identity.ErrInvalidToken, http.StatusUnauthorized},
	{identity.ErrExternalAuth, http.StatusUnauthorized},
	{identity.ErrForbidden, http.StatusForbidden},
}

type override struct {
	err    error
	status int
}

// fallback is the response for errors no mapping recognises.
type fallback struct {
	status  int
	message string
}

var internalError = fallback{http.StatusInternalServerError, "internal server error"}

// writeError maps err to a status, consulting overrides first. Anything
// unrecognised is logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, overrides ...override) {
	writeErrorOr(w, r, logger, err, internalError, overrides...)
}

// writeErrorOr is writeError with a route-specific response for
// unrecognised errors. The detail is logged, never sent.
func writeErrorOr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fb fallback, overrides ...override) {
	status := 0
	for _, o := range overrides {
		if errors.Is(err, o.err) {
			status = o.status
			break
		}
	}
	if status == 0 {
		for _, m := range statusFor {
			if errors.Is(err, m.err) {
				status = m.status
				break
			}
		}
	}
	if status == 0 {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		respond.Error(w, fb.status, fb.message)
		return
	}
	respond.Error(w, status, err.Error())
}
