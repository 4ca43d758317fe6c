package identity

import (
	"context"
	"log/slog"

	"github.com/glowcorner/identity-core/internal/models"
)

// Notifier delivers password reset tokens to account holders.
type Notifier interface {
	PasswordResetRequested(ctx context.Context, account models.Account, req ResetRequest) error
}

// LogNotifier records reset requests without the token. It stands in until a
// mail transport is configured.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) PasswordResetRequested(ctx context.Context, account models.Account, req ResetRequest) error {
	n.Log.InfoContext(ctx, "password reset requested",
		"account_id", account.ID,
		"expires_at", req.ExpiresAt,
	)
	return nil
}
