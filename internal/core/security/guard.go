package security

import (
	"context"

	appctx "tally/internal/core/context"
	"tally/internal/core/apperror"
)

// RequireAdmin fails with FORBIDDEN unless the acting user is an administrator.
func RequireAdmin(ctx context.Context, action string) error {
	if appctx.IsAdmin(ctx) {
		return nil
	}
	return apperror.NewForbidden("only administrators may " + action).
		WithDetail("action", action).
		WithDetail("user_id", appctx.GetUserID(ctx))
}
