// Package identity resolves Slack user ids to display names.
package identity

import (
	"context"
	"log/slog"

	"sambot/internal/domain"
)

// Resolver looks display names up through the chat client.
type Resolver struct {
	chat   domain.ChatClient
	logger *slog.Logger
}

// New creates a Resolver that looks users up through chat.
func New(chat domain.ChatClient, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{chat: chat, logger: logger}
}

// Resolve returns the user's profile display name. A not-ok answer or a
// missing user, profile or display_name yields domain.Unresolved with a nil
// error; only transport failures are returned, as
// *domain.LookupTransportError.
func (r *Resolver) Resolve(ctx context.Context, userID string) (domain.ResolvedUser, error) {
	r.logger.Debug("resolving user", "user", userID)
	if userID == "" {
		return domain.Unresolved, nil
	}

	lookup, err := r.chat.UserInfo(ctx, userID)
	if err != nil {
		return domain.Unresolved, &domain.LookupTransportError{UserID: userID, Cause: err}
	}

	name, ok := displayName(lookup)
	if !ok {
		r.logger.Debug("display name not resolved", "user", userID)
		return domain.Unresolved, nil
	}
	r.logger.Debug("resolved user", "user", userID, "display_name", name)
	return domain.Resolve(name), nil
}

func displayName(l *domain.UserLookup) (string, bool) {
	if l == nil || !l.OK || l.User == nil || l.User.Profile == nil || l.User.Profile.DisplayName == nil {
		return "", false
	}
	return *l.User.Profile.DisplayName, true
}
