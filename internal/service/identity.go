// Package service holds the business rules of the wallet.
//
// LAYERING:
//
//	Handler (HTTP)  → parses requests, maps errors to status codes
//	Service         → validates, enforces invariants, owns transactions
//	Repository      → reads and writes SQLite
//
// Services take repository interfaces, never *sqlite.DB, and know nothing
// about HTTP. The same services back the HTTP API and the promoctl CLI.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/secretum/internal/apperror"
	"github.com/sakif/secretum/internal/model"
	"github.com/sakif/secretum/internal/repository"
	"github.com/sakif/secretum/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultEmailDomain completes placeholder addresses when none is configured.
const DefaultEmailDomain = "secretum.casino"

// IdentityResolver turns a provider identity into an internal user, creating
// the user the first time the identity is seen.
type IdentityResolver struct {
	users       repository.UserRepository
	emailDomain string
	logger      *slog.Logger
}

// NewIdentityResolver creates an IdentityResolver. An empty emailDomain falls
// back to DefaultEmailDomain.
func NewIdentityResolver(users repository.UserRepository, emailDomain string, logger *slog.Logger) *IdentityResolver {
	if emailDomain == "" {
		emailDomain = DefaultEmailDomain
	}
	return &IdentityResolver{users: users, emailDomain: emailDomain, logger: logger}
}

// Resolve returns the user bound to (provider, profile.ExternalID).
//
// The first resolution inserts the user with balance 0 and the profile's
// email, name and avatar. Later resolutions return the same user and only
// touch updated_at; a changed name or avatar at the provider is not copied.
// A missing email becomes "<provider>_<external id>@<domain>".
//
// Resolution is a single upsert statement, so concurrent first logins for
// one identity still produce exactly one user.
func (r *IdentityResolver) Resolve(ctx context.Context, provider model.Provider, profile *model.ExternalProfile) (user *model.User, err error) {
	ctx, span := telemetry.StartSpan(ctx, "identity.resolve",
		attribute.String("auth.provider", provider.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	if !provider.Valid() {
		return nil, apperror.ValidationFailed("provider", fmt.Sprintf("unknown provider %q", provider))
	}
	if profile == nil || strings.TrimSpace(profile.ExternalID) == "" {
		return nil, apperror.ValidationFailed("external_id", "provider returned no user id")
	}

	externalID := strings.TrimSpace(profile.ExternalID)
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		email = r.placeholderEmail(provider, externalID)
	}

	user = &model.User{
		Email:          email,
		Name:           strings.TrimSpace(profile.DisplayName),
		AvatarURL:      profile.AvatarURL,
		Provider:       provider,
		ProviderUserID: externalID,
	}

	created, err := r.users.UpsertByProvider(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("service/identity: resolving %s/%s: %w", provider, externalID, err)
	}

	if created {
		r.logger.Info("user created",
			slog.String("userID", user.ID),
			slog.String("provider", provider.String()),
		)
	} else {
		r.logger.Debug("user resolved",
			slog.String("userID", user.ID),
			slog.String("provider", provider.String()),
		)
	}
	span.SetAttributes(attribute.String("user.id", user.ID), attribute.Bool("user.created", created))

	return user, nil
}

func (r *IdentityResolver) placeholderEmail(provider model.Provider, externalID string) string {
	return fmt.Sprintf("%s_%s@%s", provider, externalID, r.emailDomain)
}
