package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/secretum/internal/apperror"
	"github.com/sakif/secretum/internal/auth"
	"github.com/sakif/secretum/internal/model"
	"github.com/sakif/secretum/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ProviderRegistry finds the OAuth provider for a name. auth.Registry
// satisfies it; tests pass fakes.
type ProviderRegistry interface {
	Lookup(name model.Provider) (auth.Provider, error)
}

// AuthService runs the sign-in flow:
//
//	provider code → external profile → IdentityResolver → session token
type AuthService struct {
	providers ProviderRegistry
	resolver  *IdentityResolver
	tokens    *auth.TokenService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	providers ProviderRegistry,
	resolver *IdentityResolver,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		providers: providers,
		resolver:  resolver,
		tokens:    tokens,
		logger:    logger,
	}
}

// AuthResult bundles the signed-in user with their new session token.
type AuthResult struct {
	User  *model.User
	Token string
}

// AuthorizationURL is where the client sends the user to sign in. State is a
// fresh random value the client should check when the provider redirects back.
type AuthorizationURL struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// AuthURL builds the provider's consent page URL for redirectURI.
func (s *AuthService) AuthURL(provider model.Provider, redirectURI string) (*AuthorizationURL, error) {
	p, err := s.providers.Lookup(provider)
	if err != nil {
		return nil, err
	}
	redirectURI = strings.TrimSpace(redirectURI)
	if redirectURI == "" {
		return nil, apperror.ValidationFailed("redirect_uri", "redirect_uri is required")
	}

	state := xid.New().String()
	return &AuthorizationURL{URL: p.AuthURL(redirectURI, state), State: state}, nil
}

// Login exchanges an authorization code for a profile, resolves the user and
// issues a session token.
//
// A provider failure is logged with its cause and reported to the caller as
// an Upstream error without details. It is not retried; codes are single-use.
func (s *AuthService) Login(ctx context.Context, provider model.Provider, code, redirectURI string) (result *AuthResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.login", attribute.String("auth.provider", provider.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	if provider == "" {
		return nil, apperror.ValidationFailed("provider", "provider is required")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	p, err := s.providers.Lookup(provider)
	if err != nil {
		return nil, err
	}

	profile, err := p.Exchange(ctx, code, strings.TrimSpace(redirectURI))
	if err != nil {
		s.logger.Warn("provider exchange failed",
			slog.String("provider", provider.String()),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream(provider.String())
	}

	user, err := s.resolver.Resolve(ctx, provider, profile)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("provider", provider.String()),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// VerifyToken checks a session token and returns its identity.
func (s *AuthService) VerifyToken(token string) (auth.Identity, error) {
	return s.tokens.Verify(token)
}
