package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/secretum/internal/apperror"
	"github.com/sakif/secretum/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Provider performs the OAuth 2.0 Authorization Code flow against one
// identity provider.
//
// The redirect URI is supplied per call because the client decides where the
// provider sends the user back. It must be the same in AuthURL and Exchange,
// otherwise the provider rejects the code.
type Provider interface {
	Name() model.Provider
	AuthURL(redirectURI, state string) string
	Exchange(ctx context.Context, code, redirectURI string) (*model.ExternalProfile, error)
}

// Registry holds the providers this server is configured for.
type Registry map[model.Provider]Provider

// NewRegistry indexes providers by name.
func NewRegistry(providers ...Provider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		r[p.Name()] = p
	}
	return r
}

// Lookup returns the provider registered under name. Unknown or unconfigured
// providers are a validation error on the "provider" field.
func (r Registry) Lookup(name model.Provider) (Provider, error) {
	if !name.Valid() {
		return nil, apperror.ValidationFailed("provider", fmt.Sprintf("unknown provider %q", name))
	}
	p, ok := r[name]
	if !ok {
		return nil, apperror.ValidationFailed("provider", fmt.Sprintf("provider %q is not configured", name))
	}
	return p, nil
}

// =========================================================================
// GOOGLE
// =========================================================================

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// googleUser is the part of the userinfo v2 response we keep.
type googleUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleProvider signs users in with a Google account.
type GoogleProvider struct {
	config      oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a GoogleProvider requesting the "email" and
// "profile" scopes.
func NewGoogleProvider(clientID, clientSecret string) *GoogleProvider {
	return &GoogleProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) Name() model.Provider { return model.ProviderGoogle }

func (p *GoogleProvider) AuthURL(redirectURI, state string) string {
	cfg := p.config
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the code for an access token and reads the userinfo endpoint.
func (p *GoogleProvider) Exchange(ctx context.Context, code, redirectURI string) (*model.ExternalProfile, error) {
	cfg := p.config
	cfg.RedirectURL = redirectURI

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging google code: %w", err)
	}

	// The returned client adds "Authorization: Bearer <token>" to each request.
	var gu googleUser
	if err := getJSON(ctx, cfg.Client(ctx, token), p.userInfoURL, &gu); err != nil {
		return nil, fmt.Errorf("auth: google userinfo: %w", err)
	}
	if gu.ID == "" {
		return nil, errors.New("auth: google returned a profile without an id")
	}

	return &model.ExternalProfile{
		ExternalID:  gu.ID,
		Email:       gu.Email,
		DisplayName: gu.Name,
		AvatarURL:   gu.Picture,
	}, nil
}

// =========================================================================
// VK
// =========================================================================

const (
	vkUsersGetURL = "https://api.vk.com/method/users.get"
	vkAPIVersion  = "5.131"
)

// vkUsersGetResponse is the envelope of the users.get method. VK reports
// failures with HTTP 200 and a populated Error.
type vkUsersGetResponse struct {
	Response []struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Photo200  string `json:"photo_200"`
	} `json:"response"`
	Error *struct {
		Code    int    `json:"error_code"`
		Message string `json:"error_msg"`
	} `json:"error"`
}

// VKProvider signs users in with a VK account.
//
// VK returns the user id and (when the "email" scope was granted) the email
// alongside the access token, not from a profile endpoint. The name and
// avatar come from a follow-up users.get call.
type VKProvider struct {
	config      oauth2.Config
	usersGetURL string
}

// NewVKProvider creates a VKProvider requesting the "email" scope.
func NewVKProvider(clientID, clientSecret string) *VKProvider {
	endpoint := endpoints.Vk
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return &VKProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"email"},
			Endpoint:     endpoint,
		},
		usersGetURL: vkUsersGetURL,
	}
}

func (p *VKProvider) Name() model.Provider { return model.ProviderVK }

func (p *VKProvider) AuthURL(redirectURI, state string) string {
	cfg := p.config
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("v", vkAPIVersion))
}

// Exchange trades the code for an access token, then loads the profile with
// users.get. An email VK did not share is left empty.
func (p *VKProvider) Exchange(ctx context.Context, code, redirectURI string) (*model.ExternalProfile, error) {
	cfg := p.config
	cfg.RedirectURL = redirectURI

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging vk code: %w", err)
	}

	userID := extraString(token.Extra("user_id"))
	if userID == "" {
		return nil, errors.New("auth: vk token response has no user_id")
	}

	q := url.Values{
		"user_ids":     {userID},
		"fields":       {"photo_200"},
		"access_token": {token.AccessToken},
		"v":            {vkAPIVersion},
	}

	var resp vkUsersGetResponse
	if err := getJSON(ctx, cfg.Client(ctx, token), p.usersGetURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("auth: vk users.get: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("auth: vk users.get error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	profile := &model.ExternalProfile{
		ExternalID: userID,
		Email:      extraString(token.Extra("email")),
	}
	if len(resp.Response) > 0 {
		u := resp.Response[0]
		profile.DisplayName = strings.TrimSpace(u.FirstName + " " + u.LastName)
		profile.AvatarURL = u.Photo200
	}
	return profile, nil
}

// extraString normalizes a token response field. JSON numbers arrive as
// float64, form-encoded responses as strings.
func extraString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	case json.Number:
		return x.String()
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return ""
	}
}

// getJSON issues a GET and decodes a 200 response into dst.
func getJSON(ctx context.Context, client *http.Client, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
