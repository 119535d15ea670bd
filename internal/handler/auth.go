package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/secretum/internal/model"
	"github.com/sakif/secretum/internal/service"
)

// Authenticator is the part of service.AuthService the handler needs.
type Authenticator interface {
	AuthURL(provider model.Provider, redirectURI string) (*service.AuthorizationURL, error)
	Login(ctx context.Context, provider model.Provider, code, redirectURI string) (*service.AuthResult, error)
}

// AuthHandler serves the sign-in endpoints. Nothing here sets cookies: the
// client keeps the token and sends it back in X-Auth-Token.
type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	Provider    model.Provider `json:"provider"`
	Code        string         `json:"code"`
	RedirectURI string         `json:"redirect_uri"`
}

// loginResponse is the body returned by a successful login.
type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// HandleAuthURL returns the provider's consent page URL.
//
// HTTP: GET /auth/{provider}/url?redirect_uri=...
//
// Response: {"url": "...", "state": "..."}
func (h *AuthHandler) HandleAuthURL(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(chi.URLParam(r, "provider"))

	result, err := h.auth.AuthURL(provider, r.URL.Query().Get("redirect_uri"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleLogin completes sign-in with the code the provider handed the client.
//
// HTTP: POST /auth/login
//
// Request:  {"provider": "google", "code": "...", "redirect_uri": "..."}
// Response: {"token": "...", "user": {...}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Provider, req.Code, req.RedirectURI)
	if err != nil {
		h.logger.Debug("login failed",
			slog.String("provider", req.Provider.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: result.Token, User: result.User})
}
