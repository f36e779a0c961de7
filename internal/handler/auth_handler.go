package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go-token-auth/internal/middleware"
	"go-token-auth/internal/model"
	"go-token-auth/pkg/apierror"
)

// Credentials payloads are tiny; anything larger is rejected before decoding.
const maxCredentialsBody = 4 << 10

type authenticator interface {
	Register(ctx context.Context, creds model.Credentials) (model.User, error)
	Login(ctx context.Context, creds model.Credentials) (model.User, error)
}

type tokenIssuer interface {
	Now() time.Time
	Issue(subject string, now time.Time) (string, error)
	ExpiryFor(now time.Time) time.Time
	Expiration() time.Duration
}

type AuthHandler struct {
	auth   authenticator
	tokens tokenIssuer
}

func NewAuthHandler(auth authenticator, tokens tokenIssuer) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := h.auth.Register(r.Context(), creds)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user.Public())
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := h.auth.Login(r.Context(), creds)
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.tokens.Now()
	token, err := h.tokens.Issue(user.Username, now)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: h.tokens.Expiration().Milliseconds(),
		ExpiresAt: h.tokens.ExpiryFor(now).UTC(),
	})
}

// Me echoes the principal bound by the authentication gate.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuthUser{ID: principal.UserID, Username: principal.Username})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (model.Credentials, bool) {
	defer r.Body.Close()

	var payload model.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCredentialsBody)).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return model.Credentials{}, false
	}

	return payload, true
}
