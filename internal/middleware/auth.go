package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"go-token-auth/internal/model"
)

type tokenParser interface {
	Parse(tokenString string) (model.TokenClaims, error)
}

type accountLookup interface {
	LookupAccount(ctx context.Context, username string) (model.Principal, error)
}

// Decision is the outcome of authenticating one request.
type Decision int

const (
	DecisionPublic Decision = iota
	DecisionTokenAbsent
	DecisionTokenRejected
	DecisionTokenAccepted
)

func (d Decision) String() string {
	switch d {
	case DecisionPublic:
		return "public"
	case DecisionTokenAbsent:
		return "token_absent"
	case DecisionTokenRejected:
		return "token_rejected"
	case DecisionTokenAccepted:
		return "token_accepted"
	default:
		return "unknown"
	}
}

type contextKey string

const principalContextKey contextKey = "auth_principal"

// AuthGate decides, before route dispatch, whether a request carries a
// usable bearer token. It never rejects a request on its own: a bad or
// missing token only means no principal is bound, and handlers that need
// one are wrapped with RequirePrincipal.
type AuthGate struct {
	tokens   tokenParser
	accounts accountLookup
	public   []string
}

// NewAuthGate builds a gate. Public route patterns are exact paths, globs
// understood by path.Match, or prefixes ending in "/**".
func NewAuthGate(tokens tokenParser, accounts accountLookup, publicRoutes []string) *AuthGate {
	public := make([]string, 0, len(publicRoutes))
	for _, pattern := range publicRoutes {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			public = append(public, pattern)
		}
	}

	return &AuthGate{tokens: tokens, accounts: accounts, public: public}
}

func (g *AuthGate) IsPublic(requestPath string) bool {
	for _, pattern := range g.public {
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if requestPath == prefix || strings.HasPrefix(requestPath, prefix+"/") {
				return true
			}
			continue
		}
		if pattern == requestPath {
			return true
		}
		if matched, err := path.Match(pattern, requestPath); err == nil && matched {
			return true
		}
	}
	return false
}

// Authenticate runs the decision procedure for r. The principal is only
// meaningful for DecisionTokenAccepted. A non-nil error means the account
// lookup itself failed and the request cannot be decided.
func (g *AuthGate) Authenticate(r *http.Request) (Decision, model.Principal, error) {
	if g.IsPublic(r.URL.Path) {
		return DecisionPublic, model.Principal{}, nil
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return DecisionTokenAbsent, model.Principal{}, nil
	}

	scheme, tokenString, found := strings.Cut(header, " ")
	tokenString = strings.TrimSpace(tokenString)
	if !found || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
		g.logRejected(r, "unsupported authorization scheme")
		return DecisionTokenRejected, model.Principal{}, nil
	}

	claims, err := g.tokens.Parse(tokenString)
	if err != nil {
		g.logRejected(r, rejectionReason(err))
		return DecisionTokenRejected, model.Principal{}, nil
	}

	principal, err := g.accounts.LookupAccount(r.Context(), claims.Subject)
	if errors.Is(err, model.ErrAccountNotFound) {
		g.logRejected(r, "account not found")
		return DecisionTokenRejected, model.Principal{}, nil
	}
	if err != nil {
		return DecisionTokenRejected, model.Principal{}, err
	}

	return DecisionTokenAccepted, principal, nil
}

// Handler binds the principal of an accepted token to the request context.
func (g *AuthGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, principal, err := g.Authenticate(r)
		if err != nil {
			slog.Error("authentication lookup failed",
				"request_id", RequestIDFromContext(r.Context()),
				"error", err.Error(),
			)
			writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
			return
		}

		if decision == DecisionTokenAccepted {
			r = r.WithContext(WithPrincipal(r.Context(), principal))
		}

		next.ServeHTTP(w, r)
	})
}

func (g *AuthGate) logRejected(r *http.Request, reason string) {
	slog.Debug("bearer token rejected",
		"request_id", RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"reason", reason,
	)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, model.ErrTokenExpired):
		return "expired"
	case errors.Is(err, model.ErrTokenSignatureInvalid):
		return "invalid signature"
	default:
		return "malformed"
	}
}

// RequirePrincipal answers 401 unless the gate bound a principal.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(model.Principal)
	return principal, ok
}
