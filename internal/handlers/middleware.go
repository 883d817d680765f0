package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/internal/services"
	"go.uber.org/zap"
)

// AuthCookie holds the session token for browser clients.
const AuthCookie = "auth_token"

// Authenticate resolves the bearer token of every request into an
// auth.Principal. Requests without a valid token are rejected.
func Authenticate(authn *services.Authenticator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, log, errs.Wrap(err, errs.EUnauthorized, "auth", "authentication required"))
				return
			}

			principal, err := authn.Principal(r.Context(), tokenString)
			if err != nil {
				writeError(w, log, err)
				return
			}

			ctx := auth.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize admits the request when policy allows the principal to perform
// action on resource.
func Authorize(policy *auth.Policy, resource auth.Resource, action auth.Action, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				writeError(w, log, errs.New(errs.EUnauthorized, "auth", "authentication required"))
				return
			}
			if !policy.Allowed(principal, resource, action) {
				writeError(w, log, errs.Forbidden("auth", "you are not allowed to %s %s", action, resource))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principal(r *http.Request) (auth.Principal, error) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return auth.Principal{}, errs.New(errs.EUnauthorized, "auth", "authentication required")
	}
	return p, nil
}

// bearerToken reads the token from the Authorization header, falling back
// to the session cookie.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		if cookie, err := r.Cookie(AuthCookie); err == nil && strings.TrimSpace(cookie.Value) != "" {
			return strings.TrimSpace(cookie.Value), nil
		}
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// Guard builds the Authorize middleware for a resource and action.
type Guard func(resource auth.Resource, action auth.Action) func(http.Handler) http.Handler

func NewGuard(policy *auth.Policy, log *zap.Logger) Guard {
	return func(resource auth.Resource, action auth.Action) func(http.Handler) http.Handler {
		return Authorize(policy, resource, action, log)
	}
}
