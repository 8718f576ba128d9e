package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"todo-server/internal/auth"
	"todo-server/internal/request"
)

// tokenSource extracts a bearer credential from one place in the request.
// Sources are tried in order; the first non-empty result wins. Adding a new
// credential source means appending to the slice, not nesting another
// conditional.
type tokenSource func(r *http.Request) string

func cookieToken(name string) tokenSource {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

var (
	accessTokenSources  = []tokenSource{cookieToken(auth.AccessTokenCookie), bearerToken}
	refreshTokenSources = []tokenSource{cookieToken(auth.RefreshTokenCookie)}
)

func extractToken(r *http.Request, sources []tokenSource) string {
	for _, source := range sources {
		if token := source(r); token != "" {
			return token
		}
	}
	return ""
}

// Auth gates every protected route. A request is admitted when its access
// token verifies; when the access token is merely expired (or absent) and a
// refresh token verifies, a brand-new token pair is minted and attached to
// the response and the request proceeds in the same round trip. Everything
// else is a 401. The middleware is the only writer of the request context's
// user id.
func Auth(tokens *auth.TokenService, sessions *auth.SessionService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accessToken := extractToken(r, accessTokenSources)
			refreshToken := extractToken(r, refreshTokenSources)

			if accessToken == "" && refreshToken == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			if accessToken != "" {
				claims, err := tokens.Verify(accessToken, auth.RoleAccess)
				switch {
				case err == nil:
					forward(w, r, next, claims.Subject)
					return
				case errors.Is(err, auth.ErrTokenExpired) && refreshToken != "":
					// Renewal below. A corrupt or forged access token
					// never reaches this branch: only a clean expiry
					// with a refresh token present is renewable.
				default:
					logger.Debug("access_token_rejected", zap.Error(err))
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
			}

			renew(w, r, next, tokens, sessions, refreshToken, logger)
		})
	}
}

// renew verifies the refresh token and, on success, issues and delivers a
// fresh token pair before forwarding. Exactly one renewal attempt happens
// per request; any failure terminates with 401 (or 500 when minting itself
// breaks, which is an upstream fault, not a credential one).
func renew(w http.ResponseWriter, r *http.Request, next http.Handler, tokens *auth.TokenService, sessions *auth.SessionService, refreshToken string, logger *zap.Logger) {
	claims, err := tokens.Verify(refreshToken, auth.RoleRefresh)
	if err != nil {
		logger.Debug("refresh_token_rejected", zap.Error(err))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	session, err := sessions.IssueSession(r.Context(), claims.Subject)
	if err != nil {
		logger.Error("session_renewal_failed",
			zap.String("user_id", claims.Subject),
			zap.Error(err),
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	auth.AttachRenewed(w, session, auth.ClientKindFromRequest(r))
	forward(w, r, next, claims.Subject)
}

func forward(w http.ResponseWriter, r *http.Request, next http.Handler, subject string) {
	next.ServeHTTP(w, r.WithContext(request.WithUserID(r.Context(), subject)))
}
