package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ClientKind distinguishes browser clients, which receive tokens as
// cookies, from native clients, which receive them in the response body.
type ClientKind string

const (
	ClientBrowser ClientKind = "browser"
	ClientNative  ClientKind = "native"
)

// ClientKindHeader is the request header a native client sets to receive
// tokens in the response body instead of cookies.
const ClientKindHeader = "X-Client-Kind"

const (
	// AccessTokenCookie is the cookie carrying the access token.
	AccessTokenCookie = "accessToken"
	// RefreshTokenCookie is the cookie carrying the refresh token.
	RefreshTokenCookie = "refreshToken"
)

// Renewed-session headers for native clients, which cannot receive cookies
// and whose response body belongs to the forwarded handler.
const (
	AccessTokenHeader  = "X-Access-Token"
	RefreshTokenHeader = "X-Refresh-Token"
)

// Session is a freshly minted access/refresh token pair. Both tokens always
// carry the same subject; a session with only one of the two is never
// constructed. The expiries are read back from the signed claims, not from
// the issuing clock.
type Session struct {
	Subject       string    `json:"-"`
	AccessToken   string    `json:"accessToken"`
	RefreshToken  string    `json:"refreshToken"`
	AccessExpiry  time.Time `json:"-"`
	RefreshExpiry time.Time `json:"-"`
}

// SessionService mints token pairs via the token service.
type SessionService struct {
	tokens *TokenService
}

// NewSessionService creates a session service.
func NewSessionService(tokens *TokenService) *SessionService {
	return &SessionService{tokens: tokens}
}

// IssueSession mints an access and a refresh token for the subject. Both
// issuances run concurrently and are joined before anything is returned; if
// either fails the whole operation fails and no partial pair escapes. The
// freshly signed tokens are then re-verified, concurrently, to read their
// expiry claims out of the tokens themselves. That round-trip guards
// against a mismatch between the TTL we intended to encode and the one
// actually signed.
func (s *SessionService) IssueSession(ctx context.Context, subject string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("session not issued: %w", err)
	}

	type issued struct {
		role  TokenRole
		token string
		err   error
	}

	results := make(chan issued, 2)
	for _, role := range []TokenRole{RoleAccess, RoleRefresh} {
		go func(role TokenRole) {
			token, err := s.tokens.Issue(subject, role)
			results <- issued{role: role, token: token, err: err}
		}(role)
	}

	session := &Session{Subject: subject}
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			return nil, fmt.Errorf("failed to issue %s token: %w", r.role, r.err)
		}
		if r.role == RoleAccess {
			session.AccessToken = r.token
		} else {
			session.RefreshToken = r.token
		}
	}

	type expiry struct {
		role TokenRole
		at   time.Time
		err  error
	}
	expiries := make(chan expiry, 2)
	verify := func(role TokenRole, token string) {
		claims, err := s.tokens.Verify(token, role)
		if err != nil {
			expiries <- expiry{role: role, err: err}
			return
		}
		expiries <- expiry{role: role, at: claims.Expiry}
	}
	go verify(RoleAccess, session.AccessToken)
	go verify(RoleRefresh, session.RefreshToken)

	for i := 0; i < 2; i++ {
		e := <-expiries
		if e.err != nil {
			return nil, fmt.Errorf("failed to verify freshly issued %s token: %w", e.role, e.err)
		}
		if e.role == RoleAccess {
			session.AccessExpiry = e.at
		} else {
			session.RefreshExpiry = e.at
		}
	}

	return session, nil
}

// ClientKindFromRequest reads the client kind header, defaulting to
// browser.
func ClientKindFromRequest(r *http.Request) ClientKind {
	if r.Header.Get(ClientKindHeader) == string(ClientNative) {
		return ClientNative
	}
	return ClientBrowser
}

// AttachCookies sets the two auth cookies, each expiring exactly when its
// token does. The cookies are HTTP-only; the Secure flag is left off to
// match local deployments and should be enabled behind TLS.
func AttachCookies(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.AccessExpiry,
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    session.RefreshToken,
		Path:     "/",
		Expires:  session.RefreshExpiry,
		HttpOnly: true,
	})
}

// ClearCookies expires both auth cookies. Logout is stateless: the tokens
// themselves stay valid until their natural expiry.
func ClearCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
}

// WriteSession finalizes a login/registration response: cookies plus the
// status code for browsers, a JSON token pair for native clients.
func WriteSession(w http.ResponseWriter, session *Session, kind ClientKind, status int) error {
	if kind == ClientNative {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return json.NewEncoder(w).Encode(session)
	}
	AttachCookies(w, session)
	w.WriteHeader(status)
	return nil
}

// AttachRenewed delivers a renewed pair without finalizing the response,
// which still belongs to the forwarded handler: cookies for browsers,
// headers for native clients.
func AttachRenewed(w http.ResponseWriter, session *Session, kind ClientKind) {
	if kind == ClientNative {
		w.Header().Set(AccessTokenHeader, session.AccessToken)
		w.Header().Set(RefreshTokenHeader, session.RefreshToken)
		return
	}
	AttachCookies(w, session)
}
