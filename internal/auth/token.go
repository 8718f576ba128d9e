package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// AccessTokenTTL is the lifetime of an access token.
	AccessTokenTTL = 24 * time.Hour
	// RefreshTokenTTL is the lifetime of a refresh token.
	RefreshTokenTTL = 90 * 24 * time.Hour
)

var (
	// ErrTokenExpired means the signature verified but the expiry has
	// passed. For access tokens this is recoverable via renewal; the auth
	// middleware branches on it.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure: bad
	// signature, malformed token, wrong algorithm. Never recoverable.
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenClaims is the verified payload of a token: the user it was issued to
// and the instant it stops being valid.
type TokenClaims struct {
	Subject string
	Expiry  time.Time
}

// TokenService signs and verifies RS256 tokens using the key pair matching
// each token's role. It is stateless; two calls never interact.
type TokenService struct {
	keys *KeySet
	now  func() time.Time
}

// NewTokenService creates a token service over an immutable key set.
func NewTokenService(keys *KeySet) *TokenService {
	return &TokenService{keys: keys, now: time.Now}
}

func (s *TokenService) ttl(role TokenRole) time.Duration {
	if role == RoleRefresh {
		return RefreshTokenTTL
	}
	return AccessTokenTTL
}

// Issue signs a {sub, exp} claim set with the private key for the role,
// with exp set to now plus the role's TTL.
func (s *TokenService) Issue(subject string, role TokenRole) (string, error) {
	pair, err := s.keys.Pair(role)
	if err != nil {
		return "", err
	}

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(s.now().Add(s.ttl(role))),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(pair.Private)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", role, err)
	}
	return signed, nil
}

// Verify validates the signature against the public key for the role and
// checks the expiry. A valid signature with a past expiry yields
// ErrTokenExpired; any other failure yields ErrTokenInvalid. A token with a
// bad signature is reported invalid even when its expiry has also passed.
func (s *TokenService) Verify(tokenString string, role TokenRole) (*TokenClaims, error) {
	pair, err := s.keys.Pair(role)
	if err != nil {
		return nil, err
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return pair.Public, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
		// fall through to the final validity check
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid || claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}

	return &TokenClaims{
		Subject: claims.Subject,
		Expiry:  claims.ExpiresAt.Time,
	}, nil
}
