package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenRole selects which of the two RSA key pairs signs and verifies a
// token. Access and refresh tokens use independent pairs so that compromise
// of one signing key does not forge the other token type.
type TokenRole string

const (
	// RoleAccess is the short-lived token granting access to the API.
	RoleAccess TokenRole = "access"
	// RoleRefresh is the long-lived token permitting session renewal.
	RoleRefresh TokenRole = "refresh"
)

// KeyMaterial is the raw provisioned key configuration: four base64-encoded
// PKCS1/PEM values supplied out-of-band (see cmd/keygen).
type KeyMaterial struct {
	AccessPublic   string
	AccessPrivate  string
	RefreshPublic  string
	RefreshPrivate string
}

// KeyPair holds one parsed RSA key pair.
type KeyPair struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// KeySet holds the access and refresh key pairs. It is constructed once at
// startup and never mutated afterwards, so it is safe for concurrent use
// without locking.
type KeySet struct {
	access  KeyPair
	refresh KeyPair
}

// LoadKeySet decodes and parses the four provisioned key values. Any absent
// or malformed value is an error; there is no degraded mode for missing
// signing keys, so callers should treat a failure here as fatal.
func LoadKeySet(m KeyMaterial) (*KeySet, error) {
	accessPub, err := parsePublicKey(m.AccessPublic)
	if err != nil {
		return nil, fmt.Errorf("access public key: %w", err)
	}
	accessPriv, err := parsePrivateKey(m.AccessPrivate)
	if err != nil {
		return nil, fmt.Errorf("access private key: %w", err)
	}
	refreshPub, err := parsePublicKey(m.RefreshPublic)
	if err != nil {
		return nil, fmt.Errorf("refresh public key: %w", err)
	}
	refreshPriv, err := parsePrivateKey(m.RefreshPrivate)
	if err != nil {
		return nil, fmt.Errorf("refresh private key: %w", err)
	}

	return &KeySet{
		access:  KeyPair{Public: accessPub, Private: accessPriv},
		refresh: KeyPair{Public: refreshPub, Private: refreshPriv},
	}, nil
}

// Pair returns the key pair for the given role.
func (ks *KeySet) Pair(role TokenRole) (KeyPair, error) {
	switch role {
	case RoleAccess:
		return ks.access, nil
	case RoleRefresh:
		return ks.refresh, nil
	default:
		return KeyPair{}, fmt.Errorf("unknown token role: %q", role)
	}
}

func parsePublicKey(encoded string) (*rsa.PublicKey, error) {
	pemBytes, err := decodeKeyValue(encoded)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PEM: %w", err)
	}
	return key, nil
}

func parsePrivateKey(encoded string) (*rsa.PrivateKey, error) {
	pemBytes, err := decodeKeyValue(encoded)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PEM: %w", err)
	}
	return key, nil
}

func decodeKeyValue(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("key value is empty")
	}
	pemBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return pemBytes, nil
}
