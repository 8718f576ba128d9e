package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"sync"
	"testing"
)

// Test keys use a 2048-bit modulus to keep the suite fast; production keys
// are 4096-bit (see cmd/keygen).
var (
	testKeyOnce     sync.Once
	testKeyMaterial KeyMaterial
)

func encodePublicKeyPEM(key *rsa.PublicKey) string {
	block := &pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(key),
	}
	return base64.StdEncoding.EncodeToString(pem.EncodeToMemory(block))
}

func encodePrivateKeyPEM(key *rsa.PrivateKey) string {
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return base64.StdEncoding.EncodeToString(pem.EncodeToMemory(block))
}

// testMaterial returns a KeyMaterial with two freshly generated RSA key
// pairs, shared across tests because key generation dominates test time.
func testMaterial(t *testing.T) KeyMaterial {
	t.Helper()
	testKeyOnce.Do(func() {
		accessKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		refreshKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKeyMaterial = KeyMaterial{
			AccessPublic:   encodePublicKeyPEM(&accessKey.PublicKey),
			AccessPrivate:  encodePrivateKeyPEM(accessKey),
			RefreshPublic:  encodePublicKeyPEM(&refreshKey.PublicKey),
			RefreshPrivate: encodePrivateKeyPEM(refreshKey),
		}
	})
	return testKeyMaterial
}

func testKeySet(t *testing.T) *KeySet {
	t.Helper()
	ks, err := LoadKeySet(testMaterial(t))
	if err != nil {
		t.Fatalf("LoadKeySet error: %v", err)
	}
	return ks
}

func TestLoadKeySet(t *testing.T) {
	t.Parallel()

	valid := testMaterial(t)

	tests := []struct {
		name        string
		mutate      func(m KeyMaterial) KeyMaterial
		expectError string
	}{
		{
			name:   "valid material",
			mutate: func(m KeyMaterial) KeyMaterial { return m },
		},
		{
			name: "missing access private key",
			mutate: func(m KeyMaterial) KeyMaterial {
				m.AccessPrivate = ""
				return m
			},
			expectError: "access private key",
		},
		{
			name: "missing refresh public key",
			mutate: func(m KeyMaterial) KeyMaterial {
				m.RefreshPublic = ""
				return m
			},
			expectError: "refresh public key",
		},
		{
			name: "not base64",
			mutate: func(m KeyMaterial) KeyMaterial {
				m.AccessPublic = "%%% not base64 %%%"
				return m
			},
			expectError: "access public key",
		},
		{
			name: "base64 but not PEM",
			mutate: func(m KeyMaterial) KeyMaterial {
				m.RefreshPrivate = base64.StdEncoding.EncodeToString([]byte("not a pem block"))
				return m
			},
			expectError: "refresh private key",
		},
		{
			name: "public key where private expected",
			mutate: func(m KeyMaterial) KeyMaterial {
				m.AccessPrivate = m.AccessPublic
				return m
			},
			expectError: "access private key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ks, err := LoadKeySet(tt.mutate(valid))
			if tt.expectError == "" {
				if err != nil {
					t.Fatalf("LoadKeySet error: %v", err)
				}
				if ks == nil {
					t.Fatal("expected key set, got nil")
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.expectError) {
				t.Errorf("expected error mentioning %q, got %q", tt.expectError, err.Error())
			}
		})
	}
}

func TestKeySetPair(t *testing.T) {
	t.Parallel()

	ks := testKeySet(t)

	access, err := ks.Pair(RoleAccess)
	if err != nil {
		t.Fatalf("Pair(access) error: %v", err)
	}
	refresh, err := ks.Pair(RoleRefresh)
	if err != nil {
		t.Fatalf("Pair(refresh) error: %v", err)
	}

	if access.Public.Equal(refresh.Public) {
		t.Error("access and refresh pairs must be independent keys")
	}

	if _, err := ks.Pair(TokenRole("session")); err == nil {
		t.Error("expected error for unknown role")
	}
}
