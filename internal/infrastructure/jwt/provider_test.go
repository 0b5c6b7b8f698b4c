package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/catalog-reviews/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeKeyPair generates an RSA key pair, writes both halves as PEM files in
// a temp dir and returns a config pointing at them.
func writeKeyPair(t *testing.T, expiry time.Duration) *config.Config {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	return &config.Config{JWTPrivateKeyPath: privPath, JWTPublicKeyPath: pubPath, JWTExpiry: expiry}
}

func TestProvider_SignVerify(t *testing.T) {
	p, err := NewProvider(writeKeyPair(t, time.Hour))
	require.NoError(t, err)

	signed, err := p.Sign("alice", "fp1")
	require.NoError(t, err)

	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "fp1", claims.Fingerprint)
	require.NotNil(t, claims.ExpiresAt)
}

func TestProvider_NoExpiryByDefault(t *testing.T) {
	p, err := NewEphemeralProvider(0)
	require.NoError(t, err)
	signed, err := p.Sign("alice", "fp1")
	require.NoError(t, err)

	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestProvider_TokenCarriesNoRole(t *testing.T) {
	p, err := NewEphemeralProvider(0)
	require.NoError(t, err)
	signed, err := p.Sign("alice", "fp1")
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(signed, jwt.MapClaims{})
	require.NoError(t, err)
	_, hasRole := parsed.Claims.(jwt.MapClaims)["role"]
	assert.False(t, hasRole)
}

func TestProvider_RejectsForeignKey(t *testing.T) {
	p1, err := NewEphemeralProvider(0)
	require.NoError(t, err)
	p2, err := NewEphemeralProvider(0)
	require.NoError(t, err)

	signed, err := p1.Sign("alice", "fp1")
	require.NoError(t, err)
	_, err = p2.Verify(signed)
	assert.Error(t, err)
}

func TestProvider_RejectsExpired(t *testing.T) {
	p, err := NewEphemeralProvider(0)
	require.NoError(t, err)
	claims := Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)), // already expired
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.Error(t, err)
}

func TestProvider_RejectsHMAC(t *testing.T) {
	p, err := NewEphemeralProvider(0)
	require.NoError(t, err)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: "alice"}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.Error(t, err)
}

func TestNewProvider_MissingFiles(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPrivateKeyPath: "/nonexistent/a.pem", JWTPublicKeyPath: "/nonexistent/b.pem"})
	assert.Error(t, err)
}
