package auth_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hakari/internal/auth"
	"github.com/ashita-ai/hakari/internal/model"
)

func TestJWTIssueAndValidate(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", 1*time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := mgr.IssueToken("ci-bot", model.RoleWriter, []string{"proj-a"}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", claims.Subject)
	assert.Equal(t, model.RoleWriter, claims.Role)
	assert.Equal(t, []string{"proj-a"}, claims.Projects)
	assert.True(t, claims.CanAccess("proj-a"))
	assert.False(t, claims.CanAccess("proj-b"))
}

func TestIssueToken_Validation(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	_, _, err = mgr.IssueToken("", model.RoleReader, []string{"p"}, 0)
	assert.Error(t, err)

	_, _, err = mgr.IssueToken("s", model.Role("superuser"), []string{"p"}, 0)
	assert.Error(t, err)

	_, _, err = mgr.IssueToken("s", model.RoleReader, nil, 0)
	assert.Error(t, err)
}

func TestIssueToken_TTL(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	_, exp, err := mgr.IssueToken("s", model.RoleAdmin, []string{model.AllProjects}, 10*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), exp, time.Minute)

	_, exp, err = mgr.IssueToken("s", model.RoleAdmin, []string{model.AllProjects}, 10*365*24*time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(auth.MaxTokenTTL), exp, time.Minute)
}

// writeKeyPair writes an Ed25519 key pair as PEM files and returns their
// paths with the raw private key for forging tokens.
func writeKeyPair(t *testing.T) (privPath, pubPath string, priv ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	dir := t.TempDir()

	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})
	privPath = filepath.Join(dir, "priv.pem")
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	pubPath = filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	return privPath, pubPath, priv
}

// newTestJWTManagerWithKey creates a JWTManager backed by a real Ed25519 key pair
// written to temp PEM files, and returns the raw private key for forging tokens.
func newTestJWTManagerWithKey(t *testing.T) (*auth.JWTManager, ed25519.PrivateKey) {
	t.Helper()
	privPath, pubPath, priv := writeKeyPair(t)
	mgr, err := auth.NewJWTManager(privPath, pubPath, time.Hour)
	require.NoError(t, err)
	return mgr, priv
}

// forgeToken signs a JWT with the given private key and claims.
func forgeToken(t *testing.T, privKey ed25519.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(privKey)
	require.NoError(t, err)
	return signed
}

func validClaims() *auth.Claims {
	now := time.Now().UTC()
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "eval-runner",
			Issuer:    "hakari",
			Audience:  jwt.ClaimStrings{"hakari"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        uuid.New().String(),
		},
		Role:     model.RoleReader,
		Projects: []string{"p"},
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	mgr, privKey := newTestJWTManagerWithKey(t)

	tests := []struct {
		name   string
		mutate func(c *auth.Claims)
		want   string
	}{
		{"wrong issuer", func(c *auth.Claims) { c.Issuer = "not-hakari" }, "invalid issuer"},
		{"empty issuer", func(c *auth.Claims) { c.Issuer = "" }, "invalid issuer"},
		{"wrong audience", func(c *auth.Claims) { c.Audience = jwt.ClaimStrings{"other"} }, "validate token"},
		{"expired", func(c *auth.Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }, "validate token"},
		{"no expiry", func(c *auth.Claims) { c.ExpiresAt = nil }, "validate token"},
		{"missing subject", func(c *auth.Claims) { c.Subject = "" }, "missing subject"},
		{"unknown role", func(c *auth.Claims) { c.Role = "root" }, "invalid role"},
		{"no projects", func(c *auth.Claims) { c.Projects = nil }, "grants no projects"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			_, err := mgr.ValidateToken(forgeToken(t, privKey, claims))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	claims, err := mgr.ValidateToken(forgeToken(t, privKey, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "eval-runner", claims.Subject)
}

func TestValidateToken_ForeignKey(t *testing.T) {
	mgr, _ := newTestJWTManagerWithKey(t)
	_, otherKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = mgr.ValidateToken(forgeToken(t, otherKey, validClaims()))
	assert.Error(t, err)
}

func TestNewJWTManager_MismatchedKeys(t *testing.T) {
	privPath, _, _ := writeKeyPair(t)
	_, otherPub, _ := writeKeyPair(t)

	_, err := auth.NewJWTManager(privPath, otherPub, time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestNewSigningManager(t *testing.T) {
	privPath, pubPath, _ := writeKeyPair(t)

	signer, err := auth.NewSigningManager(privPath, time.Hour)
	require.NoError(t, err)
	token, _, err := signer.IssueToken("cli", model.RoleAdmin, []string{"*"}, 0)
	require.NoError(t, err)

	verifier, err := auth.NewJWTManager(privPath, pubPath, time.Hour)
	require.NoError(t, err)
	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.CanAccess("anything"))

	_, err = auth.NewSigningManager(filepath.Join(t.TempDir(), "missing.pem"), time.Hour)
	assert.Error(t, err)
}
