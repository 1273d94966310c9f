package authn

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	return key, string(pubPEM)
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestNewVerifier_InvalidKey(t *testing.T) {
	_, err := NewVerifier("not a key", "workspace_id")
	assert.Error(t, err)
}

func TestVerifier_Verify_Valid(t *testing.T) {
	key, pubPEM := generateTestKeyPair(t)
	verifier, err := NewVerifier(pubPEM, "workspace_id")
	require.NoError(t, err)

	token := signToken(t, key, jwt.MapClaims{
		"workspace_id": "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		"exp":          time.Now().Add(time.Hour).Unix(),
	})

	workspaceID, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", workspaceID)
}

func TestVerifier_Verify_DefaultClaimName(t *testing.T) {
	key, pubPEM := generateTestKeyPair(t)
	verifier, err := NewVerifier(pubPEM, "")
	require.NoError(t, err)

	token := signToken(t, key, jwt.MapClaims{"workspace_id": "ws-1"})

	workspaceID, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ws-1", workspaceID)
}

func TestVerifier_Verify_CustomClaimName(t *testing.T) {
	key, pubPEM := generateTestKeyPair(t)
	verifier, err := NewVerifier(pubPEM, "tenant")
	require.NoError(t, err)

	token := signToken(t, key, jwt.MapClaims{"tenant": "ws-2"})

	workspaceID, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ws-2", workspaceID)
}

func TestVerifier_Verify_MissingClaim(t *testing.T) {
	key, pubPEM := generateTestKeyPair(t)
	verifier, err := NewVerifier(pubPEM, "workspace_id")
	require.NoError(t, err)

	token := signToken(t, key, jwt.MapClaims{"sub": "someone"})

	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerifier_Verify_WrongKey(t *testing.T) {
	_, pubPEM := generateTestKeyPair(t)
	otherKey, _ := generateTestKeyPair(t)
	verifier, err := NewVerifier(pubPEM, "workspace_id")
	require.NoError(t, err)

	token := signToken(t, otherKey, jwt.MapClaims{"workspace_id": "ws-3"})

	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerifier_Verify_RejectsHMACAlgConfusion(t *testing.T) {
	_, pubPEM := generateTestKeyPair(t)
	verifier, err := NewVerifier(pubPEM, "workspace_id")
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"workspace_id": "ws-4"})
	signed, err := token.SignedString([]byte(pubPEM))
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.Error(t, err)
}

func TestVerifier_Verify_Malformed(t *testing.T) {
	_, pubPEM := generateTestKeyPair(t)
	verifier, err := NewVerifier(pubPEM, "workspace_id")
	require.NoError(t, err)

	_, err = verifier.Verify("not-a-jwt")
	assert.Error(t, err)
}
