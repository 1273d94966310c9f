// Package authn verifies bearer tokens against a configured RSA/EC public
// key and extracts the workspace claim the Control API scopes every
// catalog operation to.
package authn

import (
	"crypto"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// rsaAndECMethods rejects anything other than RS*/ES* signatures, closing
// off algorithm-confusion downgrade attacks (e.g. a forged HS256 token
// signed with the public key bytes as the HMAC secret).
var rsaAndECMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Verifier checks bearer tokens against a single configured public key and
// reads a configurable claim out of them.
type Verifier struct {
	key          crypto.PublicKey
	workspaceKey string
	parser       *jwt.Parser
}

// NewVerifier parses a PEM-encoded RSA or EC public key and returns a
// Verifier that reads workspaceClaim out of verified tokens (defaults to
// "workspace_id" when empty, matching AuthConfig.WorkspaceClaim's default).
func NewVerifier(publicKeyPEM, workspaceClaim string) (*Verifier, error) {
	if workspaceClaim == "" {
		workspaceClaim = "workspace_id"
	}

	key, err := parsePublicKey([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parsing auth public key: %w", err)
	}

	return &Verifier{
		key:          key,
		workspaceKey: workspaceClaim,
		parser:       jwt.NewParser(jwt.WithValidMethods(rsaAndECMethods)),
	}, nil
}

func parsePublicKey(pemBytes []byte) (crypto.PublicKey, error) {
	if key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseECPublicKeyFromPEM(pemBytes); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("key is neither a valid RSA nor EC public key")
}

// Verify parses and validates tokenString, returning the workspace ID it
// carries.
func (v *Verifier) Verify(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("verifying token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	raw, ok := claims[v.workspaceKey]
	if !ok {
		return "", fmt.Errorf("token missing %q claim", v.workspaceKey)
	}
	workspaceID, ok := raw.(string)
	if !ok || workspaceID == "" {
		return "", fmt.Errorf("token %q claim is not a non-empty string", v.workspaceKey)
	}
	return workspaceID, nil
}
