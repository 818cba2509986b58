package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRevocation map[string]bool

func (s staticRevocation) IsRevoked(jti string) bool { return s[jti] }

func TestHMACIssueAndValidate(t *testing.T) {
	iss, err := NewHMACIssuer(AlgHS256, []byte("test-secret-key-at-least-32-bytes!!"), "mcpgateway", "mcpgateway.test", time.Hour)
	require.NoError(t, err)

	token, jti, err := iss.Issue(IssueOptions{
		Subject:         "alice@example.com",
		TeamCtx:         "team-1",
		Scopes:          []string{"tools:call"},
		IsPlatformAdmin: false,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, jti)

	claims, err := iss.Validate(token, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, "team-1", claims.TeamCtx)
	assert.Equal(t, []string{"tools:call"}, claims.Scopes)
	assert.Equal(t, jti, claims.ID)
}

func TestHMACValidateRejectsRevoked(t *testing.T) {
	iss, err := NewHMACIssuer(AlgHS512, []byte("another-test-secret-key-32-bytes!!!"), "mcpgateway", "mcpgateway.test", time.Hour)
	require.NoError(t, err)

	token, jti, err := iss.Issue(IssueOptions{Subject: "bob@example.com"})
	require.NoError(t, err)

	_, err = iss.Validate(token, staticRevocation{jti: true})
	assert.Error(t, err)
}

func TestHMACValidateRejectsExpired(t *testing.T) {
	iss, err := NewHMACIssuer(AlgHS256, []byte("yet-another-test-secret-32-bytes!!!"), "mcpgateway", "mcpgateway.test", -time.Hour)
	require.NoError(t, err)

	token, _, err := iss.Issue(IssueOptions{Subject: "carol@example.com"})
	require.NoError(t, err)

	_, err = iss.Validate(token, nil)
	assert.Error(t, err)
}

func TestRSAIssueAndValidate(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	iss, err := NewRSAIssuer(AlgRS256, priv, &priv.PublicKey, "mcpgateway", "mcpgateway.test", time.Hour)
	require.NoError(t, err)

	token, _, err := iss.Issue(IssueOptions{Subject: "dana@example.com", IsPlatformAdmin: true})
	require.NoError(t, err)

	claims, err := iss.Validate(token, nil)
	require.NoError(t, err)
	assert.True(t, claims.IsPlatformAdmin)
}

func TestECDSAIssueAndValidate(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	iss, err := NewECDSAIssuer(AlgES256, priv, &priv.PublicKey, "mcpgateway", "mcpgateway.test", time.Hour)
	require.NoError(t, err)

	token, jti, err := iss.Issue(IssueOptions{Subject: "erin@example.com", TeamCtx: "team-9"})
	require.NoError(t, err)

	claims, err := iss.Validate(token, nil)
	require.NoError(t, err)
	assert.Equal(t, jti, claims.ID)
	assert.Equal(t, "team-9", claims.TeamCtx)
}

func TestClaimsIdentitySatisfiesPrincipal(t *testing.T) {
	c := &Claims{IsPlatformAdmin: true}
	c.Subject = "frank@example.com"
	c.TeamCtx = "team-3"

	id := c.Identity([]string{"team-1", "team-3"})
	assert.Equal(t, "frank@example.com", id.Email())
	assert.True(t, id.IsPlatformAdmin())
	assert.ElementsMatch(t, []string{"team-1", "team-3"}, id.TeamIDs())
}

func TestNewHMACIssuerRejectsEmptySecret(t *testing.T) {
	_, err := NewHMACIssuer(AlgHS256, nil, "aud", "iss", time.Hour)
	assert.Error(t, err)
}

func TestNewHMACIssuerRejectsWrongFamily(t *testing.T) {
	_, err := NewHMACIssuer(AlgRS256, []byte("secret"), "aud", "iss", time.Hour)
	assert.Error(t, err)
}
