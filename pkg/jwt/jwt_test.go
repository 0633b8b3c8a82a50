package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "secret", 1)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserId)
	assert.Equal(t, "agora", claims.Issuer)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(42, "secret", 1)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken(42, "secret", -1)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	assert.Error(t, err)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token", "secret")
	assert.Error(t, err)
}
