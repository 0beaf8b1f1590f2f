package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	InitJWT([]byte("test-secret"))

	token, err := GenerateToken("user-1")
	require.NoError(t, err)

	userID, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestParseTokenRejectsWrongSignature(t *testing.T) {
	InitJWT([]byte("secret-a"))
	token, err := GenerateToken("user-1")
	require.NoError(t, err)

	InitJWT([]byte("secret-b"))
	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	InitJWT([]byte("test-secret"))
	_, token, err := TokenAuth.Encode(jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsMalformedAndMissingClaim(t *testing.T) {
	InitJWT([]byte("test-secret"))

	_, err := ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, token, err := TokenAuth.Encode(jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123456", hash)
	assert.True(t, CheckPasswordHash("pw123456", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("pw123456", ""))
}
