package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is fixed; clients re-authenticate after it elapses.
const TokenTTL = 30 * 24 * time.Hour

const userIDClaim = "user_id"

var TokenAuth *jwtauth.JWTAuth

var ErrInvalidToken = errors.New("invalid token")

func InitJWT(key []byte) {
	TokenAuth = jwtauth.New("HS256", key, nil)
}

// GenerateToken issues a signed token whose only application claim is the user id.
func GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		userIDClaim: userID,
		"exp":       now.Add(TokenTTL).Unix(),
		"iat":       now.Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

// ParseToken verifies signature and expiry and returns the embedded user id.
func ParseToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}
	token, err := jwtauth.VerifyToken(TokenAuth, tokenString)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return GetUserIDFromClaims(token.PrivateClaims())
}

func GetUserIDFromClaims(claims map[string]interface{}) (string, error) {
	id, ok := claims[userIDClaim].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: user_id claim is missing or not a string", ErrInvalidToken)
	}
	return id, nil
}
