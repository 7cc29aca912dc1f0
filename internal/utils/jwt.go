package utils

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserTokenClaims identifies the user behind a directory request. Issued by
// the external auth service; the hub only verifies and reads it.
type UserTokenClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ValidateUserToken verifies an HMAC-signed token and returns its claims.
func ValidateUserToken(secret []byte, tokenString string) (*UserTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*UserTokenClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}

// ExtractTokenFromHeader extracts the bearer token from an Authorization
// header.
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimPrefix(authHeader, "Bearer "), nil
}
