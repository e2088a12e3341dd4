package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims are the claims read from a caller's bearer token.
// Cognito ID tokens carry the same names.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Username string `json:"cognito:username"`
}

// ParseUnverifiedClaims decodes the claims of a token whose signature has
// already been checked by the gateway authorizer.
func ParseUnverifiedClaims(tokenString string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// ExtractBearerToken extracts the token from the Authorization header
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be: Bearer {token}")
	}

	return parts[1], nil
}
