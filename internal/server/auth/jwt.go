// Package auth implements the token codec and password hashing used by the
// authentication service.
package auth

import (
	"time"

	"github.com/dmitrijs2005/contactbook/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Token purpose tags carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the claim set for access and refresh tokens: the standard
// registered claims (sub, iat, exp) plus a purpose tag. Email-action tokens
// omit TokenType entirely.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type,omitempty"`
}

// GenerateToken issues a signed token for the given subject with the given
// purpose tag and validity window.
func GenerateToken(subject, tokenType string, secret []byte, method jwt.SigningMethod, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		TokenType: tokenType,
	})

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry of a token and returns its
// claims. Malformed structure, bad signature and expiry all collapse into
// common.ErrInvalidToken so callers cannot leak which check failed.
func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// GenerateEmailToken issues a token proving control of an email address.
// It carries only the subject and the standard validity window, with no
// purpose tag: the same token shape is accepted by both the confirmation
// and the password-reset endpoints.
func GenerateEmailToken(email string, secret []byte, method jwt.SigningMethod, validity time.Duration) (string, error) {
	return GenerateToken(email, "", secret, method, validity)
}

// GetEmailFromToken extracts the subject email from an email-action token.
func GetEmailFromToken(tokenString string, secret []byte) (string, error) {
	claims, err := ParseToken(tokenString, secret)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}
