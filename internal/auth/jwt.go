// Package auth hashes passwords and issues/validates signed bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"visionchat/internal/common"
)

// TokenIssuer signs HS256 JWTs whose subject is the user's email.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL is the default lifetime used by Issue.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for identity using the issuer's default lifetime.
func (i *TokenIssuer) Issue(identity string) (string, error) {
	return i.IssueWithTTL(identity, i.ttl)
}

// IssueWithTTL mints a token for identity valid for ttl. A ttl <= 0 yields a
// token that is already expired.
func (i *TokenIssuer) IssueWithTTL(identity string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   identity,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate validates signature and expiry and returns the identity.
// Every failure is reported as common.ErrUnauthorized.
func (i *TokenIssuer) Authenticate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", common.ErrUnauthorized
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", common.ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", common.ErrUnauthorized
	}

	return claims.Subject, nil
}
