package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for bearer tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload of an API bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Login string `json:"login,omitempty"`
	Email string `json:"email,omitempty"`
}

// IssueToken signs a bearer token for id with HS256. A non-positive ttl
// issues a token without expiry.
func IssueToken(id Identity, secret []byte, ttl time.Duration) (string, error) {
	if id.IsZero() {
		return "", errors.New("identity: cannot issue token for empty identity")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.Handle(),
			IssuedAt: jwt.NewNumericDate(now),
		},
		Name:  id.Name,
		Login: id.Login,
		Email: id.Email,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies tokenString and returns the identity it carries.
func ParseToken(tokenString string, secret []byte) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	id := Identity{
		Name:  strings.TrimSpace(claims.Name),
		Login: strings.TrimSpace(claims.Login),
		Email: strings.TrimSpace(claims.Email),
	}
	if id.IsZero() {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
