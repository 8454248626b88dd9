package identity

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const contextKey = "folio.identity"

// Resolver works out the caller of a request. A bearer token wins over the
// session cookie; a request with neither is anonymous.
type Resolver struct {
	secret []byte
}

// NewResolver returns a Resolver verifying bearer tokens with secret.
func NewResolver(secret []byte) *Resolver {
	return &Resolver{secret: secret}
}

// Resolve returns the caller, or nil for an anonymous request. A bearer
// token that fails verification is an error rather than anonymous.
func (r *Resolver) Resolve(c echo.Context) (*Identity, error) {
	if token, ok := BearerToken(c.Request()); ok {
		id, err := ParseToken(token, r.secret)
		if err != nil {
			return nil, err
		}
		return &id, nil
	}
	return sessionIdentity(c), nil
}

// Middleware resolves the caller once per request and stores it for Current.
func (r *Resolver) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := r.Resolve(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token").SetInternal(err)
			}
			if id != nil {
				c.Set(contextKey, id)
			}
			return next(c)
		}
	}
}

// Current returns the caller stored by Middleware, or nil when anonymous.
func Current(c echo.Context) *Identity {
	id, _ := c.Get(contextKey).(*Identity)
	return id
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
