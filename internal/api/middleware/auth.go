package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ss-345/sweet-shop/internal/core/domain"
)

// Context keys set by the gate.
const (
	ContextKeyToken  = "auth.token"
	ContextKeyClaims = "auth.claims"
	ContextKeyUser   = "auth.user"
)

// TokenVerifier is the part of the auth service the Authenticate stage needs.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.TokenClaims, error)
}

// Authenticate validates the bearer token and injects the token and its
// claims into the context. Every failure is domain.ErrUnauthenticated.
func Authenticate(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				return domain.ErrUnauthenticated
			}

			c.Set(ContextKeyToken, token)
			c.Set(ContextKeyClaims, claims)
			return next(c)
		}
	}
}

// BearerToken extracts the token from an Authorization header value of the
// form "Bearer <token>". The scheme is case-insensitive.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", domain.ErrUnauthenticated
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", domain.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrUnauthenticated
	}
	return token, nil
}

// Claims returns the claims stored by Authenticate, or nil.
func Claims(c echo.Context) *domain.TokenClaims {
	claims, _ := c.Get(ContextKeyClaims).(*domain.TokenClaims)
	return claims
}

// Token returns the raw bearer token stored by Authenticate.
func Token(c echo.Context) string {
	token, _ := c.Get(ContextKeyToken).(string)
	return token
}

// User returns the live user stored by Authorize, or nil.
func User(c echo.Context) *domain.User {
	user, _ := c.Get(ContextKeyUser).(*domain.User)
	return user
}
