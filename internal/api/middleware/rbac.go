package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/ss-345/sweet-shop/internal/core/domain"
)

// Authorizer is the part of the auth service the Authorize stage needs.
type Authorizer interface {
	Authorize(ctx context.Context, claims *domain.TokenClaims, allowed ...domain.Role) (*domain.User, error)
}

// Authorize enforces role-based access control against the user's live role.
// It must run after Authenticate. With no roles any existing user passes.
func Authorize(authz Authorizer, allowedRoles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := Claims(c)
			if claims == nil {
				return domain.ErrUnauthenticated
			}

			user, err := authz.Authorize(c.Request().Context(), claims, allowedRoles...)
			if err != nil {
				return err
			}

			c.Set(ContextKeyUser, user)
			return next(c)
		}
	}
}
