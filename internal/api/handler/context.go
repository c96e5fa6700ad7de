package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/ss-345/sweet-shop/internal/api/middleware"
	"github.com/ss-345/sweet-shop/internal/core/domain"
)

// ctxToken returns the bearer token the Authenticate middleware accepted.
// An empty token means the route was mounted without the gate.
func ctxToken(c echo.Context) (string, error) {
	token := middleware.Token(c)
	if token == "" {
		return "", domain.ErrUnauthenticated
	}
	return token, nil
}
