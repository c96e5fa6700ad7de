package ports

import (
	"context"

	"github.com/ss-345/sweet-shop/internal/core/domain"
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string
	User  domain.PublicUser
}

// AuthService covers account registration, login and token handling.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	VerifyToken(token string) (*domain.TokenClaims, error)
	CurrentUser(ctx context.Context, token string) (*domain.PublicUser, error)
	// Authorize re-reads the user behind claims and checks the live role
	// against allowed. An empty allowed set admits any existing user.
	Authorize(ctx context.Context, claims *domain.TokenClaims, allowed ...domain.Role) (*domain.User, error)
}
