package ports

import (
	"context"

	"github.com/ss-345/sweet-shop/internal/core/domain"
)

// UserRepository defines the interface for credential persistence.
type UserRepository interface {
	// Create stores a new user and returns it with its generated ID.
	// Returns domain.ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}
