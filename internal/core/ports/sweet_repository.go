package ports

import (
	"context"

	"github.com/ss-345/sweet-shop/internal/core/domain"
)

// SweetRepository defines persistence operations for sweets.
// Listings are ordered by creation time, newest first.
type SweetRepository interface {
	Create(ctx context.Context, s *domain.Sweet) (*domain.Sweet, error)
	FindByID(ctx context.Context, id string) (*domain.Sweet, error)
	List(ctx context.Context, filter domain.SweetFilter) ([]*domain.Sweet, error)
	Update(ctx context.Context, id string, patch domain.SweetPatch) (*domain.Sweet, error)
	Delete(ctx context.Context, id string) error

	// AdjustQuantity atomically adds delta to the sweet's quantity. When the
	// result would be negative nothing is written and
	// domain.ErrInsufficientStock is returned.
	AdjustQuantity(ctx context.Context, id string, delta int) (*domain.Sweet, error)
}
