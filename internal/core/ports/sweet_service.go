package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ss-345/sweet-shop/internal/core/domain"
)

// CreateSweetInput carries all data needed to create a sweet.
type CreateSweetInput struct {
	Name     string
	Category string
	Price    decimal.Decimal
	Quantity int
}

// UpdateSweetInput is a partial update; nil fields are left untouched.
type UpdateSweetInput struct {
	Name     *string
	Category *string
	Price    *decimal.Decimal
	Quantity *int
}

// StockChangeInput carries a purchase or restock request.
type StockChangeInput struct {
	SweetID  string
	Quantity int
	// IdempotencyKey is optional. When set, a retry with the same key
	// returns the first result instead of applying the change again.
	IdempotencyKey string
	// ActorID scopes IdempotencyKey to the caller.
	ActorID string
}

// SearchInput carries the optional search filters.
type SearchInput struct {
	Name     string
	Category string
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
}

// SweetService defines use-case operations on the inventory.
type SweetService interface {
	List(ctx context.Context) ([]*domain.Sweet, error)
	Search(ctx context.Context, input SearchInput) ([]*domain.Sweet, error)
	Get(ctx context.Context, id string) (*domain.Sweet, error)
	Create(ctx context.Context, input CreateSweetInput) (*domain.Sweet, error)
	Update(ctx context.Context, id string, input UpdateSweetInput) (*domain.Sweet, error)
	Delete(ctx context.Context, id string) error
	Purchase(ctx context.Context, input StockChangeInput) (*domain.Sweet, error)
	Restock(ctx context.Context, input StockChangeInput) (*domain.Sweet, error)
}
