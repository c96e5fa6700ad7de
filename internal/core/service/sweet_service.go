package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ss-345/sweet-shop/internal/core/domain"
	"github.com/ss-345/sweet-shop/internal/core/ports"
)

const (
	opPurchase = "purchase"
	opRestock  = "restock"
)

// IdempotencyStore abstracts the idempotency key store (Redis).
type IdempotencyStore interface {
	// Lookup returns the stored result for key. It returns
	// domain.ErrIdempotencyInFlight when the key is reserved but not completed.
	Lookup(ctx context.Context, key string) (*domain.Sweet, bool, error)
	// Reserve claims key; false means another request holds it.
	Reserve(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, key string, result *domain.Sweet) error
	Release(ctx context.Context, key string) error
}

// SweetService implements inventory CRUD, search and stock changes.
type SweetService struct {
	repo        ports.SweetRepository
	idempotency IdempotencyStore
	now         func() time.Time
	logger      zerolog.Logger
}

var _ ports.SweetService = (*SweetService)(nil)

// NewSweetService wires the inventory use cases. idem may be nil, in which
// case idempotency keys are ignored.
func NewSweetService(repo ports.SweetRepository, idem IdempotencyStore, logger zerolog.Logger) *SweetService {
	return &SweetService{repo: repo, idempotency: idem, now: time.Now, logger: logger}
}

func (s *SweetService) List(ctx context.Context) ([]*domain.Sweet, error) {
	return s.repo.List(ctx, domain.SweetFilter{})
}

func (s *SweetService) Search(ctx context.Context, in ports.SearchInput) ([]*domain.Sweet, error) {
	filter := domain.SweetFilter{
		Name:     in.Name,
		Category: in.Category,
		PriceMin: in.PriceMin,
		PriceMax: in.PriceMax,
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

func (s *SweetService) Get(ctx context.Context, id string) (*domain.Sweet, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *SweetService) Create(ctx context.Context, in ports.CreateSweetInput) (*domain.Sweet, error) {
	now := s.now().UTC()
	sweet := &domain.Sweet{
		Name:      in.Name,
		Category:  in.Category,
		Price:     in.Price,
		Quantity:  in.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sweet.Normalize()
	if err := sweet.Validate(); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, sweet)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create sweet")
		return nil, err
	}

	s.logger.Info().Str("sweet_id", created.ID).Str("name", created.Name).Msg("sweet created")
	return created, nil
}

func (s *SweetService) Update(ctx context.Context, id string, in ports.UpdateSweetInput) (*domain.Sweet, error) {
	patch := domain.SweetPatch{
		Name:     in.Name,
		Category: in.Category,
		Price:    in.Price,
		Quantity: in.Quantity,
	}
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return s.repo.FindByID(ctx, id)
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("sweet_id", id).Msg("sweet updated")
	return updated, nil
}

func (s *SweetService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("sweet_id", id).Msg("sweet deleted")
	return nil
}

// Purchase removes stock. The check and the write happen in one store call,
// so concurrent purchases can never drive the quantity below zero.
func (s *SweetService) Purchase(ctx context.Context, in ports.StockChangeInput) (*domain.Sweet, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than 0", domain.ErrValidation)
	}
	return s.changeStock(ctx, opPurchase, in, -in.Quantity)
}

// Restock adds stock. The store rejects a total past the largest int with
// domain.ErrStockOverflow.
func (s *SweetService) Restock(ctx context.Context, in ports.StockChangeInput) (*domain.Sweet, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than 0", domain.ErrValidation)
	}
	return s.changeStock(ctx, opRestock, in, in.Quantity)
}

func (s *SweetService) changeStock(ctx context.Context, op string, in ports.StockChangeInput, delta int) (*domain.Sweet, error) {
	apply := func() (*domain.Sweet, error) {
		sweet, err := s.repo.AdjustQuantity(ctx, in.SweetID, delta)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				s.logger.Debug().Str("sweet_id", in.SweetID).Int("requested", in.Quantity).Msg("purchase rejected")
			}
			return nil, err
		}
		s.logger.Info().
			Str("op", op).
			Str("sweet_id", sweet.ID).
			Int("delta", delta).
			Int("quantity", sweet.Quantity).
			Msg("stock changed")
		return sweet, nil
	}

	if in.IdempotencyKey == "" || s.idempotency == nil {
		return apply()
	}
	return s.withIdempotency(ctx, idempotencyKey(op, in), apply)
}

// withIdempotency runs apply at most once per key. Store failures degrade to
// a plain call.
func (s *SweetService) withIdempotency(ctx context.Context, key string, apply func() (*domain.Sweet, error)) (*domain.Sweet, error) {
	cached, found, err := s.idempotency.Lookup(ctx, key)
	switch {
	case errors.Is(err, domain.ErrIdempotencyInFlight):
		return nil, err
	case err != nil:
		s.logger.Warn().Err(err).Str("key", key).Msg("idempotency lookup failed, processing anyway")
		return apply()
	case found:
		s.logger.Info().Str("key", key).Str("sweet_id", cached.ID).Msg("idempotent replay")
		return cached, nil
	}

	reserved, err := s.idempotency.Reserve(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("idempotency reserve failed, processing anyway")
		return apply()
	}
	if !reserved {
		return nil, domain.ErrIdempotencyInFlight
	}

	result, err := apply()
	if err != nil {
		if relErr := s.idempotency.Release(ctx, key); relErr != nil {
			s.logger.Warn().Err(relErr).Str("key", key).Msg("failed to release idempotency key")
		}
		return nil, err
	}

	if err := s.idempotency.Save(ctx, key, result); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store idempotent result, retrying")
		// Retry detached from request cancellation.
		if err := s.idempotency.Save(context.WithoutCancel(ctx), key, result); err != nil {
			s.logger.Error().Err(err).Str("key", key).Msg("idempotent result not stored, key stays reserved")
		}
	}
	return result, nil
}

func idempotencyKey(op string, in ports.StockChangeInput) string {
	return op + ":" + in.ActorID + ":" + in.SweetID + ":" + in.IdempotencyKey
}
