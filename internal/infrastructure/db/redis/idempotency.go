package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ss-345/sweet-shop/internal/core/domain"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	pendingMarker         = "pending"
)

// IdempotencyStore remembers purchase/restock results per caller key.
// Key format: idem:<op>:<actor_id>:<sweet_id>:<caller_key>
//
// A reservation lives as long as a stored result. A key whose result was
// never saved keeps answering "in progress" until it expires and is never
// applied a second time.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore wraps client. Completed results expire after ttl.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

type storedSweet struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Lookup returns the completed result for key, if any.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (*domain.Sweet, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if raw == pendingMarker {
		return nil, false, domain.ErrIdempotencyInFlight
	}

	var stored storedSweet
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, false, fmt.Errorf("idempotency decode: %w", err)
	}
	return &domain.Sweet{
		ID:        stored.ID,
		Name:      stored.Name,
		Category:  stored.Category,
		Price:     stored.Price,
		Quantity:  stored.Quantity,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}, true, nil
}

// Reserve claims key with SET NX so only one request can run the mutation.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), pendingMarker, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency reserve: %w", err)
	}
	return ok, nil
}

// Save replaces the reservation with the result (expires after ttl).
func (s *IdempotencyStore) Save(ctx context.Context, key string, result *domain.Sweet) error {
	raw, err := json.Marshal(storedSweet{
		ID:        result.ID,
		Name:      result.Name,
		Category:  result.Category,
		Price:     result.Price,
		Quantity:  result.Quantity,
		CreatedAt: result.CreatedAt,
		UpdatedAt: result.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("idempotency encode: %w", err)
	}
	return s.client.Set(ctx, s.key(key), raw, s.ttl).Err()
}

// Release drops a reservation after a failed mutation so the caller may retry.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *IdempotencyStore) key(key string) string {
	return "idem:" + key
}
