package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ss-345/sweet-shop/internal/core/domain"
	"github.com/ss-345/sweet-shop/internal/core/ports"
)

type sweetRecord struct {
	sweet domain.Sweet
	seq   uint64
}

type SweetRepository struct {
	mu     sync.Mutex
	sweets map[string]*sweetRecord
	seq    uint64
	now    func() time.Time
}

var _ ports.SweetRepository = (*SweetRepository)(nil)

func NewSweetRepository() *SweetRepository {
	return &SweetRepository{sweets: make(map[string]*sweetRecord), now: time.Now}
}

func (r *SweetRepository) Create(_ context.Context, s *domain.Sweet) (*domain.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	rec := &sweetRecord{sweet: *s, seq: r.seq}
	rec.sweet.ID = uuid.NewString()
	r.sweets[rec.sweet.ID] = rec

	out := rec.sweet
	return &out, nil
}

func (r *SweetRepository) FindByID(_ context.Context, id string) (*domain.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrSweetNotFound
	}
	out := rec.sweet
	return &out, nil
}

func (r *SweetRepository) List(_ context.Context, filter domain.SweetFilter) ([]*domain.Sweet, error) {
	r.mu.Lock()
	matched := make([]*sweetRecord, 0, len(r.sweets))
	for _, rec := range r.sweets {
		if filter.Matches(&rec.sweet) {
			cp := *rec
			matched = append(matched, &cp)
		}
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.sweet.CreatedAt.Equal(b.sweet.CreatedAt) {
			return a.sweet.CreatedAt.After(b.sweet.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*domain.Sweet, len(matched))
	for i, rec := range matched {
		s := rec.sweet
		out[i] = &s
	}
	return out, nil
}

func (r *SweetRepository) Update(_ context.Context, id string, patch domain.SweetPatch) (*domain.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrSweetNotFound
	}
	patch.Apply(&rec.sweet)
	rec.sweet.UpdatedAt = r.now().UTC()

	out := rec.sweet
	return &out, nil
}

func (r *SweetRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sweets[id]; !ok {
		return domain.ErrSweetNotFound
	}
	delete(r.sweets, id)
	return nil
}

// AdjustQuantity checks and writes under the same lock hold.
func (r *SweetRepository) AdjustQuantity(_ context.Context, id string, delta int) (*domain.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrSweetNotFound
	}
	current := rec.sweet.Quantity
	if delta > 0 && current > math.MaxInt-delta {
		return nil, domain.ErrStockOverflow
	}
	next := current + delta
	if next < 0 {
		return nil, domain.ErrInsufficientStock
	}
	rec.sweet.Quantity = next
	rec.sweet.UpdatedAt = r.now().UTC()

	out := rec.sweet
	return &out, nil
}
