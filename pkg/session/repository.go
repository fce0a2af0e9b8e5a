package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Repository loads and saves session stores.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Store, error)
	Save(ctx context.Context, s *Store) error
}

// MemoryRepository keeps sessions in process memory. Idle sessions expire after ttl.
type MemoryRepository struct {
	cache *cache.Cache
}

func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryRepository{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*Store, error) {
	if x, found := r.cache.Get(id.String()); found {
		return x.(*Store).Clone(), nil
	}
	return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
}

func (r *MemoryRepository) Save(ctx context.Context, s *Store) error {
	r.cache.Set(s.ID.String(), s.Clone(), cache.DefaultExpiration)
	return nil
}

func encode(s *Store) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", s.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*Store, error) {
	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}
