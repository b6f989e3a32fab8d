package user

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
)

// CachedRepository serves GetByID from an LRU cache. Users do not change
// after registration, so entries never go stale.
type CachedRepository struct {
	Repository
	cache *lru.Cache[string, User]
}

func NewCachedRepository(inner Repository, size int) (*CachedRepository, error) {
	cache, err := lru.New[string, User](size)
	if err != nil {
		return nil, fmt.Errorf("create user cache: %w", err)
	}
	return &CachedRepository{Repository: inner, cache: cache}, nil
}

func (r *CachedRepository) GetByID(ctx context.Context, id string) (*User, error) {
	if u, ok := r.cache.Get(id); ok {
		return &u, nil
	}

	u, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, *u)
	return u, nil
}

func (r *CachedRepository) ListByType(ctx context.Context, t auth.Role) ([]*User, error) {
	users, err := r.Repository.ListByType(ctx, t)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		r.cache.Add(u.ID, *u)
	}
	return users, nil
}
