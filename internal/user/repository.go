package user

import (
	"context"
	"fmt"
	"sync"

	"github.com/hackgods/doctor-appointment-scheduling/internal/apperr"
	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
)

var (
	ErrUserNotFound = fmt.Errorf("%w: user not found", apperr.ErrNotFound)
	ErrEmailTaken   = fmt.Errorf("%w: email already in use", apperr.ErrConflict)
)

// Repository stores users. Emails are stored normalized (trimmed, lower case).
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByType(ctx context.Context, t auth.Role) ([]*User, error)
}

type MemoryRepository struct {
	mu    sync.RWMutex
	users []*User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	c := *u
	r.users = append(r.users, &c)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryRepository) ListByType(_ context.Context, t auth.Role) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*User, 0)
	for _, u := range r.users {
		if u.Type == t {
			c := *u
			result = append(result, &c)
		}
	}
	return result, nil
}
