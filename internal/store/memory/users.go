// Package memory holds list-backed repositories used when no database is
// configured. Data lives for the life of the process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/schoollms/apiserver/internal/store"
	"github.com/schoollms/apiserver/types"
)

// UserRepository keeps users in insertion order.
type UserRepository struct {
	mu     sync.RWMutex
	users  []types.User
	nextID int
}

func NewUserRepository() *UserRepository {
	return &UserRepository{nextID: 1}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.ID == id {
			return cloneUser(user), nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Username == username {
			return cloneUser(user), nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, cloneUser(user))
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = r.nextID
	r.nextID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user = cloneUser(user)
	r.users = append(r.users, user)
	return cloneUser(user), nil
}

func cloneUser(user types.User) types.User {
	if user.YearGroup != nil {
		year := *user.YearGroup
		user.YearGroup = &year
	}
	if user.Subjects != nil {
		user.Subjects = append([]string(nil), user.Subjects...)
	}
	return user
}
