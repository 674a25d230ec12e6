package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

var ErrUserNotFound = errors.New("user not found")

// User is the caller identity as seen by order placement. Registration and
// credentials live in the user service.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func NotFoundError(userID string) error {
	return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
}

// Directory resolves a verified user id to a user.
type Directory interface {
	Lookup(ctx context.Context, userID string) (User, error)
}

// MemoryDirectory is a fixed Directory used in local mode and tests.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryDirectory(users ...User) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *MemoryDirectory) Put(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *MemoryDirectory) Lookup(_ context.Context, userID string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return User{}, NotFoundError(userID)
	}
	return u, nil
}
