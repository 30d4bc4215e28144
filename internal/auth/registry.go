package auth

import (
	"context"
	"sync"

	"github.com/lifelane/lifelane/internal/model"
)

// MemoryRegistry keeps accounts in a map. It backs the memory store backend
// and the test suites.
type MemoryRegistry struct {
	mu    sync.RWMutex
	users map[string]*model.User // keyed by email
}

// NewMemoryRegistry constructs an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{users: make(map[string]*model.User)}
}

// CreateUser stores a new account, rejecting duplicate emails.
func (m *MemoryRegistry) CreateUser(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return ErrEmailTaken
	}
	copied := *u
	m.users[u.Email] = &copied
	return nil
}

// UserByEmail looks up an account by email.
func (m *MemoryRegistry) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// SetAdmin flips the admin flag on an existing account.
func (m *MemoryRegistry) SetAdmin(ctx context.Context, email string, admin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return ErrUserNotFound
	}
	user.Admin = admin
	return nil
}
