package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps users and trades in process memory. Records come back in
// insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	users  []User
	trades []Trade
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FindUserByUsername implements UserStore.
func (m *MemoryStore) FindUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.users {
		if m.users[i].Username == username {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// UserExists implements UserStore.
func (m *MemoryStore) UserExists(_ context.Context, username, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// InsertUser implements UserStore.
func (m *MemoryStore) InsertUser(_ context.Context, u *User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users = append(m.users, *u)
	return u.ID, nil
}

// InsertTrade implements TradeStore.
func (m *MemoryStore) InsertTrade(_ context.Context, t *Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trades = append(m.trades, *t)
	return nil
}

// FindTradesByUser implements TradeStore.
func (m *MemoryStore) FindTradesByUser(_ context.Context, userID string) ([]Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := make([]Trade, 0)
	for _, t := range m.trades {
		if t.UserID == userID {
			trades = append(trades, t)
		}
	}
	return trades, nil
}

// HealthCheck always succeeds.
func (m *MemoryStore) HealthCheck(context.Context) error {
	return nil
}

// UserCount returns the number of stored users.
func (m *MemoryStore) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
