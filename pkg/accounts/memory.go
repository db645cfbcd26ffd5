// pkg/accounts/memory.go
package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is a mutex-guarded in-memory Store for dev and tests.
type memStore struct {
	mu       sync.Mutex
	byID     map[string]Account
	bySecret map[string]string // secret -> id
}

func NewMemoryStore() Store {
	return &memStore{byID: map[string]Account{}, bySecret: map[string]string{}}
}

func (m *memStore) GetByID(ctx context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.byID[id]; ok {
		return a, nil
	}
	return Account{}, ErrNotFound
}

func (m *memStore) GetBySecret(ctx context.Context, secret string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.bySecret[secret]; ok {
		return m.byID[id], nil
	}
	return Account{}, ErrNotFound
}

func (m *memStore) Create(ctx context.Context, a Account) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Secret == "" {
		a.Secret = GenerateSecret()
	}
	if _, taken := m.bySecret[a.Secret]; taken {
		return Account{}, ErrSecretTaken
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	m.byID[a.ID] = a
	m.bySecret[a.Secret] = a.ID
	return a, nil
}

func (m *memStore) Update(ctx context.Context, a Account) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[a.ID]
	if !ok {
		return Account{}, ErrNotFound
	}
	// Secret is immutable after creation.
	a.Secret = cur.Secret
	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = time.Now()
	m.byID[a.ID] = a
	return a, nil
}

func (m *memStore) ListByAdmin(ctx context.Context, email string) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Account
	for _, a := range m.byID {
		if a.IsAdmin(email) {
			out = append(out, a)
		}
	}
	return out, nil
}
