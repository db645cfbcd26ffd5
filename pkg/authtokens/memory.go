// pkg/authtokens/memory.go
package authtokens

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is a mutex-guarded in-memory Store for dev and tests. The
// single mutex gives Consume its atomic test-and-set.
type memStore struct {
	mu     sync.Mutex
	byRef  map[string]Token
	logins map[string]bool // accountID + "\x00" + email
}

func NewMemoryStore() Store {
	return &memStore{byRef: map[string]Token{}, logins: map[string]bool{}}
}

func (m *memStore) Create(ctx context.Context, t Token) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Ref == "" {
		t.Ref = NewRef()
	}
	if t.State == "" {
		t.State = StateSent
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	m.byRef[t.Ref] = t
	return t, nil
}

func (m *memStore) Get(ctx context.Context, ref string) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byRef[ref]; ok {
		return t, nil
	}
	return Token{}, ErrNotFound
}

func (m *memStore) MarkOpened(ctx context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byRef[ref]; ok && t.State == StateSent {
		t.State = StateOpened
		m.byRef[ref] = t
		return true, nil
	}
	return false, nil
}

func (m *memStore) Consume(ctx context.Context, ref string, cutoff time.Time) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byRef[ref]
	if !ok {
		return Token{}, ErrNotFound
	}
	if t.State == StateConsumed {
		return Token{}, ErrAlreadyConsumed
	}
	if !cutoff.IsZero() && t.CreatedAt.Before(cutoff) {
		return Token{}, ErrTokenExpired
	}
	t.State = StateConsumed
	t.ConsumedAt = time.Now()
	m.byRef[ref] = t
	return t, nil
}

func (m *memStore) RecordFirstLogin(ctx context.Context, accountID, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := accountID + "\x00" + email
	if m.logins[k] {
		return false, nil
	}
	m.logins[k] = true
	return true, nil
}

func (m *memStore) ListRecentByAccount(ctx context.Context, accountID string, limit int) ([]Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Token
	for _, t := range m.byRef {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
