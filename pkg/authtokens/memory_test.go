package authtokens_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authmail/pkg/authtokens"
)

func TestNewRefUnguessable(t *testing.T) {
	r1 := authtokens.NewRef()
	r2 := authtokens.NewRef()
	assert.NotEqual(t, r1, r2)
	assert.Len(t, r1, 32) // 24 bytes base64url
	assert.NotContains(t, r1, "/")
	assert.NotContains(t, r1, "+")
}

func TestCreateDefaults(t *testing.T) {
	ctx := context.Background()
	s := authtokens.NewMemoryStore()

	tok, err := s.Create(ctx, authtokens.Token{AccountID: "a1", Email: "u@example.com", Redirect: "https://x/cb"})
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Ref)
	assert.Equal(t, authtokens.StateSent, tok.State)
	assert.False(t, tok.CreatedAt.IsZero())
}

func TestConsumeTransitions(t *testing.T) {
	ctx := context.Background()
	s := authtokens.NewMemoryStore()

	tok, err := s.Create(ctx, authtokens.Token{AccountID: "a1", Email: "u@example.com"})
	require.NoError(t, err)

	consumed, err := s.Consume(ctx, tok.Ref, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, authtokens.StateConsumed, consumed.State)
	assert.False(t, consumed.ConsumedAt.IsZero())

	// Failure is idempotent: a consumed token never yields again.
	_, err = s.Consume(ctx, tok.Ref, time.Time{})
	assert.ErrorIs(t, err, authtokens.ErrAlreadyConsumed)
	_, err = s.Consume(ctx, tok.Ref, time.Time{})
	assert.ErrorIs(t, err, authtokens.ErrAlreadyConsumed)
}

func TestConsumeFromOpened(t *testing.T) {
	ctx := context.Background()
	s := authtokens.NewMemoryStore()

	tok, err := s.Create(ctx, authtokens.Token{AccountID: "a1", Email: "u@example.com"})
	require.NoError(t, err)
	opened, err := s.MarkOpened(ctx, tok.Ref)
	require.NoError(t, err)
	require.True(t, opened)

	_, err = s.Consume(ctx, tok.Ref, time.Time{})
	require.NoError(t, err)
}

func TestConsumeUnknownRef(t *testing.T) {
	s := authtokens.NewMemoryStore()
	_, err := s.Consume(context.Background(), "no-such-ref", time.Time{})
	assert.ErrorIs(t, err, authtokens.ErrNotFound)
}

func TestConsumeExpired(t *testing.T) {
	ctx := context.Background()
	s := authtokens.NewMemoryStore()

	tok, err := s.Create(ctx, authtokens.Token{
		AccountID: "a1", Email: "u@example.com",
		CreatedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	_, err = s.Consume(ctx, tok.Ref, time.Now().Add(-15*time.Minute))
	assert.ErrorIs(t, err, authtokens.ErrTokenExpired)

	// Expiry does not transition state.
	cur, err := s.Get(ctx, tok.Ref)
	require.NoError(t, err)
	assert.Equal(t, authtokens.StateSent, cur.State)
}

func TestConsumeConcurrentExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := authtokens.NewMemoryStore()

	tok, err := s.Create(ctx, authtokens.Token{AccountID: "a1", Email: "u@example.com"})
	require.NoError(t, err)

	const n = 64
	var wins, losses atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Consume(ctx, tok.Ref, time.Time{})
			if err == nil {
				wins.Add(1)
			} else if assert.ErrorIs(t, err, authtokens.ErrAlreadyConsumed) {
				losses.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load(), "exactly one concurrent consumer may win")
	assert.Equal(t, int64(n-1), losses.Load())
}

func TestMarkOpenedNoOpSemantics(t *testing.T) {
	ctx := context.Background()
	s := authtokens.NewMemoryStore()

	// Unknown ref: silent no-op.
	opened, err := s.MarkOpened(ctx, "no-such-ref")
	require.NoError(t, err)
	assert.False(t, opened)

	tok, err := s.Create(ctx, authtokens.Token{AccountID: "a1", Email: "u@example.com"})
	require.NoError(t, err)

	opened, err = s.MarkOpened(ctx, tok.Ref)
	require.NoError(t, err)
	assert.True(t, opened)
	cur, _ := s.Get(ctx, tok.Ref)
	assert.Equal(t, authtokens.StateOpened, cur.State)

	// Second open changes nothing and does not report a transition.
	opened, err = s.MarkOpened(ctx, tok.Ref)
	require.NoError(t, err)
	assert.False(t, opened)
	cur, _ = s.Get(ctx, tok.Ref)
	assert.Equal(t, authtokens.StateOpened, cur.State)

	// Opened-after-consumed leaves consumed untouched.
	_, err = s.Consume(ctx, tok.Ref, time.Time{})
	require.NoError(t, err)
	opened, err = s.MarkOpened(ctx, tok.Ref)
	require.NoError(t, err)
	assert.False(t, opened)
	cur, _ = s.Get(ctx, tok.Ref)
	assert.Equal(t, authtokens.StateConsumed, cur.State)
}

func TestMarkOpenedConcurrentSingleTransition(t *testing.T) {
	ctx := context.Background()
	s := authtokens.NewMemoryStore()

	tok, err := s.Create(ctx, authtokens.Token{AccountID: "a1", Email: "u@example.com"})
	require.NoError(t, err)

	const n = 16
	var transitions atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opened, err := s.MarkOpened(ctx, tok.Ref)
			if assert.NoError(t, err) && opened {
				transitions.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), transitions.Load(), "only one opener may observe the transition")
}

func TestRecordFirstLogin(t *testing.T) {
	ctx := context.Background()
	s := authtokens.NewMemoryStore()

	first, err := s.RecordFirstLogin(ctx, "a1", "u@example.com")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.RecordFirstLogin(ctx, "a1", "u@example.com")
	require.NoError(t, err)
	assert.False(t, again)

	// Distinct account or email is its own first login.
	other, err := s.RecordFirstLogin(ctx, "a2", "u@example.com")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestRecordFirstLoginConcurrent(t *testing.T) {
	ctx := context.Background()
	s := authtokens.NewMemoryStore()

	const n = 32
	var firsts atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := s.RecordFirstLogin(ctx, "a1", "race@example.com")
			if assert.NoError(t, err) && first {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), firsts.Load(), "at most one signup classification per identity")
}

func TestListRecentByAccount(t *testing.T) {
	ctx := context.Background()
	s := authtokens.NewMemoryStore()

	base := time.Now()
	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, authtokens.Token{
			AccountID: "a1", Email: "u@example.com",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, authtokens.Token{AccountID: "other", Email: "v@example.com"})
	require.NoError(t, err)

	got, err := s.ListRecentByAccount(ctx, "a1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
	assert.True(t, got[1].CreatedAt.After(got[2].CreatedAt))
}
