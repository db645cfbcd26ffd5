package authtokens

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("token not found")
	ErrAlreadyConsumed = errors.New("token already consumed")
	ErrTokenExpired    = errors.New("token expired")
)

// Store persists login tokens. Consume is the synchronization point for
// the whole protocol: implementations must make the state transition a
// single atomic compare-and-set so that exactly one of N concurrent
// callers wins.
type Store interface {
	Create(ctx context.Context, t Token) (Token, error)
	Get(ctx context.Context, ref string) (Token, error)

	// MarkOpened transitions sent -> opened and reports whether this
	// call performed the transition; at most one concurrent caller
	// observes true. Any other current state, or an unknown ref, is a
	// silent no-op: the open pixel must never fail visibly.
	MarkOpened(ctx context.Context, ref string) (bool, error)

	// Consume atomically transitions {sent,opened} -> consumed and
	// returns the token as consumed. Tokens created before cutoff are
	// rejected with ErrTokenExpired and left untouched; a zero cutoff
	// disables the expiry check. Unknown refs yield ErrNotFound and
	// already-consumed refs ErrAlreadyConsumed; callers surface both
	// identically.
	Consume(ctx context.Context, ref string, cutoff time.Time) (Token, error)

	// RecordFirstLogin marks (accountID, email) as having completed an
	// authentication and reports whether this was the first. At most one
	// caller ever observes true for a given pair, even concurrently.
	RecordFirstLogin(ctx context.Context, accountID, email string) (bool, error)

	// ListRecentByAccount returns the account's latest tokens, newest
	// first, for the dashboard activity view.
	ListRecentByAccount(ctx context.Context, accountID string, limit int) ([]Token, error)
}
