package authtokens

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// State of a login token. Transitions: sent -> opened -> consumed, with
// opened optional. Nothing leaves consumed.
type State string

const (
	StateSent     State = "sent"
	StateOpened   State = "opened"
	StateConsumed State = "consumed"
)

// Token is an ephemeral one-time login ticket. Ref is its only public
// handle: unguessable, urlsafe, and carrying no information about the
// account or email it maps to.
type Token struct {
	Ref       string
	AccountID string
	Email     string
	Redirect  string // return URL requested by the tenant
	// ClientState is an opaque string echoed back to the tenant on the
	// redirect, untouched by this service.
	ClientState string
	State       State
	CreatedAt   time.Time
	ConsumedAt  time.Time // zero until consumed
}

// NewRef returns a fresh token handle (24 random bytes, urlsafe).
func NewRef() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
