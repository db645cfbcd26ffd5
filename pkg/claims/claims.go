// pkg/claims/claims.go
package claims

import (
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	// ErrInvalidClaim covers every non-expiry verification failure: bad
	// signature, wrong secret, malformed or empty token. Callers treat it
	// as "not authenticated", never as a fault.
	ErrInvalidClaim = errors.New("invalid claim")
	ErrClaimExpired = errors.New("claim expired")
)

// Claim is the identity statement carried in a signed payload.
type Claim struct {
	Subject string
	Signup  bool
}

// Codec signs and verifies identity claims with a per-account shared
// secret (HS256). Stateless; one Codec serves all accounts.
type Codec struct{}

func New() Codec { return Codec{} }

// Sign produces a compact signed claim for subject. A zero ttl omits the
// expiration claim; payloads minted for token consumption always pass a
// positive ttl.
func (Codec) Sign(secret, subject string, signup bool, ttl time.Duration) (string, error) {
	now := time.Now()
	b := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		Claim("signup", signup)
	if ttl != 0 {
		b = b.Expiration(now.Add(ttl))
	}
	tok, err := b.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(secret)))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Verify checks the signature against secret and returns the embedded
// claim. Expiry is validated only when the payload carries one.
func (Codec) Verify(secret, payload string) (Claim, error) {
	if payload == "" {
		return Claim{}, ErrInvalidClaim
	}
	tok, err := jwt.Parse([]byte(payload),
		jwt.WithKey(jwa.HS256, []byte(secret)),
		jwt.WithValidate(false),
	)
	if err != nil {
		return Claim{}, ErrInvalidClaim
	}
	if err := jwt.Validate(tok); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return Claim{}, ErrClaimExpired
		}
		return Claim{}, ErrInvalidClaim
	}
	c := Claim{Subject: tok.Subject()}
	if v, ok := tok.Get("signup"); ok {
		if b, ok := v.(bool); ok {
			c.Signup = b
		}
	}
	return c, nil
}
