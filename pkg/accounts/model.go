package accounts

import (
	"crypto/rand"
	"encoding/base64"
	"regexp"
	"strings"
	"time"
)

// originRe extracts the scheme://host[:port] prefix of an Origin or
// Referer header value.
var originRe = regexp.MustCompile(`^https?://[^/]+`)

// Account represents a registered third-party site ("tenant") allowed to
// request authentications. The secret is both the claim-signing key for
// the account's end users and the account's own credential; it is
// generated once at creation and never rotated.
type Account struct {
	ID      string // uuid
	Name    string
	Active  bool
	Admins  []string // emails allowed to manage this account
	ReplyTo string   // Reply-To header on login emails

	Origins  []string // exact scheme://host[:port] allow-list
	Redirect string   // registered return URL base

	Secret string // unique, urlsafe, signing key + credential

	HTMLTemplate string // login email body override, {{.Link}} substituted
	TextTemplate string

	// Card on file (captured by an external billing collaborator; this
	// core only reads the presence of these fields).
	StripeID   string
	CardType   string
	CardDigits string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenerateSecret returns a fresh urlsafe account secret (30 random bytes,
// ~40 chars encoded).
func GenerateSecret() string {
	buf := make([]byte, 30)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is not recoverable
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// AuthorizeRequest decides whether a login request declaring the given
// Origin (or, absent that, Referer) header may act on behalf of this
// account. The extracted scheme://host[:port] prefix must exactly match a
// registered origin; no wildcard or subdomain matching.
func (a Account) AuthorizeRequest(origin, referer string) bool {
	src := origin
	if src == "" {
		src = referer
	}
	m := originRe.FindString(src)
	if m == "" {
		return false
	}
	for _, o := range a.Origins {
		if o == m {
			return true
		}
	}
	return false
}

// AllowsRedirect reports whether the requested return URL is the
// registered redirect or a path under it. The original service echoed the
// requested redirect unchecked; requiring a registered prefix closes that
// open redirect.
func (a Account) AllowsRedirect(uri string) bool {
	if uri == "" || a.Redirect == "" {
		return false
	}
	base := strings.TrimRight(a.Redirect, "/")
	return uri == a.Redirect || uri == base ||
		strings.HasPrefix(uri, base+"/") || strings.HasPrefix(uri, base+"?")
}

// HasCard reports whether billing details are on file.
func (a Account) HasCard() bool {
	return a.StripeID != "" && a.CardDigits != ""
}

// IsAdmin reports whether email may manage this account.
func (a Account) IsAdmin(email string) bool {
	for _, e := range a.Admins {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}
