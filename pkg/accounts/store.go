package accounts

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("account not found")
	// ErrSecretTaken is returned when a create collides on the unique
	// secret constraint; EnsureMaster resolves its first-boot race by
	// re-reading after observing it.
	ErrSecretTaken = errors.New("account secret already taken")
)

type Store interface {
	GetByID(ctx context.Context, id string) (Account, error)
	// GetBySecret resolves an account by its secret credential.
	GetBySecret(ctx context.Context, secret string) (Account, error)
	Create(ctx context.Context, a Account) (Account, error)
	Update(ctx context.Context, a Account) (Account, error)
	// ListByAdmin returns accounts manageable by the given admin email.
	ListByAdmin(ctx context.Context, email string) ([]Account, error)
}

// EnsureMaster looks up the account holding the configured master secret,
// creating it on first boot. Idempotent and safe under concurrent
// startup: a losing creator hits the unique-secret constraint and
// re-reads the winner's row.
func EnsureMaster(ctx context.Context, s Store, secret, origin string, admins []string) (Account, error) {
	if secret == "" {
		return Account{}, errors.New("master secret not configured")
	}
	if a, err := s.GetBySecret(ctx, secret); err == nil {
		return a, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}
	a, err := s.Create(ctx, Account{
		Name:     "AuthMail",
		Active:   true,
		Secret:   secret,
		Origins:  []string{origin},
		Redirect: origin + "/",
		Admins:   admins,
	})
	if err == nil {
		return a, nil
	}
	if errors.Is(err, ErrSecretTaken) {
		return s.GetBySecret(ctx, secret)
	}
	return Account{}, err
}
