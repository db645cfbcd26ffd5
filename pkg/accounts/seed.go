// pkg/accounts/seed.go
package accounts

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SeedFromFile ingests initial accounts from a YAML file (ACCOUNT_SEED_FILE).
// Format:
//
//	- name: Acme
//	  secret: optional-fixed-secret
//	  admins: [ops@acme.com]
//	  origins: [https://app.acme.com]
//	  redirect: https://app.acme.com/auth/callback
//	  reply_to: support@acme.com
//
// Existing accounts (matched by secret) are left untouched.
func SeedFromFile(ctx context.Context, s Store, path string, log *zap.SugaredLogger) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []struct {
		Name     string   `yaml:"name"`
		Secret   string   `yaml:"secret"`
		Admins   []string `yaml:"admins"`
		Origins  []string `yaml:"origins"`
		Redirect string   `yaml:"redirect"`
		ReplyTo  string   `yaml:"reply_to"`
	}
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return err
	}
	for _, e := range entries {
		_, err := s.Create(ctx, Account{
			Name:     e.Name,
			Active:   true,
			Secret:   e.Secret,
			Admins:   e.Admins,
			Origins:  e.Origins,
			Redirect: e.Redirect,
			ReplyTo:  e.ReplyTo,
		})
		if errors.Is(err, ErrSecretTaken) {
			continue // already seeded
		}
		if err != nil {
			log.Warnw("account seed", "name", e.Name, "err", err)
		}
	}
	return nil
}
