package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"authmail/pkg/accounts"
	"authmail/pkg/analytics"
	"authmail/pkg/authtokens"
	"authmail/pkg/claims"
	"authmail/pkg/config"
	"authmail/pkg/session"
)

// App is the dashboard-service application container.
// Handlers and middleware have methods on this type.
//
// Keep it lean: shared deps and config only.
// Request-scoped work should use context.
type App struct {
	log      *zap.SugaredLogger
	accounts accounts.Store
	tokens   authtokens.Store
	sessions *session.Manager
	tracker  analytics.Tracker
	codec    claims.Codec

	master accounts.Account
}

// New constructs App and performs the one-time master-account bootstrap.
// The bootstrap is explicit and idempotent: concurrent first boots race
// on the unique secret constraint and converge on one row.
func New(log *zap.SugaredLogger, accountStore accounts.Store, tokenStore authtokens.Store, tracker analytics.Tracker, cfg config.Config) *App {
	app := &App{
		log:      log,
		accounts: accountStore,
		tokens:   tokenStore,
		sessions: session.NewManager(cfg.MasterSecret, cfg.SessionTTL, cfg.Env == "prod"),
		tracker:  tracker,
		codec:    claims.New(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	master, err := accounts.EnsureMaster(ctx, accountStore, cfg.MasterSecret, cfg.MasterOrigin, cfg.MasterAdmins)
	if err != nil {
		log.Fatalw("master bootstrap", "err", err)
	}
	app.master = master
	log.Infow("master account ready", "id", master.ID)
	return app
}
