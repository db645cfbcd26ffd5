// cmd/dashboard-service/main.go
package main

import (
	"context"
	"net/http"

	"authmail/internal/dashboard"
	"authmail/pkg/accounts"
	"authmail/pkg/analytics"
	"authmail/pkg/authtokens"
	"authmail/pkg/config"
	pdb "authmail/pkg/db"
	"authmail/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	pool := pdb.MustConnect(cfg, log)

	var accountStore accounts.Store
	var tokenStore authtokens.Store
	if pool != nil {
		accountStore = accounts.NewPostgresStore(pool, log)
		tokenStore = authtokens.NewPostgresStore(pool, log)
		if err := accounts.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("accounts schema", "err", err)
		}
		if err := authtokens.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("tokens schema", "err", err)
		}
	} else {
		accountStore = accounts.NewMemoryStore()
		tokenStore = authtokens.NewMemoryStore()
	}

	tracker := analytics.NewTracker(log)
	defer tracker.Close()

	app := dashboard.New(log, accountStore, tokenStore, tracker, cfg)

	log.Infof("dashboard-service listening at %s", cfg.DashboardAddr)
	if err := http.ListenAndServe(cfg.DashboardAddr, app.Handler()); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
