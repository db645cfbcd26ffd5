// cmd/auth-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authmail/internal/authflow"
	"authmail/pkg/accounts"
	"authmail/pkg/analytics"
	"authmail/pkg/authtokens"
	"authmail/pkg/config"
	"authmail/pkg/db"
	"authmail/pkg/jobs"
	"authmail/pkg/logger"
	"authmail/pkg/mailer"
	"authmail/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

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
	if err := accounts.SeedFromFile(context.Background(), accountStore, os.Getenv("ACCOUNT_SEED_FILE"), log); err != nil {
		log.Warnw("seed", "err", err)
	}
	if _, err := accounts.EnsureMaster(context.Background(), accountStore, cfg.MasterSecret, cfg.MasterOrigin, cfg.MasterAdmins); err != nil {
		log.Fatalw("master bootstrap", "err", err)
	}

	var queue jobs.Queue
	if rdb != nil {
		queue = jobs.NewRedisQueue(rdb)
	} else {
		mq := jobs.NewMemoryQueue(128)
		defer mq.Close()
		queue = mq
	}

	var sender mailer.Sender
	if cfg.PostmarkServerToken != "" {
		var err error
		sender, err = mailer.NewPostmarkSender(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.SenderEmail)
		if err != nil {
			log.Fatalw("postmark", "err", err)
		}
	} else {
		sender = mailer.NewDevSender(log)
	}

	tracker := analytics.NewTracker(log)
	defer tracker.Close()

	svc := authflow.NewService(accountStore, tokenStore, queue, sender, tracker, log,
		cfg.PublicBaseURL, cfg.TokenTTL, cfg.SessionTTL)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker := jobs.NewWorker(queue, log)
	worker.Handle(authflow.JobDeliverLogin, svc.DeliverLogin)
	go func() {
		if err := worker.Run(workerCtx); err != nil {
			log.Errorw("delivery worker", "err", err)
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Metrics("auth"))
	r.Use(middleware.Tracing("authmail-auth"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	authflow.RegisterHTTP(r, svc, log)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("auth-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	stopWorker()
	fmt.Println("auth-service stopped")
}
