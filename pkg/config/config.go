// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env           string
	HTTPAddr      string // auth-service
	DashboardAddr string // dashboard-service

	// Public base URL of the auth-service, used to build login links
	// and the open-tracking pixel URL embedded in emails.
	PublicBaseURL string

	// Master account bootstrap. The secret doubles as the signing key for
	// administrative sessions, so it must be set in every environment.
	MasterSecret string
	MasterOrigin string
	MasterAdmins []string

	// Token / session lifetimes
	TokenTTL   time.Duration
	SessionTTL time.Duration

	// Email delivery (Postmark). Empty tokens -> log-only dev sender.
	PostmarkServerToken  string
	PostmarkAccountToken string
	SenderEmail          string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                  env("AUTHMAIL_ENV", "dev"),
		HTTPAddr:             env("AUTHMAIL_HTTP_ADDR", ":8080"),
		DashboardAddr:        env("AUTHMAIL_DASHBOARD_ADDR", ":8082"),
		PublicBaseURL:        env("BASE_PUBLIC_URL", "http://localhost:8080"),
		MasterSecret:         env("SECRET", ""),
		MasterOrigin:         env("ORIGIN", "http://localhost:8080"),
		MasterAdmins:         envList("MASTER_ADMINS", "hello@authmail.co"),
		TokenTTL:             envDur("AUTH_TOKEN_TTL_SEC", 900) * time.Second,
		SessionTTL:           envDur("SESSION_TTL_SEC", 2592000) * time.Second,
		PostmarkServerToken:  env("POSTMARK_SERVER_TOKEN", ""),
		PostmarkAccountToken: env("POSTMARK_ACCOUNT_TOKEN", ""),
		SenderEmail:          env("SENDER_EMAIL", "login@authmail.co"),
		RedisURL:             env("REDIS_URL", ""),
		DatabaseURL:          env("DATABASE_URL", ""),
	}
	if cfg.MasterSecret == "" {
		log.Println("[WARN] SECRET not set; administrative sessions will not verify")
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set; using in-memory stores for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envList(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}
