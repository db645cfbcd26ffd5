package dashboard

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authmail/pkg/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.Metrics("dashboard"))
	r.Use(middleware.Tracing("authmail-dashboard"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/session", a.createSession)
	r.Delete("/session", a.deleteSession)

	r.Group(func(lr chi.Router) {
		lr.Use(a.requireLogin)
		lr.Get("/dashboard/accounts", a.listAccounts)
		lr.Post("/accounts", a.createAccount)
		lr.Get("/accounts/{id}", a.getAccount)
		lr.Put("/accounts/{id}", a.updateAccount)
		lr.Get("/accounts/{id}/activity", a.accountActivity)
		lr.Get("/accounts/{id}/verify", a.verifyPayload)
		lr.Get("/accounts/{id}/billing", a.accountBilling)
	})

	return r
}
