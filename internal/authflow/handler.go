package authflow

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"authmail/pkg/accounts"
	"authmail/pkg/authtokens"
	"authmail/pkg/problems"
)

// openedGIF is the 1x1 transparent pixel returned by the open-tracking
// endpoint regardless of internal outcome.
var openedGIF, _ = base64.StdEncoding.DecodeString(
	"R0lGODlhAQABAIABAP///wAAACH5BAEKAAEALAAAAAABAAEAAAICTAEAOw==")

const failurePage = `<!doctype html>
<html><body>
<h1>This login link is not valid</h1>
<p>It may have been used already or expired. Go back and request a new one.</p>
</body></html>`

// loginRequest is the tenant-initiated login body, accepted as JSON or
// form fields.
type loginRequest struct {
	ClientID    string `json:"client_id"`
	Email       string `json:"email"`
	RedirectURI string `json:"redirect_uri"`
	State       string `json:"state"`
}

// RegisterHTTP mounts the public protocol endpoints.
// POST /login                   create a login token, email its link
// GET  /login/{ref}             consume the token, redirect with claim
// GET  /track/{ref}/opened.gif  open-tracking pixel
func RegisterHTTP(r chi.Router, svc *Service, log *zap.SugaredLogger) {
	r.Post("/login", func(w http.ResponseWriter, req *http.Request) {
		var body loginRequest
		if strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				problems.Write(w, http.StatusBadRequest, "malformed-request", "Malformed request", "Request body is not valid JSON")
				return
			}
		} else {
			if err := req.ParseForm(); err != nil {
				problems.Write(w, http.StatusBadRequest, "malformed-request", "Malformed request", "Request body is not a valid form")
				return
			}
			body = loginRequest{
				ClientID:    req.PostFormValue("client_id"),
				Email:       req.PostFormValue("email"),
				RedirectURI: req.PostFormValue("redirect_uri"),
				State:       req.PostFormValue("state"),
			}
		}
		if body.ClientID == "" || body.Email == "" || body.RedirectURI == "" {
			problems.Write(w, http.StatusBadRequest, "missing-fields", "Missing fields", "client_id, email and redirect_uri are required")
			return
		}

		_, err := svc.CreateLogin(req.Context(),
			body.ClientID, body.Email, body.RedirectURI, body.State,
			req.Header.Get("Origin"), req.Header.Get("Referer"))
		switch {
		case err == nil:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "sent"})
		case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrRedirectNotAllowed), errors.Is(err, accounts.ErrNotFound):
			// One generic rejection; no hint whether the account or email
			// exists or which check failed.
			problems.Write(w, http.StatusForbidden, "login-rejected", "Login request rejected", "This site is not allowed to request a login")
		case errors.Is(err, ErrDeliveryFailed):
			problems.Write(w, http.StatusServiceUnavailable, "delivery-unavailable", "Email delivery unavailable", "Could not send the login email, try again shortly")
		default:
			// Storage or transport fault, not a rejected requester.
			log.Errorw("create login", "err", err)
			problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "Could not process the login request")
		}
	})

	r.Get("/login/{ref}", func(w http.ResponseWriter, req *http.Request) {
		loc, err := svc.Consume(req.Context(), chi.URLParam(req, "ref"))
		if err != nil {
			if !isExpectedConsumeFailure(err) {
				log.Errorw("consume", "err", err)
				problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "Could not complete the login")
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusGone)
			_, _ = w.Write([]byte(failurePage))
			return
		}
		http.Redirect(w, req, loc, http.StatusFound)
	})

	r.Get("/track/{ref}/opened.gif", func(w http.ResponseWriter, req *http.Request) {
		svc.MarkOpened(req.Context(), chi.URLParam(req, "ref"))
		w.Header().Set("Content-Type", "image/gif")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(openedGIF)
	})
}

func isExpectedConsumeFailure(err error) bool {
	return errors.Is(err, authtokens.ErrNotFound) ||
		errors.Is(err, authtokens.ErrAlreadyConsumed) ||
		errors.Is(err, authtokens.ErrTokenExpired)
}
