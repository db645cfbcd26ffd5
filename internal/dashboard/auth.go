package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"authmail/pkg/analytics"
	"authmail/pkg/problems"
)

type ctxSubjectKey struct{}

// currentUser returns the admin email from the request context, or "".
func currentUser(ctx context.Context) string {
	if v, ok := ctx.Value(ctxSubjectKey{}).(string); ok {
		return v
	}
	return ""
}

// requireLogin resolves the session cookie and rejects anonymous
// requests. Verification failure is plain non-authentication, not a
// server fault.
func (a *App) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := a.sessions.Subject(r)
		if subject == "" {
			problems.Write(w, http.StatusUnauthorized, "not-authenticated", "Not authenticated", "Sign in first")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxSubjectKey{}, subject)))
	})
}

// createSession is the administrative login: it verifies a signed claim
// payload against the master secret and starts a session for its
// subject. Admins obtain the payload by consuming a login token issued
// under the master account, the same flow tenants use for their users.
func (a *App) createSession(w http.ResponseWriter, r *http.Request) {
	payload := r.URL.Query().Get("payload")
	if payload == "" {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var body struct {
				Payload string `json:"payload"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			payload = body.Payload
		} else {
			_ = r.ParseForm()
			payload = r.PostFormValue("payload")
		}
	}

	claim, err := a.codec.Verify(a.master.Secret, payload)
	if err != nil {
		problems.Write(w, http.StatusUnauthorized, "not-authenticated", "Not authenticated", "Payload did not verify")
		return
	}
	if err := a.sessions.Issue(w, claim.Subject); err != nil {
		a.log.Errorw("session issue", "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "Could not start a session")
		return
	}

	if claim.Signup {
		a.tracker.Track(claim.Subject, analytics.EventSignup, nil)
	} else {
		a.tracker.Track(claim.Subject, analytics.EventLogin, nil)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"subject": claim.Subject})
}

func (a *App) deleteSession(w http.ResponseWriter, r *http.Request) {
	if subject := a.sessions.Subject(r); subject != "" {
		a.tracker.Track(subject, analytics.EventLogout, nil)
	}
	a.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}
