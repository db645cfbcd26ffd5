package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"authmail/pkg/accounts"
	"authmail/pkg/analytics"
	"authmail/pkg/problems"
)

// accountView is the JSON shape of an account for its admins. The secret
// is included: it is the credential admins configure into their site.
type accountView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	Admins     []string  `json:"admins"`
	ReplyTo    string    `json:"reply_to"`
	Origins    []string  `json:"origins"`
	Redirect   string    `json:"redirect"`
	Secret     string    `json:"secret"`
	HasCard    bool      `json:"has_card"`
	CardType   string    `json:"card_type,omitempty"`
	CardDigits string    `json:"card_digits,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toView(a accounts.Account) accountView {
	return accountView{
		ID: a.ID, Name: a.Name, Active: a.Active, Admins: a.Admins,
		ReplyTo: a.ReplyTo, Origins: a.Origins, Redirect: a.Redirect,
		Secret: a.Secret, HasCard: a.HasCard(), CardType: a.CardType,
		CardDigits: a.CardDigits, CreatedAt: a.CreatedAt,
	}
}

type accountParams struct {
	Name         string   `json:"name"`
	ReplyTo      string   `json:"reply_to"`
	Origins      []string `json:"origins"`
	Redirect     string   `json:"redirect"`
	HTMLTemplate string   `json:"html_template"`
	TextTemplate string   `json:"text_template"`
}

// loadOwnAccount fetches the account and verifies the caller administers
// it. Unknown id and foreign account answer identically.
func (a *App) loadOwnAccount(w http.ResponseWriter, r *http.Request) (accounts.Account, bool) {
	acc, err := a.accounts.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil || !acc.IsAdmin(currentUser(r.Context())) {
		if err != nil && !errors.Is(err, accounts.ErrNotFound) {
			a.log.Errorw("account load", "err", err)
		}
		problems.Write(w, http.StatusNotFound, "account-not-found", "Account not found", "")
		return accounts.Account{}, false
	}
	return acc, true
}

func (a *App) listAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := a.accounts.ListByAdmin(r.Context(), currentUser(r.Context()))
	if err != nil {
		a.log.Errorw("account list", "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
		return
	}
	views := make([]accountView, 0, len(list))
	for _, acc := range list {
		views = append(views, toView(acc))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func (a *App) createAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	var p accountParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		problems.Write(w, http.StatusBadRequest, "malformed-request", "Malformed request", "")
		return
	}
	if p.Name == "" {
		a.tracker.Track(user, analytics.EventValidationError,
			map[string]any{"event": analytics.EventAccountCreated, "detail": "name required"})
		problems.Write(w, http.StatusUnprocessableEntity, "validation", "Validation error", "name is required")
		return
	}
	acc, err := a.accounts.Create(r.Context(), accounts.Account{
		Name: p.Name, Active: true, Admins: []string{user},
		ReplyTo: p.ReplyTo, Origins: p.Origins, Redirect: p.Redirect,
		HTMLTemplate: p.HTMLTemplate, TextTemplate: p.TextTemplate,
	})
	if err != nil {
		a.log.Errorw("account create", "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
		return
	}
	a.tracker.Track(user, analytics.EventAccountCreated, map[string]any{"account": acc.Name})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toView(acc))
}

func (a *App) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, ok := a.loadOwnAccount(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toView(acc))
}

func (a *App) updateAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	acc, ok := a.loadOwnAccount(w, r)
	if !ok {
		return
	}
	var p accountParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		problems.Write(w, http.StatusBadRequest, "malformed-request", "Malformed request", "")
		return
	}
	if p.Name == "" {
		a.tracker.Track(user, analytics.EventValidationError,
			map[string]any{"event": analytics.EventAccountUpdated, "detail": "name required"})
		problems.Write(w, http.StatusUnprocessableEntity, "validation", "Validation error", "name is required")
		return
	}
	acc.Name = p.Name
	acc.ReplyTo = p.ReplyTo
	acc.Origins = p.Origins
	acc.Redirect = p.Redirect
	acc.HTMLTemplate = p.HTMLTemplate
	acc.TextTemplate = p.TextTemplate
	updated, err := a.accounts.Update(r.Context(), acc)
	if err != nil {
		a.log.Errorw("account update", "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
		return
	}
	a.tracker.Track(user, analytics.EventAccountUpdated, map[string]any{"account": updated.Name})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toView(updated))
}

// accountActivity lists the account's recent authentications.
func (a *App) accountActivity(w http.ResponseWriter, r *http.Request) {
	acc, ok := a.loadOwnAccount(w, r)
	if !ok {
		return
	}
	tokens, err := a.tokens.ListRecentByAccount(r.Context(), acc.ID, 50)
	if err != nil {
		a.log.Errorw("account activity", "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
		return
	}
	type entry struct {
		Email     string    `json:"email"`
		State     string    `json:"state"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]entry, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, entry{Email: t.Email, State: string(t.State), CreatedAt: t.CreatedAt})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// verifyPayload decodes a claim with this account's secret so admins can
// debug their integration.
func (a *App) verifyPayload(w http.ResponseWriter, r *http.Request) {
	acc, ok := a.loadOwnAccount(w, r)
	if !ok {
		return
	}
	claim, err := a.codec.Verify(acc.Secret, r.URL.Query().Get("payload"))
	if err != nil {
		problems.Write(w, http.StatusUnprocessableEntity, "invalid-payload", "Payload did not verify", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sub": claim.Subject, "signup": claim.Signup})
}

// accountBilling reports card-on-file status. Card capture itself is an
// external billing concern.
func (a *App) accountBilling(w http.ResponseWriter, r *http.Request) {
	acc, ok := a.loadOwnAccount(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"has_card":    acc.HasCard(),
		"card_type":   acc.CardType,
		"card_digits": acc.CardDigits,
	})
}
