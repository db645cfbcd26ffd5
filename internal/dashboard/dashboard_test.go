package dashboard_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"authmail/internal/dashboard"
	"authmail/pkg/accounts"
	"authmail/pkg/analytics"
	"authmail/pkg/authtokens"
	"authmail/pkg/claims"
	"authmail/pkg/config"
)

const masterSecret = "test-master-secret"

type env struct {
	srv      *httptest.Server
	accounts accounts.Store
	tokens   authtokens.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	accountStore := accounts.NewMemoryStore()
	tokenStore := authtokens.NewMemoryStore()
	app := dashboard.New(zap.NewNop().Sugar(), accountStore, tokenStore, analytics.NopTracker{}, config.Config{
		Env:          "test",
		MasterSecret: masterSecret,
		MasterOrigin: "https://authmail.co",
		MasterAdmins: []string{"hello@authmail.co"},
		SessionTTL:   time.Hour,
	})
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return &env{srv: srv, accounts: accountStore, tokens: tokenStore}
}

// login bootstraps a session for subject and returns the session cookie.
func (e *env) login(t *testing.T, subject string) *http.Cookie {
	t.Helper()
	payload, err := claims.New().Sign(masterSecret, subject, false, time.Hour)
	require.NoError(t, err)

	res, err := http.Post(e.srv.URL+"/session?payload="+url.QueryEscape(payload), "", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, res.Cookies())
	return res.Cookies()[0]
}

func (e *env) do(t *testing.T, method, path string, cookie *http.Cookie, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func TestSessionBootstrap(t *testing.T) {
	e := newEnv(t)

	payload, err := claims.New().Sign(masterSecret, "admin@x.com", true, time.Hour)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"payload": payload})
	res, err := http.Post(e.srv.URL+"/session", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Equal(t, "admin@x.com", out["subject"])
}

func TestSessionBootstrapBadPayload(t *testing.T) {
	e := newEnv(t)

	// Signed with the wrong secret: plain non-authentication, not a 5xx.
	payload, err := claims.New().Sign("other-secret", "admin@x.com", false, time.Hour)
	require.NoError(t, err)

	res, err := http.Post(e.srv.URL+"/session?payload="+url.QueryEscape(payload), "", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res2, err := http.Post(e.srv.URL+"/session", "", nil)
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res2.StatusCode)
}

func TestRequireLogin(t *testing.T) {
	e := newEnv(t)

	res := e.do(t, http.MethodGet, "/dashboard/accounts", nil, nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAccountLifecycle(t *testing.T) {
	e := newEnv(t)
	cookie := e.login(t, "admin@x.com")

	// Create.
	res := e.do(t, http.MethodPost, "/accounts", cookie, map[string]any{
		"name":     "Acme",
		"origins":  []string{"https://app.acme.com"},
		"redirect": "https://app.acme.com/cb",
		"reply_to": "support@acme.com",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var created struct {
		ID     string   `json:"id"`
		Secret string   `json:"secret"`
		Admins []string `json:"admins"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	res.Body.Close()
	assert.NotEmpty(t, created.Secret)
	assert.Equal(t, []string{"admin@x.com"}, created.Admins)

	// List includes it.
	res = e.do(t, http.MethodGet, "/dashboard/accounts", cookie, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	res.Body.Close()
	names := make([]string, 0, len(list))
	for _, a := range list {
		names = append(names, a["name"].(string))
	}
	assert.Contains(t, names, "Acme")

	// Update settings.
	res = e.do(t, http.MethodPut, "/accounts/"+created.ID, cookie, map[string]any{
		"name":     "Acme Inc",
		"origins":  []string{"https://app.acme.com", "https://staging.acme.com"},
		"redirect": "https://app.acme.com/cb",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var updated struct {
		Name    string   `json:"name"`
		Origins []string `json:"origins"`
		Secret  string   `json:"secret"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&updated))
	res.Body.Close()
	assert.Equal(t, "Acme Inc", updated.Name)
	assert.Len(t, updated.Origins, 2)
	assert.Equal(t, created.Secret, updated.Secret, "settings updates never rotate the secret")
}

func TestAccountIsolation(t *testing.T) {
	e := newEnv(t)
	owner := e.login(t, "owner@x.com")
	stranger := e.login(t, "stranger@x.com")

	res := e.do(t, http.MethodPost, "/accounts", owner, map[string]any{"name": "Private"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	res.Body.Close()

	res = e.do(t, http.MethodGet, "/accounts/"+created.ID, stranger, nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode, "foreign accounts answer like missing ones")
}

func TestAccountActivity(t *testing.T) {
	e := newEnv(t)
	cookie := e.login(t, "admin@x.com")

	res := e.do(t, http.MethodPost, "/accounts", cookie, map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	res.Body.Close()

	for _, email := range []string{"a@x.com", "b@x.com"} {
		_, err := e.tokens.Create(context.Background(), authtokens.Token{AccountID: created.ID, Email: email})
		require.NoError(t, err)
	}

	res = e.do(t, http.MethodGet, "/accounts/"+created.ID+"/activity", cookie, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var activity []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&activity))
	res.Body.Close()
	assert.Len(t, activity, 2)
}

func TestVerifyPayloadEndpoint(t *testing.T) {
	e := newEnv(t)
	cookie := e.login(t, "admin@x.com")

	res := e.do(t, http.MethodPost, "/accounts", cookie, map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var created struct {
		ID     string `json:"id"`
		Secret string `json:"secret"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	res.Body.Close()

	payload, err := claims.New().Sign(created.Secret, "user@customer.com", true, time.Hour)
	require.NoError(t, err)

	res = e.do(t, http.MethodGet, "/accounts/"+created.ID+"/verify?payload="+url.QueryEscape(payload), cookie, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var out struct {
		Sub    string `json:"sub"`
		Signup bool   `json:"signup"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	res.Body.Close()
	assert.Equal(t, "user@customer.com", out.Sub)
	assert.True(t, out.Signup)

	res = e.do(t, http.MethodGet, "/accounts/"+created.ID+"/verify?payload=garbage", cookie, nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	cookie := e.login(t, "admin@x.com")

	req, _ := http.NewRequest(http.MethodDelete, e.srv.URL+"/session", nil)
	req.AddCookie(cookie)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	var cleared *http.Cookie
	for _, c := range res.Cookies() {
		if strings.Contains(c.Name, "session") {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestMasterBootstrapOnStart(t *testing.T) {
	e := newEnv(t)

	master, err := e.accounts.GetBySecret(context.Background(), masterSecret)
	require.NoError(t, err)
	assert.Equal(t, "AuthMail", master.Name)
	assert.Contains(t, master.Admins, "hello@authmail.co")
}
