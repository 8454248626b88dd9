package identity

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeGitHub struct {
	*httptest.Server
	mu           sync.Mutex
	user         map[string]any
	emails       []map[string]any
	emailsStatus int
}

func (f *fakeGitHub) failEmails(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emailsStatus = status
}

func (f *fakeGitHub) setEmails(emails ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = emails
}

func (f *fakeGitHub) setUserEmail(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user["email"] = email
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{
		user: map[string]any{"login": "octocat", "name": "The Octocat"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(f.user)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.emailsStatus != 0 {
			w.WriteHeader(f.emailsStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(f.emails)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGitHub) provider() *Provider {
	p := GitHub("client-id", "client-secret", "http://folio.test/auth/github/callback")
	p.OAuth.Endpoint = oauth2.Endpoint{
		AuthURL:   f.URL + "/authorize",
		TokenURL:  f.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.ProfileURL = f.URL + "/user"
	p.EmailsURL = f.URL + "/user/emails"
	return p
}

func newAuthEcho(p *Provider) *echo.Echo {
	e := newTestEcho()
	NewAuth(slog.New(slog.NewTextHandler(io.Discard, nil)), p).RegisterRoutes(e.Group("/auth"))
	return e
}

func withCookies(req *http.Request, cookies []*http.Cookie) *http.Request {
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	return req
}

func startLogin(t *testing.T, e *echo.Echo) (state string, cookies []*http.Cookie) {
	t.Helper()
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	state = loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state, rec.Result().Cookies()
}

func TestOAuthLoginCallbackSignsIn(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.setEmails(
		map[string]any{"email": "other@example.com", "primary": false, "verified": true},
		map[string]any{"email": "octo@example.com", "primary": true, "verified": true},
	)
	e := newAuthEcho(gh.provider())

	state, cookies := startLogin(t, e)

	cb := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=good-code&state="+url.QueryEscape(state), nil)
	rec := serve(e, withCookies(cb, cookies))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	who := serve(e, withCookies(httptest.NewRequest(http.MethodGet, "/whoami", nil), rec.Result().Cookies()))
	assert.Equal(t, "The Octocat", who.Body.String())
}

func TestFetchGitHubEmailFallback(t *testing.T) {
	gh := newFakeGitHub(t)
	p := gh.provider()
	client := &http.Client{Transport: &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}),
	}}

	gh.setEmails(map[string]any{"email": "unverified@example.com", "primary": true, "verified": false})
	id, err := fetchGitHub(t.Context(), client, p)
	require.NoError(t, err)
	assert.Equal(t, Identity{Name: "The Octocat", Login: "octocat"}, id)

	gh.setEmails(map[string]any{"email": "octo@example.com", "primary": true, "verified": true})
	id, err = fetchGitHub(t.Context(), client, p)
	require.NoError(t, err)
	assert.Equal(t, "octo@example.com", id.Email)

	gh.setUserEmail("public@example.com")
	id, err = fetchGitHub(t.Context(), client, p)
	require.NoError(t, err)
	assert.Equal(t, "public@example.com", id.Email)
}

func TestFetchGitHubEmailsErrorIsLogged(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.failEmails(http.StatusInternalServerError)
	var logs bytes.Buffer
	p := gh.provider()
	NewAuth(slog.New(slog.NewTextHandler(&logs, nil)), p)
	client := &http.Client{Transport: &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}),
	}}

	id, err := fetchGitHub(t.Context(), client, p)
	require.NoError(t, err)
	assert.Equal(t, Identity{Name: "The Octocat", Login: "octocat"}, id)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "github emails fetch failed")
	assert.Contains(t, logs.String(), "login=octocat")
}

func TestFetchGitHubProfileError(t *testing.T) {
	gh := newFakeGitHub(t)
	p := gh.provider()

	id, err := fetchGitHub(t.Context(), http.DefaultClient, p)
	require.Error(t, err)
	assert.True(t, id.IsZero())
}

func TestOAuthCallbackRejectsWrongState(t *testing.T) {
	gh := newFakeGitHub(t)
	e := newAuthEcho(gh.provider())

	_, cookies := startLogin(t, e)

	cb := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=good-code&state=forged", nil)
	rec := serve(e, withCookies(cb, cookies))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthCallbackWithoutLoginIsRejected(t *testing.T) {
	gh := newFakeGitHub(t)
	e := newAuthEcho(gh.provider())

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=good-code&state=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthCallbackExchangeFailure(t *testing.T) {
	gh := newFakeGitHub(t)
	e := newAuthEcho(gh.provider())

	state, cookies := startLogin(t, e)
	cb := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=bad-code&state="+url.QueryEscape(state), nil)
	rec := serve(e, withCookies(cb, cookies))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestOAuthCallbackProviderError(t *testing.T) {
	gh := newFakeGitHub(t)
	e := newAuthEcho(gh.provider())

	state, cookies := startLogin(t, e)
	cb := httptest.NewRequest(http.MethodGet, "/auth/github/callback?error=access_denied&state="+url.QueryEscape(state), nil)
	rec := serve(e, withCookies(cb, cookies))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthUnknownProvider(t *testing.T) {
	gh := newFakeGitHub(t)
	e := newAuthEcho(gh.provider())

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/auth/myspace/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	gh := newFakeGitHub(t)
	e := newAuthEcho(gh.provider())

	signin := serve(e, httptest.NewRequest(http.MethodGet, "/signin", nil))
	out := serve(e, withCookies(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), signin.Result().Cookies()))
	require.Equal(t, http.StatusNoContent, out.Code)

	var expired bool
	for _, ck := range out.Result().Cookies() {
		if ck.Name == SessionName && ck.MaxAge < 0 {
			expired = true
		}
	}
	assert.True(t, expired)
}

func TestGoogleKeepsOnlyVerifiedEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":           "Grace",
			"email":          "grace@example.com",
			"email_verified": false,
		})
	}))
	defer srv.Close()

	id, err := fetchGoogle(t.Context(), srv.Client(), &Provider{ProfileURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, Identity{Name: "Grace"}, id)
}
