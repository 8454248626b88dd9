package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Provider is an OAuth sign-in provider and the profile endpoint used to
// turn its access token into an Identity.
type Provider struct {
	Name       string
	OAuth      *oauth2.Config
	ProfileURL string
	EmailsURL  string

	fetch  func(ctx context.Context, client *http.Client, p *Provider) (Identity, error)
	logger *slog.Logger
}

func (p *Provider) log() *slog.Logger {
	if p.logger == nil {
		return slog.Default()
	}
	return p.logger
}

// GitHub returns the GitHub sign-in provider.
func GitHub(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "github",
		OAuth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.GitHub,
			Scopes:       []string{"read:user", "user:email"},
		},
		ProfileURL: "https://api.github.com/user",
		EmailsURL:  "https://api.github.com/user/emails",
		fetch:      fetchGitHub,
	}
}

// Google returns the Google sign-in provider.
func Google(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "google",
		OAuth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		ProfileURL: "https://openidconnect.googleapis.com/v1/userinfo",
		fetch:      fetchGoogle,
	}
}

// Auth serves the sign-in and sign-out routes.
type Auth struct {
	providers  map[string]*Provider
	logger     *slog.Logger
	afterLogin string
}

// NewAuth returns an Auth for the given providers. Nil providers are skipped
// so unconfigured ones can be passed straight through.
func NewAuth(logger *slog.Logger, providers ...*Provider) *Auth {
	a := &Auth{
		providers:  make(map[string]*Provider),
		logger:     logger,
		afterLogin: "/",
	}
	for _, p := range providers {
		if p != nil {
			p.logger = logger
			a.providers[p.Name] = p
		}
	}
	return a
}

// RegisterRoutes mounts the sign-in routes on g (normally /auth).
func (a *Auth) RegisterRoutes(g *echo.Group) {
	g.GET("/:provider/login", a.handleLogin)
	g.GET("/:provider/callback", a.handleCallback)
	g.POST("/logout", handleLogout)
}

func (a *Auth) provider(c echo.Context) (*Provider, error) {
	p, ok := a.providers[c.Param("provider")]
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown sign-in provider")
	}
	return p, nil
}

func (a *Auth) handleLogin(c echo.Context) error {
	p, err := a.provider(c)
	if err != nil {
		return err
	}
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	state := uuid.NewString()
	sess.Values[keyState] = state
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, p.OAuth.AuthCodeURL(state))
}

func (a *Auth) handleCallback(c echo.Context) error {
	p, err := a.provider(c)
	if err != nil {
		return err
	}
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	want, _ := sess.Values[keyState].(string)
	if want == "" || c.QueryParam("state") != want {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid oauth state")
	}
	if reason := c.QueryParam("error"); reason != "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sign-in cancelled: "+reason)
	}
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing authorization code")
	}

	ctx := c.Request().Context()
	token, err := p.OAuth.Exchange(ctx, code)
	if err != nil {
		a.logger.ErrorContext(ctx, "oauth exchange failed", "provider", p.Name, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "sign-in failed")
	}
	id, err := p.fetch(ctx, p.OAuth.Client(ctx, token), p)
	if err != nil || id.IsZero() {
		a.logger.ErrorContext(ctx, "oauth profile fetch failed", "provider", p.Name, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "sign-in failed")
	}
	if err := SaveSession(c, id); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "signed in", "provider", p.Name, "handle", id.Handle())
	return c.Redirect(http.StatusSeeOther, a.afterLogin)
}

func handleLogout(c echo.Context) error {
	if err := ClearSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func fetchGitHub(ctx context.Context, client *http.Client, p *Provider) (Identity, error) {
	var user struct {
		Name  string `json:"name"`
		Login string `json:"login"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, p.ProfileURL, &user); err != nil {
		return Identity{}, err
	}
	id := Identity{Name: user.Name, Login: user.Login, Email: user.Email}
	if id.Email != "" || p.EmailsURL == "" {
		return id, nil
	}

	// Private emails are only listed on the emails endpoint.
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, p.EmailsURL, &emails); err != nil {
		p.log().WarnContext(ctx, "github emails fetch failed", "login", id.Login, "error", err)
		return id, nil
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			id.Email = e.Email
			break
		}
	}
	return id, nil
}

func fetchGoogle(ctx context.Context, client *http.Client, p *Provider) (Identity, error) {
	var info struct {
		Name          string `json:"name"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := getJSON(ctx, client, p.ProfileURL, &info); err != nil {
		return Identity{}, err
	}
	id := Identity{Name: info.Name}
	if info.EmailVerified {
		id.Email = info.Email
	}
	return id, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity: GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
