package identity

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

// SessionName is the cookie session holding the signed-in identity.
const SessionName = "folio_session"

const (
	keyName  = "name"
	keyLogin = "login"
	keyEmail = "email"
	keyState = "oauth_state"
)

// NewSessionStore returns the cookie store backing SessionName.
func NewSessionStore(secret []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 24 * 7,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
	return store
}

// SaveSession records id as the signed-in caller.
func SaveSession(c echo.Context, id Identity) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Values[keyName] = id.Name
	sess.Values[keyLogin] = id.Login
	sess.Values[keyEmail] = id.Email
	delete(sess.Values, keyState)
	return sess.Save(c.Request(), c.Response())
}

// ClearSession signs the caller out.
func ClearSession(c echo.Context) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

func sessionIdentity(c echo.Context) *Identity {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return nil
	}
	id := Identity{
		Name:  sessionString(sess, keyName),
		Login: sessionString(sess, keyLogin),
		Email: sessionString(sess, keyEmail),
	}
	if id.IsZero() {
		return nil
	}
	return &id
}

func sessionString(sess *sessions.Session, key string) string {
	v, _ := sess.Values[key].(string)
	return strings.TrimSpace(v)
}
