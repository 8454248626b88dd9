package folio

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/identity"
)

// httpErrorHandler renders every error as {"error": "..."}. Errors that are
// not *echo.HTTPError are reported as a bare 500 and logged with their cause.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		default:
			msg = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		a.Logger.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", code,
			"error", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]string{"error": msg})
	}
	if err != nil {
		a.Logger.Error("write error response", "error", err)
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	SchemaVersion int64  `json:"schemaVersion,omitempty"`
}

func (a *App) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	if err := a.Store.Ping(ctx); err != nil {
		a.Logger.WarnContext(ctx, "health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
	}
	version, err := a.Store.SchemaVersion(ctx)
	if err != nil {
		a.Logger.WarnContext(ctx, "read schema version", "error", err)
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", SchemaVersion: version})
}

type meResponse struct {
	identity.Identity
	Handle    string `json:"handle"`
	Admin     bool   `json:"admin"`
	CSRFToken string `json:"csrfToken,omitempty"`
}

// handleMe describes the signed-in caller. Browser clients read csrfToken
// from here and echo it back in X-CSRF-Token on writes.
func (a *App) handleMe(c echo.Context) error {
	id := identity.Current(c)
	if id == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return c.JSON(http.StatusOK, meResponse{
		Identity:  *id,
		Handle:    id.Handle(),
		Admin:     id.IsAdmin(a.Config.AdminEmail),
		CSRFToken: CsrfToken(c),
	})
}
