package guestlist

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/identity"
)

// Handler exposes a Service over JSON.
type Handler struct {
	svc *Service
}

// NewHandler returns a Handler for svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the guest routes on g. Middleware in write applies
// to the mutating routes only.
func (h *Handler) RegisterRoutes(g *echo.Group, write ...echo.MiddlewareFunc) {
	g.GET("/guests", h.list)
	g.POST("/guests", h.add, write...)
	g.PUT("/guests/:id", h.update, write...)
	g.DELETE("/guests/:id", h.delete, write...)
}

type nameRequest struct {
	Name string `json:"name"`
}

type deleteResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

func (h *Handler) list(c echo.Context) error {
	opts := ListOptions{
		Query:   c.QueryParam("q"),
		Page:    queryInt(c, "page"),
		PerPage: queryInt(c, "per_page"),
	}
	guests, err := h.svc.List(c.Request().Context(), identity.Current(c), opts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, guests)
}

func (h *Handler) add(c echo.Context) error {
	caller := identity.Current(c)
	if !signedIn(caller) {
		return httpError(ErrUnauthenticated)
	}
	var req nameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	g, err := h.svc.Add(c.Request().Context(), caller, req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) update(c echo.Context) error {
	caller := identity.Current(c)
	if !h.svc.isAdmin(caller) {
		return httpError(ErrForbidden)
	}
	var req nameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	g, err := h.svc.Update(c.Request().Context(), caller, pathID(c), req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) delete(c echo.Context) error {
	id := pathID(c)
	if err := h.svc.Delete(c.Request().Context(), identity.Current(c), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, deleteResponse{Success: true, ID: id})
}

// pathID returns the :id parameter, or 0 when it is not a positive integer.
// The service reports 0 as not found once the caller is known to be admin.
func pathID(c echo.Context) int64 {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// queryInt returns 0 for an absent parameter and -1 for anything that is not
// a positive integer, which the service rejects.
func queryInt(c echo.Context, name string) int {
	v := c.QueryParam(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return -1
	}
	return n
}

func httpError(err error) *echo.HTTPError {
	var status int
	switch {
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		status = http.StatusTooManyRequests
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, ErrInternal.Error()).SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error())
}
