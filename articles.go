package folio

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

func (a *App) registerArticleRoutes(g *echo.Group, write ...echo.MiddlewareFunc) {
	admin := append(append([]echo.MiddlewareFunc{}, write...), a.requireAdmin)

	g.GET("/articles", a.handleListArticles)
	g.GET("/articles/:slug", a.handleGetArticle)
	g.POST("/articles", a.handleCreateArticle, admin...)
	g.PUT("/articles/:id", a.handleUpdateArticle, admin...)
	g.DELETE("/articles/:id", a.handleDeleteArticle, admin...)
}

func (a *App) handleListArticles(c echo.Context) error {
	articles, err := a.Cache.ListArticles(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, articles)
}

func (a *App) handleGetArticle(c echo.Context) error {
	article, err := a.Cache.GetArticle(c.Request().Context(), c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "article not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, article)
}

// bindArticle reads and cleans an article body. The slug falls back to the
// title when omitted.
func bindArticle(c echo.Context) (Article, error) {
	var req articleRequest
	if err := c.Bind(&req); err != nil {
		return Article{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Article{}, echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	slug := req.Slug
	if strings.TrimSpace(slug) == "" {
		slug = title
	}
	slug = Slugify(slug)
	if slug == "" {
		return Article{}, echo.NewHTTPError(http.StatusBadRequest, "slug must contain letters or digits")
	}
	return Article{
		Title:       title,
		Slug:        slug,
		Description: strings.TrimSpace(req.Description),
		Content:     req.Content,
	}, nil
}

func (a *App) handleCreateArticle(c echo.Context) error {
	article, err := bindArticle(c)
	if err != nil {
		return err
	}
	now := a.now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now

	created, err := a.Store.CreateArticle(c.Request().Context(), article)
	if errors.Is(err, ErrSlugTaken) {
		return echo.NewHTTPError(http.StatusConflict, "slug already in use")
	}
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, created)
}

func (a *App) handleUpdateArticle(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return echo.NewHTTPError(http.StatusNotFound, "article not found")
	}
	article, err := bindArticle(c)
	if err != nil {
		return err
	}
	article.ID = id
	article.UpdatedAt = a.now().UTC()

	updated, err := a.Store.UpdateArticle(c.Request().Context(), article)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "article not found")
	case errors.Is(err, ErrSlugTaken):
		return echo.NewHTTPError(http.StatusConflict, "slug already in use")
	case err != nil:
		return err
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, updated)
}

func (a *App) handleDeleteArticle(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return echo.NewHTTPError(http.StatusNotFound, "article not found")
	}
	err = a.Store.DeleteArticle(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "article not found")
	}
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, map[string]any{"success": true, "id": id})
}
