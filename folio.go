// Package folio is a personal site backend built with Go and Echo. It serves
// a moderated guest list, blog articles with an RSS feed, and a downloadable
// CV, with GitHub or Google sign-in and bearer tokens for scripted access.
package folio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/guestlist"
	"github.com/eringen/folio/identity"
	"github.com/eringen/folio/storage"
	"github.com/eringen/folio/tracing"
)

const shutdownTimeout = 10 * time.Second

// App wires together the store, caches, services and HTTP routes.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  *ArticleCache
	Files  storage.Store
	Guests *guestlist.Service
	Logger *slog.Logger

	resolver     *identity.Resolver
	auth         *identity.Auth
	tracing      *tracing.Provider
	customRoutes []func(*App)
	now          func() time.Time
	ownsStore    bool
}

// Option configures an App.
type Option func(*App)

// WithCustomRoutes registers a function that adds routes after the built-in
// ones are mounted.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.Logger = l }
}

// WithStore uses an already opened store. The caller keeps ownership.
func WithStore(s *Store) Option {
	return func(a *App) { a.Store = s }
}

// WithFileStore replaces the CV file store built from Config.Storage.
func WithFileStore(fs storage.Store) Option {
	return func(a *App) { a.Files = fs }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New creates an App. Call Init (or Run) before serving requests.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config: cfg,
		Echo:   e,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens and migrates the database, builds the services and mounts the
// middleware and routes.
func (a *App) Init(ctx context.Context) error {
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("folio: %w", err)
	}

	if a.Store == nil {
		store, err := NewStore(a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("folio: init store: %w", err)
		}
		a.Store = store
		a.ownsStore = true
	}
	if err := a.Store.Migrate(ctx); err != nil {
		return fmt.Errorf("folio: %w", err)
	}

	if a.Files == nil {
		files, err := storage.New(ctx, a.Config.Storage)
		if err != nil {
			return fmt.Errorf("folio: init file storage: %w", err)
		}
		a.Files = files
	}

	tp, err := tracing.NewProvider(ctx, a.Config.Tracing)
	if err != nil {
		return fmt.Errorf("folio: init tracing: %w", err)
	}
	a.tracing = tp

	a.Cache = NewArticleCache(a.Store, a.Config.ArticleCacheTTL)
	a.resolver = identity.NewResolver([]byte(a.Config.SessionSecret))
	a.auth = identity.NewAuth(a.Logger, a.oauthProviders()...)
	a.Guests = guestlist.NewService(a.Store, a.Config.AdminEmail,
		guestlist.WithClock(a.now),
		guestlist.WithLogger(a.Logger),
		guestlist.WithTracer(tp.Tracer()),
	)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) oauthProviders() []*identity.Provider {
	callback := func(name string) string {
		return strings.TrimRight(a.Config.URL, "/") + "/auth/" + name + "/callback"
	}
	var providers []*identity.Provider
	if c := a.Config.OAuth.GitHub; c.ClientID != "" {
		providers = append(providers, identity.GitHub(c.ClientID, c.ClientSecret, callback("github")))
	}
	if c := a.Config.OAuth.Google; c.ClientID != "" {
		providers = append(providers, identity.Google(c.ClientID, c.ClientSecret, callback("google")))
	}
	return providers
}

func (a *App) setupRoutes() {
	e := a.Echo
	write := a.writeLimiter()

	e.GET("/healthz", a.handleHealth)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/cv.pdf", a.handleCV)

	a.auth.RegisterRoutes(e.Group("/auth", write))

	api := e.Group("/api")
	api.GET("/me", a.handleMe)
	guestlist.NewHandler(a.Guests).RegisterRoutes(api, write)
	a.registerArticleRoutes(api, write)
	api.POST("/cv", a.handleCVUpload, write, a.requireAdmin)
}

// Run initializes the app and serves until ctx is cancelled, then shuts the
// server down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	defer a.Close()

	a.Echo.Server.ReadHeaderTimeout = 10 * time.Second
	a.Echo.Server.ReadTimeout = 30 * time.Second
	a.Echo.Server.WriteTimeout = 60 * time.Second

	errc := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", "addr", a.Config.Addr)
		errc <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Echo.Shutdown(shutdownCtx)
}

// Close flushes traces and closes the store if the app opened it.
func (a *App) Close() error {
	var errs []error
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs = append(errs, a.tracing.Shutdown(ctx))
	}
	if a.ownsStore && a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
