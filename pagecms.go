// Package pagecms serves rendered CMS pages as JSON. It wires together the
// SQL content store, the render cache, the HTTP handlers and the fixture
// importer.
//
// Rendering itself lives in the render package; structured data and menu
// trees are built by the jsonld and menu packages.
package pagecms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecms/cache"
	"github.com/eringen/pagecms/content"
	"github.com/eringen/pagecms/render"
)

// App is the central pagecms application.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Store    *Store
	Cache    cache.Store
	Renderer *render.Orchestrator
	Importer *Importer

	logger    *slog.Logger
	watchFile string
	stops     []func()
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = NewLogger(cfg.Log, nil)
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	return a
}

// Logger returns the app's logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Open connects the store and builds the cache, renderer and importer. It is
// all the CLI needs; Init adds the HTTP layer on top.
func (a *App) Open() error {
	if a.Store != nil {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return err
	}

	store, err := OpenStore(a.Config.Database.Driver, a.Config.Database.DSN)
	if err != nil {
		return fmt.Errorf("pagecms: init store: %w", err)
	}
	a.Store = store

	if a.Cache == nil {
		switch a.Config.Cache.Driver {
		case "sql":
			sqlCache, err := cache.NewSQLStore(store.DB())
			if err != nil {
				return fmt.Errorf("pagecms: init cache: %w", err)
			}
			a.Cache = sqlCache
		default:
			a.Cache = cache.NewMemory()
		}
	}

	a.Renderer = render.New(a.Config.renderConfig(), store, store, a.Cache, a.logger)
	a.Importer = NewImporter(store, a.Renderer, a.logger)
	return nil
}

// Init opens the app and registers middleware and routes without listening.
func (a *App) Init() error {
	if err := a.Open(); err != nil {
		return err
	}
	a.setupMiddleware()
	a.setupRoutes()
	return nil
}

// Start initializes the app and serves until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}

	if s, ok := a.Cache.(sweeper); ok {
		a.stops = append(a.stops, a.startSweeper(s, a.Config.Cache.SweepInterval))
	}

	if a.watchFile != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		a.stops = append(a.stops, cancel)
		go func() {
			if err := a.Importer.Watch(watchCtx, a.watchFile); err != nil {
				a.logger.Error("content watcher stopped", "file", a.watchFile, "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Echo.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("shutdown", "error", err)
		}
	}()

	a.logger.Info("listening", "addr", a.Config.Addr, "url", a.Config.URL, "cache", a.Config.Cache.Driver)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/sitemap.xml", a.handleSitemap)

	api := e.Group("/api")
	if rl := a.Config.RateLimit; rl.Requests > 0 {
		limiter := NewRateLimiter(rl.Requests, rl.Window)
		a.stops = append(a.stops, limiter.Stop)
		api.Use(limiter.Middleware)
	}
	api.GET("/pages", a.handlePage)
	api.GET("/pages/*", a.handlePage)
	api.GET("/menus/:location", a.handleMenu)
}

// sweeper is a cache that can drop its expired entries in bulk.
type sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// startSweeper periodically removes expired entries from the cache. Returns a
// stop function.
func (a *App) startSweeper(s sweeper, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				n, err := s.Sweep(context.Background())
				if err != nil {
					a.logger.Warn("cache sweep failed", "error", err)
					continue
				}
				if n > 0 {
					a.logger.Debug("cache sweep", "removed", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// Locations returns every menu location that may be cached: the two the
// renderer embeds plus any stored ones.
func (a *App) Locations(ctx context.Context) ([]string, error) {
	stored, err := a.Store.ListMenuLocations(ctx)
	if err != nil {
		return nil, err
	}
	return mergeUnique([]string{content.LocationHeader, content.LocationFooter}, stored), nil
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

func mergeUnique(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
