package pagecms

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/eringen/pagecms/cache"
	"github.com/eringen/pagecms/jsonld"
	"github.com/eringen/pagecms/menu"
	"github.com/eringen/pagecms/render"
)

// SiteConfig holds all configuration for a pagecms site.
type SiteConfig struct {
	Name        string `mapstructure:"name"`        // Site name (default "Site")
	URL         string `mapstructure:"url"`         // Base URL (default "http://localhost:3000")
	Description string `mapstructure:"description"` // Site description
	Addr        string `mapstructure:"addr"`        // Listen address (default ":3000")
	HomeSlug    string `mapstructure:"home_slug"`   // Slug served for "/" (default "home")

	Database     DatabaseConfig     `mapstructure:"database"`
	Cache        CacheConfig        `mapstructure:"cache"`
	MenuMaxDepth int                `mapstructure:"menu_max_depth"` // default 16
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Log          LogConfig          `mapstructure:"log"`
	Organization OrganizationConfig `mapstructure:"organization"`
}

// DatabaseConfig selects the SQL driver for content and the shared cache.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" (default) or "postgres"
	DSN    string `mapstructure:"dsn"`    // default "data/pages.db"
}

// CacheConfig selects where render payloads are kept.
type CacheConfig struct {
	Driver        string        `mapstructure:"driver"`         // "memory" (default) or "sql"
	TTL           time.Duration `mapstructure:"ttl"`            // default 600s
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // default 10m
}

// RateLimitConfig caps API requests per client IP. Requests < 0 disables it.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"` // default 300
	Window   time.Duration `mapstructure:"window"`   // default 1m
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error (default info)
	Format string `mapstructure:"format"` // text (default) or json
}

// OrganizationConfig decorates the Organization entity in structured data.
type OrganizationConfig struct {
	Name   string   `mapstructure:"name"` // default: site name
	Logo   string   `mapstructure:"logo"`
	SameAs []string `mapstructure:"same_as"`
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Site"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.HomeSlug == "" {
		c.HomeSlug = render.DefaultHomeSlug
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "data/pages.db"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = render.DefaultTTL
	}
	if c.Cache.SweepInterval <= 0 {
		c.Cache.SweepInterval = 10 * time.Minute
	}
	if c.MenuMaxDepth <= 0 {
		c.MenuMaxDepth = menu.DefaultMaxDepth
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 300
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Organization.Name == "" {
		c.Organization.Name = c.Name
	}
}

func (c SiteConfig) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("pagecms: unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("pagecms: database dsn is required for %s", c.Database.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "sql":
	default:
		return fmt.Errorf("pagecms: unknown cache driver %q", c.Cache.Driver)
	}
	return nil
}

func (c SiteConfig) renderConfig() render.Config {
	return render.Config{
		BaseURL:      c.URL,
		HomeSlug:     c.HomeSlug,
		TTL:          c.Cache.TTL,
		MenuMaxDepth: c.MenuMaxDepth,
		Organization: jsonld.Organization{
			Name:   c.Organization.Name,
			Logo:   c.Organization.Logo,
			SameAs: c.Organization.SameAs,
		},
	}
}

// LoadConfig reads configuration from an optional file at path, then from
// PAGECMS_* environment variables, which win. A .env file in the working
// directory is loaded first when present.
func LoadConfig(path string) (SiteConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PAGECMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	var defaults SiteConfig
	defaults.setDefaults()
	for key, val := range map[string]any{
		"name":                 "",
		"url":                  defaults.URL,
		"description":          "",
		"addr":                 defaults.Addr,
		"home_slug":            defaults.HomeSlug,
		"database.driver":      defaults.Database.Driver,
		"database.dsn":         "",
		"cache.driver":         defaults.Cache.Driver,
		"cache.ttl":            defaults.Cache.TTL,
		"cache.sweep_interval": defaults.Cache.SweepInterval,
		"menu_max_depth":       defaults.MenuMaxDepth,
		"rate_limit.requests":  defaults.RateLimit.Requests,
		"rate_limit.window":    defaults.RateLimit.Window,
		"log.level":            defaults.Log.Level,
		"log.format":           defaults.Log.Format,
		"organization.name":    "",
		"organization.logo":    "",
		"organization.same_as": []string{},
	} {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return SiteConfig{}, fmt.Errorf("pagecms: read config: %w", err)
		}
	}

	var cfg SiteConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("pagecms: decode config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger sets the logger used by the app and its components.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithCache replaces the configured cache store.
func WithCache(s cache.Store) Option {
	return func(a *App) {
		a.Cache = s
	}
}

// WithWatchFile re-imports the fixture at path whenever it changes while the
// server runs.
func WithWatchFile(path string) Option {
	return func(a *App) {
		a.watchFile = path
	}
}

// WithRateLimit overrides the per-IP API limit. A negative max disables it.
func WithRateLimit(max int, window time.Duration) Option {
	return func(a *App) {
		a.Config.RateLimit = RateLimitConfig{Requests: max, Window: window}
	}
}
