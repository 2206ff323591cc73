// Package render assembles the public rendering payload for a page slug and
// keeps it in a cache-aside store.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eringen/pagecms/cache"
	"github.com/eringen/pagecms/content"
	"github.com/eringen/pagecms/excerpt"
	"github.com/eringen/pagecms/jsonld"
	"github.com/eringen/pagecms/menu"
)

// DefaultTTL is how long payloads and menu trees stay cached.
const DefaultTTL = 600 * time.Second

// DefaultHomeSlug is the slug served for the site root.
const DefaultHomeSlug = "home"

// Payload is the unit cached per slug and returned to callers.
type Payload struct {
	Page            content.Page `json:"page"`
	Canonical       string       `json:"canonical"`
	MetaTitle       string       `json:"metaTitle"`
	MetaDescription string       `json:"metaDescription"`
	StructuredData  jsonld.Graph `json:"structuredData"`
	HeaderMenu      []menu.Node  `json:"headerMenu"`
	FooterMenu      []menu.Node  `json:"footerMenu"`
}

// Config controls URL resolution and caching.
type Config struct {
	BaseURL      string
	HomeSlug     string
	TTL          time.Duration
	MenuMaxDepth int
	Organization jsonld.Organization
}

// Orchestrator renders pages. It holds no mutable state of its own; the
// cache store is the only shared resource.
type Orchestrator struct {
	pages    content.Repository
	menus    *menu.Builder
	graph    *jsonld.Builder
	cache    cache.Store
	baseURL  string
	homeSlug string
	ttl      time.Duration
	logger   *slog.Logger
}

// New creates an Orchestrator. Zero config values fall back to the defaults.
func New(cfg Config, pages content.Repository, menus content.MenuSource, store cache.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.HomeSlug == "" {
		cfg.HomeSlug = DefaultHomeSlug
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Orchestrator{
		pages:    pages,
		menus:    menu.NewBuilder(menus, cfg.MenuMaxDepth, logger),
		graph:    &jsonld.Builder{Org: cfg.Organization, Logger: logger},
		cache:    store,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		homeSlug: cfg.HomeSlug,
		ttl:      cfg.TTL,
		logger:   logger,
	}
}

// NormalizeSlug trims surrounding slashes and maps the site root to the home slug.
func (o *Orchestrator) NormalizeSlug(slug string) string {
	slug = strings.Trim(strings.TrimSpace(slug), "/")
	if slug == "" {
		return o.homeSlug
	}
	return slug
}

// Render returns the payload for slug, from cache when present. On a miss the
// payload is computed and written back with the configured TTL. Concurrent
// misses may each compute and write; the computation is idempotent.
func (o *Orchestrator) Render(ctx context.Context, slug string) (Payload, error) {
	slug = o.NormalizeSlug(slug)
	key := cache.RenderKey(slug)

	var p Payload
	hit, err := o.lookup(ctx, key, &p)
	if err != nil {
		return Payload{}, err
	}
	if hit {
		o.logger.Debug("render cache hit", "slug", slug)
		return p, nil
	}

	p, err = o.build(ctx, slug)
	if err != nil {
		return Payload{}, err
	}
	if err := o.save(ctx, key, p); err != nil {
		return Payload{}, err
	}
	o.logger.Debug("render cache miss", "slug", slug)
	return p, nil
}

func (o *Orchestrator) build(ctx context.Context, slug string) (Payload, error) {
	page, err := o.pages.FindPublishedBySlug(ctx, slug)
	if errors.Is(err, content.ErrNotFound) {
		return Payload{}, fmt.Errorf("page %q: %w", slug, content.ErrNotFound)
	}
	if err != nil {
		return Payload{}, content.Unavailable("find page", err)
	}
	if !page.Published() {
		return Payload{}, fmt.Errorf("page %q: %w", slug, content.ErrNotFound)
	}

	canonical := CanonicalURL(page, o.baseURL)
	header, err := o.Menu(ctx, content.LocationHeader)
	if err != nil {
		return Payload{}, err
	}
	footer, err := o.Menu(ctx, content.LocationFooter)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Page:            page,
		Canonical:       canonical,
		MetaTitle:       MetaTitle(page),
		MetaDescription: MetaDescription(page),
		StructuredData:  o.graph.Build(page, canonical, o.baseURL),
		HeaderMenu:      header,
		FooterMenu:      footer,
	}, nil
}

// Menu returns the tree for location, cached under the menu namespace.
func (o *Orchestrator) Menu(ctx context.Context, location string) ([]menu.Node, error) {
	key := cache.MenuKey(location)
	var nodes []menu.Node
	hit, err := o.lookup(ctx, key, &nodes)
	if err != nil {
		return nil, err
	}
	if hit && nodes != nil {
		return nodes, nil
	}
	nodes, err = o.menus.Build(ctx, location)
	if err != nil {
		return nil, err
	}
	if err := o.save(ctx, key, nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// lookup decodes a cached value into dst. An undecodable entry is logged and
// reported as a miss so it gets recomputed.
func (o *Orchestrator) lookup(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		return false, content.Unavailable("cache get "+key, err)
	}
	if !ok {
		return false, nil
	}
	// Decode numbers as json.Number so structured data re-encodes with the
	// exact text it was stored with.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		o.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (o *Orchestrator) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := o.cache.Put(ctx, key, raw, o.ttl); err != nil {
		return content.Unavailable("cache put "+key, err)
	}
	return nil
}

// Invalidate drops cached payloads for the given slugs. Menu trees are kept.
func (o *Orchestrator) Invalidate(ctx context.Context, slugs ...string) error {
	keys := make([]string, len(slugs))
	for i, s := range slugs {
		keys[i] = cache.RenderKey(o.NormalizeSlug(s))
	}
	return o.delete(ctx, keys)
}

// InvalidateMenus drops cached menu trees. Render payloads are kept.
func (o *Orchestrator) InvalidateMenus(ctx context.Context, locations ...string) error {
	keys := make([]string, len(locations))
	for i, l := range locations {
		keys[i] = cache.MenuKey(l)
	}
	return o.delete(ctx, keys)
}

// Purge drops both payloads and menu trees, as needed after a content reload.
func (o *Orchestrator) Purge(ctx context.Context, slugs, locations []string) error {
	return errors.Join(o.Invalidate(ctx, slugs...), o.InvalidateMenus(ctx, locations...))
}

func (o *Orchestrator) delete(ctx context.Context, keys []string) error {
	var errs []error
	for _, k := range keys {
		if err := o.cache.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	return content.Unavailable("cache delete", errors.Join(errs...))
}

// CanonicalURL prefers the SEO canonical and otherwise joins baseURL and the
// slug with exactly one slash.
func CanonicalURL(p content.Page, baseURL string) string {
	if p.SEO != nil && strings.TrimSpace(p.SEO.CanonicalURL) != "" {
		return p.SEO.CanonicalURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(p.Slug, "/")
}

// MetaTitle prefers the SEO title and otherwise uses the page title.
func MetaTitle(p content.Page) string {
	if p.SEO != nil && strings.TrimSpace(p.SEO.MetaTitle) != "" {
		return p.SEO.MetaTitle
	}
	return p.Title
}

// MetaDescription prefers the SEO description and otherwise derives an
// excerpt from the page's blocks.
func MetaDescription(p content.Page) string {
	if p.SEO != nil && strings.TrimSpace(p.SEO.MetaDescription) != "" {
		return p.SEO.MetaDescription
	}
	return excerpt.FromPage(p)
}
