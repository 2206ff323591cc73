// Package content holds the read-only content model consumed by the render
// pipeline: pages with their ordered sections and blocks, optional SEO
// metadata, and navigation menus.
package content

import (
	"context"
	"encoding/json"
)

// Status is the publication state of a page.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Page types with special handling in structured data.
const (
	TypeStatic  = "static"
	TypeBlog    = "blog"
	TypeService = "service"
)

// BlockFAQList is the block type whose content is a list of question/answer pairs.
const BlockFAQList = "faq_list"

// Page is a content-managed page with its ordered sections and optional SEO record.
type Page struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Slug     string    `json:"slug"`
	Type     string    `json:"type"`
	Status   Status    `json:"status"`
	Sections []Section `json:"sections"`
	SEO      *SeoMeta  `json:"seo"`
}

// Published reports whether the page may be rendered publicly.
func (p Page) Published() bool {
	return p.Status == StatusPublished
}

// Section groups blocks under a display type.
type Section struct {
	ID     int64   `json:"id"`
	Type   string  `json:"type"`
	Blocks []Block `json:"blocks"`
}

// Block is a typed unit of content. Content is always a valid JSON value:
// either a structured document or a JSON string holding raw text.
type Block struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// SeoMeta is the optional per-page SEO record. StructuredData is an
// author-supplied JSON-LD fragment stored as text; it may be malformed.
type SeoMeta struct {
	CanonicalURL    string `json:"canonical_url"`
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	StructuredData  string `json:"structured_data,omitempty"`
}

// Menu locations rendered into every payload.
const (
	LocationHeader = "header"
	LocationFooter = "footer"
)

// Menu is a navigation menu bound to a location.
type Menu struct {
	ID       int64
	Location string
	Active   bool
	Items    []MenuItem
}

// MenuItem is one entry of a menu's adjacency list. ParentID is nil for
// top-level items. When PageID is set, PageSlug carries the target page's slug.
type MenuItem struct {
	ID        int64
	ParentID  *int64
	Label     string
	Order     int
	PageID    *int64
	PageSlug  string
	CustomURL string
	Visible   bool
	ShowOn    string
}

// Repository returns published pages. FindPublishedBySlug returns ErrNotFound
// when no published page has the slug.
type Repository interface {
	FindPublishedBySlug(ctx context.Context, slug string) (Page, error)
}

// MenuSource returns the active menu for a location, or ErrNotFound.
type MenuSource interface {
	FindActiveMenuByLocation(ctx context.Context, location string) (Menu, error)
}
