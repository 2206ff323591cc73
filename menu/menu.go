// Package menu turns a menu's flat adjacency list into the nested navigation
// tree served to the front end.
package menu

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/eringen/pagecms/content"
)

// DefaultMaxDepth bounds recursion when parent references are malformed.
const DefaultMaxDepth = 16

// Node is one rendered menu entry. URL is nil when the item has no target.
type Node struct {
	ID        int64   `json:"id"`
	Label     string  `json:"label"`
	URL       *string `json:"url"`
	ShowOn    string  `json:"show_on"`
	IsVisible bool    `json:"is_visible"`
	Children  []Node  `json:"children"`
}

// Builder loads menus from a MenuSource and builds their trees.
type Builder struct {
	source   content.MenuSource
	maxDepth int
	logger   *slog.Logger
}

// NewBuilder creates a Builder. A maxDepth below 1 selects DefaultMaxDepth.
func NewBuilder(source content.MenuSource, maxDepth int, logger *slog.Logger) *Builder {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{source: source, maxDepth: maxDepth, logger: logger}
}

// Build returns the tree of the active menu at location. A missing or
// inactive menu yields an empty, non-nil tree.
func (b *Builder) Build(ctx context.Context, location string) ([]Node, error) {
	m, err := b.source.FindActiveMenuByLocation(ctx, location)
	if errors.Is(err, content.ErrNotFound) {
		return []Node{}, nil
	}
	if err != nil {
		return nil, content.Unavailable("find menu "+location, err)
	}
	if !m.Active {
		return []Node{}, nil
	}
	nodes, truncated := Tree(m.Items, b.maxDepth)
	if truncated {
		b.logger.Warn("menu tree truncated at max depth", "location", location, "max_depth", b.maxDepth)
	}
	return nodes, nil
}

// parentKey groups items by parent; root is the synthetic key for top-level items.
type parentKey struct {
	id   int64
	root bool
}

var rootKey = parentKey{root: true}

// Tree converts items into nested nodes. Siblings are ordered by Order,
// keeping input order on ties. Items whose parent is absent are unreachable
// and omitted. truncated reports whether maxDepth cut off any descendants.
func Tree(items []content.MenuItem, maxDepth int) (nodes []Node, truncated bool) {
	sorted := make([]content.MenuItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	groups := make(map[parentKey][]content.MenuItem)
	for _, it := range sorted {
		k := rootKey
		if it.ParentID != nil {
			k = parentKey{id: *it.ParentID}
		}
		groups[k] = append(groups[k], it)
	}
	return children(groups, rootKey, 1, maxDepth)
}

func children(groups map[parentKey][]content.MenuItem, parent parentKey, depth, maxDepth int) ([]Node, bool) {
	items := groups[parent]
	nodes := make([]Node, 0, len(items))
	if len(items) == 0 {
		return nodes, false
	}
	if depth > maxDepth {
		return nodes, true
	}
	truncated := false
	for _, it := range items {
		kids, cut := children(groups, parentKey{id: it.ID}, depth+1, maxDepth)
		truncated = truncated || cut
		nodes = append(nodes, Node{
			ID:        it.ID,
			Label:     it.Label,
			URL:       ResolveURL(it),
			ShowOn:    it.ShowOn,
			IsVisible: it.Visible,
			Children:  kids,
		})
	}
	return nodes, truncated
}

// ResolveURL returns "/"+slug for page targets, the custom URL when set, or nil.
func ResolveURL(it content.MenuItem) *string {
	var u string
	switch {
	case it.PageID != nil && it.PageSlug != "":
		u = "/" + it.PageSlug
	case it.CustomURL != "":
		u = it.CustomURL
	default:
		return nil
	}
	return &u
}
