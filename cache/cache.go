// Package cache provides the key/value store behind the render pipeline's
// cache-aside reads, plus the key namespaces it uses.
package cache

import (
	"context"
	"time"
)

// Store is a key/value store with per-entry TTL. Get reports a miss with
// ok == false and a nil error; expired entries are misses.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key prefixes. Render payloads and menu trees never share a namespace so
// invalidating one cannot evict the other.
const (
	renderPrefix = "render:"
	menuPrefix   = "menu:"
)

// RenderKey is the cache key of the render payload for slug.
func RenderKey(slug string) string {
	return renderPrefix + slug
}

// MenuKey is the cache key of the menu tree for location.
func MenuKey(location string) string {
	return menuPrefix + location
}
