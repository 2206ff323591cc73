package pagecms

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	var cfg SiteConfig
	cfg.setDefaults()

	assert.Equal(t, "Site", cfg.Name)
	assert.Equal(t, "http://localhost:3000", cfg.URL)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "home", cfg.HomeSlug)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/pages.db", cfg.Database.DSN)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 600*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 16, cfg.MenuMaxDepth)
	assert.Equal(t, "Site", cfg.Organization.Name)
}

func TestSetDefaultsTrimsURL(t *testing.T) {
	cfg := SiteConfig{URL: "https://example.com//"}
	cfg.setDefaults()
	assert.Equal(t, "https://example.com", cfg.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  SiteConfig
		want string
	}{
		{"ok", SiteConfig{}, ""},
		{"driver", SiteConfig{Database: DatabaseConfig{Driver: "mysql", DSN: "x"}}, `unknown database driver "mysql"`},
		{"postgres dsn", SiteConfig{Database: DatabaseConfig{Driver: "postgres"}}, "dsn is required"},
		{"cache", SiteConfig{Cache: CacheConfig{Driver: "redis"}}, `unknown cache driver "redis"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.setDefaults()
			err := tt.cfg.validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagecms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Acme
url: https://acme.test/
cache:
  driver: sql
  ttl: 30s
organization:
  logo: https://acme.test/logo.png
`), 0o644))

	t.Setenv("PAGECMS_ADDR", ":8080")
	t.Setenv("PAGECMS_CACHE_TTL", "45s")
	t.Setenv("PAGECMS_ORGANIZATION_SAME_AS", "https://x.test/acme,https://y.test/acme")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Acme", cfg.Name)
	assert.Equal(t, "https://acme.test", cfg.URL)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "sql", cfg.Cache.Driver)
	assert.Equal(t, 45*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "Acme", cfg.Organization.Name)
	assert.Equal(t, "https://acme.test/logo.png", cfg.Organization.Logo)
	assert.Equal(t, []string{"https://x.test/acme", "https://y.test/acme"}, cfg.Organization.SameAs)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "home", cfg.HomeSlug)
	assert.Equal(t, 600*time.Second, cfg.Cache.TTL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	l.Info("hidden")
	l.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"msg":"shown"`)

	buf.Reset()
	NewLogger(LogConfig{Level: "bogus"}, &buf).Debug("debug")
	assert.Empty(t, buf.String(), "unknown level falls back to info")
}
