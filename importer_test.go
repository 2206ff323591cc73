package pagecms

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pagecms/cache"
	"github.com/eringen/pagecms/content"
	"github.com/eringen/pagecms/render"
)

const fixtureYAML = `
pages:
  - id: 1
    title: Home
    slug: /home/
    status: published
    sections:
      - id: 10
        type: hero
        blocks:
          - id: 100
            type: paragraph
            content:
              text: Welcome to the site.
  - id: 2
    title: Consulting
    slug: consulting
    type: service
    status: published
    seo:
      meta_description: Expert advice.
      structured_data:
        "@type": Offer
        price: "100"
    sections:
      - id: 20
        type: faq
        blocks:
          - id: 200
            type: faq_list
            content:
              - question: How long?
                answer: Two weeks.
          - id: 201
            type: rich_text
            content: "<p>Plain html</p>"
menus:
  - id: 1
    location: header
    items:
      - id: 1
        label: Consulting
        page_id: 2
        order: 1
      - id: 2
        label: Blog
        url: https://blog.example.com
        order: 0
        is_visible: false
        show_on: desktop
`

func setupImporter(t *testing.T) (*Importer, *Store, *cache.Memory, *render.Orchestrator) {
	t.Helper()
	s, cleanup := setupTestStore(t)
	t.Cleanup(cleanup)
	mem := cache.NewMemory()
	r := render.New(render.Config{BaseURL: "https://example.com"}, s, s, mem, nil)
	return NewImporter(s, r, nil), s, mem, r
}

func TestImportFixture(t *testing.T) {
	im, s, _, _ := setupImporter(t)
	ctx := context.Background()

	res, err := im.Import(ctx, strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Pages: 2, Menus: 1}, res)

	home, err := s.FindPublishedBySlug(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, content.TypeStatic, home.Type)
	require.Len(t, home.Sections, 1)
	assert.JSONEq(t, `{"text":"Welcome to the site."}`, string(home.Sections[0].Blocks[0].Content))

	svc, err := s.FindPublishedBySlug(ctx, "consulting")
	require.NoError(t, err)
	assert.Equal(t, content.TypeService, svc.Type)
	require.NotNil(t, svc.SEO)
	assert.JSONEq(t, `{"@type":"Offer","price":"100"}`, svc.SEO.StructuredData)
	blocks := svc.Sections[0].Blocks
	require.Len(t, blocks, 2)
	assert.JSONEq(t, `[{"question":"How long?","answer":"Two weeks."}]`, string(blocks[0].Content))
	assert.JSONEq(t, `"<p>Plain html</p>"`, string(blocks[1].Content))

	m, err := s.FindActiveMenuByLocation(ctx, content.LocationHeader)
	require.NoError(t, err)
	assert.True(t, m.Active)
	require.Len(t, m.Items, 2)
	assert.Equal(t, "consulting", m.Items[0].PageSlug)
	assert.True(t, m.Items[0].Visible)
	assert.Equal(t, "all", m.Items[0].ShowOn)
	assert.False(t, m.Items[1].Visible)
	assert.Equal(t, "https://blog.example.com", m.Items[1].CustomURL)
}

func TestImportPurgesCache(t *testing.T) {
	im, _, mem, r := setupImporter(t)
	ctx := context.Background()

	_, err := im.Import(ctx, strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	before, err := r.Render(ctx, "consulting")
	require.NoError(t, err)
	assert.Equal(t, "Consulting", before.MetaTitle)
	_, ok, _ := mem.Get(ctx, cache.RenderKey("consulting"))
	require.True(t, ok)
	_, ok, _ = mem.Get(ctx, cache.MenuKey(content.LocationHeader))
	require.True(t, ok)

	updated := strings.Replace(fixtureYAML, "title: Consulting", "title: Advisory", 1)
	_, err = im.Import(ctx, strings.NewReader(updated))
	require.NoError(t, err)

	_, ok, _ = mem.Get(ctx, cache.RenderKey("consulting"))
	assert.False(t, ok, "render payload purged")
	_, ok, _ = mem.Get(ctx, cache.MenuKey(content.LocationHeader))
	assert.False(t, ok, "menu tree purged")

	after, err := r.Render(ctx, "consulting")
	require.NoError(t, err)
	assert.Equal(t, "Advisory", after.MetaTitle)
}

func TestImportRejectsInvalidFixtures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing id", "pages:\n  - slug: a\n", "pages[0]: id must be positive"},
		{"missing slug", "pages:\n  - id: 1\n    slug: /\n", "pages[0]: slug is required"},
		{"bad status", "pages:\n  - id: 1\n    slug: a\n    status: live\n", `unknown status "live"`},
		{"menu location", "menus:\n  - id: 1\n", "menus[0]: location is required"},
		{"not yaml", "pages: [", "decode fixture"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im, s, _, _ := setupImporter(t)
			_, err := im.Import(context.Background(), strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			slugs, err := s.ListSlugs(context.Background())
			require.NoError(t, err)
			assert.Empty(t, slugs, "nothing saved")
		})
	}
}

func TestImportEmptyDocument(t *testing.T) {
	im, _, _, _ := setupImporter(t)
	res, err := im.Import(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{}, res)
}

func TestImportDefaultsToDraft(t *testing.T) {
	im, s, _, _ := setupImporter(t)
	ctx := context.Background()

	_, err := im.Import(ctx, strings.NewReader("pages:\n  - id: 5\n    title: Later\n    slug: later\n"))
	require.NoError(t, err)

	_, err = s.FindPublishedBySlug(ctx, "later")
	assert.ErrorIs(t, err, content.ErrNotFound)
}
