package pagecms

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/eringen/pagecms/content"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_pages.db")

	s, err := OpenStore("sqlite", path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	cleanup := func() {
		s.Close()
	}

	return s, cleanup
}

func int64p(v int64) *int64 { return &v }

func testPage() content.Page {
	return content.Page{
		ID:     1,
		Title:  "About Us",
		Slug:   "about",
		Type:   content.TypeStatic,
		Status: content.StatusPublished,
		Sections: []content.Section{
			{ID: 10, Type: "hero", Blocks: []content.Block{
				{ID: 100, Type: "heading", Content: []byte(`{"text":"Who we are"}`)},
				{ID: 101, Type: "rich_text", Content: []byte(`"<p>Hello</p>"`)},
			}},
			{ID: 11, Type: "body", Blocks: []content.Block{
				{ID: 102, Type: "paragraph", Content: []byte(`{"text":"Since 1999"}`)},
			}},
		},
		SEO: &content.SeoMeta{
			CanonicalURL: "https://example.com/about-us",
			MetaTitle:    "About | Example",
		},
	}
}

func TestNewStore(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	if s == nil {
		t.Fatal("store should not be nil")
	}
	if s.DB() == nil {
		t.Fatal("db should not be nil")
	}
	// Schema creation is idempotent.
	if err := s.ensureSchema(); err != nil {
		t.Fatalf("ensureSchema twice: %v", err)
	}
}

func TestSaveAndFindPage(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	page := testPage()
	if err := s.SavePage(ctx, page); err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}

	got, err := s.FindPublishedBySlug(ctx, "about")
	if err != nil {
		t.Fatalf("FindPublishedBySlug failed: %v", err)
	}

	if got.ID != page.ID {
		t.Errorf("ID = %d, want %d", got.ID, page.ID)
	}
	if got.Title != page.Title {
		t.Errorf("Title = %q, want %q", got.Title, page.Title)
	}
	if got.Status != content.StatusPublished {
		t.Errorf("Status = %q, want %q", got.Status, content.StatusPublished)
	}
	if len(got.Sections) != 2 {
		t.Fatalf("len(Sections) = %d, want 2", len(got.Sections))
	}
	if got.Sections[0].Type != "hero" || got.Sections[1].Type != "body" {
		t.Errorf("section order = [%q %q], want [hero body]", got.Sections[0].Type, got.Sections[1].Type)
	}
	if len(got.Sections[0].Blocks) != 2 {
		t.Fatalf("len(Sections[0].Blocks) = %d, want 2", len(got.Sections[0].Blocks))
	}
	if string(got.Sections[0].Blocks[0].Content) != `{"text":"Who we are"}` {
		t.Errorf("block content = %s", got.Sections[0].Blocks[0].Content)
	}
	if string(got.Sections[0].Blocks[1].Content) != `"<p>Hello</p>"` {
		t.Errorf("string block content = %s", got.Sections[0].Blocks[1].Content)
	}
	if got.SEO == nil {
		t.Fatal("SEO should not be nil")
	}
	if got.SEO.CanonicalURL != page.SEO.CanonicalURL {
		t.Errorf("CanonicalURL = %q, want %q", got.SEO.CanonicalURL, page.SEO.CanonicalURL)
	}
	if got.SEO.MetaDescription != "" {
		t.Errorf("MetaDescription = %q, want empty", got.SEO.MetaDescription)
	}
}

func TestSavePageReplacesChildren(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	page := testPage()
	if err := s.SavePage(ctx, page); err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}

	page.Title = "About"
	page.Sections = []content.Section{{ID: 12, Type: "body"}}
	page.SEO = nil
	if err := s.SavePage(ctx, page); err != nil {
		t.Fatalf("SavePage (update) failed: %v", err)
	}

	got, err := s.FindPublishedBySlug(ctx, "about")
	if err != nil {
		t.Fatalf("FindPublishedBySlug failed: %v", err)
	}
	if got.Title != "About" {
		t.Errorf("Title = %q, want %q", got.Title, "About")
	}
	if len(got.Sections) != 1 || got.Sections[0].ID != 12 {
		t.Errorf("Sections = %+v, want one section with id 12", got.Sections)
	}
	if got.Sections[0].Blocks == nil {
		t.Error("Blocks should be an empty slice, not nil")
	}
	if got.SEO != nil {
		t.Errorf("SEO = %+v, want nil", got.SEO)
	}

	// Re-saving must not leave the old blocks behind.
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM blocks`).Scan(&n); err != nil {
		t.Fatalf("count blocks: %v", err)
	}
	if n != 0 {
		t.Errorf("blocks = %d, want 0", n)
	}
}

func TestFindPublishedBySlugNotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	draft := testPage()
	draft.Status = content.StatusDraft
	if err := s.SavePage(ctx, draft); err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}

	for _, slug := range []string{"about", "missing"} {
		_, err := s.FindPublishedBySlug(ctx, slug)
		if !errors.Is(err, content.ErrNotFound) {
			t.Errorf("FindPublishedBySlug(%q) error = %v, want ErrNotFound", slug, err)
		}
	}
}

func TestFindPublishedBySlugClosedDB(t *testing.T) {
	s, cleanup := setupTestStore(t)
	cleanup()

	_, err := s.FindPublishedBySlug(context.Background(), "about")
	if !errors.Is(err, content.ErrUpstreamUnavailable) {
		t.Errorf("error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestBlockContentNormalization(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"text":"hi"}`, `{"text":"hi"}`},
		{`"quoted"`, `"quoted"`},
		{`plain words`, `"plain words"`},
		{`<p>html</p>`, `"<p>html</p>"`},
	}
	for _, tt := range tests {
		got := string(blockContent(tt.raw))
		if got != tt.want {
			t.Errorf("blockContent(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestRawTextBlockFromDatabase(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	page := testPage()
	page.Sections = []content.Section{{ID: 10, Type: "body"}}
	if err := s.SavePage(ctx, page); err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}
	if _, err := s.DB().Exec(`INSERT INTO blocks (id, section_id, type, content, sort_order) VALUES (1, 10, 'text', 'written by hand', 0)`); err != nil {
		t.Fatalf("insert block: %v", err)
	}

	got, err := s.FindPublishedBySlug(ctx, "about")
	if err != nil {
		t.Fatalf("FindPublishedBySlug failed: %v", err)
	}
	if c := string(got.Sections[0].Blocks[0].Content); c != `"written by hand"` {
		t.Errorf("Content = %s, want %q", c, `"written by hand"`)
	}
}

func TestSaveAndFindMenu(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.SavePage(ctx, testPage()); err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}
	menu := content.Menu{
		ID:       1,
		Location: content.LocationHeader,
		Active:   true,
		Items: []content.MenuItem{
			{ID: 1, Label: "About", Order: 2, PageID: int64p(1), Visible: true, ShowOn: "all"},
			{ID: 2, Label: "Team", Order: 1, ParentID: int64p(1), CustomURL: "/team", ShowOn: "desktop"},
		},
	}
	if err := s.SaveMenu(ctx, menu); err != nil {
		t.Fatalf("SaveMenu failed: %v", err)
	}

	got, err := s.FindActiveMenuByLocation(ctx, content.LocationHeader)
	if err != nil {
		t.Fatalf("FindActiveMenuByLocation failed: %v", err)
	}
	if !got.Active {
		t.Error("Active = false, want true")
	}
	if len(got.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(got.Items))
	}

	about := got.Items[0]
	if about.PageSlug != "about" {
		t.Errorf("PageSlug = %q, want %q", about.PageSlug, "about")
	}
	if about.ParentID != nil {
		t.Errorf("ParentID = %d, want nil", *about.ParentID)
	}
	if about.Order != 2 {
		t.Errorf("Order = %d, want 2", about.Order)
	}

	team := got.Items[1]
	if team.ParentID == nil || *team.ParentID != 1 {
		t.Errorf("ParentID = %v, want 1", team.ParentID)
	}
	if team.PageID != nil {
		t.Errorf("PageID = %d, want nil", *team.PageID)
	}
	if team.Visible {
		t.Error("Visible = true, want false")
	}
	if team.ShowOn != "desktop" {
		t.Errorf("ShowOn = %q, want %q", team.ShowOn, "desktop")
	}
}

func TestFindActiveMenuSkipsInactive(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.SaveMenu(ctx, content.Menu{ID: 1, Location: content.LocationFooter, Active: false}); err != nil {
		t.Fatalf("SaveMenu failed: %v", err)
	}
	_, err := s.FindActiveMenuByLocation(ctx, content.LocationFooter)
	if !errors.Is(err, content.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListPublishedAndSlugs(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	pages := []content.Page{
		{ID: 1, Title: "Home", Slug: "home", Status: content.StatusPublished},
		{ID: 2, Title: "About", Slug: "about", Status: content.StatusPublished,
			SEO: &content.SeoMeta{CanonicalURL: "https://example.com/about-us"}},
		{ID: 3, Title: "Draft", Slug: "draft", Status: content.StatusDraft},
	}
	for _, p := range pages {
		if err := s.SavePage(ctx, p); err != nil {
			t.Fatalf("SavePage(%q) failed: %v", p.Slug, err)
		}
	}

	got, err := s.ListPublished(ctx)
	if err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(ListPublished) = %d, want 2", len(got))
	}
	if got[0].Slug != "about" || got[1].Slug != "home" {
		t.Errorf("slugs = [%q %q], want [about home]", got[0].Slug, got[1].Slug)
	}
	if got[0].SEO == nil || got[0].SEO.CanonicalURL != "https://example.com/about-us" {
		t.Errorf("about SEO = %+v, want canonical", got[0].SEO)
	}
	if got[1].SEO != nil {
		t.Errorf("home SEO = %+v, want nil", got[1].SEO)
	}

	slugs, err := s.ListSlugs(ctx)
	if err != nil {
		t.Fatalf("ListSlugs failed: %v", err)
	}
	if len(slugs) != 3 {
		t.Errorf("ListSlugs = %v, want 3 slugs", slugs)
	}
}

func TestListMenuLocations(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for i, loc := range []string{"footer", "header", "footer"} {
		if err := s.SaveMenu(ctx, content.Menu{ID: int64(i + 1), Location: loc, Active: true}); err != nil {
			t.Fatalf("SaveMenu failed: %v", err)
		}
	}
	got, err := s.ListMenuLocations(ctx)
	if err != nil {
		t.Fatalf("ListMenuLocations failed: %v", err)
	}
	if len(got) != 2 || got[0] != "footer" || got[1] != "header" {
		t.Errorf("ListMenuLocations = %v, want [footer header]", got)
	}
}
