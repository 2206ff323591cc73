package pagecms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eringen/pagecms/content"
	"github.com/eringen/pagecms/render"
)

// Fixture is the YAML document accepted by the importer.
type Fixture struct {
	Pages []PageFixture `yaml:"pages"`
	Menus []MenuFixture `yaml:"menus"`
}

type PageFixture struct {
	ID       int64            `yaml:"id"`
	Title    string           `yaml:"title"`
	Slug     string           `yaml:"slug"`
	Type     string           `yaml:"type"`
	Status   string           `yaml:"status"`
	SEO      *SEOFixture      `yaml:"seo"`
	Sections []SectionFixture `yaml:"sections"`
}

type SEOFixture struct {
	CanonicalURL    string `yaml:"canonical_url"`
	MetaTitle       string `yaml:"meta_title"`
	MetaDescription string `yaml:"meta_description"`
	// StructuredData is either raw JSON text or a YAML mapping.
	StructuredData any `yaml:"structured_data"`
}

type SectionFixture struct {
	ID     int64          `yaml:"id"`
	Type   string         `yaml:"type"`
	Blocks []BlockFixture `yaml:"blocks"`
}

type BlockFixture struct {
	ID      int64  `yaml:"id"`
	Type    string `yaml:"type"`
	Content any    `yaml:"content"`
}

type MenuFixture struct {
	ID       int64             `yaml:"id"`
	Location string            `yaml:"location"`
	Active   *bool             `yaml:"active"`
	Items    []MenuItemFixture `yaml:"items"`
}

type MenuItemFixture struct {
	ID       int64  `yaml:"id"`
	ParentID *int64 `yaml:"parent_id"`
	Label    string `yaml:"label"`
	Order    int    `yaml:"order"`
	PageID   *int64 `yaml:"page_id"`
	URL      string `yaml:"url"`
	Visible  *bool  `yaml:"is_visible"`
	ShowOn   string `yaml:"show_on"`
}

// ImportResult reports what an import wrote.
type ImportResult struct {
	Pages int
	Menus int
}

// Importer loads fixtures into the store and purges the render cache.
type Importer struct {
	store    *Store
	renderer *render.Orchestrator
	logger   *slog.Logger
}

// NewImporter creates an Importer. A nil logger discards output.
func NewImporter(store *Store, renderer *render.Orchestrator, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{store: store, renderer: renderer, logger: logger}
}

// ImportFile imports the fixture at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, err
	}
	defer f.Close()
	return im.Import(ctx, f)
}

// Import decodes a fixture from r, saves each page and menu in its own
// transaction, then purges every render payload and menu tree. Payloads embed
// both menus, so any menu change reaches every page.
func (im *Importer) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return ImportResult{}, fmt.Errorf("decode fixture: %w", err)
	}

	pages := make([]content.Page, 0, len(fx.Pages))
	for i, pf := range fx.Pages {
		p, err := pf.page()
		if err != nil {
			return ImportResult{}, fmt.Errorf("pages[%d]: %w", i, err)
		}
		pages = append(pages, p)
	}
	menus := make([]content.Menu, 0, len(fx.Menus))
	for i, mf := range fx.Menus {
		m, err := mf.menu()
		if err != nil {
			return ImportResult{}, fmt.Errorf("menus[%d]: %w", i, err)
		}
		menus = append(menus, m)
	}

	// Slugs present before the import, so renamed pages lose their old entry.
	before, err := im.store.ListSlugs(ctx)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	for _, p := range pages {
		if err := im.store.SavePage(ctx, p); err != nil {
			return res, fmt.Errorf("save page %q: %w", p.Slug, err)
		}
		res.Pages++
	}
	for _, m := range menus {
		if err := im.store.SaveMenu(ctx, m); err != nil {
			return res, fmt.Errorf("save menu %d: %w", m.ID, err)
		}
		res.Menus++
	}

	slugs := before
	for _, p := range pages {
		slugs = append(slugs, p.Slug)
	}
	locations := []string{content.LocationHeader, content.LocationFooter}
	for _, m := range menus {
		locations = append(locations, m.Location)
	}
	if err := im.renderer.Purge(ctx, mergeUnique(slugs), mergeUnique(locations)); err != nil {
		return res, fmt.Errorf("purge cache: %w", err)
	}

	im.logger.Info("content imported", "pages", res.Pages, "menus", res.Menus)
	return res, nil
}

func (pf PageFixture) page() (content.Page, error) {
	slug := strings.Trim(strings.TrimSpace(pf.Slug), "/")
	if pf.ID <= 0 {
		return content.Page{}, errors.New("id must be positive")
	}
	if slug == "" {
		return content.Page{}, errors.New("slug is required")
	}

	p := content.Page{
		ID:       pf.ID,
		Title:    pf.Title,
		Slug:     slug,
		Type:     pf.Type,
		Status:   content.Status(pf.Status),
		Sections: make([]content.Section, 0, len(pf.Sections)),
	}
	if p.Type == "" {
		p.Type = content.TypeStatic
	}
	switch p.Status {
	case "":
		p.Status = content.StatusDraft
	case content.StatusDraft, content.StatusPublished, content.StatusArchived:
	default:
		return content.Page{}, fmt.Errorf("unknown status %q", pf.Status)
	}

	for _, sf := range pf.Sections {
		if sf.ID <= 0 {
			return content.Page{}, errors.New("section id must be positive")
		}
		sec := content.Section{ID: sf.ID, Type: sf.Type, Blocks: make([]content.Block, 0, len(sf.Blocks))}
		for _, bf := range sf.Blocks {
			if bf.ID <= 0 {
				return content.Page{}, errors.New("block id must be positive")
			}
			raw, err := json.Marshal(bf.Content)
			if err != nil {
				return content.Page{}, fmt.Errorf("block %d: %w", bf.ID, err)
			}
			sec.Blocks = append(sec.Blocks, content.Block{ID: bf.ID, Type: bf.Type, Content: raw})
		}
		p.Sections = append(p.Sections, sec)
	}

	if pf.SEO != nil {
		seo := &content.SeoMeta{
			CanonicalURL:    pf.SEO.CanonicalURL,
			MetaTitle:       pf.SEO.MetaTitle,
			MetaDescription: pf.SEO.MetaDescription,
		}
		switch sd := pf.SEO.StructuredData.(type) {
		case nil:
		case string:
			seo.StructuredData = sd
		default:
			raw, err := json.Marshal(sd)
			if err != nil {
				return content.Page{}, fmt.Errorf("structured_data: %w", err)
			}
			seo.StructuredData = string(raw)
		}
		p.SEO = seo
	}
	return p, nil
}

func (mf MenuFixture) menu() (content.Menu, error) {
	if mf.ID <= 0 {
		return content.Menu{}, errors.New("id must be positive")
	}
	if mf.Location == "" {
		return content.Menu{}, errors.New("location is required")
	}
	m := content.Menu{ID: mf.ID, Location: mf.Location, Active: mf.Active == nil || *mf.Active}
	for _, it := range mf.Items {
		if it.ID <= 0 {
			return content.Menu{}, errors.New("item id must be positive")
		}
		showOn := it.ShowOn
		if showOn == "" {
			showOn = "all"
		}
		m.Items = append(m.Items, content.MenuItem{
			ID:        it.ID,
			ParentID:  it.ParentID,
			Label:     it.Label,
			Order:     it.Order,
			PageID:    it.PageID,
			CustomURL: it.URL,
			Visible:   it.Visible == nil || *it.Visible,
			ShowOn:    showOn,
		})
	}
	return m, nil
}
