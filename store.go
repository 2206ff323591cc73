package pagecms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/eringen/pagecms/content"
	"github.com/eringen/pagecms/sqldb"
)

// Store reads and writes pages and menus. It implements content.Repository
// and content.MenuSource.
type Store struct {
	db *sqldb.DB
}

// OpenStore opens the database for driver/dsn and runs schema migrations.
func OpenStore(driver, dsn string) (*Store, error) {
	db, err := sqldb.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database and ensures the schema exists.
func NewStore(db *sqldb.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// DB returns the underlying handle, shared with the SQL cache.
func (s *Store) DB() *sqldb.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pages (
    id BIGINT PRIMARY KEY,
    title TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'static',
    status TEXT NOT NULL DEFAULT 'draft'
)`,
	`CREATE TABLE IF NOT EXISTS sections (
    id BIGINT PRIMARY KEY,
    page_id BIGINT NOT NULL,
    type TEXT NOT NULL,
    sort_order INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS blocks (
    id BIGINT PRIMARY KEY,
    section_id BIGINT NOT NULL,
    type TEXT NOT NULL,
    content TEXT NOT NULL,
    sort_order INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS seo_meta (
    page_id BIGINT PRIMARY KEY,
    canonical_url TEXT NOT NULL DEFAULT '',
    meta_title TEXT NOT NULL DEFAULT '',
    meta_description TEXT NOT NULL DEFAULT '',
    structured_data TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS menus (
    id BIGINT PRIMARY KEY,
    location TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1
)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
    id BIGINT PRIMARY KEY,
    menu_id BIGINT NOT NULL,
    parent_id BIGINT,
    label TEXT NOT NULL,
    sort_order INTEGER NOT NULL DEFAULT 0,
    page_id BIGINT,
    custom_url TEXT NOT NULL DEFAULT '',
    is_visible INTEGER NOT NULL DEFAULT 1,
    show_on TEXT NOT NULL DEFAULT 'all'
)`,
	`CREATE INDEX IF NOT EXISTS idx_sections_page ON sections(page_id)`,
	`CREATE INDEX IF NOT EXISTS idx_blocks_section ON blocks(section_id)`,
	`CREATE INDEX IF NOT EXISTS idx_menus_location ON menus(location)`,
	`CREATE INDEX IF NOT EXISTS idx_menu_items_menu ON menu_items(menu_id)`,
}

func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// FindPublishedBySlug loads a published page with its sections, blocks and
// SEO record.
func (s *Store) FindPublishedBySlug(ctx context.Context, slug string) (content.Page, error) {
	var p content.Page
	var status string
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT id, title, slug, type, status FROM pages WHERE slug = ? AND status = ?`),
		slug, string(content.StatusPublished)).
		Scan(&p.ID, &p.Title, &p.Slug, &p.Type, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Page{}, content.ErrNotFound
	}
	if err != nil {
		return content.Page{}, content.Unavailable("store: find page", err)
	}
	p.Status = content.Status(status)

	if p.Sections, err = s.sections(ctx, p.ID); err != nil {
		return content.Page{}, content.Unavailable("store: load sections", err)
	}
	if p.SEO, err = s.seo(ctx, p.ID); err != nil {
		return content.Page{}, content.Unavailable("store: load seo", err)
	}
	return p, nil
}

func (s *Store) sections(ctx context.Context, pageID int64) ([]content.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		s.db.Rebind(`SELECT id, type FROM sections WHERE page_id = ? ORDER BY sort_order, id`), pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := []content.Section{}
	index := make(map[int64]int)
	for rows.Next() {
		var sec content.Section
		if err := rows.Scan(&sec.ID, &sec.Type); err != nil {
			return nil, err
		}
		sec.Blocks = []content.Block{}
		index[sec.ID] = len(sections)
		sections = append(sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	blocks, err := s.db.QueryContext(ctx, s.db.Rebind(`
SELECT b.id, b.section_id, b.type, b.content
FROM blocks b JOIN sections s ON s.id = b.section_id
WHERE s.page_id = ?
ORDER BY b.sort_order, b.id`), pageID)
	if err != nil {
		return nil, err
	}
	defer blocks.Close()

	for blocks.Next() {
		var b content.Block
		var sectionID int64
		var raw string
		if err := blocks.Scan(&b.ID, &sectionID, &b.Type, &raw); err != nil {
			return nil, err
		}
		b.Content = blockContent(raw)
		if i, ok := index[sectionID]; ok {
			sections[i].Blocks = append(sections[i].Blocks, b)
		}
	}
	return sections, blocks.Err()
}

// blockContent keeps stored JSON as is and turns anything else into a JSON
// string, so Block.Content is always valid JSON.
func blockContent(raw string) json.RawMessage {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	b, _ := json.Marshal(raw)
	return b
}

func (s *Store) seo(ctx context.Context, pageID int64) (*content.SeoMeta, error) {
	var m content.SeoMeta
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
SELECT canonical_url, meta_title, meta_description, structured_data
FROM seo_meta WHERE page_id = ?`), pageID).
		Scan(&m.CanonicalURL, &m.MetaTitle, &m.MetaDescription, &m.StructuredData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindActiveMenuByLocation returns the active menu at location with its items
// in storage order. Items targeting a page carry that page's slug.
func (s *Store) FindActiveMenuByLocation(ctx context.Context, location string) (content.Menu, error) {
	m := content.Menu{Location: location}
	var active int
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT id, active FROM menus WHERE location = ? AND active = 1 ORDER BY id LIMIT 1`), location).
		Scan(&m.ID, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Menu{}, content.ErrNotFound
	}
	if err != nil {
		return content.Menu{}, content.Unavailable("store: find menu", err)
	}
	m.Active = active == 1

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
SELECT mi.id, mi.parent_id, mi.label, mi.sort_order, mi.page_id, COALESCE(p.slug, ''),
       mi.custom_url, mi.is_visible, mi.show_on
FROM menu_items mi LEFT JOIN pages p ON p.id = mi.page_id
WHERE mi.menu_id = ?
ORDER BY mi.id`), m.ID)
	if err != nil {
		return content.Menu{}, content.Unavailable("store: load menu items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it content.MenuItem
		var parentID, pageID sql.NullInt64
		var visible int
		if err := rows.Scan(&it.ID, &parentID, &it.Label, &it.Order, &pageID, &it.PageSlug,
			&it.CustomURL, &visible, &it.ShowOn); err != nil {
			return content.Menu{}, content.Unavailable("store: scan menu item", err)
		}
		if parentID.Valid {
			it.ParentID = &parentID.Int64
		}
		if pageID.Valid {
			it.PageID = &pageID.Int64
		}
		it.Visible = visible == 1
		m.Items = append(m.Items, it)
	}
	if err := rows.Err(); err != nil {
		return content.Menu{}, content.Unavailable("store: load menu items", err)
	}
	return m, nil
}

// ListPublished returns published pages without their sections, ordered by
// slug. SEO is set only when a canonical URL is stored.
func (s *Store) ListPublished(ctx context.Context) ([]content.Page, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
SELECT p.id, p.title, p.slug, p.type, COALESCE(m.canonical_url, '')
FROM pages p LEFT JOIN seo_meta m ON m.page_id = p.id
WHERE p.status = ?
ORDER BY p.slug`), string(content.StatusPublished))
	if err != nil {
		return nil, content.Unavailable("store: list pages", err)
	}
	defer rows.Close()

	var pages []content.Page
	for rows.Next() {
		p := content.Page{Status: content.StatusPublished}
		var canonical string
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Type, &canonical); err != nil {
			return nil, content.Unavailable("store: list pages", err)
		}
		if canonical != "" {
			p.SEO = &content.SeoMeta{CanonicalURL: canonical}
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, content.Unavailable("store: list pages", err)
	}
	return pages, nil
}

// ListSlugs returns the slug of every page regardless of status.
func (s *Store) ListSlugs(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT slug FROM pages ORDER BY slug`)
}

// ListMenuLocations returns every location that has a menu.
func (s *Store) ListMenuLocations(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT location FROM menus ORDER BY location`)
}

func (s *Store) strings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SavePage upserts a page and replaces its sections, blocks and SEO record in
// one transaction.
func (s *Store) SavePage(ctx context.Context, p content.Page) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
INSERT INTO pages (id, title, slug, type, status) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET title = excluded.title, slug = excluded.slug,
    type = excluded.type, status = excluded.status`),
		p.ID, p.Title, p.Slug, p.Type, string(p.Status)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM blocks WHERE section_id IN (SELECT id FROM sections WHERE page_id = ?)`), p.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM sections WHERE page_id = ?`), p.ID); err != nil {
		return err
	}
	for i, sec := range p.Sections {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO sections (id, page_id, type, sort_order) VALUES (?, ?, ?, ?)`),
			sec.ID, p.ID, sec.Type, i); err != nil {
			return err
		}
		for j, b := range sec.Blocks {
			if _, err := tx.ExecContext(ctx, s.db.Rebind(
				`INSERT INTO blocks (id, section_id, type, content, sort_order) VALUES (?, ?, ?, ?, ?)`),
				b.ID, sec.ID, b.Type, string(b.Content), j); err != nil {
				return err
			}
		}
	}

	if p.SEO == nil {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM seo_meta WHERE page_id = ?`), p.ID); err != nil {
			return err
		}
	} else if _, err := tx.ExecContext(ctx, s.db.Rebind(`
INSERT INTO seo_meta (page_id, canonical_url, meta_title, meta_description, structured_data)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (page_id) DO UPDATE SET canonical_url = excluded.canonical_url,
    meta_title = excluded.meta_title, meta_description = excluded.meta_description,
    structured_data = excluded.structured_data`),
		p.ID, p.SEO.CanonicalURL, p.SEO.MetaTitle, p.SEO.MetaDescription, p.SEO.StructuredData); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveMenu upserts a menu and replaces its items in one transaction.
func (s *Store) SaveMenu(ctx context.Context, m content.Menu) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
INSERT INTO menus (id, location, active) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET location = excluded.location, active = excluded.active`),
		m.ID, m.Location, boolInt(m.Active)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM menu_items WHERE menu_id = ?`), m.ID); err != nil {
		return err
	}
	for _, it := range m.Items {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`
INSERT INTO menu_items (id, menu_id, parent_id, label, sort_order, page_id, custom_url, is_visible, show_on)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			it.ID, m.ID, nullInt(it.ParentID), it.Label, it.Order, nullInt(it.PageID),
			it.CustomURL, boolInt(it.Visible), it.ShowOn); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
