// Package jsonld assembles the schema.org structured-data graph emitted with
// every rendered page.
package jsonld

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/eringen/pagecms/content"
)

// Context is the JSON-LD vocabulary of every graph.
const Context = "https://schema.org"

// Entity is a single typed node of the graph.
type Entity map[string]any

// Type returns the entity's @type, or "" if absent.
func (e Entity) Type() string {
	t, _ := e["@type"].(string)
	return t
}

// Graph is a JSON-LD document holding several entities under @graph.
type Graph struct {
	Context string   `json:"@context"`
	Graph   []Entity `json:"@graph"`
}

// Find returns the first entity of the given type.
func (g Graph) Find(typ string) (Entity, bool) {
	for _, e := range g.Graph {
		if e.Type() == typ {
			return e, true
		}
	}
	return nil, false
}

// Organization describes the publisher anchored at the site's base URL.
type Organization struct {
	Name   string
	Logo   string
	SameAs []string
}

// Builder builds graphs for pages. The zero value emits an Organization with
// no name and discards fragment warnings.
type Builder struct {
	Org    Organization
	Logger *slog.Logger
}

var errEmptyFragment = errors.New("fragment is not a non-empty JSON object")

// Build assembles the graph for p. Entries are always ordered Organization,
// BreadcrumbList, Service, FAQPage, then the page's own SEO fragment; the last
// three appear only when applicable.
func (b *Builder) Build(p content.Page, canonicalURL, baseURL string) Graph {
	orgID := baseURL + "#organization"
	graph := []Entity{
		b.organization(orgID, baseURL),
		breadcrumbs(p, canonicalURL, baseURL),
	}
	if p.Type == content.TypeService {
		graph = append(graph, service(p, canonicalURL, orgID))
	}
	if faq, ok := faqPage(p); ok {
		graph = append(graph, faq)
	}
	if p.SEO != nil && strings.TrimSpace(p.SEO.StructuredData) != "" {
		frag, err := ParseFragment(p.SEO.StructuredData)
		if err != nil {
			b.logger().Warn("skipping structured data fragment", "slug", p.Slug, "error", err)
		} else {
			graph = append(graph, frag)
		}
	}
	return Graph{Context: Context, Graph: graph}
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (b *Builder) organization(id, baseURL string) Entity {
	org := Entity{
		"@type": "Organization",
		"@id":   id,
		"url":   siteRoot(baseURL),
	}
	if b.Org.Name != "" {
		org["name"] = b.Org.Name
	}
	if b.Org.Logo != "" {
		org["logo"] = b.Org.Logo
	}
	if len(b.Org.SameAs) > 0 {
		org["sameAs"] = b.Org.SameAs
	}
	return org
}

func breadcrumbs(p content.Page, canonicalURL, baseURL string) Entity {
	return Entity{
		"@type": "BreadcrumbList",
		"itemListElement": []Entity{
			{"@type": "ListItem", "position": 1, "name": "Home", "item": siteRoot(baseURL)},
			{"@type": "ListItem", "position": 2, "name": p.Title, "item": canonicalURL},
		},
	}
}

func service(p content.Page, canonicalURL, orgID string) Entity {
	s := Entity{
		"@type":    "Service",
		"name":     p.Title,
		"url":      canonicalURL,
		"provider": Entity{"@id": orgID},
	}
	if p.SEO != nil && p.SEO.MetaDescription != "" {
		s["description"] = p.SEO.MetaDescription
	}
	return s
}

// faqPage scans sections then blocks in order and uses only the first
// faq_list block on the page.
func faqPage(p content.Page) (Entity, bool) {
	for _, s := range p.Sections {
		for _, blk := range s.Blocks {
			if blk.Type != content.BlockFAQList {
				continue
			}
			questions := faqQuestions(blk.Content)
			if len(questions) == 0 {
				return nil, false
			}
			return Entity{"@type": "FAQPage", "mainEntity": questions}, true
		}
	}
	return nil, false
}

// faqQuestions reads question/answer pairs from either a bare array or an
// object with an "items" array. Pairs missing either side are dropped.
func faqQuestions(raw json.RawMessage) []Entity {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	list := gjson.ParseBytes(raw)
	if list.IsObject() {
		list = list.Get("items")
	}
	if !list.IsArray() {
		return nil
	}
	var out []Entity
	list.ForEach(func(_, item gjson.Result) bool {
		q := strings.TrimSpace(item.Get("question").String())
		a := strings.TrimSpace(item.Get("answer").String())
		if q == "" || a == "" {
			return true
		}
		out = append(out, Entity{
			"@type":          "Question",
			"name":           q,
			"acceptedAnswer": Entity{"@type": "Answer", "text": a},
		})
		return true
	})
	return out
}

// ParseFragment decodes an author-supplied JSON-LD fragment. Only a
// non-empty JSON object is accepted; numbers keep their original text.
func ParseFragment(s string) (Entity, error) {
	if !gjson.Valid(s) {
		return nil, errors.New("fragment is not valid JSON")
	}
	r := gjson.Parse(s)
	if !r.IsObject() || len(r.Map()) == 0 {
		return nil, errEmptyFragment
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var e Entity
	if err := dec.Decode(&e); err != nil {
		return nil, err
	}
	return e, nil
}

func siteRoot(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/"
}
