package pagecms

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecms/content"
	"github.com/eringen/pagecms/render"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// renderSitemap lists pages by the same canonical URL the renderer reports.
func (a *App) renderSitemap(c echo.Context, pages []content.Page) error {
	urls := make([]sitemapURL, 0, len(pages))
	for _, p := range pages {
		urls = append(urls, sitemapURL{Loc: render.CanonicalURL(p, a.Config.URL)})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
