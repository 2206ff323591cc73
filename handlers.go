package pagecms

import (
	"errors"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecms/content"
	"github.com/eringen/pagecms/menu"
)

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Message string `json:"message"`
}

func (a *App) handlePage(c echo.Context) error {
	payload, err := a.Renderer.Render(c.Request().Context(), c.Param("*"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (a *App) handleMenu(c echo.Context) error {
	ctx := c.Request().Context()
	location := c.Param("location")

	// Unknown locations answer empty without touching the cache.
	known, err := a.Locations(ctx)
	if err != nil {
		return content.Unavailable("list menu locations", err)
	}
	if !slices.Contains(known, location) {
		return c.JSON(http.StatusOK, []menu.Node{})
	}

	nodes, err := a.Renderer.Menu(ctx, location)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nodes)
}

func (a *App) handleSitemap(c echo.Context) error {
	pages, err := a.Store.ListPublished(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, pages)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	switch {
	case errors.Is(err, content.ErrNotFound):
		code, msg = http.StatusNotFound, "page does not exist"
	case errors.Is(err, content.ErrUpstreamUnavailable):
		code, msg = http.StatusServiceUnavailable, "service temporarily unavailable"
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}

	if code >= 500 {
		a.logger.Error("server error", "status", code, "path", c.Request().URL.Path, "error", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Message: msg})
}
