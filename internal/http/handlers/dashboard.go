package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/geocoder89/shopadmin/internal/catalog"
	"github.com/geocoder89/shopadmin/internal/table"
)

type DashboardCard struct {
	Title   string
	Total   string
	Href    string
	AddHref string
}

type DashboardHandler struct {
	catalog *catalog.Catalog
	pages   *Pages
	log     *slog.Logger
}

func NewDashboardHandler(cat *catalog.Catalog, pages *Pages, log *slog.Logger) *DashboardHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DashboardHandler{catalog: cat, pages: pages, log: log}
}

// Show renders one card per entity. Totals are fetched concurrently; a failed
// count shows "-" without failing the page.
func (h *DashboardHandler) Show(c *gin.Context) {
	ctx := c.Request.Context()
	entities := h.catalog.Entities()
	cards := make([]DashboardCard, len(entities))

	var g errgroup.Group
	for i, e := range entities {
		cards[i] = DashboardCard{Title: e.Title, Total: "-", Href: e.Path()}
		if e.AddEnabled {
			cards[i].AddHref = e.Path("add")
		}
		g.Go(func() error {
			raw, err := h.catalog.Gateway.List(ctx, e.Resource, url.Values{"page": {"1"}, "limit": {"1"}})
			if err != nil {
				h.log.WarnContext(ctx, "dashboard count failed", "entity", e.Slug, "err", err)
				return nil
			}
			page, err := table.Normalize(raw, e.EntityKey())
			if err != nil {
				h.log.WarnContext(ctx, "dashboard count unreadable", "entity", e.Slug, "err", err)
				return nil
			}
			cards[i].Total = strconv.Itoa(page.Total)
			return nil
		})
	}
	_ = g.Wait()

	h.pages.Render(c, http.StatusOK, "dashboard.html", gin.H{
		"Title": "Dashboard",
		"Cards": cards,
	})
}
